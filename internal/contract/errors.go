/*
Package contract
File: errors.go
Description:
    Acceptance errors and their reason codes.
*/

package contract

import (
	"errors"
	"fmt"
)

// Rejection reasons reported for a blocked acceptance.
const (
	ReasonInsufficientMechs  = "insufficient_mechs"
	ReasonInsufficientPilots = "insufficient_pilots"
	ReasonWeightExceeded     = "weight_exceeded"
	ReasonTooManyMechs       = "too_many_mechs"
	ReasonUnknownContract    = "unknown_contract"
	ReasonOfferExpired       = "offer_expired"
	ReasonInvalidDeployment  = "invalid_deployment"
)

var (
	ErrUnknownContract = errors.New("no such contract")
	ErrOfferExpired    = errors.New("offer has expired")
)

// InsufficientResourceError blocks an acceptance the company cannot field.
type InsufficientResourceError struct {
	Reason string // One of the Reason* constants
	Need   int
	Have   int
}

func (e *InsufficientResourceError) Error() string {
	switch e.Reason {
	case ReasonInsufficientMechs:
		return fmt.Sprintf("insufficient mechs: need %d ready, have %d", e.Need, e.Have)
	case ReasonInsufficientPilots:
		return fmt.Sprintf("insufficient pilots: need %d available, have %d", e.Need, e.Have)
	case ReasonWeightExceeded:
		return fmt.Sprintf("weight exceeded: limit %d tons, lance weighs %d", e.Need, e.Have)
	case ReasonTooManyMechs:
		return fmt.Sprintf("too many mechs: at most %d, got %d", e.Need, e.Have)
	}
	return fmt.Sprintf("%s: need %d, have %d", e.Reason, e.Need, e.Have)
}

// reasonOf maps an acceptance error to its rejection reason.
func reasonOf(err error) string {
	var ire *InsufficientResourceError
	switch {
	case errors.As(err, &ire):
		return ire.Reason
	case errors.Is(err, ErrUnknownContract):
		return ReasonUnknownContract
	case errors.Is(err, ErrOfferExpired):
		return ReasonOfferExpired
	}
	return ReasonInvalidDeployment
}
