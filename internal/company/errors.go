/*
Package company
File: errors.go
Description:
    Ledger errors.
*/

package company

import "errors"

var (
	// ErrInsufficientFunds rejects a spend the company cannot cover.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount rejects non-positive money requests.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidDays rejects time advances of less than one day.
	ErrInvalidDays = errors.New("time advances in whole days, at least one")
)
