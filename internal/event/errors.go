/*
Package event
File: errors.go
Description:
    Sentinel errors and the HandlerError payload of the "error" event.
*/

package event

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEvent is returned for names missing from the catalog.
	ErrUnknownEvent = errors.New("event: unknown event")
	// ErrPayloadType is returned when a payload does not match its catalog entry.
	ErrPayloadType = errors.New("event: payload type mismatch")
	// ErrNotInbound is returned by Decode for events the UI may not send.
	ErrNotInbound = errors.New("event: not accepted from outside the core")
	// ErrHandlerTimeout marks an async handler that ran past its deadline.
	ErrHandlerTimeout = errors.New("event: handler timed out")
	// ErrRetired marks a handler removed between snapshot and invocation.
	ErrRetired = errors.New("event: subscription retired")
)

// HandlerError wraps a failure raised inside one handler. It is also the
// payload of the "error" event.
type HandlerError struct {
	Event          string         `json:"event"`
	SubscriptionID SubscriptionID `json:"subscriptionId"`
	Context        string         `json:"context,omitempty"`
	Err            error          `json:"-"`
	Panic          bool           `json:"panic"`
	Reason         string         `json:"reason"` // Err.Error(), kept for JSON consumers
}

func (e *HandlerError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("handler %d (%s) for %q: %v", e.SubscriptionID, e.Context, e.Event, e.Err)
	}
	return fmt.Sprintf("handler %d for %q: %v", e.SubscriptionID, e.Event, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
