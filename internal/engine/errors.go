/*
Package engine
File: errors.go
Description:
    Lifecycle errors.
*/

package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned for lifecycle calls made in the wrong state.
var ErrInvalidState = errors.New("engine: invalid state for this operation")

// SubsystemInitError aborts engine startup.
type SubsystemInitError struct {
	System string
	Err    error
}

func (e *SubsystemInitError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.System, e.Err)
}

func (e *SubsystemInitError) Unwrap() error { return e.Err }
