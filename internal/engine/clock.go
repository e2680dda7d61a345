/*
Package engine
File: clock.go
Description:
    Injectable time sources for the loop.
*/

package engine

import "time"

// Clock provides the current time. The loop never calls time.Now directly.
type Clock interface {
	Now() time.Time
}

// RealClock returns the system time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FuncClock wraps a function as a Clock.
type FuncClock func() time.Time

func (f FuncClock) Now() time.Time { return f() }

// ManualClock is advanced explicitly. It is meant for tests and replays.
type ManualClock struct {
	T time.Time
}

func (c *ManualClock) Now() time.Time { return c.T }

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
