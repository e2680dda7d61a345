/*
Package event
File: options.go
Description:
    Subscribe and publish options.
*/

package event

import "time"

type subscribeConfig struct {
	priority int
	once     bool
	label    string
}

// SubscribeOption tunes a registration.
type SubscribeOption func(*subscribeConfig)

// Priority orders handlers of the same event; higher runs first.
func Priority(p int) SubscribeOption {
	return func(c *subscribeConfig) { c.priority = p }
}

// Once removes the handler after its first successful invocation.
func Once() SubscribeOption {
	return func(c *subscribeConfig) { c.once = true }
}

// Context labels the registration (usually the owning subsystem's name).
// The label is reported in Results and HandlerErrors and drives UnsubscribeContext.
func Context(label string) SubscribeOption {
	return func(c *subscribeConfig) { c.label = label }
}

type publishConfig struct {
	async   bool
	timeout time.Duration
	limit   int
}

// PublishOption tunes a single Publish call.
type PublishOption func(*publishConfig)

// Async runs the handlers concurrently instead of in priority order.
func Async() PublishOption {
	return func(c *publishConfig) { c.async = true }
}

// Timeout bounds each handler in async mode.
func Timeout(d time.Duration) PublishOption {
	return func(c *publishConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Limit caps how many handlers run at once in async mode.
func Limit(n int) PublishOption {
	return func(c *publishConfig) { c.limit = n }
}
