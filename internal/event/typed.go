/*
Package event
File: typed.go
Description:
    Generic helpers for typed handlers and result extraction.
*/

package event

import (
	"context"
	"fmt"
)

// On subscribes a handler that receives the payload already asserted to T.
func On[T any](b *Bus, name string, fn func(ctx context.Context, payload T) (any, error), opts ...SubscribeOption) SubscriptionID {
	return b.Subscribe(name, func(ctx context.Context, ev Event) (any, error) {
		p, ok := ev.Payload.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("%w: %q wants %T, got %T", ErrPayloadType, name, zero, ev.Payload)
		}
		return fn(ctx, p)
	}, opts...)
}

// First returns the first successful value of type T among results.
func First[T any](results []Result) (T, bool) {
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if v, ok := r.Value.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// FirstError returns the first failure among results, or nil.
func FirstError(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
