/*
Package event
File: bus.go
Description:
    The in-process publish/subscribe hub every subsystem talks through.
    Subsystems never call each other directly: they publish a named event and
    whoever cares has subscribed to it.

    Ordering:
    - Handlers for one event run in descending priority, ties in subscription order.
    - Wildcard observers (SubscribeAny) run after the named handlers.

    Failure:
    - A handler that returns an error or panics is converted into a HandlerError,
      logged, and re-published as the "error" event. The publisher only sees it
      in the Result list; remaining handlers still run.
*/

package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrorEvent is the name failures are re-published under.
const ErrorEvent = "error"

// DefaultTimeout bounds each handler in async publish mode.
const DefaultTimeout = 5 * time.Second

// Event is what a handler receives.
type Event struct {
	Name    string // Catalog name (e.g., "contract:accepted")
	Payload any    // Typed payload, validated against the catalog
	Seq     uint64 // Monotonic publish counter, useful when tracing
}

// Handler processes one event. The returned value ends up in the publisher's Result list.
type Handler func(ctx context.Context, ev Event) (any, error)

// SubscriptionID identifies one registration on the bus.
type SubscriptionID uint64

// Result is the settled outcome of a single handler invocation.
type Result struct {
	SubscriptionID SubscriptionID
	Context        string
	Value          any
	Err            error
}

type subscription struct {
	id       SubscriptionID
	name     string
	handler  Handler
	priority int
	once     bool
	label    string
	seq      uint64
	retired  atomic.Bool
}

// Bus is the event hub. The zero value is not usable; call NewBus.
type Bus struct {
	mu       sync.RWMutex
	named    map[string][]*subscription
	wildcard []*subscription
	catalog  map[string]Definition

	nextID   atomic.Uint64
	nextSeq  atomic.Uint64
	publishN atomic.Uint64

	log *slog.Logger
}

// NewBus creates a bus with the "error" event already defined.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	b := &Bus{
		named:   make(map[string][]*subscription),
		catalog: make(map[string]Definition),
		log:     log.With(slog.String("system", "bus")),
	}
	b.Define(ErrorEvent, HandlerError{})
	return b
}

// Subscribe registers handler for the named event and returns its id.
func (b *Bus) Subscribe(name string, handler Handler, opts ...SubscribeOption) SubscriptionID {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &subscription{
		id:       SubscriptionID(b.nextID.Add(1)),
		name:     name,
		handler:  handler,
		priority: cfg.priority,
		once:     cfg.once,
		label:    cfg.label,
		seq:      b.nextSeq.Add(1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.named[name] = insertOrdered(b.named[name], s)
	return s.id
}

// SubscribeAny registers a wildcard observer that sees every published event.
func (b *Bus) SubscribeAny(handler Handler, opts ...SubscribeOption) SubscriptionID {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &subscription{
		id:       SubscriptionID(b.nextID.Add(1)),
		handler:  handler,
		priority: cfg.priority,
		once:     cfg.once,
		label:    cfg.label,
		seq:      b.nextSeq.Add(1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = insertOrdered(b.wildcard, s)
	return s.id
}

// Unsubscribe removes a registration. Pass an empty name for wildcard observers.
// Returns false when nothing matched.
func (b *Bus) Unsubscribe(name string, id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if name == "" {
		var ok bool
		b.wildcard, ok = removeID(b.wildcard, id)
		return ok
	}

	list, ok := removeID(b.named[name], id)
	if !ok {
		return false
	}
	if len(list) == 0 {
		delete(b.named, name)
	} else {
		b.named[name] = list
	}
	return true
}

// UnsubscribeContext drops every registration carrying the given context label.
// Subsystems use it on teardown. Returns the number removed.
func (b *Bus) UnsubscribeContext(label string) int {
	if label == "" {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for name, list := range b.named {
		kept := list[:0:0]
		for _, s := range list {
			if s.label == label {
				s.retired.Store(true)
				removed++
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			delete(b.named, name)
		} else {
			b.named[name] = kept
		}
	}

	kept := b.wildcard[:0:0]
	for _, s := range b.wildcard {
		if s.label == label {
			s.retired.Store(true)
			removed++
			continue
		}
		kept = append(kept, s)
	}
	b.wildcard = kept
	return removed
}

// HandlerCount reports how many named handlers are registered for name.
func (b *Bus) HandlerCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.named[name])
}

// Published returns how many events have passed catalog validation so far.
func (b *Bus) Published() uint64 {
	return b.publishN.Load()
}

// Publish delivers payload to every handler of name and returns their settled results.
// Catalog violations return a single failed Result and run nothing.
func (b *Bus) Publish(name string, payload any, opts ...PublishOption) []Result {
	cfg := publishConfig{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := b.validate(name, payload); err != nil {
		b.log.Warn("publish rejected", "event", name, "error", err)
		return []Result{{Err: err}}
	}

	ev := Event{Name: name, Payload: payload, Seq: b.publishN.Add(1)}
	named, observers := b.snapshot(name)

	var results []Result
	if cfg.async {
		results = b.publishAsync(ev, named, cfg)
	} else {
		results = make([]Result, 0, len(named))
		for _, s := range named {
			if s.retired.Load() {
				continue
			}
			results = append(results, b.invoke(context.Background(), s, ev))
		}
	}

	for _, s := range observers {
		if s.retired.Load() {
			continue
		}
		b.invoke(context.Background(), s, ev)
	}
	return results
}

// publishAsync fans handlers out concurrently; each is bounded by cfg.timeout.
// No inter-handler ordering is guaranteed.
func (b *Bus) publishAsync(ev Event, subs []*subscription, cfg publishConfig) []Result {
	results := make([]Result, len(subs))

	var g errgroup.Group
	if cfg.limit > 0 {
		g.SetLimit(cfg.limit)
	}
	for i, s := range subs {
		if s.retired.Load() {
			results[i] = Result{SubscriptionID: s.id, Context: s.label, Err: ErrRetired}
			continue
		}
		g.Go(func() error {
			results[i] = b.invokeWithTimeout(s, ev, cfg.timeout)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (b *Bus) invokeWithTimeout(s *subscription, ev Event, timeout time.Duration) Result {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() { done <- b.invoke(ctx, s, ev) }()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		herr := &HandlerError{
			Event:          ev.Name,
			SubscriptionID: s.id,
			Context:        s.label,
			Err:            fmt.Errorf("%w after %s", ErrHandlerTimeout, timeout),
		}
		b.reportFailure(ev, herr)
		return Result{SubscriptionID: s.id, Context: s.label, Err: herr}
	}
}

// invoke runs one handler with panic containment.
func (b *Bus) invoke(ctx context.Context, s *subscription, ev Event) (res Result) {
	res.SubscriptionID = s.id
	res.Context = s.label

	defer func() {
		if r := recover(); r != nil {
			res.Value = nil
			res.Err = &HandlerError{
				Event:          ev.Name,
				SubscriptionID: s.id,
				Context:        s.label,
				Err:            fmt.Errorf("panic: %v", r),
				Panic:          true,
			}
		}
		if res.Err != nil {
			b.reportFailure(ev, res.Err)
			return
		}
		if s.once && s.retired.CompareAndSwap(false, true) {
			b.Unsubscribe(s.name, s.id)
		}
	}()

	v, err := s.handler(ctx, ev)
	if err != nil {
		res.Err = &HandlerError{Event: ev.Name, SubscriptionID: s.id, Context: s.label, Err: err}
		return res
	}
	res.Value = v
	return res
}

// reportFailure logs and re-publishes a handler failure. Failures of "error"
// handlers are only logged.
func (b *Bus) reportFailure(ev Event, err error) {
	var herr *HandlerError
	if !errors.As(err, &herr) {
		herr = &HandlerError{Event: ev.Name, Err: err}
	}
	if herr.Reason == "" && herr.Err != nil {
		herr.Reason = herr.Err.Error()
	}

	b.log.Error("handler failed",
		"event", herr.Event,
		"subscription", herr.SubscriptionID,
		"context", herr.Context,
		"panic", herr.Panic,
		"error", herr.Err,
	)

	if ev.Name == ErrorEvent {
		return
	}
	b.Publish(ErrorEvent, *herr)
}

func (b *Bus) snapshot(name string) (named, observers []*subscription) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	named = append([]*subscription(nil), b.named[name]...)
	observers = append([]*subscription(nil), b.wildcard...)
	return named, observers
}

// insertOrdered keeps list sorted by priority desc, then seq asc.
func insertOrdered(list []*subscription, s *subscription) []*subscription {
	i := sort.Search(len(list), func(i int) bool {
		if list[i].priority != s.priority {
			return list[i].priority < s.priority
		}
		return list[i].seq > s.seq
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}

func removeID(list []*subscription, id SubscriptionID) ([]*subscription, bool) {
	for i, s := range list {
		if s.id == id {
			s.retired.Store(true)
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}
