/*
Package prompt
File: broker.go
Description:
    Confirmation requests without blocking the simulation.

    A subsystem that needs the player's consent calls Request with a
    continuation. The broker publishes confirm:request{id, action, message}
    and returns immediately. When the UI answers with confirm:resolve{id,
    accepted}, the continuation runs exactly once on the publishing
    goroutine. Unanswered prompts expire after TTL of simulated time and
    are announced with confirm:expired.
*/

package prompt

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
)

const label = "prompt"

// DefaultTTL is how long a prompt waits for an answer.
const DefaultTTL = 2 * time.Minute

// ErrUnknownPrompt is returned for ids that were never issued, already
// resolved or expired.
var ErrUnknownPrompt = errors.New("unknown or expired confirmation")

// Continuation receives the player's answer.
type Continuation func(accepted bool) error

type pending struct {
	action   string
	deadline time.Duration // On the broker's elapsed clock
	resolve  Continuation
}

// Broker tracks open confirmation prompts.
type Broker struct {
	bus *event.Bus
	ids *game.IDSource
	ttl time.Duration
	log *slog.Logger

	mu      sync.Mutex
	elapsed time.Duration
	open    map[string]*pending
}

// NewBroker builds the prompt port. Prompt ids come from ids so seeded runs
// repeat; a nil ids falls back to random UUIDs. A ttl of zero selects
// DefaultTTL.
func NewBroker(bus *event.Bus, ids *game.IDSource, ttl time.Duration, log *slog.Logger) *Broker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Broker{
		bus:  bus,
		ids:  ids,
		ttl:  ttl,
		log:  log.With(slog.String("system", label)),
		open: make(map[string]*pending),
	}
}

func (b *Broker) Name() string { return label }

func (b *Broker) Init(ctx context.Context) error {
	event.On(b.bus, game.EventConfirmResolve, func(ctx context.Context, r game.ConfirmResolve) (any, error) {
		return nil, b.Resolve(r.ID, r.Accepted)
	}, event.Context(label))
	return nil
}

// Update expires prompts whose deadline has passed.
func (b *Broker) Update(dt time.Duration) error {
	b.mu.Lock()
	b.elapsed += dt
	var expired []string
	for id, p := range b.open {
		if b.elapsed >= p.deadline {
			expired = append(expired, id)
			delete(b.open, id)
		}
	}
	b.mu.Unlock()

	sort.Strings(expired)
	for _, id := range expired {
		b.log.Debug("Confirmation expired", "id", id)
		b.bus.Publish(game.EventConfirmExpired, game.ConfirmExpired{ID: id})
	}
	return nil
}

// Shutdown drops every open prompt unanswered.
func (b *Broker) Shutdown(context.Context) error {
	b.bus.UnsubscribeContext(label)
	b.mu.Lock()
	clear(b.open)
	b.mu.Unlock()
	return nil
}

// Request opens a prompt and returns its id.
func (b *Broker) Request(action, message string, resolve Continuation) string {
	b.mu.Lock()
	id := b.nextID()
	b.open[id] = &pending{action: action, deadline: b.elapsed + b.ttl, resolve: resolve}
	b.mu.Unlock()

	b.bus.Publish(game.EventConfirmRequest, game.ConfirmRequest{ID: id, Action: action, Message: message})
	return id
}

// Resolve answers a prompt. The continuation runs at most once.
func (b *Broker) Resolve(id string, accepted bool) error {
	b.mu.Lock()
	p, ok := b.open[id]
	delete(b.open, id)
	b.mu.Unlock()
	if !ok {
		return ErrUnknownPrompt
	}
	b.log.Debug("Confirmation resolved", "id", id, "action", p.action, "accepted", accepted)
	return p.resolve(accepted)
}

// Pending returns the number of open prompts.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.open)
}

// nextID is called with mu held.
func (b *Broker) nextID() string {
	if b.ids == nil {
		return uuid.NewString()
	}
	return b.ids.New("CFM")
}
