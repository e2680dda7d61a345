/*
Package tutorial
File: tutorial.go
Description:
    First-run hints. Each step fires once, the first time its trigger event
    is seen, and is announced as tutorial:hint for the UI to display.
*/

package tutorial

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
)

const label = "tutorial"

// Step is one hint and the event that triggers it.
type Step struct {
	ID      string
	Trigger string // Event name; empty fires on Start
	Text    string
}

// DefaultSteps walks a new commander through the first month.
var DefaultSteps = []Step{
	{ID: "welcome", Text: "Welcome, commander. Review your lance on the roster screen, then check the contract board."},
	{ID: "contracts", Trigger: game.EventContractsRefreshed, Text: "New offers arrive every week. Higher standing with an employer unlocks better work."},
	{ID: "deploy", Trigger: game.EventContractAccepted, Text: "Your lance is deployed. Advance time to see the contract through."},
	{ID: "payday", Trigger: game.EventExpensesPaid, Text: "Salaries, maintenance, insurance and overhead come due every 30 days."},
	{ID: "crisis", Trigger: game.EventFinancialCrisis, Text: "You could not meet expenses. Every employer thinks less of you; take work quickly."},
	{ID: "repairs", Trigger: game.EventMechDamaged, Text: "Damaged mechs can be sent to the repair bay from the mech screen."},
}

// Guide is the tutorial subsystem.
type Guide struct {
	bus   *event.Bus
	steps []Step
	log   *slog.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// NewGuide builds the tutorial. Nil steps selects DefaultSteps.
func NewGuide(bus *event.Bus, steps []Step, log *slog.Logger) *Guide {
	if steps == nil {
		steps = DefaultSteps
	}
	if log == nil {
		log = slog.Default()
	}
	return &Guide{bus: bus, steps: steps, log: log.With(slog.String("system", label)), seen: make(map[string]bool)}
}

func (g *Guide) Name() string { return label }

func (g *Guide) Init(ctx context.Context) error {
	for _, s := range g.steps {
		if s.Trigger == "" {
			continue
		}
		g.bus.Subscribe(s.Trigger, func(ctx context.Context, _ event.Event) (any, error) {
			g.show(s)
			return nil, nil
		}, event.Context(label), event.Priority(-100))
	}
	return nil
}

// Start shows the opening hints.
func (g *Guide) Start(ctx context.Context) error {
	for _, s := range g.steps {
		if s.Trigger == "" {
			g.show(s)
		}
	}
	return nil
}

func (g *Guide) Update(time.Duration) error { return nil }

func (g *Guide) Shutdown(context.Context) error {
	g.bus.UnsubscribeContext(label)
	return nil
}

// Seen reports whether step id has been shown.
func (g *Guide) Seen(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen[id]
}

func (g *Guide) show(s Step) {
	g.mu.Lock()
	if g.seen[s.ID] {
		g.mu.Unlock()
		return
	}
	g.seen[s.ID] = true
	g.mu.Unlock()

	g.log.Debug("Tutorial hint", "step", s.ID)
	g.bus.Publish(game.EventTutorialHint, game.TutorialHint{Step: s.ID, Text: s.Text})
}
