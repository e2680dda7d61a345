/*
Package faction
File: system.go
Description:
    The faction subsystem. It owns company.reputation and company.rating:
    every other subsystem asks for reputation changes and rating reviews
    through events and never writes those paths itself.

    Handled events:
    - faction:adjustReputation  one faction, propagating unless Flat
    - faction:adjustAll         every faction, flat
    - company:monthElapsed      monthly decay
    - company:evaluateRating    promotion review (never demotes)
    - company:financialCrisis   crisis penalty and forced reset to Green
*/

package faction

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

const label = "faction"

// System wires the Model to the bus.
type System struct {
	model   *Model
	bus     *event.Bus
	store   *state.Store
	balance game.Balance
	log     *slog.Logger
}

// NewSystem builds the faction subsystem.
func NewSystem(c *game.Campaign, store *state.Store, bus *event.Bus, log *slog.Logger) *System {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("system", label))
	return &System{
		model:   NewModel(NewRegistry(c), store, bus, log),
		bus:     bus,
		store:   store,
		balance: c.Balance,
		log:     log,
	}
}

func (s *System) Name() string  { return label }
func (s *System) Model() *Model { return s.model }

// Init registers the handlers.
func (s *System) Init(ctx context.Context) error {
	opts := event.Context(label)

	event.On(s.bus, game.EventAdjustReputation, func(ctx context.Context, d game.ReputationDelta) (any, error) {
		if d.Flat {
			return s.model.ModifyFlat(d.Faction, d.Delta, d.Reason)
		}
		return s.model.Modify(d.Faction, d.Delta, d.Reason)
	}, opts)

	event.On(s.bus, game.EventAdjustAll, func(ctx context.Context, d game.ReputationAll) (any, error) {
		return nil, s.model.ModifyAll(d.Delta, d.Reason)
	}, opts)

	event.On(s.bus, game.EventMonthElapsed, func(ctx context.Context, _ game.MonthElapsed) (any, error) {
		return nil, s.model.Decay()
	}, opts)

	s.bus.Subscribe(game.EventEvaluateRating, func(ctx context.Context, _ event.Event) (any, error) {
		rating, _, err := s.EvaluateRating()
		return rating, err
	}, opts)

	// Runs after the company subsystem has zeroed the funds.
	event.On(s.bus, game.EventFinancialCrisis, func(ctx context.Context, c game.FinancialCrisis) (any, error) {
		return s.ApplyCrisis(c)
	}, opts, event.Priority(-10))

	s.log.Info("Faction registry ready", "factions", len(s.model.reg.ids))
	return nil
}

func (s *System) Update(time.Duration) error { return nil }

// Shutdown drops the handlers.
func (s *System) Shutdown(context.Context) error {
	s.bus.UnsubscribeContext(label)
	return nil
}

// EvaluateRating promotes the company when its record clears a higher tier.
// The rating never drops here; only a financial crisis resets it.
func (s *System) EvaluateRating() (state.Rating, bool, error) {
	c := s.store.Company()
	stats := s.store.Statistics()
	earned := RateCompany(s.model.Average(), stats.SuccessRate(), stats.ContractsCompleted)
	if earned.Rank() <= c.Rating.Rank() {
		return c.Rating, false, nil
	}
	if err := s.setRating(c.Rating, earned, "promotion"); err != nil {
		return c.Rating, false, err
	}
	return earned, true, nil
}

// CrisisOutcome reports what a financial crisis cost.
type CrisisOutcome struct {
	Penalty int
	Reset   bool
}

// ApplyCrisis takes min(floor(deficit/divisor), cap) reputation from every
// faction, then resets the rating to Green if mercenary standing has sunk
// below the floor.
func (s *System) ApplyCrisis(c game.FinancialCrisis) (CrisisOutcome, error) {
	var out CrisisOutcome
	penalty := int(math.Min(math.Floor(float64(c.Deficit)/float64(s.balance.CrisisDivisor)), float64(s.balance.CrisisCap)))
	if penalty > 0 {
		if err := s.model.ModifyAll(-float64(penalty), "financial crisis"); err != nil {
			return out, err
		}
		out.Penalty = penalty
	}

	standing := s.model.Score(s.balance.StandingFaction)
	current := s.store.Company().Rating
	if standing < s.balance.StandingFloor && current.Rank() > state.RatingGreen.Rank() {
		if err := s.setRating(current, state.RatingGreen, "financial crisis"); err != nil {
			return out, err
		}
		out.Reset = true
	}

	s.log.Warn("Financial crisis penalty applied",
		"deficit", game.FormatCBills(c.Deficit),
		"reputation_loss", out.Penalty,
		"rating_reset", out.Reset,
	)
	return out, nil
}

func (s *System) setRating(from, to state.Rating, reason string) error {
	if err := s.store.Set(state.PathRating, to); err != nil {
		return err
	}
	s.log.Info("Company rating changed", "from", from, "to", to, "reason", reason)
	s.bus.Publish(game.EventRatingChanged, game.RatingChanged{OldRating: from, NewRating: to, Reason: reason})
	return nil
}
