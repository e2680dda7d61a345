/*
Package company
File: manager.go
Description:
    The company subsystem: calendar advancement, the 30-day accounting
    cadence, random events and bookkeeping of everything the other
    subsystems report.

    Months here are accounting periods of accounting_days game days, not
    calendar months. Elapsed time accumulates in time.accountingMs; each
    time it crosses a full period, expenses are paid once and the remainder
    is carried forward.
*/

package company

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

const label = "company"

// Day is one game day on the accounting accumulator.
const Day = 24 * time.Hour

// Manager is the company subsystem.
type Manager struct {
	store   *state.Store
	bus     *event.Bus
	balance game.Balance
	rng     *rand.Rand
	log     *slog.Logger
}

// NewManager builds the company subsystem. rng drives random events.
func NewManager(c *game.Campaign, store *state.Store, bus *event.Bus, rng *rand.Rand, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:   store,
		bus:     bus,
		balance: c.Balance,
		rng:     rng,
		log:     log.With(slog.String("system", label)),
	}
}

func (m *Manager) Name() string { return label }

// Init registers the handlers and brings the ledger in line with the roster.
func (m *Manager) Init(ctx context.Context) error {
	opts := event.Context(label)

	event.On(m.bus, game.EventAdvanceTime, func(ctx context.Context, a game.AdvanceTime) (any, error) {
		return m.AdvanceTime(a.Days)
	}, opts)

	event.On(m.bus, game.EventExpense, func(ctx context.Context, req game.Money) (any, error) {
		balance, err := m.Spend(req.Amount, req.Reason)
		if err != nil {
			return game.Receipt{Balance: balance, Reason: err.Error()}, nil
		}
		return game.Receipt{Approved: true, Balance: balance}, nil
	}, opts)

	event.On(m.bus, game.EventIncome, func(ctx context.Context, req game.Money) (any, error) {
		balance, err := m.Credit(req.Amount, req.Reason)
		if err != nil {
			return game.Receipt{Balance: balance, Reason: err.Error()}, nil
		}
		return game.Receipt{Approved: true, Balance: balance}, nil
	}, opts)

	event.On(m.bus, game.EventContractCompleted, func(ctx context.Context, done game.ContractCompleted) (any, error) {
		return nil, m.OnContractCompleted(done)
	}, opts)

	event.On(m.bus, game.EventContractAccepted, func(ctx context.Context, _ game.ContractAccepted) (any, error) {
		return nil, m.count("contractsAccepted", 1)
	}, opts)

	event.On(m.bus, game.EventContractsExpired, func(ctx context.Context, e game.ContractsExpired) (any, error) {
		return nil, m.count("contractsExpired", len(e.ContractIDs))
	}, opts)

	// Roster changes move the ledger.
	rosterCounter := map[string]string{
		game.EventPilotHired:    "pilotsHired",
		game.EventPilotFired:    "pilotsFired",
		game.EventMechPurchased: "mechsPurchased",
		game.EventMechSold:      "mechsSold",
		game.EventMechDestroyed: "mechsDestroyed",
	}
	for name, stat := range rosterCounter {
		m.bus.Subscribe(name, func(ctx context.Context, _ event.Event) (any, error) {
			if err := m.count(stat, 1); err != nil {
				return nil, err
			}
			return nil, m.RefreshLedger()
		}, opts)
	}
	event.On(m.bus, game.EventPilotInjured, func(ctx context.Context, _ game.PilotInjury) (any, error) {
		return nil, m.RefreshLedger()
	}, opts, event.Priority(-10))

	return m.RefreshLedger()
}

func (m *Manager) Update(time.Duration) error { return nil }

// Shutdown drops the handlers.
func (m *Manager) Shutdown(context.Context) error {
	m.bus.UnsubscribeContext(label)
	return nil
}

// AdvanceTime moves the calendar forward by whole days, paying expenses once
// per completed accounting period and rolling for a random event on long
// advances.
func (m *Manager) AdvanceTime(days int) (game.TimeAdvanced, error) {
	if days < 1 {
		return game.TimeAdvanced{}, fmt.Errorf("%w: got %d", ErrInvalidDays, days)
	}

	// 1. Calendar and accumulator
	t := m.store.Time()
	prev := t.Date()
	next := prev.AddDays(days)
	period := time.Duration(m.balance.AccountingDays) * Day
	acc := time.Duration(t.AccountingMs)*time.Millisecond + time.Duration(days)*Day
	periods := int(acc / period)
	acc %= period

	stats := m.store.Statistics()
	if err := m.store.Update(map[string]any{
		state.PathDay:                 next.Day,
		state.PathMonth:               next.Month,
		state.PathYear:                next.Year,
		state.PathAccounting:          acc.Milliseconds(),
		state.StatPath("daysElapsed"): stats.DaysElapsed + days,
	}); err != nil {
		return game.TimeAdvanced{}, err
	}

	// 2. One payment per completed period. The month closes before the bill
	// is paid, so decay never softens this period's crisis penalty.
	for i := 0; i < periods; i++ {
		m.bus.Publish(game.EventMonthElapsed, game.MonthElapsed{
			Date:   next,
			Period: m.store.Statistics().MonthsElapsed + 1,
		})
		if _, err := m.PayMonthlyExpenses(); err != nil {
			return game.TimeAdvanced{}, err
		}
	}

	// 3. Flavor
	if days >= m.balance.RandomEventMinDays && m.rng.Float64() < m.balance.RandomEventChance {
		if err := m.randomEvent(); err != nil {
			return game.TimeAdvanced{}, err
		}
	}

	adv := game.TimeAdvanced{PreviousTime: prev, NewTime: next, DaysAdvanced: days}
	m.log.Debug("Time advanced", "from", prev, "to", next, "periods", periods)
	m.bus.Publish(game.EventTimeAdvanced, adv)
	return adv, nil
}

// randomEvent fires exactly one flavor event.
func (m *Manager) randomEvent() error {
	var ev game.RandomEvent
	switch m.rng.IntN(3) {
	case 0:
		ev = game.RandomEvent{Kind: "windfall", Amount: 10000 + m.rng.Int64N(40001)}
		ev.Description = "A grateful client sends a bonus of " + game.FormatCBills(ev.Amount)
		if _, err := m.Credit(ev.Amount, ev.Kind); err != nil {
			return err
		}
	case 1:
		ev = game.RandomEvent{Kind: "emergency_repair", Amount: 5000 + m.rng.Int64N(25001)}
		if funds := m.store.Company().Funds; ev.Amount > funds {
			ev.Amount = funds
		}
		ev.Description = "Emergency repairs to the DropShip cost " + game.FormatCBills(ev.Amount)
		if ev.Amount > 0 {
			if _, err := m.Spend(ev.Amount, ev.Kind); err != nil {
				return err
			}
		}
	default:
		ev = game.RandomEvent{Kind: "reputation_bump", Amount: 1 + m.rng.Int64N(2)}
		ev.Description = fmt.Sprintf("News of the company's exploits spreads (+%d reputation)", ev.Amount)
		m.bus.Publish(game.EventAdjustAll, game.ReputationAll{Delta: float64(ev.Amount), Reason: ev.Kind})
	}

	if err := m.count("randomEvents", 1); err != nil {
		return err
	}
	m.log.Info("Random event", "kind", ev.Kind, "amount", ev.Amount)
	m.bus.Publish(game.EventRandomEvent, ev)
	return nil
}

// count bumps an integer statistic by n.
func (m *Manager) count(stat string, n int) error {
	if n == 0 {
		return nil
	}
	cur, _ := state.Read[int](m.store, state.StatPath(stat))
	return m.store.Set(state.StatPath(stat), cur+n)
}
