/*
Package contract
File: manager.go
Description:
    The contract subsystem. It owns the offer pool ('contracts') and the
    in-flight work ('activeContracts').

    - Refresh replaces the offer pool with a new batch, every
      contract_refresh_days game days or whenever the pool runs dry.
    - Accept validates the deployment, moves the offer to the active list
      and grants the reputation advance. A blocked acceptance changes nothing.
    - Complete retires an active contract and announces the outcome; money,
      reputation and statistics are settled by the company subsystem.
    - Update sweeps expired offers on every tick.
*/

package contract

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/faction"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

const label = "contract"

// AcceptResult is the value returned to a contract:accept publisher.
type AcceptResult struct {
	Accepted bool                 `json:"accepted"`
	Active   state.ActiveContract `json:"active,omitempty"`
	Reason   string               `json:"reason,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// Manager runs the offer pool.
type Manager struct {
	gen     *Generator
	store   *state.Store
	bus     *event.Bus
	balance game.Balance
	log     *slog.Logger
}

// NewManager builds the contract subsystem.
func NewManager(c *game.Campaign, reg *faction.Registry, ids *game.IDSource, store *state.Store, bus *event.Bus, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		gen:     NewGenerator(c, reg, ids),
		store:   store,
		bus:     bus,
		balance: c.Balance,
		log:     log.With(slog.String("system", label)),
	}
}

func (m *Manager) Name() string { return label }

// Generator exposes the underlying generator.
func (m *Manager) Generator() *Generator { return m.gen }

// Init registers the handlers and stocks an empty pool.
func (m *Manager) Init(ctx context.Context) error {
	opts := event.Context(label)

	event.On(m.bus, game.EventContractAccept, func(ctx context.Context, req game.AcceptContract) (any, error) {
		active, err := m.Accept(req)
		if err != nil {
			return AcceptResult{Reason: reasonOf(err), Message: err.Error()}, nil
		}
		return AcceptResult{Accepted: true, Active: active}, nil
	}, opts)

	m.bus.Subscribe(game.EventContractRefresh, func(ctx context.Context, _ event.Event) (any, error) {
		return m.Refresh()
	}, opts)

	event.On(m.bus, game.EventContractComplete, func(ctx context.Context, o game.ContractOutcome) (any, error) {
		return m.Complete(o)
	}, opts)

	event.On(m.bus, game.EventTimeAdvanced, func(ctx context.Context, t game.TimeAdvanced) (any, error) {
		return nil, m.onTimeAdvanced(t)
	}, opts)

	if len(m.store.Contracts()) == 0 {
		if _, err := m.Refresh(); err != nil {
			return err
		}
	}
	return nil
}

// Update sweeps expired offers and restocks an empty pool.
func (m *Manager) Update(time.Duration) error {
	if _, err := m.SweepExpired(); err != nil {
		return err
	}
	if len(m.store.Contracts()) == 0 {
		_, err := m.Refresh()
		return err
	}
	return nil
}

// Shutdown drops the handlers.
func (m *Manager) Shutdown(context.Context) error {
	m.bus.UnsubscribeContext(label)
	return nil
}

// Refresh replaces the offer pool with a new batch.
func (m *Manager) Refresh() ([]state.Contract, error) {
	c := m.store.Company()
	now := m.store.Date()
	batch := m.gen.GenerateBatch(c.Rating, c.Reputation, now)

	if err := m.store.Update(map[string]any{
		state.PathContracts:           batch,
		state.PathLastContractRefresh: now,
	}); err != nil {
		return nil, err
	}
	m.log.Debug("Contract offers refreshed", "count", len(batch), "date", now)
	m.bus.Publish(game.EventContractsRefreshed, game.ContractsRefreshed{Contracts: batch})
	return batch, nil
}

// SweepExpired purges offers whose TimeLimit has passed.
func (m *Manager) SweepExpired() ([]string, error) {
	offers := m.store.Contracts()
	open := RemoveExpired(offers, m.store.Date())
	if len(open) == len(offers) {
		return nil, nil
	}

	kept := make(map[string]bool, len(open))
	for _, c := range open {
		kept[c.ID] = true
	}
	var expired []string
	for _, c := range offers {
		if !kept[c.ID] {
			expired = append(expired, c.ID)
		}
	}

	if err := m.store.Set(state.PathContracts, open); err != nil {
		return nil, err
	}
	m.bus.Publish(game.EventContractsExpired, game.ContractsExpired{ContractIDs: expired})
	return expired, nil
}

// Accept commits a lance to an offer.
func (m *Manager) Accept(req game.AcceptContract) (state.ActiveContract, error) {
	active, err := m.plan(req)
	if err != nil {
		m.log.Info("Contract acceptance rejected", "contract", req.ContractID, "reason", reasonOf(err))
		m.bus.Publish(game.EventAcceptRejected, game.AcceptRejected{
			ContractID: req.ContractID,
			Reason:     reasonOf(err),
			Message:    err.Error(),
		})
		return state.ActiveContract{}, err
	}

	// 1. Move the offer to the active list in one write
	offers := m.store.Contracts()
	remaining := make([]state.Contract, 0, len(offers))
	for _, c := range offers {
		if c.ID != req.ContractID {
			remaining = append(remaining, c)
		}
	}
	if err := m.store.Update(map[string]any{
		state.PathContracts:       remaining,
		state.PathActiveContracts: append(m.store.ActiveContracts(), active),
	}); err != nil {
		return state.ActiveContract{}, err
	}

	// 2. Reputation advance
	for f, delta := range active.Advance {
		m.bus.Publish(game.EventAdjustReputation, game.ReputationDelta{Faction: f, Delta: delta, Reason: "contract advance"})
	}

	m.log.Info("Contract accepted",
		"contract", active.Contract.ID,
		"employer", active.Contract.Employer,
		"payment", game.FormatCBills(active.Contract.Payment),
		"ends", active.EndDate,
	)
	m.bus.Publish(game.EventContractAccepted, game.ContractAccepted{Contract: active})
	return active, nil
}

// plan validates an acceptance without touching state.
func (m *Manager) plan(req game.AcceptContract) (state.ActiveContract, error) {
	var offer state.Contract
	found := false
	for _, c := range m.store.Contracts() {
		if c.ID == req.ContractID {
			offer, found = c, true
			break
		}
	}
	if !found {
		return state.ActiveContract{}, ErrUnknownContract
	}
	now := m.store.Date()
	if now.After(offer.TimeLimit) {
		return state.ActiveContract{}, ErrOfferExpired
	}

	forces := availableForces(m.store.Pilots(), m.store.Mechs(), m.store.ActiveContracts())
	deployment, err := planDeployment(offer.Requirements, forces, req.MechIDs, req.PilotIDs)
	if err != nil {
		return state.ActiveContract{}, err
	}

	advance := make(map[string]float64, len(offer.Rewards.Reputation))
	for f, rep := range offer.Rewards.Reputation {
		if a := float64(rep) * m.balance.AdvanceFraction; a != 0 {
			advance[f] = math.Round(a*100) / 100
		}
	}

	return state.ActiveContract{
		Contract:   offer,
		StartDate:  now,
		EndDate:    now.AddDays(offer.Duration),
		Deployment: deployment,
		Advance:    advance,
	}, nil
}

// Complete retires an active contract and announces the outcome.
func (m *Manager) Complete(o game.ContractOutcome) (game.ContractCompleted, error) {
	removed, err := m.store.RemoveFromArray(state.PathActiveContracts, state.ByKey(o.ContractID))
	if err != nil {
		return game.ContractCompleted{}, err
	}
	if removed == nil {
		return game.ContractCompleted{}, ErrUnknownContract
	}
	active := removed.(state.ActiveContract)

	done := game.ContractCompleted{
		Contract:   active.Contract,
		Deployment: active.Deployment,
		Success:    o.Success,
		Payment:    active.Contract.Payment,
		Bonuses:    o.Bonuses,
	}
	m.log.Info("Contract completed", "contract", o.ContractID, "success", o.Success)
	m.bus.Publish(game.EventContractCompleted, done)
	return done, nil
}

func (m *Manager) onTimeAdvanced(t game.TimeAdvanced) error {
	last, _ := state.Read[state.Date](m.store, state.PathLastContractRefresh)
	if state.DaysBetween(last, t.NewTime) >= m.balance.ContractRefreshDays {
		if _, err := m.Refresh(); err != nil {
			return err
		}
	}
	_, err := m.SweepExpired()
	return err
}

// IsRejection reports whether err is an expected acceptance failure rather
// than a fault.
func IsRejection(err error) bool {
	var ire *InsufficientResourceError
	return errors.As(err, &ire) || errors.Is(err, ErrUnknownContract) || errors.Is(err, ErrOfferExpired)
}
