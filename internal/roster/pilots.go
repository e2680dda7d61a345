/*
Package roster
File: pilots.go
Description:
    The pilot subsystem: hiring hall, dismissals, mech assignments and
    recovery from injury.
*/

package roster

import (
	"context"
	"log/slog"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/prompt"
	"github.com/everforgeworks/merc-command/internal/state"
)

// Result is returned to roster command publishers.
type Result struct {
	OK       bool   `json:"ok"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
	PromptID string `json:"promptId,omitempty"` // Set when the action waits on confirm:resolve
}

func resultOf(promptID string, err error) Result {
	if err != nil {
		return Result{Reason: ReasonOf(err), Message: err.Error()}
	}
	return Result{OK: true, PromptID: promptID}
}

// Pilots manages MechWarriors.
type Pilots struct {
	camp    *game.Campaign
	ids     *game.IDSource
	store   *state.Store
	bus     *event.Bus
	confirm *prompt.Broker
	money   treasury
	log     *slog.Logger
}

// NewPilots builds the pilot subsystem.
func NewPilots(c *game.Campaign, ids *game.IDSource, store *state.Store, bus *event.Bus, confirm *prompt.Broker, log *slog.Logger) *Pilots {
	if log == nil {
		log = slog.Default()
	}
	return &Pilots{
		camp:    c,
		ids:     ids,
		store:   store,
		bus:     bus,
		confirm: confirm,
		money:   treasury{bus: bus},
		log:     log.With(slog.String("system", "pilot")),
	}
}

func (p *Pilots) Name() string { return "pilot" }

func (p *Pilots) Init(ctx context.Context) error {
	opts := event.Context("pilot")

	event.On(p.bus, game.EventPilotHire, func(ctx context.Context, r game.PilotRef) (any, error) {
		_, err := p.Hire(r.PilotID)
		return resultOf("", err), nil
	}, opts)
	event.On(p.bus, game.EventPilotFire, func(ctx context.Context, r game.PilotRef) (any, error) {
		id, err := p.Fire(r.PilotID)
		return resultOf(id, err), nil
	}, opts)
	event.On(p.bus, game.EventPilotAssign, func(ctx context.Context, r game.AssignPilot) (any, error) {
		return resultOf("", p.Assign(r.PilotID, r.MechID)), nil
	}, opts)
	event.On(p.bus, game.EventPilotInjured, func(ctx context.Context, r game.PilotInjury) (any, error) {
		return nil, p.Injure(r)
	}, opts)
	event.On(p.bus, game.EventTimeAdvanced, func(ctx context.Context, t game.TimeAdvanced) (any, error) {
		return nil, p.Recover(t.DaysAdvanced)
	}, opts)
	event.On(p.bus, game.EventMonthElapsed, func(ctx context.Context, _ game.MonthElapsed) (any, error) {
		return nil, p.RefreshPool()
	}, opts)
	event.On(p.bus, game.EventContractCompleted, func(ctx context.Context, done game.ContractCompleted) (any, error) {
		return nil, p.creditMissions(done.Deployment.PilotIDs)
	}, opts)

	if len(p.store.Market().PilotPool) == 0 {
		return p.RefreshPool()
	}
	return nil
}

func (p *Pilots) Update(time.Duration) error { return nil }

func (p *Pilots) Shutdown(context.Context) error {
	p.bus.UnsubscribeContext("pilot")
	return nil
}

// RefreshPool restocks the hiring hall.
func (p *Pilots) RefreshPool() error {
	pool := p.camp.GeneratePilotPool(p.ids, p.camp.Balance.PilotPoolSize)
	return p.store.Set(state.PathPilotPool, pool)
}

// Hire signs a candidate from the pool. The signing fee is one month's salary.
func (p *Pilots) Hire(id string) (state.Pilot, error) {
	pool := p.store.Market().PilotPool
	i := indexPilot(pool, id)
	if i < 0 {
		return state.Pilot{}, reject(p.bus, "hire", id, ReasonNotFound, "")
	}
	recruit := pool[i]

	// Move from the pool to the roster, charging the signing fee
	hired := recruit
	hired.Status = state.PilotActive
	hired.HiredOn = p.store.Date()
	rest := append(pool[:i:i], pool[i+1:]...)
	r, err := p.money.buy(p.store, recruit.Salary, "salaries", "signing fee: "+recruit.Name,
		map[string]any{
			state.PathPilotPool: rest,
			state.PathPilots:    append(p.store.Pilots(), hired),
		},
		map[string]any{
			state.PathPilotPool: pool,
			state.PathPilots:    p.store.Pilots(),
		})
	if err != nil {
		return state.Pilot{}, err
	}
	if !r.Approved {
		return state.Pilot{}, reject(p.bus, "hire", id, ReasonInsufficientFunds, r.Reason)
	}

	p.log.Info("Pilot hired", "pilot", hired.Name, "salary", game.FormatCBills(hired.Salary))
	p.bus.Publish(game.EventPilotHired, game.PilotEvent{Pilot: hired, Cost: hired.Salary})
	return hired, nil
}

// Fire asks for confirmation and, once given, dismisses the pilot with one
// month's salary as severance. It returns the prompt id.
func (p *Pilots) Fire(id string) (string, error) {
	pilots := p.store.Pilots()
	i := indexPilot(pilots, id)
	if i < 0 {
		return "", reject(p.bus, "fire", id, ReasonNotFound, "")
	}
	if deployed(p.store.ActiveContracts())[id] {
		return "", reject(p.bus, "fire", id, ReasonDeployed, "")
	}
	pilot := pilots[i]
	msg := "Dismiss " + pilot.Name + "? Severance is " + game.FormatCBills(p.severance(pilot)) + "."
	return p.confirm.Request("pilot:fire", msg, func(ok bool) error {
		if !ok {
			return nil
		}
		return p.dismiss(id)
	}), nil
}

// severance is one month's salary; the dead are owed nothing.
func (p *Pilots) severance(pilot state.Pilot) int64 {
	if pilot.Status == state.PilotKIA {
		return 0
	}
	return pilot.Salary
}

func (p *Pilots) dismiss(id string) error {
	pilots, mechs := p.store.Pilots(), p.store.Mechs()
	i := indexPilot(pilots, id)
	if i < 0 {
		return reject(p.bus, "fire", id, ReasonNotFound, "")
	}
	if deployed(p.store.ActiveContracts())[id] {
		return reject(p.bus, "fire", id, ReasonDeployed, "")
	}
	pilot := pilots[i]
	cost := p.severance(pilot)
	if r := p.money.spend(cost, "salaries", "severance: "+pilot.Name); !r.Approved {
		return reject(p.bus, "fire", id, ReasonInsufficientFunds, r.Reason)
	}

	release(pilots, mechs, id, "")
	pilots = append(pilots[:i:i], pilots[i+1:]...)
	if err := writeRoster(p.store, pilots, mechs); err != nil {
		return err
	}
	pilot.MechID = ""
	p.log.Info("Pilot dismissed", "pilot", pilot.Name, "severance", game.FormatCBills(cost))
	p.bus.Publish(game.EventPilotFired, game.PilotEvent{Pilot: pilot, Cost: cost})
	return nil
}

// Assign seats a pilot in a mech, unseating whoever held either side. An
// empty mechID unassigns the pilot.
func (p *Pilots) Assign(pilotID, mechID string) error {
	pilots, mechs := p.store.Pilots(), p.store.Mechs()
	pi := indexPilot(pilots, pilotID)
	if pi < 0 {
		return reject(p.bus, "assign", pilotID, ReasonNotFound, "")
	}
	if pilots[pi].Status == state.PilotKIA {
		return reject(p.bus, "assign", pilotID, ReasonUnavailable, "killed in action")
	}
	busy := deployed(p.store.ActiveContracts())
	if busy[pilotID] || (mechID != "" && busy[mechID]) {
		return reject(p.bus, "assign", pilotID, ReasonDeployed, "")
	}

	mi := -1
	if mechID != "" {
		if mi = indexMech(mechs, mechID); mi < 0 {
			return reject(p.bus, "assign", mechID, ReasonNotFound, "")
		}
		if mechs[mi].Status == state.MechDestroyed {
			return reject(p.bus, "assign", mechID, ReasonUnavailable, "destroyed")
		}
	}

	release(pilots, mechs, pilotID, mechID)
	if mi >= 0 {
		pilots[pi].MechID = mechID
		mechs[mi].PilotID = pilotID
	}
	if err := writeRoster(p.store, pilots, mechs); err != nil {
		return err
	}
	p.bus.Publish(game.EventPilotAssigned, game.PilotAssigned{PilotID: pilotID, MechID: mechID})
	return nil
}

// Injure applies a combat injury. A killed pilot stays on the roster as KIA,
// unseated and off the payroll.
func (p *Pilots) Injure(in game.PilotInjury) error {
	pilots, mechs := p.store.Pilots(), p.store.Mechs()
	i := indexPilot(pilots, in.PilotID)
	if i < 0 || pilots[i].Status == state.PilotKIA {
		return nil
	}
	if in.Killed {
		pilots[i].Status = state.PilotKIA
		pilots[i].InjuryDays = 0
		release(pilots, mechs, in.PilotID, "")
		p.log.Warn("Pilot killed in action", "pilot", pilots[i].Name)
	} else {
		pilots[i].Status = state.PilotInjured
		pilots[i].InjuryDays = max(pilots[i].InjuryDays, in.Days, 1)
		p.log.Info("Pilot injured", "pilot", pilots[i].Name, "days", pilots[i].InjuryDays)
	}
	return writeRoster(p.store, pilots, mechs)
}

// Recover counts injured pilots down toward active duty.
func (p *Pilots) Recover(days int) error {
	pilots := p.store.Pilots()
	var healed []state.Pilot
	changed := false
	for i := range pilots {
		if pilots[i].Status != state.PilotInjured {
			continue
		}
		changed = true
		pilots[i].InjuryDays -= days
		if pilots[i].InjuryDays <= 0 {
			pilots[i].InjuryDays = 0
			pilots[i].Status = state.PilotActive
			healed = append(healed, pilots[i])
		}
	}
	if !changed {
		return nil
	}
	if err := p.store.Set(state.PathPilots, pilots); err != nil {
		return err
	}
	for _, h := range healed {
		p.bus.Publish(game.EventPilotHealed, game.PilotEvent{Pilot: h})
	}
	return nil
}

func (p *Pilots) creditMissions(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pilots := p.store.Pilots()
	for _, id := range ids {
		if i := indexPilot(pilots, id); i >= 0 {
			pilots[i].Missions++
		}
	}
	return p.store.Set(state.PathPilots, pilots)
}
