/*
Package combat
File: resolver.go
Description:
    Placeholder contract resolution. There is no tactical simulation: when
    an active contract reaches its end date the lance rolls once against a
    difficulty-based chance, adjusted by the deployed pilots' skills, and
    takes damage scaled to the difficulty.

    Order of announcements for each contract:
    1. mech:damaged for every deployed mech that took damage.
    2. pilot:injured for every pilot hurt or killed.
    3. contract:complete with the verdict and salvage bonus.
*/

package combat

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

const label = "combat"

// Per-difficulty tuning.
type profile struct {
	Success   float64 // Base success chance
	Intensity int     // Upper bound on armor loss per mech
	Injury    float64 // Chance a pilot is hurt
}

var profiles = map[state.Difficulty]profile{
	state.DifficultyEasy:     {Success: 0.90, Intensity: 20, Injury: 0.05},
	state.DifficultyModerate: {Success: 0.75, Intensity: 35, Injury: 0.10},
	state.DifficultyHard:     {Success: 0.60, Intensity: 50, Injury: 0.20},
	state.DifficultyExtreme:  {Success: 0.45, Intensity: 70, Injury: 0.30},
}

const (
	// BaselineSkill is gunnery+piloting of a regular pilot (4/5).
	BaselineSkill = 9
	// SkillStep is the change in success chance per skill point.
	SkillStep = 0.025

	MinChance = 0.05
	MaxChance = 0.95

	KillChance = 0.3 // Pilot dies when their mech is destroyed
)

// Report is everything one resolution produces.
type Report struct {
	Outcome  game.ContractOutcome
	Chance   float64
	Damage   []game.MechDamage
	Injuries []game.PilotInjury
}

// Resolver is the combat subsystem.
type Resolver struct {
	store *state.Store
	bus   *event.Bus
	rng   *rand.Rand
	log   *slog.Logger
}

func NewResolver(store *state.Store, bus *event.Bus, rng *rand.Rand, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, bus: bus, rng: rng, log: log.With(slog.String("system", label))}
}

func (r *Resolver) Name() string { return label }

func (r *Resolver) Init(ctx context.Context) error {
	event.On(r.bus, game.EventTimeAdvanced, func(ctx context.Context, t game.TimeAdvanced) (any, error) {
		return r.ResolveDue(t.NewTime), nil
	}, event.Context(label))
	return nil
}

func (r *Resolver) Update(time.Duration) error { return nil }

func (r *Resolver) Shutdown(context.Context) error {
	r.bus.UnsubscribeContext(label)
	return nil
}

// ResolveDue settles every active contract whose end date is on or before now.
func (r *Resolver) ResolveDue(now state.Date) []Report {
	var reports []Report
	for _, a := range r.store.ActiveContracts() {
		if now.Before(a.EndDate) {
			continue
		}
		rep := Resolve(r.rng, a, r.store.Pilots(), r.store.Mechs())
		r.log.Info("Contract resolved",
			"contract", a.Contract.ID,
			"difficulty", a.Contract.Difficulty,
			"chance", rep.Chance,
			"success", rep.Outcome.Success,
		)
		for _, d := range rep.Damage {
			r.bus.Publish(game.EventMechDamaged, d)
		}
		for _, in := range rep.Injuries {
			r.bus.Publish(game.EventPilotInjured, in)
		}
		r.bus.Publish(game.EventContractComplete, rep.Outcome)
		reports = append(reports, rep)
	}
	return reports
}

// SuccessChance is the difficulty's base chance shifted by the average
// gunnery+piloting of the deployed pilots. Lower skill numbers are better.
func SuccessChance(d state.Difficulty, pilots []state.Pilot) float64 {
	p, ok := profiles[d]
	if !ok {
		p = profiles[state.DifficultyModerate]
	}
	chance := p.Success
	if len(pilots) > 0 {
		total := 0
		for _, pl := range pilots {
			total += pl.Gunnery + pl.Piloting
		}
		avg := float64(total) / float64(len(pilots))
		chance += (BaselineSkill - avg) * SkillStep
	}
	return math.Min(MaxChance, math.Max(MinChance, chance))
}

// Resolve rolls one contract.
func Resolve(rng *rand.Rand, a state.ActiveContract, pilots []state.Pilot, mechs []state.Mech) Report {
	prof, ok := profiles[a.Contract.Difficulty]
	if !ok {
		prof = profiles[state.DifficultyModerate]
	}

	// 1. Verdict
	deployedPilots := pick(pilots, a.Deployment.PilotIDs, func(p state.Pilot) string { return p.ID })
	chance := SuccessChance(a.Contract.Difficulty, deployedPilots)
	success := rng.Float64() < chance

	rep := Report{Chance: chance, Outcome: game.ContractOutcome{ContractID: a.Contract.ID, Success: success}}
	if success {
		share := 0.2 + 0.3*rng.Float64()
		rep.Outcome.Bonuses = int64(math.Round(float64(a.Contract.Payment) * a.Contract.Rewards.Salvage * share))
	}

	// 2. Battle damage; a failed contract hurts twice as much
	intensity := prof.Intensity
	injury := prof.Injury
	if !success {
		intensity *= 2
		injury *= 2
	}
	destroyed := make(map[string]bool)
	for _, m := range pick(mechs, a.Deployment.MechIDs, func(m state.Mech) string { return m.ID }) {
		d := game.MechDamage{
			MechID:        m.ID,
			ArmorLoss:     rng.IntN(intensity + 1),
			StructureLoss: rng.IntN(intensity/3 + 1),
			ContractID:    a.Contract.ID,
		}
		if d.ArmorLoss == 0 && d.StructureLoss == 0 {
			continue
		}
		if m.Structure-d.StructureLoss <= 0 {
			destroyed[m.ID] = true
		}
		rep.Damage = append(rep.Damage, d)
	}

	// 3. Casualties
	for _, p := range deployedPilots {
		switch {
		case p.MechID != "" && destroyed[p.MechID] && rng.Float64() < KillChance:
			rep.Injuries = append(rep.Injuries, game.PilotInjury{PilotID: p.ID, Killed: true})
		case rng.Float64() < injury:
			rep.Injuries = append(rep.Injuries, game.PilotInjury{PilotID: p.ID, Days: 7 + rng.IntN(22)})
		}
	}
	return rep
}

// pick returns the items whose key is in ids, in ids order.
func pick[T any](items []T, ids []string, key func(T) string) []T {
	byID := make(map[string]T, len(items))
	for _, it := range items {
		byID[key(it)] = it
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	return out
}
