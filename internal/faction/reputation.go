/*
Package faction
File: reputation.go
Description:
    The reputation model.

    Scores live in the state document under company.reputation and stay in
    [-100, 100]. A change to one faction spills over to its declared allies
    and enemies (single hop, never further):

        original   allies              enemies
        positive   +30% (floored)      -20% (floored)
        negative   -20% (floored)      +10% (floored)

    Zero-magnitude spill-overs are skipped. Every elapsed month each non-zero
    score drifts DecayStep toward zero without crossing it.
*/

package faction

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

// Tunable propagation and decay constants.
const (
	AllyGainShare  = 0.30
	AllyLossShare  = 0.20
	EnemyGainShare = 0.20
	EnemyLossShare = 0.10
	DecayStep      = 0.5

	MinReputation = -100.0
	MaxReputation = 100.0
)

// Effect is one faction's share of a reputation change.
type Effect struct {
	Faction string
	Delta   float64
}

// Propagation computes the ally/enemy spill-over of delta on id.
// The primary faction is not included.
func (r *Registry) Propagation(id string, delta float64) []Effect {
	if delta == 0 {
		return nil
	}
	mag := math.Abs(delta)
	var allyDelta, enemyDelta float64
	if delta > 0 {
		allyDelta = math.Floor(mag * AllyGainShare)
		enemyDelta = -math.Floor(mag * EnemyGainShare)
	} else {
		allyDelta = -math.Floor(mag * AllyLossShare)
		enemyDelta = math.Floor(mag * EnemyLossShare)
	}

	var out []Effect
	if allyDelta != 0 {
		for _, ally := range r.Allies(id) {
			out = append(out, Effect{Faction: ally, Delta: allyDelta})
		}
	}
	if enemyDelta != 0 {
		for _, enemy := range r.Enemies(id) {
			out = append(out, Effect{Faction: enemy, Delta: enemyDelta})
		}
	}
	return out
}

// Clamp bounds a score to the reputation range.
func Clamp(score float64) float64 {
	return math.Max(MinReputation, math.Min(MaxReputation, score))
}

// DecayToward moves score one DecayStep toward zero without crossing it.
func DecayToward(score float64) float64 {
	switch {
	case score > 0:
		return math.Max(0, score-DecayStep)
	case score < 0:
		return math.Min(0, score+DecayStep)
	}
	return 0
}

// Model applies reputation changes through the state store.
type Model struct {
	reg   *Registry
	store *state.Store
	bus   state.Publisher
	log   *slog.Logger
}

// NewModel binds the registry to the store.
func NewModel(reg *Registry, store *state.Store, bus state.Publisher, log *slog.Logger) *Model {
	if log == nil {
		log = slog.Default()
	}
	return &Model{reg: reg, store: store, bus: bus, log: log}
}

// Registry exposes the static graph.
func (m *Model) Registry() *Registry { return m.reg }

// Score returns the exact standing with id (0 when never set).
func (m *Model) Score(id string) float64 {
	v, _ := state.Read[float64](m.store, state.ReputationPath(id))
	return v
}

// Reputation is the integer standing with id, truncated toward zero.
func (m *Model) Reputation(id string) int {
	return int(m.Score(id))
}

// Scores returns the standing with every registered faction.
func (m *Model) Scores() map[string]float64 {
	rep := m.store.Company().Reputation
	out := make(map[string]float64, len(m.reg.ids))
	for _, id := range m.reg.ids {
		out[id] = rep[id]
	}
	return out
}

// Average is the mean standing across every registered faction.
func (m *Model) Average() float64 {
	if len(m.reg.ids) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range m.Scores() {
		total += v
	}
	return total / float64(len(m.reg.ids))
}

// Modify changes the standing with id by delta and propagates to allies and
// enemies. It returns the new integer standing with id.
func (m *Model) Modify(id string, delta float64, reason string) (int, error) {
	if _, ok := m.reg.Get(id); !ok {
		return 0, fmt.Errorf("unknown faction %q", id)
	}
	effects := append([]Effect{{Faction: id, Delta: delta}}, m.reg.Propagation(id, delta)...)
	if err := m.apply(effects, reason); err != nil {
		return 0, err
	}
	return m.Reputation(id), nil
}

// ModifyFlat changes one faction without propagation.
func (m *Model) ModifyFlat(id string, delta float64, reason string) (int, error) {
	if _, ok := m.reg.Get(id); !ok {
		return 0, fmt.Errorf("unknown faction %q", id)
	}
	if err := m.apply([]Effect{{Faction: id, Delta: delta}}, reason); err != nil {
		return 0, err
	}
	return m.Reputation(id), nil
}

// ModifyAll changes every faction by the same delta, without propagation.
func (m *Model) ModifyAll(delta float64, reason string) error {
	effects := make([]Effect, 0, len(m.reg.ids))
	for _, id := range m.reg.ids {
		effects = append(effects, Effect{Faction: id, Delta: delta})
	}
	return m.apply(effects, reason)
}

// Decay drifts every non-zero standing toward zero.
func (m *Model) Decay() error {
	scores := m.Scores()
	var effects []Effect
	for _, id := range m.reg.ids {
		cur := scores[id]
		if next := DecayToward(cur); next != cur {
			effects = append(effects, Effect{Faction: id, Delta: next - cur})
		}
	}
	return m.apply(effects, "monthly decay")
}

// apply writes every effect in one batch and announces each change.
func (m *Model) apply(effects []Effect, reason string) error {
	if len(effects) == 0 {
		return nil
	}

	// 1. Accumulate on top of the current scores (a faction may appear twice)
	scores := m.Scores()
	before := make(map[string]float64, len(effects))
	var order []string
	for _, e := range effects {
		if _, seen := before[e.Faction]; !seen {
			before[e.Faction] = scores[e.Faction]
			order = append(order, e.Faction)
		}
		scores[e.Faction] = Clamp(scores[e.Faction] + e.Delta)
	}

	// 2. Write atomically
	writes := make(map[string]any, len(order))
	for _, id := range order {
		writes[state.ReputationPath(id)] = scores[id]
	}
	if err := m.store.Update(writes); err != nil {
		return fmt.Errorf("write reputation: %w", err)
	}

	// 3. Announce
	for _, id := range order {
		oldRep, newRep := int(before[id]), int(scores[id])
		if before[id] == scores[id] {
			continue
		}
		m.log.Debug("Reputation changed", "faction", id, "from", before[id], "to", scores[id], "reason", reason)
		if m.bus != nil {
			m.bus.Publish(game.EventReputationChanged, game.ReputationChanged{
				Faction:       id,
				OldReputation: oldRep,
				NewReputation: newRep,
				Change:        newRep - oldRep,
				Reason:        reason,
			})
		}
	}
	return nil
}
