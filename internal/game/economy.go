/*
Package game
File: economy.go
Description:
    Procedural generation and pricing for the roster economy.
    This includes:
    1. Generating hiring-hall candidates from the pilot tier table.
    2. Stocking the mech market from the catalog.
    3. The recurring cost, repair and resale formulas.
*/

package game

import (
	"fmt"
	"math"

	"github.com/everforgeworks/merc-command/internal/state"
)

// NewMech builds a pristine roster mech from a catalog entry.
func NewMech(ids *IDSource, model MechModel) state.Mech {
	ammo := make(map[string]int, len(model.Ammo))
	for k, v := range model.Ammo {
		ammo[k] = v
	}
	return state.Mech{
		ID:              ids.New("MCH"),
		Name:            model.Chassis,
		Model:           model.ModelCode,
		Tonnage:         model.Tonnage,
		Status:          state.MechReady,
		Armor:           100,
		Structure:       100,
		Weapons:         append([]string(nil), model.Weapons...),
		Ammo:            ammo,
		MaintenanceCost: model.Maintenance,
		Value:           model.Value,
	}
}

// GeneratePilot creates one hiring-hall candidate.
func (c *Campaign) GeneratePilot(ids *IDSource) state.Pilot {
	rng := ids.Rand()

	// 1. Pick the tier by weight
	tier := c.pickTier(rng.Float64())

	// 2. Roll skills and salary inside the tier's bands
	between := func(lo, hi int) int { return lo + rng.IntN(hi-lo+1) }
	salary := tier.SalaryMin
	if span := tier.SalaryMax - tier.SalaryMin; span > 0 {
		salary += rng.Int64N(span + 1)
	}
	salary = int64(math.Round(float64(salary)/100) * 100)

	// 3. Name
	name := fmt.Sprintf("%s %s", pick(rng.IntN, c.Names.First), pick(rng.IntN, c.Names.Last))

	return state.Pilot{
		ID:         ids.New("PLT"),
		Name:       name,
		Callsign:   pick(rng.IntN, c.Names.Callsigns),
		Gunnery:    between(tier.GunneryMin, tier.GunneryMax),
		Piloting:   between(tier.PilotingMin, tier.PilotingMax),
		Experience: tier.Rating,
		Salary:     salary,
		Status:     state.PilotActive,
	}
}

// GeneratePilotPool creates n candidates.
func (c *Campaign) GeneratePilotPool(ids *IDSource, n int) []state.Pilot {
	pool := make([]state.Pilot, 0, n)
	for i := 0; i < n; i++ {
		pool = append(pool, c.GeneratePilot(ids))
	}
	return pool
}

// GenerateListings stocks the market lot with n mechs drawn from the catalog.
// Used mechs come with some wear and a matching discount.
func (c *Campaign) GenerateListings(ids *IDSource, n int) []state.Mech {
	if len(c.Mechs) == 0 {
		return []state.Mech{}
	}
	rng := ids.Rand()
	out := make([]state.Mech, 0, n)
	for i := 0; i < n; i++ {
		m := NewMech(ids, c.Mechs[rng.IntN(len(c.Mechs))])
		m.Status = state.MechForSale
		if rng.Float64() < 0.5 {
			m.Armor = 60 + rng.IntN(41)
			m.Structure = 80 + rng.IntN(21)
			m.Value = int64(float64(m.Value) * Condition(m))
		}
		out = append(out, m)
	}
	return out
}

func (c *Campaign) pickTier(roll float64) PilotTier {
	if len(c.PilotTiers) == 0 {
		return PilotTier{Rating: state.RatingGreen, GunneryMin: 4, GunneryMax: 4, PilotingMin: 5, PilotingMax: 5, SalaryMin: 3000, SalaryMax: 3000}
	}
	total := 0.0
	for _, t := range c.PilotTiers {
		total += t.Weight
	}
	roll *= total
	for _, t := range c.PilotTiers {
		if roll < t.Weight {
			return t
		}
		roll -= t.Weight
	}
	return c.PilotTiers[len(c.PilotTiers)-1]
}

func pick(intN func(int) int, list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[intN(len(list))]
}

// RosterCosts sums the recurring monthly costs of the current roster.
// The dead draw no salary and destroyed mechs need no upkeep.
func RosterCosts(pilots []state.Pilot, mechs []state.Mech) (salaries, maintenance int64) {
	for _, p := range pilots {
		if p.Status != state.PilotKIA {
			salaries += p.Salary
		}
	}
	for _, m := range mechs {
		if m.Status != state.MechDestroyed {
			maintenance += m.MaintenanceCost
		}
	}
	return salaries, maintenance
}

// Condition is the fraction of a mech's full armor and structure that remains.
func Condition(m state.Mech) float64 {
	return float64(m.Armor+m.Structure) / 200
}

// RepairCost prices restoring a mech to full armor and structure.
// Formula: MissingPoints * Tonnage * CostPerPoint
func RepairCost(m state.Mech, perPoint int64) int64 {
	missing := int64(200 - m.Armor - m.Structure)
	return missing * int64(m.Tonnage) * perPoint
}

// RepairDays is the time a repair takes: one day per 20 missing points, at least one.
func RepairDays(m state.Mech) int {
	missing := 200 - m.Armor - m.Structure
	days := (missing + 19) / 20
	if days < 1 {
		days = 1
	}
	return days
}

// SaleValue is what the market pays for a mech: a share of its value scaled
// by condition. A destroyed mech sells for scrap.
func SaleValue(m state.Mech, fraction float64) int64 {
	if m.Status == state.MechDestroyed {
		return m.Value / 10
	}
	return int64(math.Round(float64(m.Value) * fraction * Condition(m)))
}
