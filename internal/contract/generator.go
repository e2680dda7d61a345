/*
Package contract
File: generator.go
Description:
    Procedural contract generation.

    A batch holds MinBatch..MaxBatch offers. For each offer:
    1. An employer is drawn by availability-weighted rejection sampling.
    2. The archetype comes from the rating's unlocks, plus the employer's
       affinities above 50 standing, plus covert work above 75.
    3. Difficulty follows the rating distribution; it bounds requirements
       and salvage.
    4. payment = round(baseRate * ratingMultiplier * U(0.8, 1.2)).
    5. The offer stays open for U[7, 21] days.
*/

package contract

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/everforgeworks/merc-command/internal/faction"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

// maxEmployerDraws bounds rejection sampling; the last candidate wins after that.
const maxEmployerDraws = 64

// Generator produces contract offers. It is deterministic for a given IDSource seed.
type Generator struct {
	camp *game.Campaign
	reg  *faction.Registry
	ids  *game.IDSource
	rng  *rand.Rand
}

// NewGenerator binds the generator to the campaign tables and a random source.
func NewGenerator(c *game.Campaign, reg *faction.Registry, ids *game.IDSource) *Generator {
	return &Generator{camp: c, reg: reg, ids: ids, rng: ids.Rand()}
}

// GenerateBatch produces a fresh set of offers for a company of the given
// rating and standing, dated now.
func (g *Generator) GenerateBatch(rating state.Rating, reputation map[string]float64, now state.Date) []state.Contract {
	n := MinBatch + g.rng.IntN(MaxBatch-MinBatch+1)
	out := make([]state.Contract, 0, n)
	for i := 0; i < n; i++ {
		c, ok := g.Generate(rating, reputation, now)
		if !ok {
			break
		}
		out = append(out, c)
	}
	return out
}

// Generate produces one offer. It fails only when the campaign offers no
// archetype to this rating at all.
func (g *Generator) Generate(rating state.Rating, reputation map[string]float64, now state.Date) (state.Contract, bool) {
	// 1. Employer
	employer := g.pickEmployer(reputation)

	// 2. Archetype
	pool := g.TypePool(rating, employer, reputation[employer])
	if len(pool) == 0 {
		return state.Contract{}, false
	}
	ct := pool[g.rng.IntN(len(pool))]

	// 3. Difficulty and what it bounds
	difficulty := g.pickDifficulty(rating)
	profile := profiles[difficulty]

	// 4. Economics
	band := ratingPay[rating]
	mult := band.lo + g.rng.Float64()*(band.hi-band.lo)
	noise := NoiseLow + g.rng.Float64()*(NoiseHigh-NoiseLow)
	payment := int64(math.Round(float64(ct.BaseRate) * mult * noise))
	duration := ct.MinDays + g.rng.IntN(ct.MaxDays-ct.MinDays+1)

	// 5. Flavor
	location := g.pickLocation(employer)
	risks := append([]string(nil), ct.Risks...)
	if profile.risk != "" {
		risks = append(risks, profile.risk)
	}

	return state.Contract{
		ID:           g.ids.New("CTR"),
		Name:         fmt.Sprintf("%s on %s", ct.Name, location),
		Employer:     employer,
		Type:         ct.Key,
		Payment:      payment,
		Difficulty:   difficulty,
		Duration:     duration,
		Requirements: profile.requirements,
		Risks:        risks,
		Rewards: state.Rewards{
			Payment:    payment,
			Salvage:    math.Min(ct.Salvage, profile.salvageCap),
			Reputation: map[string]int{employer: ct.Reputation},
		},
		Location:   location,
		OfferedOn:  now,
		TimeLimit:  now.AddDays(MinOfferDays + g.rng.IntN(MaxOfferDays-MinOfferDays+1)),
		Objectives: append([]string(nil), ct.Objectives...),
		Opposition: g.pickOpposition(employer),
		Terrain:    g.sample(g.camp.Terrain, 1+g.rng.IntN(3)),
	}, true
}

// TypePool lists the archetypes an employer may offer a company of the given
// rating, in campaign order.
func (g *Generator) TypePool(rating state.Rating, employer string, standing float64) []game.ContractType {
	bonus := make(map[string]bool)
	if standing > AffinityUnlock {
		for _, key := range g.reg.Affinities(employer) {
			bonus[key] = true
		}
	}

	var pool []game.ContractType
	for _, ct := range g.camp.ContractTypes {
		switch {
		case ct.Covert:
			if standing > CovertUnlock {
				pool = append(pool, ct)
			}
		case ct.Unlock.Rank() <= rating.Rank() || bonus[ct.Key]:
			pool = append(pool, ct)
		}
	}
	return pool
}

// pickEmployer draws factions uniformly and keeps each with probability
// equal to its availability.
func (g *Generator) pickEmployer(reputation map[string]float64) string {
	ids := g.reg.IDs()
	var candidate string
	for i := 0; i < maxEmployerDraws; i++ {
		candidate = ids[g.rng.IntN(len(ids))]
		if g.rng.Float64() < faction.AvailabilityOf(reputation[candidate]) {
			return candidate
		}
	}
	return candidate
}

func (g *Generator) pickDifficulty(rating state.Rating) state.Difficulty {
	odds, ok := difficultyOdds[rating]
	if !ok {
		odds = difficultyOdds[state.RatingGreen]
	}
	roll := g.rng.Float64()
	for _, w := range odds {
		if roll < w.weight {
			return w.difficulty
		}
		roll -= w.weight
	}
	return odds[len(odds)-1].difficulty
}

func (g *Generator) pickLocation(employer string) string {
	worlds := g.reg.Territory(employer)
	if len(worlds) == 0 {
		worlds = g.camp.Locations
	}
	if len(worlds) == 0 {
		return "Unknown"
	}
	return worlds[g.rng.IntN(len(worlds))]
}

// pickOpposition prefers the employer's enemies and adds one generic force.
func (g *Generator) pickOpposition(employer string) []string {
	out := g.sample(g.reg.Enemies(employer), 1)
	if len(g.camp.Opposition) > 0 && (len(out) == 0 || g.rng.Float64() < 0.5) {
		out = append(out, g.camp.Opposition[g.rng.IntN(len(g.camp.Opposition))])
	}
	return out
}

// sample draws up to n distinct entries of list.
func (g *Generator) sample(list []string, n int) []string {
	if n > len(list) {
		n = len(list)
	}
	idx := g.rng.Perm(len(list))[:n]
	sort.Ints(idx)
	out := make([]string, 0, n)
	for _, i := range idx {
		out = append(out, list[i])
	}
	return out
}

// RemoveExpired returns the offers still open on now. An offer can be
// accepted up to and including its TimeLimit day. The input is not modified.
func RemoveExpired(offers []state.Contract, now state.Date) []state.Contract {
	out := make([]state.Contract, 0, len(offers))
	for _, c := range offers {
		if !now.After(c.TimeLimit) {
			out = append(out, c)
		}
	}
	return out
}
