/*
Package faction
File: levels.go
Description:
    Named standing tiers and the contract availability stepped by them.
*/

package faction

import "github.com/everforgeworks/merc-command/internal/state"

// Level is the named standing tier shown to the player.
type Level string

const (
	LevelHated       Level = "Hated"
	LevelEnemy       Level = "Enemy"
	LevelHostile     Level = "Hostile"
	LevelUnfavorable Level = "Unfavorable"
	LevelNeutral     Level = "Neutral"
	LevelFavorable   Level = "Favorable"
	LevelFriendly    Level = "Friendly"
	LevelTrusted     Level = "Trusted"
	LevelAllied      Level = "Allied"
)

// tiers run from worst to best; a score belongs to the first tier whose
// upper bound it is below, so a boundary score takes the better tier.
// Neutral covers [-20, 20).
var tiers = []struct {
	level        Level
	upper        float64
	availability float64
}{
	{LevelHated, -80, 0.1},
	{LevelEnemy, -60, 0.2},
	{LevelHostile, -40, 0.3},
	{LevelUnfavorable, -20, 0.4},
	{LevelNeutral, 20, 0.5},
	{LevelFavorable, 40, 0.6},
	{LevelFriendly, 60, 0.7},
	{LevelTrusted, 80, 0.8},
	{LevelAllied, MaxReputation, 0.9},
}

func tierOf(score float64) int {
	for i, t := range tiers {
		if score < t.upper {
			return i
		}
	}
	return len(tiers) - 1
}

// LevelOf classifies a score.
func LevelOf(score float64) Level {
	return tiers[tierOf(score)].level
}

// AvailabilityOf is the chance in [0.1, 0.9] that a faction offers work,
// stepped by tier. The contract generator uses it as an acceptance weight.
func AvailabilityOf(score float64) float64 {
	return tiers[tierOf(score)].availability
}

// Availability is AvailabilityOf for the current standing with id.
func (m *Model) Availability(id string) float64 {
	return AvailabilityOf(m.Score(id))
}

// Level is LevelOf for the current standing with id.
func (m *Model) Level(id string) Level {
	return LevelOf(m.Score(id))
}

// Rating thresholds. A company earns a tier when it clears all three bars.
const (
	EliteReputation   = 60.0
	EliteSuccess      = 0.90
	EliteCompleted    = 50
	VeteranReputation = 30.0
	VeteranSuccess    = 0.75
	VeteranCompleted  = 20
	RegularReputation = 0.0
	RegularSuccess    = 0.60
	RegularCompleted  = 5
)

// RateCompany maps track record to a mercenary rating.
func RateCompany(avgReputation, successRate float64, completed int) state.Rating {
	switch {
	case avgReputation >= EliteReputation && successRate >= EliteSuccess && completed >= EliteCompleted:
		return state.RatingElite
	case avgReputation >= VeteranReputation && successRate >= VeteranSuccess && completed >= VeteranCompleted:
		return state.RatingVeteran
	case avgReputation >= RegularReputation && successRate >= RegularSuccess && completed >= RegularCompleted:
		return state.RatingRegular
	}
	return state.RatingGreen
}
