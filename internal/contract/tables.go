/*
Package contract
File: tables.go
Description:
    Lookup tables for generation: difficulty odds per rating, payment
    multipliers and requirement scaling by difficulty.
*/

package contract

import "github.com/everforgeworks/merc-command/internal/state"

// weighted is one entry of a discrete distribution.
type weighted struct {
	difficulty state.Difficulty
	weight     float64
}

// difficultyOdds is the rating-dependent difficulty distribution.
// Green companies are never offered Hard or Extreme work.
var difficultyOdds = map[state.Rating][]weighted{
	state.RatingGreen: {
		{state.DifficultyEasy, 0.6},
		{state.DifficultyModerate, 0.4},
	},
	state.RatingRegular: {
		{state.DifficultyEasy, 0.3},
		{state.DifficultyModerate, 0.5},
		{state.DifficultyHard, 0.2},
	},
	state.RatingVeteran: {
		{state.DifficultyEasy, 0.1},
		{state.DifficultyModerate, 0.4},
		{state.DifficultyHard, 0.4},
		{state.DifficultyExtreme, 0.1},
	},
	state.RatingElite: {
		{state.DifficultyModerate, 0.2},
		{state.DifficultyHard, 0.5},
		{state.DifficultyExtreme, 0.3},
	},
}

// payBand is the rating multiplier range applied to a type's base rate.
type payBand struct{ lo, hi float64 }

var ratingPay = map[state.Rating]payBand{
	state.RatingGreen:   {0.7, 0.8},
	state.RatingRegular: {1.0, 1.0},
	state.RatingVeteran: {1.3, 1.4},
	state.RatingElite:   {1.6, 1.8},
}

// Payment noise around the multiplied base rate.
const (
	NoiseLow  = 0.8
	NoiseHigh = 1.2
)

// Offer window, in days from generation.
const (
	MinOfferDays = 7
	MaxOfferDays = 21
)

// Batch size bounds.
const (
	MinBatch = 2
	MaxBatch = 5
)

// Reputation thresholds for bonus unlocks.
const (
	AffinityUnlock = 50.0
	CovertUnlock   = 75.0
)

// difficultyProfile bounds what a contract of a given difficulty may ask and give.
type difficultyProfile struct {
	requirements state.Requirements
	salvageCap   float64
	risk         string // Extra risk line, empty for none
}

var profiles = map[state.Difficulty]difficultyProfile{
	state.DifficultyEasy:     {state.Requirements{MinMechs: 1, MaxMechs: 2, WeightLimit: 100}, 0.3, ""},
	state.DifficultyModerate: {state.Requirements{MinMechs: 2, MaxMechs: 4, WeightLimit: 200}, 0.4, ""},
	state.DifficultyHard:     {state.Requirements{MinMechs: 3, MaxMechs: 4, WeightLimit: 260}, 0.5, "Heavy resistance expected"},
	state.DifficultyExtreme:  {state.Requirements{MinMechs: 4, MaxMechs: 6, WeightLimit: 400}, 0.6, "Survival not guaranteed"},
}

// RequirementsFor returns the force bounds of a difficulty.
func RequirementsFor(d state.Difficulty) state.Requirements {
	return profiles[d].requirements
}

// SalvageCap returns the highest salvage share a difficulty allows.
func SalvageCap(d state.Difficulty) float64 {
	return profiles[d].salvageCap
}
