/*
Package state
File: types.go
Description:
    The persisted game document and every entity it holds. This file is the
    schema: the JSON tags here are the save-file layout and the path names the
    Store addresses.

    No logic beyond small enum helpers lives here.
*/

package state

// Rating is the mercenary tier of the company, and the experience tier of a pilot.
type Rating string

const (
	RatingGreen   Rating = "Green"
	RatingRegular Rating = "Regular"
	RatingVeteran Rating = "Veteran"
	RatingElite   Rating = "Elite"
)

// Ratings lists every tier from lowest to highest.
var Ratings = []Rating{RatingGreen, RatingRegular, RatingVeteran, RatingElite}

// Rank orders ratings: Green=0 ... Elite=3, unknown=-1.
func (r Rating) Rank() int {
	for i, x := range Ratings {
		if x == r {
			return i
		}
	}
	return -1
}

func (r Rating) Valid() bool { return r.Rank() >= 0 }

// Difficulty of a contract.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "Easy"
	DifficultyModerate Difficulty = "Moderate"
	DifficultyHard     Difficulty = "Hard"
	DifficultyExtreme  Difficulty = "Extreme"
)

// Difficulties lists every difficulty from easiest to hardest.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyModerate, DifficultyHard, DifficultyExtreme}

func (d Difficulty) Rank() int {
	for i, x := range Difficulties {
		if x == d {
			return i
		}
	}
	return -1
}

func (d Difficulty) Valid() bool { return d.Rank() >= 0 }

// PilotStatus is the duty state of a MechWarrior.
type PilotStatus string

const (
	PilotActive  PilotStatus = "Active"
	PilotInjured PilotStatus = "Injured"
	PilotKIA     PilotStatus = "KIA"
)

func (s PilotStatus) Valid() bool {
	return s == PilotActive || s == PilotInjured || s == PilotKIA
}

// MechStatus is the readiness of a BattleMech.
type MechStatus string

const (
	MechReady     MechStatus = "Ready"
	MechRepairing MechStatus = "Repairing"
	MechDestroyed MechStatus = "Destroyed"
	MechForSale   MechStatus = "For Sale"
)

func (s MechStatus) Valid() bool {
	return s == MechReady || s == MechRepairing || s == MechDestroyed || s == MechForSale
}

// Expenses are the recurring monthly costs of the company.
type Expenses struct {
	Salaries    int64 `json:"salaries"`    // Sum of pilot salaries (recomputed from roster)
	Maintenance int64 `json:"maintenance"` // Sum of mech upkeep (recomputed from roster)
	Insurance   int64 `json:"insurance"`   // Flat monthly premium
	Overhead    int64 `json:"overhead"`    // Flat monthly running costs
}

// Total sums every line of the ledger.
func (e Expenses) Total() int64 {
	return e.Salaries + e.Maintenance + e.Insurance + e.Overhead
}

// Company is the player's mercenary unit.
type Company struct {
	Name       string             `json:"name"`
	Funds      int64              `json:"funds"`      // C-Bills, never negative
	Rating     Rating             `json:"rating"`     // Mercenary tier
	Reputation map[string]float64 `json:"reputation"` // Faction ID -> standing in [-100, 100]
	Expenses   Expenses           `json:"expenses"`
	Income     int64              `json:"income"` // Earnings in the current accounting period
}

// Time is the campaign calendar plus the 30-day accounting accumulator.
type Time struct {
	Day          int   `json:"day"`
	Month        int   `json:"month"`
	Year         int   `json:"year"`
	AccountingMs int64 `json:"accountingMs"` // Elapsed game time since the last monthly payment
}

// Date drops the accumulator.
func (t Time) Date() Date { return Date{Day: t.Day, Month: t.Month, Year: t.Year} }

// Pilot is a MechWarrior on the roster or in the hiring pool.
type Pilot struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Callsign   string      `json:"callsign,omitempty"`
	Gunnery    int         `json:"gunnery"`  // Lower is better
	Piloting   int         `json:"piloting"` // Lower is better
	Experience Rating      `json:"experience"`
	Salary     int64       `json:"salary"` // Monthly
	Status     PilotStatus `json:"status"`
	MechID     string      `json:"mechAssignment,omitempty"` // Weak reference to a Mech.ID
	InjuryDays int         `json:"injuryDays,omitempty"`     // Days until an Injured pilot is Active again
	Missions   int         `json:"missions"`
	HiredOn    Date        `json:"hiredOn"`
}

// Key implements Keyed.
func (p Pilot) Key() string { return p.ID }

// Mech is a BattleMech on the roster or on the market.
type Mech struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Model           string         `json:"model"`
	Tonnage         int            `json:"tonnage"`
	Status          MechStatus     `json:"status"`
	Armor           int            `json:"armor"`     // Percent, 0-100
	Structure       int            `json:"structure"` // Percent, 0-100
	Weapons         []string       `json:"weapons"`
	Ammo            map[string]int `json:"ammo,omitempty"`
	MaintenanceCost int64          `json:"maintenanceCost"` // Monthly
	Value           int64          `json:"value"`           // Market price when intact
	PilotID         string         `json:"pilot,omitempty"` // Weak back-reference to a Pilot.ID
	RepairDays      int            `json:"repairDays,omitempty"`
}

func (m Mech) Key() string { return m.ID }

// Requirements bound the force a contract accepts.
type Requirements struct {
	MinMechs    int `json:"minMechs"`
	MaxMechs    int `json:"maxMechs"`
	WeightLimit int `json:"weightLimit"` // Tons across the deployed lance
}

// Rewards are paid out on successful completion.
type Rewards struct {
	Payment    int64          `json:"payment"`
	Salvage    float64        `json:"salvage"`    // Fraction 0-1
	Reputation map[string]int `json:"reputation"` // Faction ID -> delta
}

// Contract is a generated job offer.
type Contract struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Employer     string       `json:"employer"` // Faction ID
	Type         string       `json:"type"`
	Payment      int64        `json:"payment"`
	Difficulty   Difficulty   `json:"difficulty"`
	Duration     int          `json:"duration"` // Days
	Requirements Requirements `json:"requirements"`
	Risks        []string     `json:"risks"`
	Rewards      Rewards      `json:"rewards"`
	Location     string       `json:"location"`
	OfferedOn    Date         `json:"offeredOn"`
	TimeLimit    Date         `json:"timeLimit"` // Last day the offer can be accepted
	Objectives   []string     `json:"objectives"`
	Opposition   []string     `json:"opposition"`
	Terrain      []string     `json:"terrain"`
}

func (c Contract) Key() string { return c.ID }

// Deployment is the force committed to an active contract, frozen at acceptance.
type Deployment struct {
	PilotIDs []string `json:"pilotIds"`
	MechIDs  []string `json:"mechIds"`
	Tonnage  int      `json:"tonnage"`
}

// ActiveContract is an accepted contract in flight.
type ActiveContract struct {
	Contract   Contract           `json:"contract"`
	StartDate  Date               `json:"startDate"`
	EndDate    Date               `json:"endDate"`
	Deployment Deployment         `json:"deployment"`
	Advance    map[string]float64 `json:"advance,omitempty"` // Reputation granted at acceptance
}

func (a ActiveContract) Key() string { return a.Contract.ID }

// Statistics are lifetime counters.
type Statistics struct {
	ContractsAccepted  int   `json:"contractsAccepted"`
	ContractsCompleted int   `json:"contractsCompleted"`
	ContractsFailed    int   `json:"contractsFailed"`
	ContractsExpired   int   `json:"contractsExpired"`
	TotalEarnings      int64 `json:"totalEarnings"`
	TotalExpenses      int64 `json:"totalExpenses"`
	PilotsHired        int   `json:"pilotsHired"`
	PilotsFired        int   `json:"pilotsFired"`
	MechsPurchased     int   `json:"mechsPurchased"`
	MechsSold          int   `json:"mechsSold"`
	MechsDestroyed     int   `json:"mechsDestroyed"`
	DaysElapsed        int   `json:"daysElapsed"`
	MonthsElapsed      int   `json:"monthsElapsed"`
	FinancialCrises    int   `json:"financialCrises"`
	RandomEvents       int   `json:"randomEvents"`
}

// SuccessRate is completed / (completed + failed), 0 with no history.
func (s Statistics) SuccessRate() float64 {
	total := s.ContractsCompleted + s.ContractsFailed
	if total == 0 {
		return 0
	}
	return float64(s.ContractsCompleted) / float64(total)
}

// Market holds the hiring hall and the mech lot.
type Market struct {
	LastContractRefresh Date    `json:"lastContractRefresh"`
	PilotPool           []Pilot `json:"pilotPool"`
	MechListings        []Mech  `json:"mechListings"`
}

// Session is per-run presentation state.
type Session struct {
	Screen     string `json:"screen,omitempty"`
	PlayTimeMs int64  `json:"playTimeMs"`
}

// Document is the whole game: the single source of truth.
type Document struct {
	Version         string           `json:"version"`
	Company         Company          `json:"company"`
	Time            Time             `json:"time"`
	Pilots          []Pilot          `json:"pilots"`
	Mechs           []Mech           `json:"mechs"`
	Contracts       []Contract       `json:"contracts"`
	ActiveContracts []ActiveContract `json:"activeContracts"`
	Statistics      Statistics       `json:"statistics"`
	Market          Market           `json:"market"`
	Session         Session          `json:"session"`
}

// Keyed entities can be matched by id in array helpers.
type Keyed interface {
	Key() string
}
