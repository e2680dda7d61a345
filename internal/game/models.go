/*
Package game
File: models.go
Description:
    Defines the campaign configuration structures.
    This file serves as the "schema" for 'campaign.yaml': the balance knobs,
    the faction graph, the contract archetype table, the mech catalog and the
    starting roster.

    No logic is performed here; this file is strictly for type definitions.
*/

package game

import "github.com/everforgeworks/merc-command/internal/state"

// Balance stores global tuning variables loaded from 'campaign.yaml'.
// These values control the macro-economy of the company.
type Balance struct {
	StartingFunds       int64   `yaml:"starting_funds" json:"starting_funds"`               // C-Bills given to a new company
	Insurance           int64   `yaml:"insurance" json:"insurance"`                         // Flat monthly premium
	Overhead            int64   `yaml:"overhead" json:"overhead"`                           // Flat monthly running costs
	AccountingDays      int     `yaml:"accounting_days" json:"accounting_days"`             // Length of one accounting period
	ContractRefreshDays int     `yaml:"contract_refresh_days" json:"contract_refresh_days"` // Days between automatic offer refreshes
	RandomEventChance   float64 `yaml:"random_event_chance" json:"random_event_chance"`     // Chance per qualifying time advance
	RandomEventMinDays  int     `yaml:"random_event_min_days" json:"random_event_min_days"` // Shortest advance that can roll an event
	CrisisDivisor       int64   `yaml:"crisis_divisor" json:"crisis_divisor"`               // Deficit C-Bills per point of reputation lost
	CrisisCap           int     `yaml:"crisis_cap" json:"crisis_cap"`                       // Maximum reputation lost per crisis
	StandingFaction     string  `yaml:"standing_faction" json:"standing_faction"`           // Faction that tracks mercenary standing
	StandingFloor       float64 `yaml:"standing_floor" json:"standing_floor"`               // Below this standing a crisis resets the rating
	FailurePenalty      int     `yaml:"failure_penalty" json:"failure_penalty"`             // Flat reputation lost with everyone on failure
	AdvanceFraction     float64 `yaml:"advance_fraction" json:"advance_fraction"`           // Share of reputation rewards granted on acceptance
	PilotPoolSize       int     `yaml:"pilot_pool_size" json:"pilot_pool_size"`             // Candidates in the hiring hall
	MechListingCount    int     `yaml:"mech_listing_count" json:"mech_listing_count"`       // Mechs on the market lot
	RepairCostPerPoint  int64   `yaml:"repair_cost_per_point" json:"repair_cost_per_point"` // C-Bills per armor/structure point per ton
	SaleFraction        float64 `yaml:"sale_fraction" json:"sale_fraction"`                 // Share of value paid when selling an intact mech
}

// Faction is a static descriptor of a Great House or power.
// Only the company's reputation with it is mutable, and that lives in the state document.
type Faction struct {
	ID         string   `yaml:"id" json:"id"`                                   // Unique ID, also the display name (e.g., "Federated Suns")
	Capital    string   `yaml:"capital" json:"capital"`                         // Capital world
	Color      string   `yaml:"color" json:"color"`                             // Display color (hex)
	Symbol     string   `yaml:"symbol" json:"symbol"`                           // Display glyph
	Traits     []string `yaml:"traits" json:"traits"`                           // Flavor tags
	Allies     []string `yaml:"allies" json:"allies"`                           // Faction IDs receiving same-signed propagation
	Enemies    []string `yaml:"enemies" json:"enemies"`                         // Faction IDs receiving opposite-signed propagation
	Neutral    []string `yaml:"neutral" json:"neutral"`                         // Faction IDs unaffected by propagation
	Affinities []string `yaml:"contract_affinities" json:"contract_affinities"` // Contract type keys unlocked at high standing
	Territory  []string `yaml:"territory" json:"territory"`                     // Worlds used as contract locations
}

// ContractType is one mission archetype in the generator's lookup table.
type ContractType struct {
	Key        string       `yaml:"key" json:"key"`               // Unique ID (e.g., "garrison_duty")
	Name       string       `yaml:"name" json:"name"`             // Display name
	BaseRate   int64        `yaml:"base_rate" json:"base_rate"`   // Payment before rating and noise multipliers
	MinDays    int          `yaml:"min_days" json:"min_days"`     // Shortest duration
	MaxDays    int          `yaml:"max_days" json:"max_days"`     // Longest duration
	Salvage    float64      `yaml:"salvage" json:"salvage"`       // Salvage fraction before the difficulty cap
	Reputation int          `yaml:"reputation" json:"reputation"` // Employer reputation on success
	Unlock     state.Rating `yaml:"unlock" json:"unlock"`         // Lowest company rating offered this type
	Covert     bool         `yaml:"covert" json:"covert"`         // Offered only by factions with very high standing
	Objectives []string     `yaml:"objectives" json:"objectives"`
	Risks      []string     `yaml:"risks" json:"risks"`
}

// MechModel is a catalog entry: a chassis variant available for purchase.
type MechModel struct {
	Key         string         `yaml:"key" json:"key"`               // Unique ID (e.g., "shd_2h")
	Chassis     string         `yaml:"chassis" json:"chassis"`       // Display chassis name
	ModelCode   string         `yaml:"model_code" json:"model_code"` // Variant code (e.g., "SHD-2H")
	Tonnage     int            `yaml:"tonnage" json:"tonnage"`
	Role        string         `yaml:"role" json:"role"` // Scout, Skirmisher, Brawler...
	Weapons     []string       `yaml:"weapons" json:"weapons"`
	Ammo        map[string]int `yaml:"ammo" json:"ammo"`
	Value       int64          `yaml:"value" json:"value"`             // Purchase price
	Maintenance int64          `yaml:"maintenance" json:"maintenance"` // Monthly upkeep
}

// PilotTier controls the generated stats of a hiring-hall candidate.
type PilotTier struct {
	Rating      state.Rating `yaml:"rating" json:"rating"`
	Weight      float64      `yaml:"weight" json:"weight"` // Relative frequency in the hiring hall
	GunneryMin  int          `yaml:"gunnery_min" json:"gunnery_min"`
	GunneryMax  int          `yaml:"gunnery_max" json:"gunnery_max"`
	PilotingMin int          `yaml:"piloting_min" json:"piloting_min"`
	PilotingMax int          `yaml:"piloting_max" json:"piloting_max"`
	SalaryMin   int64        `yaml:"salary_min" json:"salary_min"`
	SalaryMax   int64        `yaml:"salary_max" json:"salary_max"`
}

// Names feeds the pilot name generator.
type Names struct {
	First     []string `yaml:"first"`
	Last      []string `yaml:"last"`
	Callsigns []string `yaml:"callsigns"`
}

// StarterPilot is a pre-seeded MechWarrior.
type StarterPilot struct {
	Name       string       `yaml:"name"`
	Callsign   string       `yaml:"callsign"`
	Gunnery    int          `yaml:"gunnery"`
	Piloting   int          `yaml:"piloting"`
	Experience state.Rating `yaml:"experience"`
	Salary     int64        `yaml:"salary"`
	Mech       string       `yaml:"mech"` // Catalog key of the mech this pilot starts in
}

// Roster is the starting force of a new company.
type Roster struct {
	Pilots []StarterPilot `yaml:"pilots"`
	Mechs  []string       `yaml:"mechs"` // Extra unassigned mechs, by catalog key
}

// Campaign is the root configuration struct, mapping to the entire 'campaign.yaml' file.
type Campaign struct {
	CompanyName   string         `yaml:"company_name"`
	Balance       Balance        `yaml:"balance"`
	Factions      []Faction      `yaml:"factions"`
	ContractTypes []ContractType `yaml:"contract_types"`
	Locations     []string       `yaml:"locations"` // Fallback worlds when an employer lists no territory
	Terrain       []string       `yaml:"terrain"`
	Opposition    []string       `yaml:"opposition"` // Generic forces added beside employer enemies
	Mechs         []MechModel    `yaml:"mech_catalog"`
	PilotTiers    []PilotTier    `yaml:"pilot_tiers"`
	Names         Names          `yaml:"names"`
	Roster        Roster         `yaml:"starting_roster"`
}
