/*
Package game
File: state.go
Description:
    Loads and validates the campaign configuration.

    A default 'campaign.yaml' is compiled into the binary; LoadCampaign reads
    an override from disk when a path is given. The returned Campaign is
    immutable configuration: nothing in it changes during play.
*/

package game

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/everforgeworks/merc-command/internal/state"
)

//go:embed campaign.yaml
var defaultCampaign []byte

// DefaultCampaign parses the embedded campaign.
func DefaultCampaign() (*Campaign, error) {
	return ParseCampaign(defaultCampaign)
}

// LoadCampaign reads a campaign file, or the embedded default when path is empty.
func LoadCampaign(path string) (*Campaign, error) {
	if path == "" {
		return DefaultCampaign()
	}

	// 1. Read the YAML file
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read campaign: %w", err)
	}

	// 2. Parse and validate
	c, err := ParseCampaign(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ParseCampaign decodes YAML into a Campaign and validates it.
// Unknown keys are rejected so a misspelt knob does not silently fall back to zero.
func ParseCampaign(data []byte) (*Campaign, error) {
	var c Campaign
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode campaign: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the internal consistency of the configuration.
func (c *Campaign) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("campaign: "+format, args...))
	}

	// 1. Balance
	b := c.Balance
	if b.StartingFunds < 0 {
		fail("starting_funds must not be negative")
	}
	if b.AccountingDays <= 0 || b.ContractRefreshDays <= 0 {
		fail("accounting_days and contract_refresh_days must be positive")
	}
	if b.CrisisDivisor <= 0 {
		fail("crisis_divisor must be positive")
	}
	if b.RandomEventChance < 0 || b.RandomEventChance > 1 || b.AdvanceFraction < 0 || b.AdvanceFraction > 1 {
		fail("random_event_chance and advance_fraction must be in [0, 1]")
	}

	// 2. Factions and their relationship graph
	if len(c.Factions) == 0 {
		fail("no factions defined")
	}
	factions := make(map[string]bool, len(c.Factions))
	for _, f := range c.Factions {
		if f.ID == "" || factions[f.ID] {
			fail("faction id %q is empty or duplicated", f.ID)
		}
		factions[f.ID] = true
	}
	types := make(map[string]bool, len(c.ContractTypes))
	for _, t := range c.ContractTypes {
		types[t.Key] = true
	}
	for _, f := range c.Factions {
		for _, group := range [][]string{f.Allies, f.Enemies, f.Neutral} {
			for _, other := range group {
				if other == f.ID {
					fail("faction %q lists itself as a relation", f.ID)
				} else if !factions[other] {
					fail("faction %q references unknown faction %q", f.ID, other)
				}
			}
		}
		for _, key := range f.Affinities {
			if !types[key] {
				fail("faction %q has affinity for unknown contract type %q", f.ID, key)
			}
		}
	}
	if b.StandingFaction != "" && !factions[b.StandingFaction] {
		fail("standing_faction %q is not a faction", b.StandingFaction)
	}

	// 3. Contract archetypes
	if len(c.ContractTypes) == 0 {
		fail("no contract types defined")
	}
	seen := make(map[string]bool, len(c.ContractTypes))
	for _, t := range c.ContractTypes {
		switch {
		case t.Key == "" || seen[t.Key]:
			fail("contract type key %q is empty or duplicated", t.Key)
		case t.BaseRate <= 0:
			fail("contract type %q has non-positive base_rate", t.Key)
		case t.MinDays < 1 || t.MaxDays < t.MinDays:
			fail("contract type %q has invalid duration range %d-%d", t.Key, t.MinDays, t.MaxDays)
		case t.Salvage < 0 || t.Salvage > 1:
			fail("contract type %q salvage outside [0, 1]", t.Key)
		case !t.Unlock.Valid():
			fail("contract type %q has unknown unlock rating %q", t.Key, t.Unlock)
		}
		seen[t.Key] = true
	}

	// 4. Mech catalog and starting roster
	models := make(map[string]bool, len(c.Mechs))
	for _, m := range c.Mechs {
		if m.Key == "" || models[m.Key] {
			fail("mech key %q is empty or duplicated", m.Key)
		}
		if m.Tonnage <= 0 || m.Value <= 0 {
			fail("mech %q needs positive tonnage and value", m.Key)
		}
		models[m.Key] = true
	}
	for _, p := range c.Roster.Pilots {
		if p.Mech != "" && !models[p.Mech] {
			fail("starting pilot %q rides unknown mech %q", p.Name, p.Mech)
		}
		if !p.Experience.Valid() {
			fail("starting pilot %q has unknown experience %q", p.Name, p.Experience)
		}
	}
	for _, key := range c.Roster.Mechs {
		if !models[key] {
			fail("starting roster lists unknown mech %q", key)
		}
	}

	// 5. Hiring hall
	for _, t := range c.PilotTiers {
		if !t.Rating.Valid() || t.Weight < 0 || t.SalaryMax < t.SalaryMin ||
			t.GunneryMax < t.GunneryMin || t.PilotingMax < t.PilotingMin {
			fail("pilot tier %q is inconsistent", t.Rating)
		}
	}
	if len(c.Names.First) == 0 || len(c.Names.Last) == 0 {
		fail("names.first and names.last must not be empty")
	}

	return errors.Join(errs...)
}

// NewDocument builds the opening game document: starting funds, neutral
// standing with every faction and the pre-seeded roster.
func (c *Campaign) NewDocument(ids *IDSource) state.Document {
	doc := state.NewDocument(c.CompanyName, c.Balance.StartingFunds)
	doc.Company.Expenses.Insurance = c.Balance.Insurance
	doc.Company.Expenses.Overhead = c.Balance.Overhead
	for _, f := range c.Factions {
		doc.Company.Reputation[f.ID] = 0
	}

	for _, sp := range c.Roster.Pilots {
		p := state.Pilot{
			ID:         ids.New("PLT"),
			Name:       sp.Name,
			Callsign:   sp.Callsign,
			Gunnery:    sp.Gunnery,
			Piloting:   sp.Piloting,
			Experience: sp.Experience,
			Salary:     sp.Salary,
			Status:     state.PilotActive,
			HiredOn:    state.StartDate,
		}
		if model, ok := c.MechModel(sp.Mech); ok {
			m := NewMech(ids, model)
			m.PilotID = p.ID
			p.MechID = m.ID
			doc.Mechs = append(doc.Mechs, m)
		}
		doc.Pilots = append(doc.Pilots, p)
	}
	for _, key := range c.Roster.Mechs {
		model, _ := c.MechModel(key)
		doc.Mechs = append(doc.Mechs, NewMech(ids, model))
	}

	doc.Company.Expenses.Salaries, doc.Company.Expenses.Maintenance = RosterCosts(doc.Pilots, doc.Mechs)
	doc.Market.PilotPool = c.GeneratePilotPool(ids, c.Balance.PilotPoolSize)
	doc.Market.MechListings = c.GenerateListings(ids, c.Balance.MechListingCount)
	return doc
}
