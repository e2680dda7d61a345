/*
Package game
File: mechanics.go
Description:
    Lookup helpers over the campaign plus the small rule helpers shared by
    several subsystems: id generation from the seeded random source, and
    C-Bill formatting for log lines and player-facing messages.
*/

package game

import (
	"math/rand/v2"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Faction is a helper to retrieve a faction by its ID.
func (c *Campaign) Faction(id string) (Faction, bool) {
	for _, f := range c.Factions {
		if f.ID == id {
			return f, true
		}
	}
	return Faction{}, false
}

// FactionIDs returns every faction ID, sorted.
func (c *Campaign) FactionIDs() []string {
	ids := make([]string, 0, len(c.Factions))
	for _, f := range c.Factions {
		ids = append(ids, f.ID)
	}
	sort.Strings(ids)
	return ids
}

// ContractType is a helper to retrieve an archetype by its key.
func (c *Campaign) ContractType(key string) (ContractType, bool) {
	for _, t := range c.ContractTypes {
		if t.Key == key {
			return t, true
		}
	}
	return ContractType{}, false
}

// MechModel is a helper to retrieve a catalog entry by its key.
func (c *Campaign) MechModel(key string) (MechModel, bool) {
	for _, m := range c.Mechs {
		if m.Key == key {
			return m, true
		}
	}
	return MechModel{}, false
}

// IDSource hands out entity ids drawn from the seeded random source, so a
// seeded run produces the same ids every time.
type IDSource struct {
	rng *rand.Rand
}

// NewIDSource wraps rng. The source is not safe for concurrent use; it
// belongs to the loop goroutine like the rest of the simulation.
func NewIDSource(rng *rand.Rand) *IDSource {
	return &IDSource{rng: rng}
}

// Rand exposes the underlying generator for the subsystems' rolls.
func (s *IDSource) Rand() *rand.Rand { return s.rng }

// Read implements io.Reader for uuid generation.
func (s *IDSource) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(s.rng.Uint32())
	}
	return len(p), nil
}

// New returns "<prefix>-<12 hex digits>" (e.g., "CTR-5f1e0a9b3c2d").
func (s *IDSource) New(prefix string) string {
	u, err := uuid.NewRandomFromReader(s)
	if err != nil {
		// Read never fails.
		panic(err)
	}
	return prefix + "-" + u.String()[24:]
}

// FormatCBills renders an amount the way the company ledger shows it.
func FormatCBills(amount int64) string {
	return humanize.Comma(amount) + " C-Bills"
}
