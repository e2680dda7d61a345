/*
Package faction
File: registry.go
Description:
    The static faction graph: who is allied with whom, who is at war, which
    contract archetypes each faction favours. Built once from the campaign
    and never mutated.
*/

package faction

import (
	"sort"

	"github.com/everforgeworks/merc-command/internal/game"
)

// Registry indexes the campaign's factions by ID.
type Registry struct {
	factions map[string]game.Faction
	ids      []string
}

// NewRegistry indexes c.Factions.
func NewRegistry(c *game.Campaign) *Registry {
	r := &Registry{factions: make(map[string]game.Faction, len(c.Factions))}
	for _, f := range c.Factions {
		r.factions[f.ID] = f
		r.ids = append(r.ids, f.ID)
	}
	sort.Strings(r.ids)
	return r
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (game.Faction, bool) {
	f, ok := r.factions[id]
	return f, ok
}

// IDs returns every faction ID, sorted.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

func (r *Registry) Allies(id string) []string     { return r.factions[id].Allies }
func (r *Registry) Enemies(id string) []string    { return r.factions[id].Enemies }
func (r *Registry) Neutral(id string) []string    { return r.factions[id].Neutral }
func (r *Registry) Affinities(id string) []string { return r.factions[id].Affinities }

// Territory returns the worlds a faction offers work on.
func (r *Registry) Territory(id string) []string { return r.factions[id].Territory }
