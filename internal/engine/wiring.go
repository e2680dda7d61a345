/*
Package engine
File: wiring.go
Description:
    The standard subsystem set for a campaign.
*/

package engine

import (
	"math/rand/v2"

	"github.com/everforgeworks/merc-command/internal/combat"
	"github.com/everforgeworks/merc-command/internal/company"
	"github.com/everforgeworks/merc-command/internal/contract"
	"github.com/everforgeworks/merc-command/internal/faction"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/prompt"
	"github.com/everforgeworks/merc-command/internal/roster"
	"github.com/everforgeworks/merc-command/internal/state"
	"github.com/everforgeworks/merc-command/internal/tutorial"
)

// Game holds the subsystems registered by UseCampaign. Fields are set
// during Initialize.
type Game struct {
	Campaign *game.Campaign
	IDs      *game.IDSource

	Prompts  *prompt.Broker
	Tutorial *tutorial.Guide
	Company  *company.Manager
	Faction  *faction.System
	Pilots   *roster.Pilots
	Mechs    *roster.Mechs
	Contract *contract.Manager
	Combat   *combat.Resolver
}

// UseCampaign registers the core subsystems for c. All randomness derives
// from seed, so a seed and a command sequence replay the same game.
func (e *Engine) UseCampaign(c *game.Campaign, seed uint64) *Game {
	g := &Game{
		Campaign: c,
		IDs:      game.NewIDSource(rand.New(rand.NewPCG(seed, 1))),
	}
	if e.cfg.Fresh == nil {
		e.cfg.Fresh = func() state.Document { return c.NewDocument(g.IDs) }
	}

	e.Register(PriorityPorts, func(k *Kernel) (Subsystem, error) {
		g.Prompts = prompt.NewBroker(k.Bus, g.IDs, 0, k.Log)
		return g.Prompts, nil
	})
	e.Register(PriorityTutorial, func(k *Kernel) (Subsystem, error) {
		g.Tutorial = tutorial.NewGuide(k.Bus, nil, k.Log)
		return g.Tutorial, nil
	})
	e.Register(PriorityCompany, func(k *Kernel) (Subsystem, error) {
		g.Company = company.NewManager(c, k.Store, k.Bus, rand.New(rand.NewPCG(seed, 2)), k.Log)
		return g.Company, nil
	})
	e.Register(PriorityFaction, func(k *Kernel) (Subsystem, error) {
		g.Faction = faction.NewSystem(c, k.Store, k.Bus, k.Log)
		return g.Faction, nil
	})
	e.Register(PriorityPilot, func(k *Kernel) (Subsystem, error) {
		g.Pilots = roster.NewPilots(c, g.IDs, k.Store, k.Bus, g.Prompts, k.Log)
		return g.Pilots, nil
	})
	e.Register(PriorityMech, func(k *Kernel) (Subsystem, error) {
		g.Mechs = roster.NewMechs(c, g.IDs, k.Store, k.Bus, g.Prompts, k.Log)
		return g.Mechs, nil
	})
	e.Register(PriorityContract, func(k *Kernel) (Subsystem, error) {
		g.Contract = contract.NewManager(c, g.Faction.Model().Registry(), g.IDs, k.Store, k.Bus, k.Log)
		return g.Contract, nil
	})
	e.Register(PriorityCombat, func(k *Kernel) (Subsystem, error) {
		g.Combat = combat.NewResolver(k.Store, k.Bus, rand.New(rand.NewPCG(seed, 3)), k.Log)
		return g.Combat, nil
	})
	return g
}
