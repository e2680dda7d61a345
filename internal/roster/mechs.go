/*
Package roster
File: mechs.go
Description:
    The mech subsystem: market purchases, repair bay, sales and battle
    damage.

    Repairs run on game days: Repair charges the full cost up front, marks
    the mech Repairing and each company:timeAdvanced counts the bay down
    until the mech is Ready at full armor and structure. A mech whose
    structure reaches zero is Destroyed and stays on the roster as salvage
    until sold.
*/

package roster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/prompt"
	"github.com/everforgeworks/merc-command/internal/state"
)

// Mechs manages the company's BattleMechs.
type Mechs struct {
	camp    *game.Campaign
	ids     *game.IDSource
	store   *state.Store
	bus     *event.Bus
	confirm *prompt.Broker
	money   treasury
	log     *slog.Logger
}

// NewMechs builds the mech subsystem.
func NewMechs(c *game.Campaign, ids *game.IDSource, store *state.Store, bus *event.Bus, confirm *prompt.Broker, log *slog.Logger) *Mechs {
	if log == nil {
		log = slog.Default()
	}
	return &Mechs{
		camp:    c,
		ids:     ids,
		store:   store,
		bus:     bus,
		confirm: confirm,
		money:   treasury{bus: bus},
		log:     log.With(slog.String("system", "mech")),
	}
}

func (m *Mechs) Name() string { return "mech" }

func (m *Mechs) Init(ctx context.Context) error {
	opts := event.Context("mech")

	event.On(m.bus, game.EventMechPurchase, func(ctx context.Context, r game.MechRef) (any, error) {
		_, err := m.Purchase(r.MechID)
		return resultOf("", err), nil
	}, opts)
	event.On(m.bus, game.EventMechRepair, func(ctx context.Context, r game.MechRef) (any, error) {
		_, err := m.Repair(r.MechID)
		return resultOf("", err), nil
	}, opts)
	event.On(m.bus, game.EventMechSell, func(ctx context.Context, r game.MechRef) (any, error) {
		id, err := m.Sell(r.MechID)
		return resultOf(id, err), nil
	}, opts)
	event.On(m.bus, game.EventMechDamaged, func(ctx context.Context, d game.MechDamage) (any, error) {
		return nil, m.Damage(d)
	}, opts)
	event.On(m.bus, game.EventTimeAdvanced, func(ctx context.Context, t game.TimeAdvanced) (any, error) {
		return nil, m.Work(t.DaysAdvanced)
	}, opts)
	event.On(m.bus, game.EventMonthElapsed, func(ctx context.Context, _ game.MonthElapsed) (any, error) {
		return nil, m.RefreshListings()
	}, opts)

	if len(m.store.Market().MechListings) == 0 {
		return m.RefreshListings()
	}
	return nil
}

func (m *Mechs) Update(time.Duration) error { return nil }

func (m *Mechs) Shutdown(context.Context) error {
	m.bus.UnsubscribeContext("mech")
	return nil
}

// RefreshListings restocks the market from the catalog.
func (m *Mechs) RefreshListings() error {
	listings := m.camp.GenerateListings(m.ids, m.camp.Balance.MechListingCount)
	return m.store.Set(state.PathMechListings, listings)
}

// Purchase buys a market listing at its asking price.
func (m *Mechs) Purchase(id string) (state.Mech, error) {
	listings := m.store.Market().MechListings
	i := indexMech(listings, id)
	if i < 0 {
		return state.Mech{}, reject(m.bus, "purchase", id, ReasonNotFound, "")
	}
	mech := listings[i]
	price := mech.Value

	mech.Status = state.MechReady
	rest := append(listings[:i:i], listings[i+1:]...)
	r, err := m.money.buy(m.store, price, "purchase", "mech purchase: "+mech.Name,
		map[string]any{
			state.PathMechListings: rest,
			state.PathMechs:        append(m.store.Mechs(), mech),
		},
		map[string]any{
			state.PathMechListings: listings,
			state.PathMechs:        m.store.Mechs(),
		})
	if err != nil {
		return state.Mech{}, err
	}
	if !r.Approved {
		return state.Mech{}, reject(m.bus, "purchase", id, ReasonInsufficientFunds, r.Reason)
	}

	m.log.Info("Mech purchased", "mech", mech.Name, "model", mech.Model, "price", game.FormatCBills(price))
	m.bus.Publish(game.EventMechPurchased, game.MechEvent{Mech: mech, Amount: price})
	return mech, nil
}

// Repair sends a damaged mech to the bay.
func (m *Mechs) Repair(id string) (state.Mech, error) {
	mechs := m.store.Mechs()
	i := indexMech(mechs, id)
	if i < 0 {
		return state.Mech{}, reject(m.bus, "repair", id, ReasonNotFound, "")
	}
	mech := mechs[i]
	switch {
	case mech.Status == state.MechDestroyed:
		return state.Mech{}, reject(m.bus, "repair", id, ReasonUnavailable, "destroyed")
	case mech.Status == state.MechRepairing:
		return state.Mech{}, reject(m.bus, "repair", id, ReasonBusy, "already in the bay")
	case deployed(m.store.ActiveContracts())[id]:
		return state.Mech{}, reject(m.bus, "repair", id, ReasonDeployed, "")
	case mech.Armor >= 100 && mech.Structure >= 100:
		return state.Mech{}, reject(m.bus, "repair", id, ReasonNoDamage, "")
	}

	cost := game.RepairCost(mech, m.camp.Balance.RepairCostPerPoint)
	if r := m.money.spend(cost, "repairs", "repair: "+mech.Name); !r.Approved {
		return state.Mech{}, reject(m.bus, "repair", id, ReasonInsufficientFunds, r.Reason)
	}

	days := game.RepairDays(mech)
	updated, err := m.store.UpdateArrayItem(state.PathMechs, state.ByKey(id), state.Patch{
		"status":     state.MechRepairing,
		"repairDays": days,
	})
	if err != nil {
		return state.Mech{}, err
	}
	mech = updated.(state.Mech)
	m.log.Info("Repair started", "mech", mech.Name, "cost", game.FormatCBills(cost), "days", days)
	m.bus.Publish(game.EventMechRepairStarted, game.MechEvent{Mech: mech, Amount: cost, Days: days})
	return mech, nil
}

// Work advances the repair bay by days.
func (m *Mechs) Work(days int) error {
	mechs := m.store.Mechs()
	var done []state.Mech
	changed := false
	for i := range mechs {
		if mechs[i].Status != state.MechRepairing {
			continue
		}
		changed = true
		mechs[i].RepairDays -= days
		if mechs[i].RepairDays <= 0 {
			mechs[i].RepairDays = 0
			mechs[i].Status = state.MechReady
			mechs[i].Armor, mechs[i].Structure = 100, 100
			done = append(done, mechs[i])
		}
	}
	if !changed {
		return nil
	}
	if err := m.store.Set(state.PathMechs, mechs); err != nil {
		return err
	}
	for _, mech := range done {
		m.bus.Publish(game.EventMechRepaired, game.MechEvent{Mech: mech})
	}
	return nil
}

// Sell asks for confirmation and then sells the mech for its condition-scaled
// value. It returns the prompt id.
func (m *Mechs) Sell(id string) (string, error) {
	mechs := m.store.Mechs()
	i := indexMech(mechs, id)
	if i < 0 {
		return "", reject(m.bus, "sell", id, ReasonNotFound, "")
	}
	if deployed(m.store.ActiveContracts())[id] {
		return "", reject(m.bus, "sell", id, ReasonDeployed, "")
	}
	price := game.SaleValue(mechs[i], m.camp.Balance.SaleFraction)
	msg := fmt.Sprintf("Sell %s %s for %s?", mechs[i].Name, mechs[i].Model, game.FormatCBills(price))
	return m.confirm.Request("mech:sell", msg, func(ok bool) error {
		if !ok {
			return nil
		}
		return m.sell(id)
	}), nil
}

func (m *Mechs) sell(id string) error {
	pilots, mechs := m.store.Pilots(), m.store.Mechs()
	i := indexMech(mechs, id)
	if i < 0 {
		return reject(m.bus, "sell", id, ReasonNotFound, "")
	}
	if deployed(m.store.ActiveContracts())[id] {
		return reject(m.bus, "sell", id, ReasonDeployed, "")
	}
	mech := mechs[i]
	price := game.SaleValue(mech, m.camp.Balance.SaleFraction)

	release(pilots, mechs, "", id)
	mechs = append(mechs[:i:i], mechs[i+1:]...)
	if err := writeRoster(m.store, pilots, mechs); err != nil {
		return err
	}
	if r := m.money.credit(price, "sales", "mech sale: "+mech.Name); !r.Approved {
		m.log.Warn("Sale proceeds not credited", "mech", id, "reason", r.Reason)
	}

	mech.PilotID = ""
	m.log.Info("Mech sold", "mech", mech.Name, "price", game.FormatCBills(price))
	m.bus.Publish(game.EventMechSold, game.MechEvent{Mech: mech, Amount: price})
	return nil
}

// Damage applies battle damage. Armor absorbs first; structure at zero
// destroys the mech and unseats its pilot.
func (m *Mechs) Damage(d game.MechDamage) error {
	pilots, mechs := m.store.Pilots(), m.store.Mechs()
	i := indexMech(mechs, d.MechID)
	if i < 0 || mechs[i].Status == state.MechDestroyed {
		return nil
	}
	mech := &mechs[i]
	mech.Armor = max(0, mech.Armor-d.ArmorLoss)
	mech.Structure = max(0, mech.Structure-d.StructureLoss)

	destroyed := mech.Structure == 0
	if destroyed {
		mech.Status = state.MechDestroyed
		mech.RepairDays = 0
		release(pilots, mechs, "", d.MechID)
	}
	if err := writeRoster(m.store, pilots, mechs); err != nil {
		return err
	}
	if destroyed {
		m.log.Warn("Mech destroyed", "mech", mechs[i].Name, "contract", d.ContractID)
		m.bus.Publish(game.EventMechDestroyed, game.MechEvent{Mech: mechs[i]})
	}
	return nil
}
