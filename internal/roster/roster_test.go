package roster

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/everforgeworks/merc-command/internal/company"
	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/prompt"
	"github.com/everforgeworks/merc-command/internal/state"
)

type harness struct {
	bus     *event.Bus
	store   *state.Store
	camp    *game.Campaign
	broker  *prompt.Broker
	pilots  *Pilots
	mechs   *Mechs
	prompts []game.ConfirmRequest
}

func newHarness(t *testing.T, funds int64) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	camp, err := game.DefaultCampaign()
	if err != nil {
		t.Fatal(err)
	}
	camp.Balance.RandomEventChance = 0

	bus := event.NewBus(log)
	game.DefineEvents(bus)
	ids := game.NewIDSource(rand.New(rand.NewPCG(7, 7)))
	doc := camp.NewDocument(ids)
	doc.Company.Funds = funds
	store := state.NewStore(doc, bus, log)

	h := &harness{bus: bus, store: store, camp: camp}
	h.broker = prompt.NewBroker(bus, ids, 0, log)
	h.pilots = NewPilots(camp, ids, store, bus, h.broker, log)
	h.mechs = NewMechs(camp, ids, store, bus, h.broker, log)
	co := company.NewManager(camp, store, bus, rand.New(rand.NewPCG(1, 1)), log)
	for _, sys := range []interface{ Init(context.Context) error }{co, h.broker, h.pilots, h.mechs} {
		if err := sys.Init(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	event.On(bus, game.EventConfirmRequest, func(ctx context.Context, r game.ConfirmRequest) (any, error) {
		h.prompts = append(h.prompts, r)
		return nil, nil
	})
	return h
}

func (h *harness) valid(t *testing.T) {
	t.Helper()
	doc := h.store.Snapshot()
	if err := state.Validate(&doc); err != nil {
		t.Fatalf("document invalid: %v", err)
	}
}

// starter returns the first pilot on the roster and the mech they pilot.
func (h *harness) starter(t *testing.T) (state.Pilot, state.Mech) {
	t.Helper()
	p := h.store.Pilots()[0]
	for _, m := range h.store.Mechs() {
		if m.ID == p.MechID {
			return p, m
		}
	}
	t.Fatal("starter pilot has no mech")
	return p, state.Mech{}
}

func TestHireChargesSigningFee(t *testing.T) {
	h := newHarness(t, 500000)
	recruit := h.store.Market().PilotPool[0]
	before := h.store.Company()

	results := h.bus.Publish(game.EventPilotHire, game.PilotRef{PilotID: recruit.ID})
	res, _ := event.First[Result](results)
	if !res.OK {
		t.Fatalf("hire = %+v", res)
	}

	after := h.store.Company()
	if after.Funds != before.Funds-recruit.Salary {
		t.Fatalf("funds = %d, want %d", after.Funds, before.Funds-recruit.Salary)
	}
	if after.Expenses.Salaries != before.Expenses.Salaries+recruit.Salary {
		t.Fatalf("salaries = %d", after.Expenses.Salaries)
	}
	if indexPilot(h.store.Market().PilotPool, recruit.ID) >= 0 {
		t.Fatal("recruit still in the pool")
	}
	if i := indexPilot(h.store.Pilots(), recruit.ID); i < 0 || h.store.Pilots()[i].Status != state.PilotActive {
		t.Fatal("recruit not on the roster")
	}
	if h.store.Statistics().PilotsHired != 1 {
		t.Fatal("hire not counted")
	}
	h.valid(t)
}

func TestHireWithoutFundsChangesNothing(t *testing.T) {
	h := newHarness(t, 100)
	recruit := h.store.Market().PilotPool[0]
	pool := len(h.store.Market().PilotPool)

	res, _ := event.First[Result](h.bus.Publish(game.EventPilotHire, game.PilotRef{PilotID: recruit.ID}))
	if res.OK || res.Reason != ReasonInsufficientFunds {
		t.Fatalf("hire = %+v", res)
	}
	if len(h.store.Market().PilotPool) != pool || h.store.Company().Funds != 100 {
		t.Fatal("rejected hire mutated state")
	}
}

func TestRefusedFeeUndoesHire(t *testing.T) {
	h := newHarness(t, 500000)
	recruit := h.store.Market().PilotPool[0]
	pool := len(h.store.Market().PilotPool)
	roster := len(h.store.Pilots())
	salaries := h.store.Company().Expenses.Salaries

	// Funds vanish between the roster write and the charge.
	drained := false
	event.On(h.bus, state.EventUpdated, func(ctx context.Context, b state.Batch) (any, error) {
		if drained {
			return nil, nil
		}
		drained = true
		return nil, h.store.Set(state.PathFunds, int64(0))
	})

	res, _ := event.First[Result](h.bus.Publish(game.EventPilotHire, game.PilotRef{PilotID: recruit.ID}))
	if res.OK || res.Reason != ReasonInsufficientFunds {
		t.Fatalf("hire = %+v", res)
	}
	if !drained {
		t.Fatal("roster write never happened")
	}
	if len(h.store.Market().PilotPool) != pool || indexPilot(h.store.Market().PilotPool, recruit.ID) < 0 {
		t.Fatal("recruit not returned to the pool")
	}
	if len(h.store.Pilots()) != roster || indexPilot(h.store.Pilots(), recruit.ID) >= 0 {
		t.Fatal("recruit left on the roster")
	}
	if c := h.store.Company(); c.Funds != 0 || c.Expenses.Salaries != salaries {
		t.Fatalf("funds = %d, salaries = %d", c.Funds, c.Expenses.Salaries)
	}
	if h.store.Statistics().PilotsHired != 0 {
		t.Fatal("undone hire counted")
	}
	h.valid(t)
}

func TestFireWaitsForConfirmation(t *testing.T) {
	h := newHarness(t, 500000)
	pilot, mech := h.starter(t)

	id, err := h.pilots.Fire(pilot.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.prompts) != 1 || h.prompts[0].ID != id {
		t.Fatalf("prompts = %+v", h.prompts)
	}
	if indexPilot(h.store.Pilots(), pilot.ID) < 0 {
		t.Fatal("fired before confirmation")
	}

	// Declined: nothing happens.
	h.bus.Publish(game.EventConfirmResolve, game.ConfirmResolve{ID: id, Accepted: false})
	if indexPilot(h.store.Pilots(), pilot.ID) < 0 {
		t.Fatal("declined dismissal fired the pilot")
	}

	funds := h.store.Company().Funds
	id, _ = h.pilots.Fire(pilot.ID)
	h.bus.Publish(game.EventConfirmResolve, game.ConfirmResolve{ID: id, Accepted: true})

	if indexPilot(h.store.Pilots(), pilot.ID) >= 0 {
		t.Fatal("pilot still on the roster")
	}
	if h.store.Company().Funds != funds-pilot.Salary {
		t.Fatal("severance not charged")
	}
	for _, m := range h.store.Mechs() {
		if m.ID == mech.ID && m.PilotID != "" {
			t.Fatal("mech still references the fired pilot")
		}
	}
	if h.store.Statistics().PilotsFired != 1 {
		t.Fatal("dismissal not counted")
	}
	h.valid(t)
}

func TestDeployedForcesAreLocked(t *testing.T) {
	h := newHarness(t, 500000)
	pilot, mech := h.starter(t)
	h.store.AddToArray(state.PathActiveContracts, state.ActiveContract{
		Contract:   state.Contract{ID: "CTR-X"},
		Deployment: state.Deployment{PilotIDs: []string{pilot.ID}, MechIDs: []string{mech.ID}},
	})

	if _, err := h.pilots.Fire(pilot.ID); ReasonOf(err) != ReasonDeployed {
		t.Fatalf("fire err = %v", err)
	}
	if _, err := h.mechs.Sell(mech.ID); ReasonOf(err) != ReasonDeployed {
		t.Fatalf("sell err = %v", err)
	}
	if err := h.pilots.Assign(pilot.ID, ""); ReasonOf(err) != ReasonDeployed {
		t.Fatalf("assign err = %v", err)
	}
	if len(h.prompts) != 0 {
		t.Fatal("prompted for a locked action")
	}
}

func TestAssignKeepsReferencesConsistent(t *testing.T) {
	h := newHarness(t, 500000)
	pilots := h.store.Pilots()
	a, b := pilots[0], pilots[1]

	// Seat a in b's mech: b is unseated, a's old mech is empty.
	if err := h.pilots.Assign(a.ID, b.MechID); err != nil {
		t.Fatal(err)
	}
	h.valid(t)

	pilots, mechs := h.store.Pilots(), h.store.Mechs()
	if pilots[indexPilot(pilots, a.ID)].MechID != b.MechID {
		t.Fatal("pilot not seated")
	}
	if pilots[indexPilot(pilots, b.ID)].MechID != "" {
		t.Fatal("previous pilot still seated")
	}
	if mechs[indexMech(mechs, a.MechID)].PilotID != "" {
		t.Fatal("old mech still references the pilot")
	}
	if mechs[indexMech(mechs, b.MechID)].PilotID != a.ID {
		t.Fatal("mech does not reference the new pilot")
	}

	if err := h.pilots.Assign(a.ID, "MCH-missing"); ReasonOf(err) != ReasonNotFound {
		t.Fatalf("err = %v", err)
	}
}

func TestRepairCycle(t *testing.T) {
	h := newHarness(t, 500000)
	_, mech := h.starter(t)

	h.bus.Publish(game.EventMechDamaged, game.MechDamage{MechID: mech.ID, ArmorLoss: 40, StructureLoss: 10})
	damaged := h.store.Mechs()[indexMech(h.store.Mechs(), mech.ID)]
	if damaged.Armor != 60 || damaged.Structure != 90 {
		t.Fatalf("damage = %d/%d", damaged.Armor, damaged.Structure)
	}

	funds := h.store.Company().Funds
	repairing, err := h.mechs.Repair(mech.ID)
	if err != nil {
		t.Fatal(err)
	}
	cost := game.RepairCost(damaged, h.camp.Balance.RepairCostPerPoint)
	if h.store.Company().Funds != funds-cost {
		t.Fatal("repair not charged")
	}
	if repairing.Status != state.MechRepairing || repairing.RepairDays != 3 {
		t.Fatalf("repairing = %+v", repairing)
	}
	if _, err := h.mechs.Repair(mech.ID); ReasonOf(err) != ReasonBusy {
		t.Fatalf("double repair err = %v", err)
	}

	h.bus.Publish(game.EventAdvanceTime, game.AdvanceTime{Days: 2})
	if m := h.store.Mechs()[indexMech(h.store.Mechs(), mech.ID)]; m.Status != state.MechRepairing {
		t.Fatal("repair finished early")
	}
	h.bus.Publish(game.EventAdvanceTime, game.AdvanceTime{Days: 1})
	m := h.store.Mechs()[indexMech(h.store.Mechs(), mech.ID)]
	if m.Status != state.MechReady || m.Armor != 100 || m.Structure != 100 {
		t.Fatalf("repaired = %+v", m)
	}

	if _, err := h.mechs.Repair(mech.ID); ReasonOf(err) != ReasonNoDamage {
		t.Fatalf("err = %v", err)
	}
}

func TestDestroyedMechLeavesRosterCosts(t *testing.T) {
	h := newHarness(t, 500000)
	pilot, mech := h.starter(t)
	maint := h.store.Company().Expenses.Maintenance

	h.bus.Publish(game.EventMechDamaged, game.MechDamage{MechID: mech.ID, ArmorLoss: 100, StructureLoss: 100})

	m := h.store.Mechs()[indexMech(h.store.Mechs(), mech.ID)]
	if m.Status != state.MechDestroyed || m.PilotID != "" {
		t.Fatalf("mech = %+v", m)
	}
	if p := h.store.Pilots()[indexPilot(h.store.Pilots(), pilot.ID)]; p.MechID != "" {
		t.Fatal("pilot still seated in a wreck")
	}
	if got := h.store.Company().Expenses.Maintenance; got != maint-mech.MaintenanceCost {
		t.Fatalf("maintenance = %d", got)
	}
	if h.store.Statistics().MechsDestroyed != 1 {
		t.Fatal("loss not counted")
	}
	h.valid(t)
}

func TestPurchaseAndSell(t *testing.T) {
	h := newHarness(t, 5_000_000)
	listing := h.store.Market().MechListings[0]
	funds := h.store.Company().Funds

	bought, err := h.mechs.Purchase(listing.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bought.Status != state.MechReady || h.store.Company().Funds != funds-listing.Value {
		t.Fatalf("bought = %+v", bought)
	}

	funds = h.store.Company().Funds
	price := game.SaleValue(bought, h.camp.Balance.SaleFraction)
	id, err := h.mechs.Sell(bought.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.broker.Resolve(id, true); err != nil {
		t.Fatal(err)
	}
	if indexMech(h.store.Mechs(), bought.ID) >= 0 {
		t.Fatal("sold mech still on the roster")
	}
	if h.store.Company().Funds != funds+price {
		t.Fatalf("funds = %d, want %d", h.store.Company().Funds, funds+price)
	}
	stats := h.store.Statistics()
	if stats.MechsPurchased != 1 || stats.MechsSold != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestInjuryAndRecovery(t *testing.T) {
	h := newHarness(t, 500000)
	pilot, _ := h.starter(t)

	var healed []string
	event.On(h.bus, game.EventPilotHealed, func(ctx context.Context, e game.PilotEvent) (any, error) {
		healed = append(healed, e.Pilot.ID)
		return nil, nil
	})

	h.bus.Publish(game.EventPilotInjured, game.PilotInjury{PilotID: pilot.ID, Days: 10})
	if p := h.store.Pilots()[0]; p.Status != state.PilotInjured || p.InjuryDays != 10 {
		t.Fatalf("pilot = %+v", p)
	}
	h.bus.Publish(game.EventAdvanceTime, game.AdvanceTime{Days: 7})
	if len(healed) != 0 {
		t.Fatal("healed early")
	}
	h.bus.Publish(game.EventAdvanceTime, game.AdvanceTime{Days: 3})
	if len(healed) != 1 || h.store.Pilots()[0].Status != state.PilotActive {
		t.Fatalf("healed = %v", healed)
	}

	salaries := h.store.Company().Expenses.Salaries
	h.bus.Publish(game.EventPilotInjured, game.PilotInjury{PilotID: pilot.ID, Killed: true})
	p := h.store.Pilots()[0]
	if p.Status != state.PilotKIA || p.MechID != "" {
		t.Fatalf("pilot = %+v", p)
	}
	if got := h.store.Company().Expenses.Salaries; got != salaries-pilot.Salary {
		t.Fatalf("salaries = %d", got)
	}
	h.valid(t)
}
