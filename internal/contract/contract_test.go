package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/faction"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newGenerator(t *testing.T, seed uint64) (*Generator, *game.Campaign) {
	t.Helper()
	camp, err := game.DefaultCampaign()
	if err != nil {
		t.Fatal(err)
	}
	ids := game.NewIDSource(rand.New(rand.NewPCG(seed, seed)))
	return NewGenerator(camp, faction.NewRegistry(camp), ids), camp
}

func neutralStanding(c *game.Campaign) map[string]float64 {
	rep := make(map[string]float64)
	for _, f := range c.Factions {
		rep[f.ID] = 0
	}
	return rep
}

func TestBatchInvariants(t *testing.T) {
	gen, camp := newGenerator(t, 3)
	now := state.Date{Day: 28, Month: 2, Year: 3028}

	for _, rating := range state.Ratings {
		for i := 0; i < 200; i++ {
			batch := gen.GenerateBatch(rating, neutralStanding(camp), now)
			if len(batch) < MinBatch || len(batch) > MaxBatch {
				t.Fatalf("%s: batch of %d", rating, len(batch))
			}
			for _, c := range batch {
				ct, ok := camp.ContractType(c.Type)
				if !ok {
					t.Fatalf("unknown type %q", c.Type)
				}
				band := ratingPay[rating]
				lo := float64(ct.BaseRate)*band.lo*NoiseLow - 1
				hi := float64(ct.BaseRate)*band.hi*NoiseHigh + 1
				if p := float64(c.Payment); p < lo || p > hi {
					t.Fatalf("%s %s: payment %d outside [%v, %v]", rating, c.Type, c.Payment, lo, hi)
				}
				if c.Duration < ct.MinDays || c.Duration > ct.MaxDays {
					t.Fatalf("%s: duration %d outside %d-%d", c.Type, c.Duration, ct.MinDays, ct.MaxDays)
				}
				if c.Requirements != RequirementsFor(c.Difficulty) {
					t.Fatalf("requirements %+v do not match %s", c.Requirements, c.Difficulty)
				}
				if c.Rewards.Salvage > SalvageCap(c.Difficulty) || c.Rewards.Salvage > ct.Salvage {
					t.Fatalf("salvage %v exceeds caps", c.Rewards.Salvage)
				}
				if window := now.DaysUntil(c.TimeLimit); window < MinOfferDays || window > MaxOfferDays {
					t.Fatalf("offer window %d days", window)
				}
				if c.Rewards.Reputation[c.Employer] != ct.Reputation {
					t.Fatalf("reputation reward %v", c.Rewards.Reputation)
				}
			}
		}
	}
}

func TestGreenNeverGetsHardWork(t *testing.T) {
	gen, camp := newGenerator(t, 11)
	rng := rand.New(rand.NewPCG(5, 5))
	for i := 0; i < 500; i++ {
		rep := neutralStanding(camp)
		for id := range rep {
			rep[id] = float64(rng.IntN(201) - 100)
		}
		for _, c := range gen.GenerateBatch(state.RatingGreen, rep, state.StartDate) {
			if c.Difficulty == state.DifficultyExtreme || c.Difficulty == state.DifficultyHard {
				t.Fatalf("Green company offered %s contract %+v", c.Difficulty, c)
			}
		}
	}
}

func TestTypePoolUnlocks(t *testing.T) {
	gen, _ := newGenerator(t, 1)
	keys := func(pool []game.ContractType) map[string]bool {
		out := make(map[string]bool)
		for _, ct := range pool {
			out[ct.Key] = true
		}
		return out
	}

	green := keys(gen.TypePool(state.RatingGreen, "Federated Suns", 0))
	if len(green) != 8 || green["planetary_assault"] || green["black_ops"] {
		t.Fatalf("green pool = %v", green)
	}
	friendly := keys(gen.TypePool(state.RatingGreen, "Federated Suns", 60))
	if !friendly["planetary_assault"] || !friendly["deep_strike"] || friendly["black_ops"] {
		t.Fatalf("affinity pool = %v", friendly)
	}
	trusted := keys(gen.TypePool(state.RatingGreen, "Federated Suns", 80))
	if !trusted["black_ops"] || !trusted["assassination"] {
		t.Fatalf("covert pool = %v", trusted)
	}
	elite := keys(gen.TypePool(state.RatingElite, "ComStar", 0))
	if len(elite) != 22 {
		t.Fatalf("elite pool has %d types", len(elite))
	}
}

func TestGenerationIsDeterministic(t *testing.T) {
	a, camp := newGenerator(t, 99)
	b, _ := newGenerator(t, 99)
	x := a.GenerateBatch(state.RatingVeteran, neutralStanding(camp), state.StartDate)
	y := b.GenerateBatch(state.RatingVeteran, neutralStanding(camp), state.StartDate)
	if !reflect.DeepEqual(x, y) {
		t.Fatal("same seed produced different batches")
	}
}

func TestRemoveExpiredIsIdempotent(t *testing.T) {
	gen, camp := newGenerator(t, 4)
	offers := gen.GenerateBatch(state.RatingRegular, neutralStanding(camp), state.StartDate)
	offers = append(offers, gen.GenerateBatch(state.RatingRegular, neutralStanding(camp), state.StartDate.AddDays(10))...)

	for _, days := range []int{0, 7, 14, 21, 30, 60} {
		now := state.StartDate.AddDays(days)
		once := RemoveExpired(offers, now)
		twice := RemoveExpired(once, now)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("day %d: not idempotent", days)
		}
		for _, c := range once {
			if now.After(c.TimeLimit) {
				t.Fatalf("day %d: kept expired offer %s", days, c.ID)
			}
		}
	}
}

// manager fixtures

type managerFixture struct {
	bus   *event.Bus
	store *state.Store
	mgr   *Manager
}

func newManager(t *testing.T) *managerFixture {
	t.Helper()
	camp, _ := game.DefaultCampaign()
	ids := game.NewIDSource(rand.New(rand.NewPCG(8, 8)))
	bus := event.NewBus(quiet)
	game.DefineEvents(bus)
	store := state.NewStore(camp.NewDocument(ids), bus, quiet)
	mgr := NewManager(camp, faction.NewRegistry(camp), ids, store, bus, quiet)
	if err := mgr.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return &managerFixture{bus: bus, store: store, mgr: mgr}
}

func offer(id string, req state.Requirements) state.Contract {
	return state.Contract{
		ID:           id,
		Name:         "Test " + id,
		Employer:     "Federated Suns",
		Type:         "garrison_duty",
		Payment:      100000,
		Difficulty:   state.DifficultyModerate,
		Duration:     10,
		Requirements: req,
		Rewards:      state.Rewards{Payment: 100000, Reputation: map[string]int{"Federated Suns": 10}},
		OfferedOn:    state.StartDate,
		TimeLimit:    state.StartDate.AddDays(14),
	}
}

func (f *managerFixture) snapshot(t *testing.T) []byte {
	t.Helper()
	doc := f.store.Snapshot()
	data, err := json.Marshal([]any{doc.Contracts, doc.ActiveContracts, doc.Company.Funds, doc.Mechs, doc.Pilots})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestAcceptRejectsInsufficientMechsAtomically(t *testing.T) {
	f := newManager(t)
	// Only the Locust is ready.
	mechs := f.store.Mechs()
	f.store.UpdateArrayItem(state.PathMechs, state.ByKey(mechs[0].ID), state.Patch{"status": state.MechRepairing})
	f.store.Set(state.PathContracts, []state.Contract{offer("CTR-1", state.Requirements{MinMechs: 2, MaxMechs: 4, WeightLimit: 200})})

	var rejected []game.AcceptRejected
	event.On(f.bus, game.EventAcceptRejected, func(ctx context.Context, r game.AcceptRejected) (any, error) {
		rejected = append(rejected, r)
		return nil, nil
	})

	before := f.snapshot(t)
	results := f.bus.Publish(game.EventContractAccept, game.AcceptContract{ContractID: "CTR-1"})
	res, ok := event.First[AcceptResult](results)
	if !ok || res.Accepted || res.Reason != ReasonInsufficientMechs {
		t.Fatalf("result = %+v", res)
	}
	if after := f.snapshot(t); !bytes.Equal(before, after) {
		t.Fatal("rejected acceptance mutated state")
	}
	if len(rejected) != 1 || rejected[0].Reason != ReasonInsufficientMechs {
		t.Fatalf("rejections = %+v", rejected)
	}
}

func TestAcceptReasons(t *testing.T) {
	cases := []struct {
		name   string
		req    state.Requirements
		setup  func(f *managerFixture)
		reason string
	}{
		{"weight", state.Requirements{MinMechs: 2, MaxMechs: 2, WeightLimit: 60}, nil, ReasonWeightExceeded},
		{"pilots", state.Requirements{MinMechs: 2, MaxMechs: 2, WeightLimit: 200}, func(f *managerFixture) {
			p := f.store.Pilots()[0]
			f.store.UpdateArrayItem(state.PathPilots, state.ByKey(p.ID), state.Patch{"status": state.PilotInjured})
		}, ReasonInsufficientPilots},
		{"unknown", state.Requirements{MinMechs: 1}, func(f *managerFixture) {
			f.store.Set(state.PathContracts, []state.Contract{})
		}, ReasonUnknownContract},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newManager(t)
			f.store.Set(state.PathContracts, []state.Contract{offer("CTR-1", c.req)})
			if c.setup != nil {
				c.setup(f)
			}
			_, err := f.mgr.Accept(game.AcceptContract{ContractID: "CTR-1"})
			if got := reasonOf(err); got != c.reason {
				t.Fatalf("reason = %s (%v), want %s", got, err, c.reason)
			}
			if !IsRejection(err) {
				t.Fatalf("%v should be a rejection", err)
			}
		})
	}
}

func TestAcceptMovesOfferAndGrantsAdvance(t *testing.T) {
	f := newManager(t)
	f.store.Set(state.PathContracts, []state.Contract{
		offer("CTR-1", state.Requirements{MinMechs: 2, MaxMechs: 4, WeightLimit: 200}),
		offer("CTR-2", state.Requirements{MinMechs: 1, MaxMechs: 2, WeightLimit: 100}),
	})

	var advances []game.ReputationDelta
	event.On(f.bus, game.EventAdjustReputation, func(ctx context.Context, d game.ReputationDelta) (any, error) {
		advances = append(advances, d)
		return nil, nil
	})

	active, err := f.mgr.Accept(game.AcceptContract{ContractID: "CTR-1"})
	if err != nil {
		t.Fatal(err)
	}
	if active.EndDate != state.StartDate.AddDays(10) || active.Deployment.Tonnage != 75 {
		t.Fatalf("active = %+v", active)
	}
	if len(active.Deployment.PilotIDs) != 2 || len(active.Deployment.MechIDs) != 2 {
		t.Fatalf("deployment = %+v", active.Deployment)
	}
	if got := f.store.Contracts(); len(got) != 1 || got[0].ID != "CTR-2" {
		t.Fatalf("offers left = %+v", got)
	}
	if got := f.store.ActiveContracts(); len(got) != 1 || got[0].Contract.ID != "CTR-1" {
		t.Fatal("contract not active")
	}
	if len(advances) != 1 || advances[0].Delta != 1 || advances[0].Faction != "Federated Suns" {
		t.Fatalf("advances = %+v", advances)
	}

	// Everything is deployed now, so the second offer cannot be staffed.
	if _, err := f.mgr.Accept(game.AcceptContract{ContractID: "CTR-2"}); reasonOf(err) != ReasonInsufficientMechs {
		t.Fatalf("second accept err = %v", err)
	}
}

func TestExplicitDeploymentSelection(t *testing.T) {
	f := newManager(t)
	f.store.Set(state.PathContracts, []state.Contract{offer("CTR-1", state.Requirements{MinMechs: 1, MaxMechs: 1, WeightLimit: 100})})
	mechs := f.store.Mechs()

	_, err := f.mgr.Accept(game.AcceptContract{ContractID: "CTR-1", MechIDs: []string{mechs[0].ID, mechs[1].ID}})
	var ire *InsufficientResourceError
	if !errors.As(err, &ire) || ire.Reason != ReasonTooManyMechs {
		t.Fatalf("err = %v", err)
	}

	active, err := f.mgr.Accept(game.AcceptContract{ContractID: "CTR-1", MechIDs: []string{mechs[1].ID}})
	if err != nil {
		t.Fatal(err)
	}
	if active.Deployment.PilotIDs[0] != mechs[1].PilotID {
		t.Fatal("assigned pilot should ride its own mech")
	}
}

func TestPilotsSeatedElsewhereAreNotAvailable(t *testing.T) {
	f := newManager(t)
	f.store.Set(state.PathContracts, []state.Contract{offer("CTR-1", state.Requirements{MinMechs: 1, MaxMechs: 1, WeightLimit: 100})})
	spare := state.Mech{ID: "MCH-SPARE", Name: "Spare Stinger", Model: "stg_3r", Tonnage: 20, Status: state.MechReady, Armor: 100, Structure: 100}
	if err := f.store.AddToArray(state.PathMechs, spare); err != nil {
		t.Fatal(err)
	}

	// Both starting pilots sit in their own mechs.
	before := f.snapshot(t)
	_, err := f.mgr.Accept(game.AcceptContract{ContractID: "CTR-1", MechIDs: []string{spare.ID}})
	if reasonOf(err) != ReasonInsufficientPilots {
		t.Fatalf("err = %v", err)
	}
	if after := f.snapshot(t); !bytes.Equal(before, after) {
		t.Fatal("rejected acceptance mutated state")
	}

	// Unseated, a pilot can take the spare.
	p := f.store.Pilots()[0]
	f.store.UpdateArrayItem(state.PathPilots, state.ByKey(p.ID), state.Patch{"mechAssignment": ""})
	f.store.UpdateArrayItem(state.PathMechs, state.ByKey(p.MechID), state.Patch{"pilot": ""})
	active, err := f.mgr.Accept(game.AcceptContract{ContractID: "CTR-1", MechIDs: []string{spare.ID}})
	if err != nil {
		t.Fatal(err)
	}
	if got := active.Deployment.PilotIDs; len(got) != 1 || got[0] != p.ID {
		t.Fatalf("crew = %v, want %s", got, p.ID)
	}
}

func TestSweepAndAutoRefresh(t *testing.T) {
	f := newManager(t)
	f.store.Set(state.PathContracts, []state.Contract{offer("CTR-1", state.Requirements{MinMechs: 1})})

	var expired []string
	event.On(f.bus, game.EventContractsExpired, func(ctx context.Context, e game.ContractsExpired) (any, error) {
		expired = append(expired, e.ContractIDs...)
		return nil, nil
	})

	// Last acceptable day: still open.
	f.store.Update(map[string]any{state.PathDay: 15})
	f.mgr.Update(0)
	if len(f.store.Contracts()) != 1 {
		t.Fatal("offer expired a day early")
	}

	f.store.Update(map[string]any{state.PathDay: 16})
	if err := f.mgr.Update(0); err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0] != "CTR-1" {
		t.Fatalf("expired = %v", expired)
	}
	if n := len(f.store.Contracts()); n < MinBatch {
		t.Fatalf("empty pool was not restocked (%d offers)", n)
	}
}

func TestRefreshEveryWeek(t *testing.T) {
	f := newManager(t)
	first := f.store.Contracts()

	var refreshed int
	f.bus.Subscribe(game.EventContractsRefreshed, func(ctx context.Context, _ event.Event) (any, error) {
		refreshed++
		return nil, nil
	})

	f.bus.Publish(game.EventTimeAdvanced, game.TimeAdvanced{PreviousTime: state.StartDate, NewTime: state.StartDate.AddDays(3), DaysAdvanced: 3})
	if refreshed != 0 {
		t.Fatal("refreshed before a week passed")
	}
	f.store.Update(map[string]any{state.PathDay: 8})
	f.bus.Publish(game.EventTimeAdvanced, game.TimeAdvanced{PreviousTime: state.StartDate, NewTime: state.StartDate.AddDays(7), DaysAdvanced: 7})
	if refreshed != 1 {
		t.Fatalf("refreshed %d times", refreshed)
	}
	if reflect.DeepEqual(first, f.store.Contracts()) {
		t.Fatal("pool unchanged after refresh")
	}
}

func TestCompleteAnnouncesOutcome(t *testing.T) {
	f := newManager(t)
	f.store.Set(state.PathContracts, []state.Contract{offer("CTR-1", state.Requirements{MinMechs: 1, MaxMechs: 2, WeightLimit: 100})})
	if _, err := f.mgr.Accept(game.AcceptContract{ContractID: "CTR-1"}); err != nil {
		t.Fatal(err)
	}

	var done []game.ContractCompleted
	event.On(f.bus, game.EventContractCompleted, func(ctx context.Context, c game.ContractCompleted) (any, error) {
		done = append(done, c)
		return nil, nil
	})
	f.bus.Publish(game.EventContractComplete, game.ContractOutcome{ContractID: "CTR-1", Success: true, Bonuses: 5000})

	if len(done) != 1 || done[0].Payment != 100000 || done[0].Bonuses != 5000 || len(done[0].Deployment.MechIDs) != 1 {
		t.Fatalf("completed = %+v", done)
	}
	if len(f.store.ActiveContracts()) != 0 {
		t.Fatal("active contract not retired")
	}
	if _, err := f.mgr.Complete(game.ContractOutcome{ContractID: "CTR-1"}); !errors.Is(err, ErrUnknownContract) {
		t.Fatalf("double completion err = %v", err)
	}
}
