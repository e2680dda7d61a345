package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/everforgeworks/merc-command/internal/contract"
	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSystem struct {
	name    string
	journal *[]string
	initErr error
	updates int
	renders []float64
	panicky bool
}

func (p *fakeSystem) Name() string { return p.name }

func (p *fakeSystem) Init(context.Context) error {
	*p.journal = append(*p.journal, "init:"+p.name)
	return p.initErr
}

func (p *fakeSystem) Update(time.Duration) error {
	if p.panicky {
		panic("boom")
	}
	p.updates++
	return nil
}

func (p *fakeSystem) Render(alpha float64) error {
	p.renders = append(p.renders, alpha)
	return nil
}

func (p *fakeSystem) Shutdown(context.Context) error {
	*p.journal = append(*p.journal, "shutdown:"+p.name)
	return nil
}

func register(e *Engine, priority int, p *fakeSystem) {
	e.Register(priority, func(*Kernel) (Subsystem, error) { return p, nil })
}

func TestInitializationOrderAndReverseShutdown(t *testing.T) {
	var journal []string
	e := New(Config{}, quiet)
	// Registered out of order on purpose.
	register(e, PriorityContract, &fakeSystem{name: "contract", journal: &journal})
	register(e, PriorityTutorial, &fakeSystem{name: "tutorial", journal: &journal})
	register(e, PriorityFaction, &fakeSystem{name: "faction", journal: &journal})
	register(e, PriorityCompany, &fakeSystem{name: "company", journal: &journal})

	ctx := context.Background()
	if err := e.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if e.State() != Running {
		t.Fatalf("state = %s", e.State())
	}
	e.Shutdown(ctx)

	want := []string{
		"init:tutorial", "init:company", "init:faction", "init:contract",
		"shutdown:contract", "shutdown:faction", "shutdown:company", "shutdown:tutorial",
	}
	if len(journal) != len(want) {
		t.Fatalf("journal = %v", journal)
	}
	for i := range want {
		if journal[i] != want[i] {
			t.Fatalf("journal = %v", journal)
		}
	}
	if e.State() != Stopped {
		t.Fatalf("state = %s", e.State())
	}
}

func TestInitFailureRollsBack(t *testing.T) {
	var journal []string
	boom := errors.New("boom")
	e := New(Config{}, quiet)
	register(e, 0, &fakeSystem{name: "a", journal: &journal})
	register(e, 1, &fakeSystem{name: "b", journal: &journal})
	register(e, 2, &fakeSystem{name: "c", journal: &journal, initErr: boom})
	register(e, 3, &fakeSystem{name: "d", journal: &journal})

	err := e.Initialize(context.Background())
	var sie *SubsystemInitError
	if !errors.As(err, &sie) || sie.System != "c" || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	want := []string{"init:a", "init:b", "init:c", "shutdown:b", "shutdown:a"}
	if len(journal) != len(want) {
		t.Fatalf("journal = %v", journal)
	}
	for i := range want {
		if journal[i] != want[i] {
			t.Fatalf("journal = %v", journal)
		}
	}
	if e.State() != Uninitialized || e.Bus() != nil {
		t.Fatalf("state = %s", e.State())
	}
	if err := e.Start(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("start after failed init: %v", err)
	}
}

func started(t *testing.T, cfg Config, systems ...*fakeSystem) *Engine {
	t.Helper()
	e := New(cfg, quiet)
	for i, p := range systems {
		register(e, i, p)
	}
	ctx := context.Background()
	if err := e.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Shutdown(ctx) })
	return e
}

func TestFixedTimestep(t *testing.T) {
	var journal []string
	p := &fakeSystem{name: "p", journal: &journal}
	clock := &ManualClock{T: time.Unix(0, 0)}
	e := started(t, Config{Timestep: 10 * time.Millisecond, Clock: clock}, p)

	e.Tick(clock.Now()) // First tick only syncs
	clock.Advance(35 * time.Millisecond)
	if n := e.Tick(clock.Now()); n != 3 {
		t.Fatalf("steps = %d", n)
	}
	if p.updates != 3 || len(p.renders) != 1 {
		t.Fatalf("updates = %d renders = %d", p.updates, len(p.renders))
	}
	if a := e.Alpha(); a < 0.49 || a > 0.51 {
		t.Fatalf("alpha = %v", a)
	}

	// The leftover carries into the next frame.
	clock.Advance(5 * time.Millisecond)
	if n := e.Tick(clock.Now()); n != 1 {
		t.Fatalf("steps = %d", n)
	}

	// A stall is clamped to MaxFrame.
	clock.Advance(10 * time.Second)
	if n := e.Tick(clock.Now()); n != int(DefaultMaxFrame/(10*time.Millisecond)) {
		t.Fatalf("steps after stall = %d", n)
	}

	if play := e.Store().Snapshot().Session.PlayTimeMs; play != int64(e.Steps())*10 {
		t.Fatalf("play time = %d after %d steps", play, e.Steps())
	}
}

func TestPauseHaltsUpdates(t *testing.T) {
	var journal []string
	p := &fakeSystem{name: "p", journal: &journal}
	clock := &ManualClock{T: time.Unix(0, 0)}
	e := started(t, Config{Timestep: 10 * time.Millisecond, Clock: clock}, p)
	e.Tick(clock.Now())

	res, err := e.Submit(context.Background(), game.EventPause, nil)
	if err != nil || event.FirstError(res) != nil {
		t.Fatalf("pause: %v %v", err, res)
	}
	if e.State() != Paused {
		t.Fatalf("state = %s", e.State())
	}
	clock.Advance(100 * time.Millisecond)
	e.Tick(clock.Now())
	if p.updates != 0 {
		t.Fatal("updated while paused")
	}

	// Time spent paused is not replayed.
	clock.Advance(100 * time.Millisecond)
	e.Submit(context.Background(), game.EventResume, nil)
	e.Tick(clock.Now())
	clock.Advance(20 * time.Millisecond)
	e.Tick(clock.Now())
	if p.updates != 2 {
		t.Fatalf("updates = %d", p.updates)
	}
}

func TestUpdateFailureIsContained(t *testing.T) {
	var journal []string
	bad := &fakeSystem{name: "bad", journal: &journal, panicky: true}
	good := &fakeSystem{name: "good", journal: &journal}
	clock := &ManualClock{T: time.Unix(0, 0)}
	e := started(t, Config{Timestep: 10 * time.Millisecond, Clock: clock}, bad, good)

	var reports []game.SystemError
	event.On(e.Bus(), game.EventSystemError, func(ctx context.Context, se game.SystemError) (any, error) {
		reports = append(reports, se)
		return nil, nil
	})

	e.Tick(clock.Now())
	clock.Advance(20 * time.Millisecond)
	e.Tick(clock.Now())

	if good.updates != 2 {
		t.Fatalf("good updates = %d", good.updates)
	}
	if len(reports) != 2 || reports[0].Context != "bad.update" {
		t.Fatalf("reports = %+v", reports)
	}
	if e.State() != Running {
		t.Fatal("failure stopped the loop")
	}
}

func TestHandlerErrorsBecomeSystemErrors(t *testing.T) {
	e := started(t, Config{})
	var reports []game.SystemError
	event.On(e.Bus(), game.EventSystemError, func(ctx context.Context, se game.SystemError) (any, error) {
		reports = append(reports, se)
		return nil, nil
	})
	e.Bus().Subscribe(game.EventContractRefresh, func(ctx context.Context, _ event.Event) (any, error) {
		return nil, errors.New("board offline")
	}, event.Context("ui"))

	e.Submit(context.Background(), game.EventContractRefresh, nil)
	if len(reports) != 1 || reports[0].Context != "ui:contract:refresh" || reports[0].Error != "board offline" {
		t.Fatalf("reports = %+v", reports)
	}
}

func TestSubmitOnlyAcceptsInboundCommands(t *testing.T) {
	e := started(t, Config{})
	ctx := context.Background()
	if _, err := e.Submit(ctx, game.EventExpense, game.Money{Amount: 1}); !errors.Is(err, event.ErrNotInbound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := e.Submit(ctx, "nope", nil); !errors.Is(err, event.ErrUnknownEvent) {
		t.Fatalf("err = %v", err)
	}
	if _, err := e.SubmitJSON(ctx, game.EventScreenChanged, []byte(`{"from":"hq","to":"contracts"}`)); err != nil {
		t.Fatal(err)
	}
	if s := e.Store().Snapshot().Session.Screen; s != "contracts" {
		t.Fatalf("screen = %q", s)
	}
}

func TestSubmitRunsOnLoopGoroutine(t *testing.T) {
	e := started(t, Config{Timestep: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !e.live.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if _, err := e.Submit(context.Background(), game.EventPause, nil); err != nil {
		t.Fatal(err)
	}
	if e.State() != Paused {
		t.Fatalf("state = %s", e.State())
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

// newCampaignEngine runs the full subsystem set on an empty company.
func newCampaignEngine(t *testing.T, empty bool) (*Engine, *Game) {
	t.Helper()
	camp, err := game.DefaultCampaign()
	if err != nil {
		t.Fatal(err)
	}
	camp.Balance.RandomEventChance = 0
	if empty {
		camp.Roster = game.Roster{}
	}
	e := New(Config{}, quiet)
	g := e.UseCampaign(camp, 42)
	ctx := context.Background()
	if err := e.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Shutdown(ctx) })
	return e, g
}

func TestFreshCompanyFirstMonth(t *testing.T) {
	e, g := newCampaignEngine(t, true)
	want := []string{"prompt", "tutorial", "company", "faction", "pilot", "mech", "contract", "combat"}
	got := e.Systems()
	if len(got) != len(want) {
		t.Fatalf("systems = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("systems = %v", got)
		}
	}

	fixed := g.Campaign.Balance.Insurance + g.Campaign.Balance.Overhead
	var paid []game.ExpensesPaid
	event.On(e.Bus(), game.EventExpensesPaid, func(ctx context.Context, p game.ExpensesPaid) (any, error) {
		paid = append(paid, p)
		return nil, nil
	})

	for i := 0; i < 3; i++ {
		if _, err := e.Submit(context.Background(), game.EventAdvanceTime, game.AdvanceTime{Days: 10}); err != nil {
			t.Fatal(err)
		}
	}
	if len(paid) != 1 {
		t.Fatalf("paid %d times", len(paid))
	}
	if b := paid[0].Breakdown; b.Salaries != 0 || b.Maintenance != 0 || paid[0].Total != fixed {
		t.Fatalf("breakdown = %+v", paid[0])
	}
	if funds := e.Store().Company().Funds; funds != g.Campaign.Balance.StartingFunds-fixed {
		t.Fatalf("funds = %d", funds)
	}
}

func TestContractRunsToCompletion(t *testing.T) {
	e, _ := newCampaignEngine(t, false)
	store := e.Store()
	today := store.Date()

	offer := state.Contract{
		ID:           "CTR-TEST",
		Name:         "Garrison Duty",
		Employer:     "Federated Suns",
		Type:         "garrison",
		Payment:      100000,
		Difficulty:   state.DifficultyEasy,
		Duration:     10,
		Requirements: state.Requirements{MinMechs: 1, MaxMechs: 4, WeightLimit: 200},
		Rewards:      state.Rewards{Payment: 100000, Salvage: 0.2, Reputation: map[string]int{"Federated Suns": 10}},
		OfferedOn:    today,
		TimeLimit:    today.AddDays(14),
	}
	if err := store.AddToArray(state.PathContracts, offer); err != nil {
		t.Fatal(err)
	}

	res, err := e.Submit(context.Background(), game.EventContractAccept, game.AcceptContract{ContractID: offer.ID})
	if err != nil {
		t.Fatal(err)
	}
	accepted, _ := event.First[contract.AcceptResult](res)
	if !accepted.Accepted {
		t.Fatalf("accept = %+v", accepted)
	}
	if rep := store.Company().Reputation["Federated Suns"]; rep != 1 {
		t.Fatalf("advance = %v", rep)
	}

	e.Submit(context.Background(), game.EventAdvanceTime, game.AdvanceTime{Days: 10})

	if n := len(store.ActiveContracts()); n != 0 {
		t.Fatalf("active = %d", n)
	}
	stats := store.Statistics()
	if stats.ContractsAccepted != 1 || stats.ContractsCompleted+stats.ContractsFailed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	doc := store.Snapshot()
	if err := state.Validate(&doc); err != nil {
		t.Fatalf("document invalid after resolution: %v", err)
	}
}
