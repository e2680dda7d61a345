package faction

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

type fixture struct {
	bus   *event.Bus
	store *state.Store
	sys   *System
	camp  *game.Campaign
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	camp, err := game.DefaultCampaign()
	if err != nil {
		t.Fatal(err)
	}
	bus := event.NewBus(log)
	game.DefineEvents(bus)
	store := state.NewStore(camp.NewDocument(game.NewIDSource(rand.New(rand.NewPCG(1, 1)))), bus, log)
	sys := NewSystem(camp, store, bus, log)
	if err := sys.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return &fixture{bus: bus, store: store, sys: sys, camp: camp}
}

func TestPropagationToAlliesAndEnemies(t *testing.T) {
	f := newFixture(t)
	m := f.sys.Model()

	var changes []game.ReputationChanged
	event.On(f.bus, game.EventReputationChanged, func(ctx context.Context, c game.ReputationChanged) (any, error) {
		changes = append(changes, c)
		return nil, nil
	})

	got, err := m.Modify("Federated Suns", 10, "x")
	if err != nil || got != 10 {
		t.Fatalf("Modify = %d, %v", got, err)
	}
	want := map[string]int{
		"Federated Suns":         10,
		"Lyran Commonwealth":     3,
		"Draconis Combine":       -2,
		"Capellan Confederation": -2,
		"Free Worlds League":     0,
		"ComStar":                0,
	}
	for id, rep := range want {
		if m.Reputation(id) != rep {
			t.Errorf("%s = %d, want %d", id, m.Reputation(id), rep)
		}
	}
	if len(changes) != 4 {
		t.Errorf("announced %d changes, want 4", len(changes))
	}
}

func TestNegativePropagation(t *testing.T) {
	f := newFixture(t)
	m := f.sys.Model()
	m.Modify("Draconis Combine", -15, "betrayal")

	// allies lose floor(15*0.2)=3, enemies gain floor(15*0.1)=1
	cases := map[string]int{
		"Draconis Combine":       -15,
		"Capellan Confederation": -3,
		"Free Worlds League":     -3,
		"Federated Suns":         1,
		"Lyran Commonwealth":     1,
	}
	for id, rep := range cases {
		if m.Reputation(id) != rep {
			t.Errorf("%s = %d, want %d", id, m.Reputation(id), rep)
		}
	}
}

func TestSmallDeltaSkipsZeroEffects(t *testing.T) {
	f := newFixture(t)
	if effects := f.sys.Model().Registry().Propagation("Federated Suns", 3); len(effects) != 0 {
		// floor(3*0.3)=0 and floor(3*0.2)=0
		t.Fatalf("effects = %+v", effects)
	}
}

func TestReputationStaysClamped(t *testing.T) {
	f := newFixture(t)
	m := f.sys.Model()
	rng := rand.New(rand.NewPCG(42, 42))
	ids := m.Registry().IDs()

	for i := 0; i < 500; i++ {
		id := ids[rng.IntN(len(ids))]
		delta := float64(rng.IntN(121) - 60)
		if _, err := m.Modify(id, delta, "fuzz"); err != nil {
			t.Fatal(err)
		}
		for _, other := range ids {
			if s := m.Score(other); s < MinReputation || s > MaxReputation {
				t.Fatalf("step %d: %s = %v", i, other, s)
			}
		}
	}
}

func TestDecayConvergesWithoutOvershoot(t *testing.T) {
	for _, start := range []float64{7, -3.5, 0.25, -100, 100} {
		score := start
		for i := 0; i < 1000 && score != 0; i++ {
			next := DecayToward(score)
			if next*start < 0 {
				t.Fatalf("decay from %v crossed zero at %v", start, next)
			}
			score = next
		}
		if score != 0 {
			t.Fatalf("decay from %v stuck at %v", start, score)
		}
	}

	f := newFixture(t)
	m := f.sys.Model()
	m.ModifyFlat("ComStar", 1, "x")
	for i := 0; i < 3; i++ {
		if err := m.Decay(); err != nil {
			t.Fatal(err)
		}
	}
	if m.Score("ComStar") != 0 {
		t.Fatalf("ComStar = %v", m.Score("ComStar"))
	}
}

func TestLevelsAndAvailability(t *testing.T) {
	cases := []struct {
		score float64
		level Level
	}{
		{-100, LevelHated}, {-81, LevelHated}, {-80, LevelEnemy}, {-60, LevelHostile},
		{-40, LevelUnfavorable}, {-20, LevelNeutral}, {0, LevelNeutral}, {19.5, LevelNeutral},
		{20, LevelFavorable}, {39, LevelFavorable}, {40, LevelFriendly}, {59, LevelFriendly},
		{60, LevelTrusted}, {79.5, LevelTrusted}, {80, LevelAllied}, {100, LevelAllied},
	}
	for _, c := range cases {
		if got := LevelOf(c.score); got != c.level {
			t.Errorf("LevelOf(%v) = %s, want %s", c.score, got, c.level)
		}
	}
	prev := 0.0
	for s := -100.0; s <= 100; s++ {
		a := AvailabilityOf(s)
		if a < 0.1 || a > 0.9 || a < prev {
			t.Fatalf("AvailabilityOf(%v) = %v (prev %v)", s, a, prev)
		}
		prev = a
	}
}

func TestRateCompany(t *testing.T) {
	cases := []struct {
		avg, success float64
		completed    int
		want         state.Rating
	}{
		{0, 0, 0, state.RatingGreen},
		{0, 0.6, 5, state.RatingRegular},
		{-1, 0.9, 100, state.RatingGreen},
		{30, 0.75, 20, state.RatingVeteran},
		{60, 0.9, 50, state.RatingElite},
		{60, 0.89, 50, state.RatingVeteran},
	}
	for _, c := range cases {
		if got := RateCompany(c.avg, c.success, c.completed); got != c.want {
			t.Errorf("RateCompany(%v, %v, %d) = %s, want %s", c.avg, c.success, c.completed, got, c.want)
		}
	}
}

func TestEvaluateRatingNeverDemotes(t *testing.T) {
	f := newFixture(t)
	f.store.Set(state.PathRating, state.RatingVeteran)

	f.bus.Publish(game.EventEvaluateRating, nil)
	if r := f.store.Company().Rating; r != state.RatingVeteran {
		t.Fatalf("rating = %s after review with no record", r)
	}

	f.store.Set(state.PathRating, state.RatingGreen)
	f.store.Update(map[string]any{
		state.StatPath("contractsCompleted"): 6,
		state.StatPath("contractsFailed"):    1,
	})
	var seen []game.RatingChanged
	event.On(f.bus, game.EventRatingChanged, func(ctx context.Context, c game.RatingChanged) (any, error) {
		seen = append(seen, c)
		return nil, nil
	})
	f.bus.Publish(game.EventEvaluateRating, nil)
	if r := f.store.Company().Rating; r != state.RatingRegular {
		t.Fatalf("rating = %s, want Regular", r)
	}
	if len(seen) != 1 || seen[0].OldRating != state.RatingGreen {
		t.Fatalf("rating events = %+v", seen)
	}
}

func TestFinancialCrisisPenalty(t *testing.T) {
	f := newFixture(t)
	m := f.sys.Model()
	m.ModifyFlat("Federated Suns", 10, "setup")

	f.bus.Publish(game.EventFinancialCrisis, game.FinancialCrisis{Deficit: 45000, Required: 95000, Available: 50000})

	for _, id := range m.Registry().IDs() {
		want := -4
		if id == "Federated Suns" {
			want = 6
		}
		if got := m.Reputation(id); got != want {
			t.Errorf("%s = %d, want %d", id, got, want)
		}
	}
}

func TestCrisisResetsRatingWhenStandingCollapses(t *testing.T) {
	f := newFixture(t)
	f.store.Set(state.PathRating, state.RatingVeteran)
	f.sys.Model().ModifyFlat("Mercenaries", -45, "setup")

	out, err := f.sys.ApplyCrisis(game.FinancialCrisis{Deficit: 1_000_000})
	if err != nil {
		t.Fatal(err)
	}
	if out.Penalty != 20 || !out.Reset {
		t.Fatalf("outcome = %+v", out)
	}
	if r := f.store.Company().Rating; r != state.RatingGreen {
		t.Fatalf("rating = %s", r)
	}
}

func TestShutdownUnsubscribes(t *testing.T) {
	f := newFixture(t)
	f.sys.Shutdown(context.Background())
	if n := f.bus.HandlerCount(game.EventAdjustReputation); n != 0 {
		t.Fatalf("%d handlers left", n)
	}
}
