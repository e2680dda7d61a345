package persistence

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func openTemp(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), DialectSQLite, filepath.Join(t.TempDir(), "saves.sqlite"), quiet)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newStore(t *testing.T) (*event.Bus, *state.Store) {
	t.Helper()
	bus := event.NewBus(quiet)
	game.DefineEvents(bus)
	doc := state.NewDocument("Gray Death Legion", 750000)
	doc.Company.Reputation["Federated Suns"] = 12
	return bus, state.NewStore(doc, bus, quiet)
}

func TestCodecDetectsCorruption(t *testing.T) {
	data := bytes.Repeat([]byte(`{"company":"Kell Hounds"}`), 50)
	blob, err := Compress(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(blob) >= len(data) {
		t.Fatalf("no compression: %d >= %d", len(blob), len(data))
	}
	got, err := Decompress(blob, Checksum(data))
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("round trip: %v", err)
	}
	if _, err := Decompress(blob, Checksum([]byte("other"))); !errors.Is(err, ErrChecksum) {
		t.Fatalf("err = %v", err)
	}
}

func TestSlotsLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)
	_, store := newStore(t)

	data, err := store.ExportState()
	if err != nil {
		t.Fatal(err)
	}
	info, err := repo.Save(ctx, "slot1", data)
	if err != nil {
		t.Fatal(err)
	}
	if info.Company != "Gray Death Legion" || info.Funds != 750000 || info.GameDate != state.StartDate {
		t.Fatalf("info = %+v", info)
	}

	doc, err := repo.LoadDocument(ctx, "slot1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Company.Reputation["Federated Suns"] != 12 {
		t.Fatalf("reputation = %v", doc.Company.Reputation)
	}

	// Overwrite keeps one row.
	store.Set(state.PathFunds, int64(1))
	data, _ = store.ExportState()
	if _, err := repo.Save(ctx, "slot1", data); err != nil {
		t.Fatal(err)
	}
	slots, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 || slots[0].Funds != 1 || slots[0].GameDate != state.StartDate {
		t.Fatalf("slots = %+v", slots)
	}

	if err := repo.Delete(ctx, "slot1"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Load(ctx, "slot1"); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("err = %v", err)
	}
	if err := repo.Delete(ctx, "slot1"); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestMigrationsApplyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves.sqlite")
	for i := 0; i < 2; i++ {
		repo, err := Open(context.Background(), DialectSQLite, path, quiet)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
}

func TestOpenFromEnvSelectsDialect(t *testing.T) {
	t.Setenv("DB_DIALECT", "postgres")
	t.Setenv("DB_POSTGRES_DSN", "")
	t.Setenv("DATABASE_URL", "")
	if _, err := OpenFromEnv(context.Background(), quiet); err == nil {
		t.Fatal("postgres without a DSN opened")
	}

	t.Setenv("DB_DIALECT", "oracle")
	if _, err := OpenFromEnv(context.Background(), quiet); err == nil {
		t.Fatal("unknown dialect opened")
	}

	t.Setenv("DB_DIALECT", "")
	t.Setenv("DB_SQLITE_PATH", filepath.Join(t.TempDir(), "env.sqlite"))
	repo, err := OpenFromEnv(context.Background(), quiet)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	if repo.Dialect() != DialectSQLite {
		t.Fatalf("dialect = %s", repo.Dialect())
	}
}

func waitSaved(t *testing.T, a *Autosaver) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for a.inflight != nil && time.Now().Before(deadline) {
		a.Update(0)
		time.Sleep(5 * time.Millisecond)
	}
	if a.inflight != nil {
		t.Fatal("autosave never finished")
	}
}

func TestAutosaveWritesDirtyState(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)
	bus, store := newStore(t)

	var saved []game.Saved
	event.On(bus, game.EventSaved, func(ctx context.Context, s game.Saved) (any, error) {
		saved = append(saved, s)
		return nil, nil
	})

	a := NewAutosaver(repo, store, bus, time.Second, quiet)
	a.Init(ctx)

	// Clean store: nothing to do.
	a.Update(2 * time.Second)
	if a.inflight != nil {
		t.Fatal("saved a clean store")
	}

	store.Set(state.PathFunds, int64(123))
	a.Update(500 * time.Millisecond)
	if a.inflight != nil {
		t.Fatal("saved before the interval")
	}
	a.Update(500 * time.Millisecond)
	if a.inflight == nil {
		t.Fatal("autosave not started")
	}
	if store.Dirty() {
		t.Fatal("store still dirty after export")
	}
	waitSaved(t, a)

	if len(saved) != 1 || saved[0].Slot != AutosaveSlot {
		t.Fatalf("saved = %+v", saved)
	}
	doc, err := repo.LoadDocument(ctx, AutosaveSlot)
	if err != nil || doc.Company.Funds != 123 {
		t.Fatalf("autosave = %d, %v", doc.Company.Funds, err)
	}
}

func TestShutdownFlushes(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)
	bus, store := newStore(t)
	a := NewAutosaver(repo, store, bus, time.Hour, quiet)
	a.Init(ctx)

	store.Set(state.PathFunds, int64(9))
	if err := a.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	doc, err := repo.LoadDocument(ctx, AutosaveSlot)
	if err != nil || doc.Company.Funds != 9 {
		t.Fatalf("flushed = %d, %v", doc.Company.Funds, err)
	}
}

func TestSaveAndLoadCommands(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)
	bus, store := newStore(t)
	a := NewAutosaver(repo, store, bus, -1, quiet)
	a.Init(ctx)

	res := bus.Publish(game.EventSave, game.SaveSlot{Slot: "before"})
	if err := event.FirstError(res); err != nil {
		t.Fatal(err)
	}
	store.Set(state.PathFunds, int64(5))

	res = bus.Publish(game.EventLoad, game.SaveSlot{Slot: "before"})
	if err := event.FirstError(res); err != nil {
		t.Fatal(err)
	}
	if funds := store.Company().Funds; funds != 750000 {
		t.Fatalf("funds after load = %d", funds)
	}

	res = bus.Publish(game.EventLoad, game.SaveSlot{Slot: "missing"})
	if err := event.FirstError(res); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("err = %v", err)
	}
	if funds := store.Company().Funds; funds != 750000 {
		t.Fatal("failed load changed the game")
	}
}

func TestLoaderStartsFreshWithoutSave(t *testing.T) {
	repo := openTemp(t)
	doc, err := Loader(repo, "nothing")(context.Background())
	if err != nil || doc != nil {
		t.Fatalf("doc = %v, err = %v", doc, err)
	}
}
