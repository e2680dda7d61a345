/*
Package persistence
File: autosave.go
Description:
    The persistence subsystem. It answers game:save and game:load, and
    autosaves a dirty store to a fixed slot.

    Autosave flow:
    1. Update accumulates simulated time. Once Interval has passed and the
       store is dirty, the document is exported on the loop goroutine and
       the store is marked clean.
    2. The database write runs on its own goroutine; the loop keeps going.
    3. A later Update collects the result and announces game:saved or
       game:saveFailed. A failed write leaves the next attempt armed.
    4. Shutdown waits for any write in flight and flushes a dirty store.
*/

package persistence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

const label = "persistence"

// Defaults for the autosaver.
const (
	AutosaveSlot     = "autosave"
	DefaultInterval  = 30 * time.Second
	DefaultWriteTime = 10 * time.Second
)

// Saver is the slice of Repository the subsystem needs.
type Saver interface {
	Save(ctx context.Context, slot string, data []byte) (SlotInfo, error)
	Load(ctx context.Context, slot string) ([]byte, error)
}

type writeResult struct {
	info SlotInfo
	err  error
}

// Autosaver is the persistence subsystem.
type Autosaver struct {
	repo     Saver
	store    *state.Store
	bus      *event.Bus
	slot     string
	interval time.Duration
	log      *slog.Logger

	elapsed  time.Duration
	inflight chan writeResult // nil when idle
	retry    bool
}

// NewAutosaver builds the subsystem. An interval of zero selects
// DefaultInterval; a negative interval disables autosave.
func NewAutosaver(repo Saver, store *state.Store, bus *event.Bus, interval time.Duration, log *slog.Logger) *Autosaver {
	if interval == 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Autosaver{
		repo:     repo,
		store:    store,
		bus:      bus,
		slot:     AutosaveSlot,
		interval: interval,
		log:      log.With(slog.String("system", label)),
	}
}

func (a *Autosaver) Name() string { return label }

func (a *Autosaver) Init(ctx context.Context) error {
	opts := event.Context(label)
	event.On(a.bus, game.EventSave, func(ctx context.Context, s game.SaveSlot) (any, error) {
		return a.SaveNow(ctx, slotOr(s.Slot))
	}, opts)
	event.On(a.bus, game.EventLoad, func(ctx context.Context, s game.SaveSlot) (any, error) {
		return nil, a.LoadNow(ctx, slotOr(s.Slot))
	}, opts)
	return nil
}

func slotOr(slot string) string {
	if slot == "" {
		return AutosaveSlot
	}
	return slot
}

// Update drives the autosave cycle.
func (a *Autosaver) Update(dt time.Duration) error {
	// 1. Collect a finished write
	if a.inflight != nil {
		select {
		case res := <-a.inflight:
			a.inflight = nil
			a.announce(a.slot, res)
		default:
			return nil
		}
	}

	// 2. Start the next one when due
	if a.interval < 0 {
		return nil
	}
	a.elapsed += dt
	if a.elapsed < a.interval {
		return nil
	}
	a.elapsed = 0
	if !a.store.Dirty() && !a.retry {
		return nil
	}

	data, err := a.store.ExportState()
	if err != nil {
		return err
	}
	a.store.MarkClean()
	a.retry = false

	done := make(chan writeResult, 1)
	a.inflight = done
	go func(slot string) {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultWriteTime)
		defer cancel()
		info, err := a.repo.Save(ctx, slot, data)
		done <- writeResult{info: info, err: err}
	}(a.slot)
	return nil
}

// Shutdown waits for a pending write and flushes unsaved changes.
func (a *Autosaver) Shutdown(ctx context.Context) error {
	defer a.bus.UnsubscribeContext(label)

	if a.inflight != nil {
		select {
		case res := <-a.inflight:
			a.announce(a.slot, res)
		case <-ctx.Done():
			return ctx.Err()
		}
		a.inflight = nil
	}
	if a.interval < 0 || (!a.store.Dirty() && !a.retry) {
		return nil
	}
	_, err := a.SaveNow(ctx, a.slot)
	return err
}

// SaveNow writes the current document to slot synchronously.
func (a *Autosaver) SaveNow(ctx context.Context, slot string) (SlotInfo, error) {
	data, err := a.store.ExportState()
	if err != nil {
		return SlotInfo{}, err
	}
	info, err := a.repo.Save(ctx, slot, data)
	if err == nil && slot == a.slot {
		a.store.MarkClean()
		a.retry = false
	}
	a.announce(slot, writeResult{info: info, err: err})
	return info, err
}

// LoadNow replaces the running document with slot. A rejected save leaves
// the running game untouched.
func (a *Autosaver) LoadNow(ctx context.Context, slot string) error {
	data, err := a.repo.Load(ctx, slot)
	if err != nil {
		return err
	}
	if err := a.store.LoadState(data); err != nil {
		return err
	}
	a.log.Info("Game loaded", "slot", slot)
	return nil
}

func (a *Autosaver) announce(slot string, res writeResult) {
	if res.err != nil {
		a.retry = true
		a.log.Warn("Save failed", "slot", slot, "error", res.err)
		a.bus.Publish(game.EventSaveFailed, game.SaveFailed{Slot: slot, Error: res.err.Error()})
		return
	}
	a.log.Info("Game saved", "slot", slot, "bytes", res.info.Size, "stored", res.info.Stored)
	a.bus.Publish(game.EventSaved, game.Saved{Slot: slot, Bytes: res.info.Size, Checksum: res.info.Checksum})
}

// Loader returns an engine document loader for slot: the saved game when
// there is one, nil to start fresh.
func Loader(repo *Repository, slot string) func(ctx context.Context) (*state.Document, error) {
	return func(ctx context.Context) (*state.Document, error) {
		doc, err := repo.LoadDocument(ctx, slot)
		if err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &doc, nil
	}
}
