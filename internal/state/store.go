/*
Package state
File: store.go
Description:
    The Game State Store: one mutable Document and a path-based API over it.

    Every non-silent mutation publishes "gameState:changed" (single write) or
    "gameState:updated" (batch) and marks the store dirty for the persistence
    collaborator. Subsystems read freely; each data path has a single writer
    by convention.

    Paths are dot-separated JSON field names ("company.reputation.ComStar").
    Struct fields must exist, so a typo is rejected instead of growing a new
    branch. Map entries are created on write. Reading a missing path yields
    (nil, false).
*/

package state

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
)

// Events published by the store.
const (
	EventChanged = "gameState:changed"
	EventUpdated = "gameState:updated"
	EventLoaded  = "gameState:loaded"
)

// Change describes one mutation.
type Change struct {
	Path     string `json:"path"`
	Op       string `json:"op"` // set, add, remove, update
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// Batch is the payload of EventUpdated.
type Batch struct {
	Changes []Change `json:"changes"`
}

// Loaded is the payload of EventLoaded.
type Loaded struct {
	Version string `json:"version"`
}

// Publisher is the slice of the bus the store needs.
type Publisher interface {
	Publish(name string, payload any, opts ...event.PublishOption) []event.Result
}

// Patch maps item-relative paths to new values for UpdateArrayItem.
type Patch map[string]any

type mutateConfig struct {
	silent bool
}

// MutateOption tunes one write.
type MutateOption func(*mutateConfig)

// Silent skips the change event and the dirty flag.
func Silent() MutateOption {
	return func(c *mutateConfig) { c.silent = true }
}

// Store owns the Document.
type Store struct {
	mu    sync.RWMutex
	doc   Document
	bus   Publisher
	dirty atomic.Bool
	log   *slog.Logger
}

// NewStore wraps doc. bus may be nil (no notifications).
func NewStore(doc Document, bus Publisher, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	if doc.Version == "" {
		doc.Version = CurrentVersion
	}
	return &Store{doc: doc, bus: bus, log: log.With(slog.String("system", "state"))}
}

// Get returns a deep copy of the value at path.
func (s *Store) Get(path string) (any, bool) {
	tokens, err := splitPath(path)
	if err != nil {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := lookup(reflect.ValueOf(&s.doc).Elem(), tokens)
	if !ok {
		return nil, false
	}
	return clone(v.Interface()), true
}

// Read is Get with a type assertion.
func Read[T any](s *Store, path string) (T, bool) {
	var zero T
	v, ok := s.Get(path)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Set writes value at path.
func (s *Store) Set(path string, value any, opts ...MutateOption) error {
	cfg := applyOpts(opts)
	tokens, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old, err := assignPath(reflect.ValueOf(&s.doc).Elem(), path, tokens, value)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.notify(cfg, Change{Path: path, Op: "set", OldValue: old, NewValue: clone(value)})
	return nil
}

// Update applies several writes atomically: either all land or none do.
// Paths are applied in sorted order.
func (s *Store) Update(values map[string]any, opts ...MutateOption) error {
	cfg := applyOpts(opts)
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	s.mu.Lock()
	work := cloneAs(s.doc)
	root := reflect.ValueOf(&work).Elem()
	changes := make([]Change, 0, len(paths))
	for _, p := range paths {
		tokens, err := splitPath(p)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		old, err := assignPath(root, p, tokens, values[p])
		if err != nil {
			s.mu.Unlock()
			return err
		}
		changes = append(changes, Change{Path: p, Op: "set", OldValue: old, NewValue: clone(values[p])})
	}
	s.doc = work
	s.mu.Unlock()

	if cfg.silent || len(changes) == 0 {
		return nil
	}
	s.dirty.Store(true)
	s.publish(EventUpdated, Batch{Changes: changes})
	return nil
}

// AddToArray appends item to the slice at path.
func (s *Store) AddToArray(path string, item any, opts ...MutateOption) error {
	cfg := applyOpts(opts)
	s.mu.Lock()
	slice, err := s.sliceAt(path)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	elem := reflect.New(slice.Type().Elem()).Elem()
	if err := assign(elem, path, item); err != nil {
		s.mu.Unlock()
		return err
	}
	slice.Set(reflect.Append(slice, elem))
	s.mu.Unlock()

	s.notify(cfg, Change{Path: path, Op: "add", NewValue: clone(elem.Interface())})
	return nil
}

// RemoveFromArray deletes the first element matching match and returns it,
// or nil when nothing matched.
func (s *Store) RemoveFromArray(path string, match func(item any) bool, opts ...MutateOption) (any, error) {
	cfg := applyOpts(opts)
	s.mu.Lock()
	slice, err := s.sliceAt(path)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	idx := -1
	for i := 0; i < slice.Len(); i++ {
		if match(slice.Index(i).Interface()) {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil, nil
	}

	removed := clone(slice.Index(idx).Interface())
	out := reflect.MakeSlice(slice.Type(), 0, slice.Len()-1)
	out = reflect.AppendSlice(out, slice.Slice(0, idx))
	out = reflect.AppendSlice(out, slice.Slice(idx+1, slice.Len()))
	slice.Set(out)
	s.mu.Unlock()

	s.notify(cfg, Change{Path: path, Op: "remove", OldValue: removed})
	return removed, nil
}

// UpdateArrayItem applies patch to the first element matching match and
// returns the updated element, or nil when nothing matched. A patch that fails
// on any field leaves the element untouched.
func (s *Store) UpdateArrayItem(path string, match func(item any) bool, patch Patch, opts ...MutateOption) (any, error) {
	cfg := applyOpts(opts)
	s.mu.Lock()
	slice, err := s.sliceAt(path)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	idx := -1
	for i := 0; i < slice.Len(); i++ {
		if match(slice.Index(i).Interface()) {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil, nil
	}

	before := clone(slice.Index(idx).Interface())
	work := deepCopy(slice.Index(idx))
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tokens, err := splitPath(k)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if _, err := assignPath(work, fmt.Sprintf("%s[%d].%s", path, idx, k), tokens, patch[k]); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	slice.Index(idx).Set(work)
	after := clone(work.Interface())
	s.mu.Unlock()

	s.notify(cfg, Change{Path: path, Op: "update", OldValue: before, NewValue: after})
	return after, nil
}

// ByKey matches Keyed elements by id.
func ByKey(id string) func(any) bool {
	return func(item any) bool {
		k, ok := item.(Keyed)
		return ok && k.Key() == id
	}
}

// Tick advances session timers. It is silent: play time is bookkeeping, not game state.
func (s *Store) Tick(dt time.Duration) {
	s.mu.Lock()
	s.doc.Session.PlayTimeMs += dt.Milliseconds()
	s.mu.Unlock()
}

// Dirty reports unsaved changes.
func (s *Store) Dirty() bool { return s.dirty.Load() }

// MarkClean clears the dirty flag after a successful save.
func (s *Store) MarkClean() { s.dirty.Store(false) }

// Snapshot returns a deep copy of the whole document.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAs(s.doc)
}

func (s *Store) Company() Company {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAs(s.doc.Company)
}

func (s *Store) Date() Date {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Time.Date()
}

func (s *Store) Time() Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Time
}

func (s *Store) Pilots() []Pilot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAs(s.doc.Pilots)
}

func (s *Store) Mechs() []Mech {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAs(s.doc.Mechs)
}

func (s *Store) Contracts() []Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAs(s.doc.Contracts)
}

func (s *Store) ActiveContracts() []ActiveContract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAs(s.doc.ActiveContracts)
}

func (s *Store) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Statistics
}

func (s *Store) Market() Market {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAs(s.doc.Market)
}

// sliceAt resolves a settable slice. Caller holds s.mu.
func (s *Store) sliceAt(path string) (reflect.Value, error) {
	tokens, err := splitPath(path)
	if err != nil {
		return reflect.Value{}, err
	}
	v, ok := lookup(reflect.ValueOf(&s.doc).Elem(), tokens)
	if !ok {
		return reflect.Value{}, &ValidationError{Field: path, Reason: "no such path"}
	}
	if v.Kind() != reflect.Slice || !v.CanSet() {
		return reflect.Value{}, &ValidationError{Field: path, Reason: fmt.Sprintf("not an array (%s)", v.Kind())}
	}
	return v, nil
}

func (s *Store) notify(cfg mutateConfig, c Change) {
	if cfg.silent {
		return
	}
	s.dirty.Store(true)
	s.publish(EventChanged, c)
}

func (s *Store) publish(name string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(name, payload)
}

func applyOpts(opts []MutateOption) mutateConfig {
	var cfg mutateConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
