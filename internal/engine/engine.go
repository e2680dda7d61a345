/*
Package engine
File: engine.go
Description:
    The orchestrator. It owns the lifecycle of every subsystem and the
    fixed-timestep loop that drives them.

    Lifecycle:
        Uninitialized -> Initializing -> Running <-> Paused -> Stopped

    - Initialize builds the bus and the store (loaded or fresh), then builds
      and initializes subsystems in priority order. The first failure tears
      down what was built, in reverse, and returns a SubsystemInitError.
    - Start runs optional Start hooks and opens the loop.
    - Each Tick accumulates real time and runs Update once per whole
      timestep, then renders once with the leftover fraction.
    - Failures inside Update, Render and Start are logged and published as
      engine:systemError; the loop and the other subsystems keep going.
    - Shutdown tears subsystems down in reverse order, logging failures.

    All simulation work (ticks and inbound commands) is serialized: the loop
    goroutine owns it while Run is active, otherwise the loop mutex does.
*/

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

const label = "engine"

// State is the engine lifecycle state.
type State int32

const (
	Uninitialized State = iota
	Initializing        // Also the state after a successful Initialize, until Start
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const (
	// DefaultTimestep is one update at 60Hz.
	DefaultTimestep = time.Second / 60
	// DefaultMaxFrame bounds the real time a single tick may feed the
	// accumulator, so a stalled process does not replay minutes of updates.
	DefaultMaxFrame = 250 * time.Millisecond
)

// Config tunes the engine. Zero values select defaults.
type Config struct {
	Timestep time.Duration
	MaxFrame time.Duration
	Clock    Clock

	// Load returns a saved document, or nil to start fresh.
	Load func(ctx context.Context) (*state.Document, error)
	// Fresh builds the opening document for a new game.
	Fresh func() state.Document
}

type command struct {
	name    string
	payload any
	reply   chan []event.Result
}

// Engine is the orchestrator.
type Engine struct {
	cfg  Config
	log  *slog.Logger
	regs []registration

	loop    sync.Mutex // Serializes simulation work
	state   atomic.Int32
	kernel  atomic.Pointer[Kernel]
	systems []Subsystem

	acc    time.Duration
	last   time.Time
	resync atomic.Bool
	alpha  float64
	steps  uint64

	cmds chan command
	quit chan struct{} // Closed when Run returns
	live atomic.Bool   // Run is servicing cmds
}

// New creates an engine. Register subsystems before Initialize.
func New(cfg Config, log *slog.Logger) *Engine {
	if cfg.Timestep <= 0 {
		cfg.Timestep = DefaultTimestep
	}
	if cfg.MaxFrame <= 0 {
		cfg.MaxFrame = DefaultMaxFrame
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:  cfg,
		log:  log,
		cmds: make(chan command),
	}
}

// Register adds a subsystem builder at priority. Equal priorities keep
// registration order.
func (e *Engine) Register(priority int, build Builder) {
	e.regs = append(e.regs, registration{priority: priority, seq: len(e.regs), build: build})
}

// State returns the lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Bus returns the event bus, or nil before Initialize.
func (e *Engine) Bus() *event.Bus {
	if k := e.kernel.Load(); k != nil {
		return k.Bus
	}
	return nil
}

// Store returns the state store, or nil before Initialize.
func (e *Engine) Store() *state.Store {
	if k := e.kernel.Load(); k != nil {
		return k.Store
	}
	return nil
}

// Systems lists initialized subsystems in update order.
func (e *Engine) Systems() []string {
	names := make([]string, len(e.systems))
	for i, s := range e.systems {
		names[i] = s.Name()
	}
	return names
}

// Alpha is the interpolation factor of the last render.
func (e *Engine) Alpha() float64 { return e.alpha }

// Steps is the number of fixed updates run so far.
func (e *Engine) Steps() uint64 { return e.steps }

func (e *Engine) setState(to State) {
	from := State(e.state.Swap(int32(to)))
	if from == to {
		return
	}
	e.log.Info("Engine state changed", "from", from, "to", to)
	if k := e.kernel.Load(); k != nil {
		k.Bus.Publish(game.EventEngineState, game.EngineState{From: from.String(), To: to.String()})
	}
}

// Initialize builds the core and every registered subsystem.
func (e *Engine) Initialize(ctx context.Context) error {
	e.loop.Lock()
	defer e.loop.Unlock()

	if !e.state.CompareAndSwap(int32(Uninitialized), int32(Initializing)) {
		return fmt.Errorf("%w: initialize from %s", ErrInvalidState, e.State())
	}

	// 1. Event bus and vocabulary
	bus := event.NewBus(e.log)
	game.DefineEvents(bus)

	// 2. State store, loaded or fresh
	doc, err := e.document(ctx)
	if err != nil {
		e.state.Store(int32(Uninitialized))
		return &SubsystemInitError{System: "state", Err: err}
	}
	k := &Kernel{Bus: bus, Store: state.NewStore(doc, bus, e.log), Log: e.log}
	e.kernel.Store(k)
	e.route(k)

	// 3. Subsystems by priority
	regs := append([]registration(nil), e.regs...)
	sort.SliceStable(regs, func(i, j int) bool { return regs[i].priority < regs[j].priority })
	for _, r := range regs {
		sys, err := r.build(k)
		if err != nil {
			return e.abort(ctx, &SubsystemInitError{System: fmt.Sprintf("builder %d", r.seq), Err: err})
		}
		if err := contain(func() error { return sys.Init(ctx) }); err != nil {
			return e.abort(ctx, &SubsystemInitError{System: sys.Name(), Err: err})
		}
		e.systems = append(e.systems, sys)
		e.log.Debug("Subsystem initialized", "system", sys.Name(), "priority", r.priority)
	}

	e.log.Info("Engine initialized", "systems", len(e.systems))
	return nil
}

func (e *Engine) document(ctx context.Context) (state.Document, error) {
	if e.cfg.Load != nil {
		doc, err := e.cfg.Load(ctx)
		if err != nil {
			return state.Document{}, err
		}
		if doc != nil {
			return *doc, nil
		}
	}
	if e.cfg.Fresh != nil {
		return e.cfg.Fresh(), nil
	}
	return state.NewDocument("Unnamed Company", 0), nil
}

// abort unwinds a failed Initialize.
func (e *Engine) abort(ctx context.Context, cause *SubsystemInitError) error {
	e.log.Error("Subsystem initialization failed", "system", cause.System, "error", cause.Err)
	e.teardown(ctx)
	e.kernel.Store(nil)
	e.state.Store(int32(Uninitialized))
	return cause
}

// teardown shuts subsystems down in reverse order.
func (e *Engine) teardown(ctx context.Context) {
	for i := len(e.systems) - 1; i >= 0; i-- {
		sys := e.systems[i]
		if err := contain(func() error { return sys.Shutdown(ctx) }); err != nil {
			e.log.Warn("Subsystem shutdown failed", "system", sys.Name(), "error", err)
		}
	}
	e.systems = nil
	if k := e.kernel.Load(); k != nil {
		k.Bus.UnsubscribeContext(label)
	}
}

// Start runs Start hooks and opens the loop.
func (e *Engine) Start(ctx context.Context) error {
	e.loop.Lock()
	defer e.loop.Unlock()

	if e.State() != Initializing || e.kernel.Load() == nil {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, e.State())
	}
	for _, sys := range e.systems {
		if st, ok := sys.(Starter); ok {
			if err := contain(func() error { return st.Start(ctx) }); err != nil {
				e.report(sys.Name()+".start", err)
			}
		}
	}
	e.acc = 0
	e.resync.Store(true)
	e.setState(Running)
	return nil
}

// Pause halts accumulation and updates. The process stays resident.
func (e *Engine) Pause() {
	if e.state.CompareAndSwap(int32(Running), int32(Paused)) {
		e.announce(Running, Paused)
	}
}

// Resume restarts the loop without replaying the paused interval.
func (e *Engine) Resume() {
	if e.state.CompareAndSwap(int32(Paused), int32(Running)) {
		e.resync.Store(true)
		e.announce(Paused, Running)
	}
}

func (e *Engine) announce(from, to State) {
	e.log.Info("Engine state changed", "from", from, "to", to)
	e.Bus().Publish(game.EventEngineState, game.EngineState{From: from.String(), To: to.String()})
}

// Tick feeds real time into the loop and returns the number of fixed
// updates it ran.
func (e *Engine) Tick(now time.Time) int {
	e.loop.Lock()
	defer e.loop.Unlock()
	return e.tick(now)
}

func (e *Engine) tick(now time.Time) int {
	st := e.State()
	if st != Running && st != Paused {
		return 0
	}

	// 1. Frame time
	if e.resync.Swap(false) || e.last.IsZero() {
		e.last = now
		return 0
	}
	frame := now.Sub(e.last)
	e.last = now
	if st == Paused {
		return 0
	}
	frame = max(0, min(frame, e.cfg.MaxFrame))

	// 2. Fixed updates
	e.acc += frame
	steps := 0
	for e.acc >= e.cfg.Timestep && e.State() == Running {
		e.step(e.cfg.Timestep)
		e.acc -= e.cfg.Timestep
		steps++
	}

	// 3. One render with the leftover fraction
	e.alpha = float64(e.acc) / float64(e.cfg.Timestep)
	e.render(e.alpha)
	return steps
}

// step runs one fixed update across every subsystem.
func (e *Engine) step(dt time.Duration) {
	e.Store().Tick(dt)
	for _, sys := range e.systems {
		if err := contain(func() error { return sys.Update(dt) }); err != nil {
			e.report(sys.Name()+".update", err)
		}
	}
	e.steps++
}

func (e *Engine) render(alpha float64) {
	for _, sys := range e.systems {
		r, ok := sys.(Renderer)
		if !ok {
			continue
		}
		if err := contain(func() error { return r.Render(alpha) }); err != nil {
			e.report(sys.Name()+".render", err)
		}
	}
}

// report logs a contained failure and publishes it for the UI.
func (e *Engine) report(where string, err error) {
	e.log.Error("Subsystem failure", "context", where, "error", err)
	e.Bus().Publish(game.EventSystemError, game.SystemError{Error: err.Error(), Context: where})
}

// Run drives the loop on the calling goroutine until ctx ends. Inbound
// commands from Submit are executed between ticks.
func (e *Engine) Run(ctx context.Context) error {
	if st := e.State(); st != Running && st != Paused {
		return fmt.Errorf("%w: run from %s", ErrInvalidState, st)
	}

	ticker := time.NewTicker(e.cfg.Timestep)
	defer ticker.Stop()

	e.loop.Lock()
	e.quit = make(chan struct{})
	quit := e.quit
	e.loop.Unlock()
	e.live.Store(true)
	defer func() {
		e.live.Store(false)
		close(quit)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-e.cmds:
			e.loop.Lock()
			res := e.Bus().Publish(c.name, c.payload)
			e.loop.Unlock()
			c.reply <- res
		case <-ticker.C:
			e.Tick(e.cfg.Clock.Now())
		}
	}
}

// Submit executes an inbound command and returns the handlers' results.
// While Run is active the command runs on the loop goroutine.
func (e *Engine) Submit(ctx context.Context, name string, payload any) ([]event.Result, error) {
	k := e.kernel.Load()
	if k == nil || e.State() == Stopped {
		return nil, fmt.Errorf("%w: submit while %s", ErrInvalidState, e.State())
	}
	def, ok := k.Bus.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", event.ErrUnknownEvent, name)
	}
	if def.Flags&event.Inbound == 0 {
		return nil, fmt.Errorf("%w: %q", event.ErrNotInbound, name)
	}

	if !e.live.Load() {
		e.loop.Lock()
		defer e.loop.Unlock()
		return k.Bus.Publish(name, payload), nil
	}

	e.loop.Lock()
	quit := e.quit
	e.loop.Unlock()

	c := command{name: name, payload: payload, reply: make(chan []event.Result, 1)}
	select {
	case e.cmds <- c:
	case <-quit:
		return nil, fmt.Errorf("%w: loop stopped", ErrInvalidState)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-c.reply:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubmitJSON decodes an inbound command from the wire and submits it.
func (e *Engine) SubmitJSON(ctx context.Context, name string, raw []byte) ([]event.Result, error) {
	k := e.kernel.Load()
	if k == nil {
		return nil, fmt.Errorf("%w: submit while %s", ErrInvalidState, e.State())
	}
	payload, err := k.Bus.Decode(name, raw)
	if err != nil {
		return nil, err
	}
	return e.Submit(ctx, name, payload)
}

// Shutdown tears the subsystems down in reverse order. Failures are logged.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.loop.Lock()
	defer e.loop.Unlock()

	switch e.State() {
	case Uninitialized, Stopped:
		return nil
	}
	e.teardown(ctx)
	e.setState(Stopped)
	e.log.Info("Engine stopped", "steps", e.steps)
	return nil
}

// route wires the engine's own handlers.
func (e *Engine) route(k *Kernel) {
	bus := k.Bus
	opts := event.Context(label)

	bus.Subscribe(game.EventPause, func(ctx context.Context, _ event.Event) (any, error) {
		e.Pause()
		return e.State().String(), nil
	}, opts)
	bus.Subscribe(game.EventResume, func(ctx context.Context, _ event.Event) (any, error) {
		e.Resume()
		return e.State().String(), nil
	}, opts)
	event.On(bus, game.EventScreenChanged, func(ctx context.Context, sc game.ScreenChange) (any, error) {
		return nil, k.Store.Set(state.PathScreen, sc.To)
	}, opts)
	event.On(bus, event.ErrorEvent, func(ctx context.Context, h event.HandlerError) (any, error) {
		where := h.Event
		if h.Context != "" {
			where = h.Context + ":" + h.Event
		}
		bus.Publish(game.EventSystemError, game.SystemError{Error: h.Reason, Context: where})
		return nil, nil
	}, opts)
}

// contain runs fn, converting a panic into an error.
func contain(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
