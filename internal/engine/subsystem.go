/*
Package engine
File: subsystem.go
Description:
    The subsystem contract and the fixed initialization order.
*/

package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/state"
)

// Subsystem is one unit of game logic driven by the engine.
type Subsystem interface {
	Name() string
	Init(ctx context.Context) error
	Update(dt time.Duration) error
	Shutdown(ctx context.Context) error
}

// Starter is implemented by subsystems with work to do once the loop starts.
type Starter interface {
	Start(ctx context.Context) error
}

// Renderer is implemented by subsystems that draw. alpha is the fraction of a
// timestep left in the accumulator.
type Renderer interface {
	Render(alpha float64) error
}

// Initialization priorities. Lower runs first, so later subsystems may rely
// on the handlers of earlier ones.
const (
	PriorityPorts        = -1 // Confirmation broker: must exist before anything asks
	PriorityTutorial     = 0
	PriorityCompany      = 1
	PriorityFaction      = 2
	PriorityPilot        = 3
	PriorityMech         = 4
	PriorityContract     = 5
	PriorityCombat       = 6
	PriorityCollaborator = 10 // Persistence, audio and other outer collaborators
)

// Kernel is what a subsystem builder receives once the bus and store exist.
type Kernel struct {
	Bus   *event.Bus
	Store *state.Store
	Log   *slog.Logger
}

// Builder constructs a subsystem against the initialized kernel.
type Builder func(k *Kernel) (Subsystem, error)

type registration struct {
	priority int
	seq      int
	build    Builder
}
