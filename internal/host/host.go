/*
Package host
File: host.go
Description:
    Process bootstrap shared by the server and the terminal shell: logger,
    .env loading, campaign, save database and the assembled engine with its
    collaborators.
*/

package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/everforgeworks/merc-command/internal/audio"
	"github.com/everforgeworks/merc-command/internal/audio/device"
	"github.com/everforgeworks/merc-command/internal/engine"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/persistence"
)

// Options are the process settings, usually filled from flags.
type Options struct {
	Campaign string        // Campaign YAML; empty uses the built-in one
	Seed     uint64        // 0 picks one from the clock
	Slot     string        // Save slot to resume
	Audio    bool          // Open the speaker
	Autosave time.Duration // 0 default, negative off
}

// Host is a booted game.
type Host struct {
	Engine *engine.Engine
	Game   *engine.Game
	Repo   *persistence.Repository
	Audio  *audio.Player
	Seed   uint64

	speaker *device.Speaker
}

// LoadEnv reads .env when present.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// NewLogger builds the process logger. format is "text" or "json".
func NewLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Boot opens the save database, assembles the engine and starts it. extra
// registers shell-specific collaborators before initialization.
func Boot(ctx context.Context, opts Options, log *slog.Logger, extra ...func(*engine.Engine)) (*Host, error) {
	// 1. Campaign configuration
	camp, err := game.LoadCampaign(opts.Campaign)
	if err != nil {
		return nil, err
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}
	if opts.Slot == "" {
		opts.Slot = persistence.AutosaveSlot
	}

	// 2. Save database
	repo, err := persistence.OpenFromEnv(ctx, log)
	if err != nil {
		return nil, err
	}
	h := &Host{Repo: repo, Seed: opts.Seed}

	// 3. Engine and subsystems
	h.Engine = engine.New(engine.Config{Load: persistence.Loader(repo, opts.Slot)}, log)
	h.Game = h.Engine.UseCampaign(camp, opts.Seed)
	h.Engine.Register(engine.PriorityCollaborator, func(k *engine.Kernel) (engine.Subsystem, error) {
		return persistence.NewAutosaver(repo, k.Store, k.Bus, opts.Autosave, k.Log), nil
	})

	// 4. Audio is optional; a missing device only costs the cues
	var sink audio.Sink
	if opts.Audio {
		if spk, err := device.Open(); err != nil {
			log.Warn("Audio device unavailable, continuing silent", "error", err)
		} else {
			h.speaker = spk
			sink = spk
		}
	}
	h.Engine.Register(engine.PriorityCollaborator+1, func(k *engine.Kernel) (engine.Subsystem, error) {
		h.Audio = audio.NewPlayer(k.Bus, sink, nil, k.Log)
		return h.Audio, nil
	})

	for _, register := range extra {
		register(h.Engine)
	}

	// 5. Initialize and start
	if err := h.Engine.Initialize(ctx); err != nil {
		h.release()
		return nil, err
	}
	if err := h.Engine.Start(ctx); err != nil {
		h.Engine.Shutdown(ctx)
		h.release()
		return nil, err
	}
	c := h.Engine.Store().Company()
	log.Info("Campaign ready",
		"company", c.Name,
		"funds", game.FormatCBills(c.Funds),
		"date", h.Engine.Store().Date().String(),
		"seed", opts.Seed,
	)
	return h, nil
}

// Close shuts the engine down, flushing the autosave, then releases devices.
func (h *Host) Close(ctx context.Context) error {
	err := h.Engine.Shutdown(ctx)
	h.release()
	return err
}

func (h *Host) release() {
	if h.speaker != nil {
		h.speaker.Close()
	}
	h.Repo.Close()
}
