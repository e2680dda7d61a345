/*
Package main
File: main.go
Description: Server entry point. Boots the campaign, opens the UI bridge
(REST + WebSocket hub) and drives the engine's fixed-timestep loop until
the process is signalled.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/everforgeworks/merc-command/internal/api"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/host"
	"github.com/everforgeworks/merc-command/internal/persistence"
)

// checkpointSlot receives the save written on SIGHUP.
const checkpointSlot = "checkpoint"

func main() {
	addr := flag.String("addr", ":8081", "HTTP listen address")
	campaign := flag.String("campaign", "", "campaign YAML (default: built-in)")
	seed := flag.Uint64("seed", 0, "random seed (0: from clock)")
	slot := flag.String("slot", persistence.AutosaveSlot, "save slot to resume")
	sound := flag.Bool("audio", false, "play event cues on the speaker")
	autosave := flag.Duration("autosave", persistence.DefaultInterval, "autosave interval of game time (negative: off)")
	logFormat := flag.String("log", "text", "log format: text or json")
	logLevel := flag.String("level", "info", "log level")
	flag.Parse()

	// 1. Environment and logging
	if err := host.LoadEnv(); err != nil {
		slog.Error("Startup failed", "error", err)
		os.Exit(1)
	}
	log, err := host.NewLogger(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		slog.Error("Startup failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Boot the campaign
	h, err := host.Boot(ctx, host.Options{
		Campaign: *campaign,
		Seed:     *seed,
		Slot:     *slot,
		Audio:    *sound,
		Autosave: *autosave,
	}, log)
	if err != nil {
		log.Error("Boot failed", "error", err)
		os.Exit(1)
	}

	// 3. Real-time hub relaying every bus event
	hub := api.NewHub(h.Engine, api.DefaultHubConfig, log)
	hub.Relay(h.Engine.Bus())
	go hub.Run(ctx)

	// 4. Checkpoint on SIGHUP without stopping
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGHUP)
		defer signal.Stop(sigChan)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigChan:
				log.Info("SIGNAL: writing checkpoint", "slot", checkpointSlot)
				if _, err := h.Engine.Submit(ctx, game.EventSave, game.SaveSlot{Slot: checkpointSlot}); err != nil {
					log.Warn("Checkpoint failed", "error", err)
				}
			}
		}
	}()

	// 5. HTTP server
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.CORS(api.NewServer(h.Engine, hub, h.Repo, log).Routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("MERC COMMAND server live", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	// 6. The loop runs on the main goroutine until a signal arrives
	if err := h.Engine.Run(ctx); err != nil {
		log.Error("Engine loop failed", "error", err)
	}

	shutdown, cancel := context.WithTimeout(context.Background(), persistence.DefaultWriteTime)
	defer cancel()
	srv.Shutdown(shutdown)
	if err := h.Close(shutdown); err != nil {
		log.Error("Shutdown failed", "error", err)
	}
	log.Info("Server stopped")
}
