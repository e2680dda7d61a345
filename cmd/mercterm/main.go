/*
Package main
File: main.go
Description: Terminal shell. Boots the same campaign as the server and
draws it with tcell. Keys become inbound commands on the engine's command
port; the engine loop runs on its own goroutine.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/everforgeworks/merc-command/internal/engine"
	"github.com/everforgeworks/merc-command/internal/host"
	"github.com/everforgeworks/merc-command/internal/persistence"
)

func main() {
	campaign := flag.String("campaign", "", "campaign YAML (default: built-in)")
	seed := flag.Uint64("seed", 0, "random seed (0: from clock)")
	slot := flag.String("slot", persistence.AutosaveSlot, "save slot to resume")
	sound := flag.Bool("audio", true, "play event cues on the speaker")
	logPath := flag.String("logfile", "mercterm.log", "log file (the terminal is taken by the dashboard)")
	logLevel := flag.String("level", "info", "log level")
	flag.Parse()

	if err := run(*campaign, *seed, *slot, *sound, *logPath, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "mercterm:", err)
		os.Exit(1)
	}
}

func run(campaign string, seed uint64, slot string, sound bool, logPath, logLevel string) error {
	// 1. Logging goes to a file
	if err := host.LoadEnv(); err != nil {
		return err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	log, err := host.NewLogger(f, "text", logLevel)
	if err != nil {
		return err
	}

	// 2. Screen
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Campaign with the dashboard as the last collaborator
	var dash *Dashboard
	h, err := host.Boot(ctx, host.Options{Campaign: campaign, Seed: seed, Slot: slot, Audio: sound}, log,
		func(e *engine.Engine) {
			e.Register(engine.PriorityCollaborator+10, func(k *engine.Kernel) (engine.Subsystem, error) {
				dash = NewDashboard(screen, k.Store, k.Bus)
				return dash, nil
			})
		})
	if err != nil {
		return err
	}
	defer h.Close(context.Background())

	loop := make(chan error, 1)
	go func() { loop <- h.Engine.Run(ctx) }()

	// 4. Input
	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return <-loop
		case err := <-loop:
			return err
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
				dash.Invalidate()
			case *tcell.EventKey:
				cmd, ok, quit := dash.Key(ev)
				if quit {
					stop()
					continue
				}
				if !ok {
					continue
				}
				if _, err := h.Engine.Submit(ctx, cmd.Name, cmd.Payload); err != nil {
					log.Warn("Command refused", "command", cmd.Name, "error", err)
				}
			}
		}
	}
}
