/*
Package audio
File: cues.go
Description:
    The audio collaborator. It listens for notable game events and plays
    the matching cue on a Sink. Audio is optional: with no sink, or when
    disabled, events are ignored.
*/

package audio

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
)

const label = "audio"

// Sink plays a stream. The device package provides the speaker.
type Sink interface {
	Play(s beep.Streamer)
}

const ms = time.Millisecond

// DefaultCues maps events to sounds.
var DefaultCues = map[string]Cue{
	game.EventContractAccepted: {Notes: []Note{{523, 90 * ms, Square}, {784, 160 * ms, Square}}},
	game.EventContractCompleted: {Notes: []Note{
		{523, 100 * ms, Sine}, {659, 100 * ms, Sine}, {784, 220 * ms, Sine},
	}},
	game.EventRatingChanged: {Notes: []Note{
		{392, 120 * ms, Square}, {523, 120 * ms, Square}, {659, 120 * ms, Square}, {1047, 300 * ms, Square},
	}},
	game.EventFinancialCrisis: {Notes: []Note{{110, 250 * ms, Saw}, {82, 350 * ms, Saw}}, Volume: 0.6},
	game.EventMechDestroyed:   {Notes: []Note{{60, 400 * ms, Noise}}, Volume: 0.4},
	game.EventAcceptRejected:  {Notes: []Note{{100, 150 * ms, Saw}}},
	game.EventRosterRejected:  {Notes: []Note{{100, 150 * ms, Saw}}},
	game.EventExpensesPaid:    {Notes: []Note{{1319, 60 * ms, Sine}, {1568, 90 * ms, Sine}}, Volume: 0.3},
	game.EventSaved:           {Notes: []Note{{880, 50 * ms, Sine}}, Volume: 0.2},
}

// Player is the audio subsystem.
type Player struct {
	bus     *event.Bus
	sink    Sink
	cues    map[string]Cue
	enabled atomic.Bool
	played  atomic.Uint64
	log     *slog.Logger
}

// NewPlayer builds the player. A nil sink leaves it permanently silent.
func NewPlayer(bus *event.Bus, sink Sink, cues map[string]Cue, log *slog.Logger) *Player {
	if cues == nil {
		cues = DefaultCues
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Player{bus: bus, sink: sink, cues: cues, log: log.With(slog.String("system", label))}
	p.enabled.Store(sink != nil)
	return p
}

func (p *Player) Name() string { return label }

func (p *Player) Init(ctx context.Context) error {
	for name, cue := range p.cues {
		p.bus.Subscribe(name, func(ctx context.Context, _ event.Event) (any, error) {
			p.play(cue)
			return nil, nil
		}, event.Context(label), event.Priority(-100))
	}
	p.log.Debug("Audio cues registered", "cues", len(p.cues), "enabled", p.enabled.Load())
	return nil
}

func (p *Player) Update(time.Duration) error { return nil }

func (p *Player) Shutdown(context.Context) error {
	p.bus.UnsubscribeContext(label)
	return nil
}

// SetEnabled mutes or unmutes. It has no effect without a sink.
func (p *Player) SetEnabled(on bool) { p.enabled.Store(on && p.sink != nil) }

// Enabled reports whether cues are playing.
func (p *Player) Enabled() bool { return p.enabled.Load() }

// Played counts cues sent to the sink.
func (p *Player) Played() uint64 { return p.played.Load() }

func (p *Player) play(c Cue) {
	if !p.enabled.Load() {
		return
	}
	p.sink.Play(c.Streamer(SampleRate))
	p.played.Add(1)
}
