package audio

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
)

type recorder struct {
	streams []beep.Streamer
}

func (r *recorder) Play(s beep.Streamer) { r.streams = append(r.streams, s) }

// drain counts the samples in s and reports whether any was non-zero.
func drain(s beep.Streamer) (n int, audible bool) {
	buf := make([][2]float64, 512)
	for {
		k, ok := s.Stream(buf)
		for i := 0; i < k; i++ {
			if buf[i][0] != 0 {
				audible = true
			}
		}
		n += k
		if !ok {
			return n, audible
		}
	}
}

func TestCueLength(t *testing.T) {
	for name, cue := range DefaultCues {
		n, audible := drain(cue.Streamer(SampleRate))
		if want := SampleRate.N(cue.Duration()); n < want-len(cue.Notes) || n > want+len(cue.Notes) {
			t.Errorf("%s: %d samples, want about %d", name, n, want)
		}
		if !audible {
			t.Errorf("%s is silent", name)
		}
	}
}

func TestSilentCue(t *testing.T) {
	c := Cue{Notes: []Note{{440, 20 * time.Millisecond, Sine}}, Volume: -1}
	if _, audible := drain(c.Streamer(SampleRate)); audible {
		t.Fatal("negative volume should mute")
	}
}

func TestPlayerFollowsEvents(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := event.NewBus(log)
	game.DefineEvents(bus)

	rec := &recorder{}
	p := NewPlayer(bus, rec, nil, log)
	p.Init(context.Background())

	bus.Publish(game.EventContractAccepted, game.ContractAccepted{})
	bus.Publish(game.EventTimeAdvanced, game.TimeAdvanced{}) // No cue
	if len(rec.streams) != 1 || p.Played() != 1 {
		t.Fatalf("played %d", len(rec.streams))
	}

	p.SetEnabled(false)
	bus.Publish(game.EventFinancialCrisis, game.FinancialCrisis{})
	if len(rec.streams) != 1 {
		t.Fatal("muted player played")
	}

	silent := NewPlayer(bus, nil, nil, log)
	silent.SetEnabled(true)
	if silent.Enabled() {
		t.Fatal("player without a sink enabled")
	}
}
