/*
Package device
File: speaker.go
Description:
    The system speaker as an audio.Sink. Cues are mixed so overlapping
    events play together.
*/

package device

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/everforgeworks/merc-command/internal/audio"
)

// Speaker plays cues on the default output device.
type Speaker struct {
	mu    sync.Mutex
	mixer *beep.Mixer
}

// Open initializes the output device. It fails on hosts without audio.
func Open() (*Speaker, error) {
	if err := speaker.Init(audio.SampleRate, audio.SampleRate.N(100*time.Millisecond)); err != nil {
		return nil, err
	}
	s := &Speaker{mixer: &beep.Mixer{}}
	speaker.Play(s.mixer)
	return s, nil
}

func (s *Speaker) Play(st beep.Streamer) {
	speaker.Lock()
	s.mixer.Add(st)
	speaker.Unlock()
}

// Close stops playback and releases the device.
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	speaker.Lock()
	s.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
}
