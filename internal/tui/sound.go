package tui

import (
	"fmt"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

// Sound plays feedback for game actions.
type Sound interface {
	Click()
	Close()
}

// Silent is the Sound used when no audio device is available.
type Silent struct{}

func (Silent) Click() {}
func (Silent) Close() {}

const (
	beepRate     = beep.SampleRate(44100)
	beepFreq     = 880.0
	beepDuration = 40 * time.Millisecond
)

// Beeper plays a short sine tone through the default audio device.
type Beeper struct {
	rate beep.SampleRate
}

// NewBeeper opens the speaker. Callers fall back to Silent on error.
func NewBeeper() (*Beeper, error) {
	if err := speaker.Init(beepRate, beepRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("failed to init speaker: %w", err)
	}
	return &Beeper{rate: beepRate}, nil
}

// Click plays the click tone without blocking.
func (b *Beeper) Click() {
	sine, err := generators.SineTone(b.rate, beepFreq)
	if err != nil {
		return
	}
	speaker.Play(&effects.Volume{
		Streamer: beep.Take(b.rate.N(beepDuration), sine),
		Base:     2,
		Volume:   -2,
	})
}

// Close releases the audio device.
func (b *Beeper) Close() {
	speaker.Close()
}
