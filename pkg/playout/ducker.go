package playout

import (
	"log/slog"
	"sync"
	"time"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

// Gain is an externally owned volume control, typically the gain applied
// to the microphone path feeding the recognizer.
type Gain interface {
	Gain() float32
	SetGain(gain float32)
}

// AtomicGain is a Gain safe to read from the audio path without locking.
type AtomicGain struct {
	v pcm.AtomicFloat32
}

func NewAtomicGain(gain float32) *AtomicGain {
	g := &AtomicGain{}
	g.v.Store(gain)
	return g
}

func (g *AtomicGain) Gain() float32 {
	return g.v.Load()
}

func (g *AtomicGain) SetGain(gain float32) {
	g.v.Store(gain)
}

const (
	DefaultNominalGain = 1.0
	DefaultDuckedGain  = 0.15
	DefaultDuckRamp    = 50 * time.Millisecond
	duckStep           = 10 * time.Millisecond
)

var _ Listener = (*Ducker)(nil)

// A Ducker lowers an input gain while the device is speaking and restores
// it when playback stops, so the recognizer does not transcribe our own
// output. It is a Listener: register it with WithListener.
//
// Transitions ramp linearly over the configured duration in small steps
// rather than snapping, which avoids an audible click on the input path.
// A transition arriving mid-ramp cancels the previous one and ramps from
// wherever the gain currently sits.
type Ducker struct {
	gain    Gain
	nominal float32
	ducked  float32
	ramp    time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	cancel chan struct{}
}

type DuckerOption func(*Ducker)

// DuckNominal sets the gain restored when playback stops.
func DuckNominal(gain float32) DuckerOption {
	return func(d *Ducker) { d.nominal = gain }
}

// DuckTo sets the gain held while playback is audible.
func DuckTo(gain float32) DuckerOption {
	return func(d *Ducker) { d.ducked = gain }
}

// DuckRamp sets the transition duration.
func DuckRamp(ramp time.Duration) DuckerOption {
	return func(d *Ducker) { d.ramp = ramp }
}

func DuckLogger(l *slog.Logger) DuckerOption {
	return func(d *Ducker) { d.logger = l }
}

func NewDucker(gain Gain, opts ...DuckerOption) *Ducker {
	d := &Ducker{
		gain:    gain,
		nominal: DefaultNominalGain,
		ducked:  DefaultDuckedGain,
		ramp:    DefaultDuckRamp,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Ducker) PlaybackStarted(messageID string) {
	d.logger.Debug("playout: ducking input", "message", messageID, "gain", d.ducked)
	d.rampTo(d.ducked)
}

func (d *Ducker) PlaybackStopped() {
	d.logger.Debug("playout: restoring input", "gain", d.nominal)
	d.rampTo(d.nominal)
}

func (d *Ducker) rampTo(target float32) {
	d.mu.Lock()
	if d.cancel != nil {
		close(d.cancel)
	}
	cancel := make(chan struct{})
	d.cancel = cancel
	d.mu.Unlock()

	from := d.gain.Gain()
	steps := int(d.ramp / duckStep)
	if steps <= 0 {
		d.gain.SetGain(target)
		return
	}
	interval := d.ramp / time.Duration(steps)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; i < steps; i++ {
			select {
			case <-cancel:
				return
			case <-ticker.C:
				d.gain.SetGain(from + (target-from)*float32(i+1)/float32(steps))
			}
		}
	}()
}
