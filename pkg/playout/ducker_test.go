package playout_test

import (
	"math"
	"testing"
	"time"

	"github.com/loroworks/loro/go/pkg/playout"
)

func waitForGain(t *testing.T, g playout.Gain, want float32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := g.Gain()
		if math.Abs(float64(got-want)) < 1e-3 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("gain = %v, want %v", got, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDuckerRampsOnTransitions(t *testing.T) {
	gain := playout.NewAtomicGain(1.0)
	d := playout.NewDucker(gain,
		playout.DuckTo(0.2),
		playout.DuckRamp(40*time.Millisecond))

	d.PlaybackStarted("m1")
	waitForGain(t, gain, 0.2)

	d.PlaybackStopped()
	waitForGain(t, gain, playout.DefaultNominalGain)
}

func TestDuckerZeroRampSnaps(t *testing.T) {
	gain := playout.NewAtomicGain(1.0)
	d := playout.NewDucker(gain, playout.DuckTo(0.5), playout.DuckRamp(0))

	d.PlaybackStarted("m1")
	if got := gain.Gain(); got != 0.5 {
		t.Fatalf("gain = %v immediately after duck, want 0.5", got)
	}
	d.PlaybackStopped()
	if got := gain.Gain(); got != 1.0 {
		t.Fatalf("gain = %v immediately after restore, want 1.0", got)
	}
}

func TestDuckerRestartCancelsRamp(t *testing.T) {
	gain := playout.NewAtomicGain(1.0)
	d := playout.NewDucker(gain,
		playout.DuckTo(0.1),
		playout.DuckRamp(500*time.Millisecond))

	// Playback stops right after it starts: the long downward ramp is
	// abandoned and the gain comes back to nominal.
	d.PlaybackStarted("m1")
	time.Sleep(30 * time.Millisecond)
	d.PlaybackStopped()
	waitForGain(t, gain, playout.DefaultNominalGain)
}

func TestAtomicGain(t *testing.T) {
	g := playout.NewAtomicGain(0.7)
	if got := g.Gain(); got != 0.7 {
		t.Fatalf("Gain() = %v, want 0.7", got)
	}
	g.SetGain(0.3)
	if got := g.Gain(); got != 0.3 {
		t.Fatalf("Gain() = %v, want 0.3", got)
	}
}
