// Package tone synthesizes short built-in test signals.
//
// The CLI uses them to exercise playback without any audio assets on
// disk: a beep to prove the device works, a chime for cue playback, a
// scale long enough to hear gapless chunk handoff.
package tone

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

// Note frequencies (Hz).
const (
	c5 = 523.25
	d5 = 587.33
	e5 = 659.25
	f5 = 698.46
	g5 = 783.99
	a5 = 880.00
	b5 = 987.77
	c6 = 1046.50
	e6 = 1318.51
	g6 = 1567.98
)

type note struct {
	freq float64
	dur  time.Duration
}

var clips = map[string][]note{
	"beep": {
		{a5, 200 * time.Millisecond},
	},
	"chime": {
		{c6, 150 * time.Millisecond},
		{e6, 150 * time.Millisecond},
		{g6, 350 * time.Millisecond},
	},
	"scale": {
		{c5, 250 * time.Millisecond},
		{d5, 250 * time.Millisecond},
		{e5, 250 * time.Millisecond},
		{f5, 250 * time.Millisecond},
		{g5, 250 * time.Millisecond},
		{a5, 250 * time.Millisecond},
		{b5, 250 * time.Millisecond},
		{c6, 500 * time.Millisecond},
	},
}

// Names lists the built-in signals, sorted.
func Names() []string {
	names := make([]string, 0, len(clips))
	for name := range clips {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clip renders the named built-in signal in format.
func Clip(name string, format pcm.Format) (pcm.Chunk, error) {
	notes, ok := clips[name]
	if !ok {
		return nil, fmt.Errorf("tone: unknown signal %q (have %s)", name, strings.Join(Names(), ", "))
	}
	var data []byte
	for _, n := range notes {
		data = append(data, render(n.freq, n.dur, format)...)
	}
	return format.DataChunk(data), nil
}

// Sine renders a single note with the same voicing the built-ins use.
func Sine(freq float64, dur time.Duration, format pcm.Format) pcm.Chunk {
	return format.DataChunk(render(freq, dur, format))
}

// render synthesizes one note as 16-bit little-endian PCM. A couple of
// decaying harmonics over the fundamental and a fast-attack envelope
// keep it from sounding like a bare oscillator.
func render(freq float64, dur time.Duration, format pcm.Format) []byte {
	rate := format.SampleRate()
	samples := int(format.SamplesInDuration(dur))
	data := make([]byte, samples*2)
	noteDur := dur.Seconds()

	for i := 0; i < samples; i++ {
		t := float64(i) / float64(rate)
		progress := t / noteDur

		sample := math.Sin(2*math.Pi*freq*t) +
			0.5*math.Exp(-progress*3)*math.Sin(2*math.Pi*2*freq*t) +
			0.25*math.Exp(-progress*5)*math.Sin(2*math.Pi*3*freq*t)
		sample /= 1.75

		sample *= envelope(t, progress, noteDur)
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(sample*28000)))
	}
	return data
}

// envelope shapes a note: 3ms attack, exponential decay scaled to the
// note length, soft release over the last 15%.
func envelope(t, progress, noteDur float64) float64 {
	const attack = 0.003
	if t < attack {
		return 1 - math.Exp(-5*t/attack)
	}

	decay := 2.0 / noteDur
	if decay < 0.5 {
		decay = 0.5
	}
	if decay > 8 {
		decay = 8
	}
	level := math.Exp(-(t-attack)*decay)*0.95 + 0.05

	if progress > 0.85 {
		rel := (progress - 0.85) / 0.15
		level *= 1 - rel*rel
	}
	return level
}
