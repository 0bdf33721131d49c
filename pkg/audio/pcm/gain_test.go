package pcm

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func sampleChunk(f Format, samples ...int16) Chunk {
	var buf bytes.Buffer
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, s)
	}
	return f.DataChunk(buf.Bytes())
}

func samplesOf(t *testing.T, c Chunk) []int16 {
	t.Helper()
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	b := buf.Bytes()
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func TestScaleHalf(t *testing.T) {
	c := sampleChunk(L16Mono24K, 20000, -20000, 0)

	got := samplesOf(t, Scale(c, 0.5))

	want := []int16{10000, -10000, 0}
	for i := range want {
		if d := got[i] - want[i]; d < -1 || d > 1 {
			t.Errorf("sample[%d] = %d, want %d (±1)", i, got[i], want[i])
		}
	}
}

func TestScaleUnityReturnsSameChunk(t *testing.T) {
	c := sampleChunk(L16Mono16K, 123, -456)

	if got := Scale(c, 1); got != c {
		t.Error("gain 1 should return the chunk unchanged")
	}
}

func TestScaleZeroIsSilence(t *testing.T) {
	c := sampleChunk(L16Mono16K, 1000, -1000)

	got := Scale(c, 0)
	if got.Len() != c.Len() {
		t.Fatalf("Len = %d, want %d", got.Len(), c.Len())
	}
	for i, s := range samplesOf(t, got) {
		if s != 0 {
			t.Errorf("sample[%d] = %d, want 0", i, s)
		}
	}
}

func TestScaleClips(t *testing.T) {
	c := sampleChunk(L16Mono16K, 30000, -30000)

	got := samplesOf(t, Scale(c, 2))

	if got[0] != 32767 {
		t.Errorf("positive clip = %d, want 32767", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("negative clip = %d, want -32768", got[1])
	}
}

func TestScaleDoesNotMutateInput(t *testing.T) {
	c := sampleChunk(L16Mono16K, 8000)

	Scale(c, 0.25)

	if got := samplesOf(t, c)[0]; got != 8000 {
		t.Errorf("input chunk mutated: sample = %d, want 8000", got)
	}
}
