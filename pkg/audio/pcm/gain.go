package pcm

import (
	"bytes"
	"unsafe"
)

// Scale returns a copy of c with every sample multiplied by gain.
// Samples are clipped to the 16-bit range. A gain of 1 returns c
// unchanged; a gain at or below 0 returns silence of the same length.
func Scale(c Chunk, gain float32) Chunk {
	if gain == 1 {
		return c
	}
	if gain <= 0 {
		return &SilenceChunk{dur: c.Duration(), len: c.Len(), fmt: c.Format()}
	}

	var buf bytes.Buffer
	buf.Grow(int(c.Len()))
	if _, err := c.WriteTo(&buf); err != nil {
		return c
	}
	b := buf.Bytes()
	n := len(b) &^ 1
	if n == 0 {
		return c.Format().DataChunk(b)
	}

	i16 := unsafe.Slice((*int16)(unsafe.Pointer(&b[0])), n/2)
	for i, v := range i16 {
		var s float32
		if v >= 0 {
			s = float32(v) / 32767
		} else {
			s = float32(v) / 32768
		}
		s *= gain
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s >= 0 {
			i16[i] = int16(s * 32767)
		} else {
			i16[i] = int16(s * 32768)
		}
	}
	return c.Format().DataChunk(b)
}
