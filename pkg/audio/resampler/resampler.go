package resampler

import (
	"fmt"
	"io"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

// Resampler wraps an io.Reader of raw samples and converts them between
// sample rates. It must be closed to release converter state.
type Resampler interface {
	io.ReadCloser
	CloseWithError(error) error
}

type stream struct {
	src  io.Reader
	from pcm.Format
	to   pcm.Format

	mu       sync.Mutex
	conv     resampling.Resampler
	readBuf  []byte
	leftover []byte
	closeErr error
	srcErr   error
}

// New creates a Resampler converting raw 16-bit samples from one format's
// rate to another's. Equal rates pass samples through untouched.
func New(src io.Reader, from, to pcm.Format) (Resampler, error) {
	s := &stream{
		src:  newSampleReader(src, from.SampleSize()),
		from: from,
		to:   to,
	}
	if from.SampleRate() != to.SampleRate() {
		conv, err := resampling.New(&resampling.Config{
			InputRate:  float64(from.SampleRate()),
			OutputRate: float64(to.SampleRate()),
			Channels:   to.Channels(),
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("resampler: create converter: %w", err)
		}
		s.conv = conv
	}
	return s, nil
}

// Read fills p with converted samples. Not safe for concurrent use.
func (s *stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) < s.to.SampleSize() {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/s.to.SampleSize()*s.to.SampleSize()]

	s.mu.Lock()
	defer s.mu.Unlock()

	// Converted samples that did not fit the previous Read go out first,
	// before any source error is reported.
	if len(s.leftover) > 0 {
		n := copy(p, s.leftover)
		s.leftover = s.leftover[n:]
		return n, nil
	}
	if s.closeErr != nil {
		return 0, s.closeErr
	}
	if s.srcErr != nil {
		return 0, s.srcErr
	}
	if s.conv == nil {
		return s.src.Read(p)
	}
	return s.convertLocked(p)
}

func (s *stream) convertLocked(p []byte) (int, error) {
	ratio := float64(s.from.SampleRate()) / float64(s.to.SampleRate())
	want := int(float64(len(p))*ratio) + s.from.SampleSize()*4
	if cap(s.readBuf) < want {
		s.readBuf = make([]byte, want)
	}
	n, readErr := s.src.Read(s.readBuf[:want])
	if n == 0 {
		if readErr != nil {
			return 0, readErr
		}
		return 0, io.EOF
	}

	frames := n / 2
	input := make([]float64, frames)
	for i := range input {
		v := int16(s.readBuf[i*2]) | int16(s.readBuf[i*2+1])<<8
		input[i] = float64(v) / 32768.0
	}
	out, err := s.conv.Process(input)
	if err != nil {
		return 0, fmt.Errorf("resampler: process: %w", err)
	}
	if len(out) == 0 {
		if readErr != nil {
			return 0, readErr
		}
		return 0, nil
	}

	ob := make([]byte, len(out)*2)
	for i, v := range out {
		sample := int16(v * 32767.0)
		if v > 1.0 {
			sample = 32767
		} else if v < -1.0 {
			sample = -32768
		}
		ob[i*2] = byte(sample)
		ob[i*2+1] = byte(sample >> 8)
	}

	n = copy(p, ob)
	if len(ob) > n {
		s.leftover = append(s.leftover, ob[n:]...)
	}
	if readErr != nil && len(s.leftover) > 0 {
		// Hold the error until the leftover drains, or a tail gets lost.
		s.srcErr = readErr
		readErr = nil
	}
	return n, readErr
}

// Close releases converter state. Subsequent Reads fail with
// io.ErrClosedPipe.
func (s *stream) Close() error {
	return s.CloseWithError(fmt.Errorf("resampler: %w", io.ErrClosedPipe))
}

// CloseWithError releases converter state with a custom error for
// subsequent Reads.
func (s *stream) CloseWithError(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr == nil {
		s.closeErr = err
	}
	s.conv = nil
	return nil
}
