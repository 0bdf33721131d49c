package feed

import (
	"errors"
	"fmt"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/audio/resampler"
)

var (
	// ErrEmptyPayload is returned for chunks carrying no samples.
	ErrEmptyPayload = errors.New("feed: empty audio payload")

	// ErrMisaligned is returned when a payload does not divide into
	// whole samples.
	ErrMisaligned = errors.New("feed: payload not sample aligned")
)

// Decoder turns wire audio payloads into chunks in its output format.
type Decoder interface {
	Decode(data []byte) (pcm.Chunk, error)
	Format() pcm.Format
}

// PCMDecoder accepts raw little-endian sample payloads. It takes
// ownership of the slices handed to Decode.
type PCMDecoder struct {
	format pcm.Format
}

func NewPCMDecoder(format pcm.Format) *PCMDecoder {
	return &PCMDecoder{format: format}
}

func (d *PCMDecoder) Format() pcm.Format {
	return d.format
}

func (d *PCMDecoder) Decode(data []byte) (pcm.Chunk, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(data)%d.format.SampleSize() != 0 {
		return nil, fmt.Errorf("%w: %d bytes at %v", ErrMisaligned, len(data), d.format)
	}
	return d.format.DataChunk(data), nil
}

// ResampleDecoder converts another decoder's output to a target format.
type ResampleDecoder struct {
	inner Decoder
	to    pcm.Format
}

func NewResampleDecoder(inner Decoder, to pcm.Format) *ResampleDecoder {
	return &ResampleDecoder{inner: inner, to: to}
}

func (d *ResampleDecoder) Format() pcm.Format {
	return d.to
}

func (d *ResampleDecoder) Decode(data []byte) (pcm.Chunk, error) {
	c, err := d.inner.Decode(data)
	if err != nil {
		return nil, err
	}
	out, err := resampler.Convert(c, d.to)
	if err != nil {
		return nil, fmt.Errorf("feed: resample chunk: %w", err)
	}
	return out, nil
}

// decoderFor builds the decode chain from a producer format to the
// engine's output format.
func decoderFor(from, to pcm.Format) Decoder {
	var d Decoder = NewPCMDecoder(from)
	if from != to {
		d = NewResampleDecoder(d, to)
	}
	return d
}
