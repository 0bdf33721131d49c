// Package wav encodes and decodes mono 16-bit PCM WAV files, bridging
// them to pcm chunks.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

var (
	ErrNotWAV      = errors.New("wav: not a RIFF/WAVE file")
	ErrUnsupported = errors.New("wav: unsupported encoding")
)

const headerSize = 44

// fmtChunk mirrors the PCM "fmt " sub-chunk layout.
type fmtChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// Encode serializes the chunk into a complete WAV file image.
func Encode(c pcm.Chunk) ([]byte, error) {
	f := c.Format()
	dataSize := uint32(c.Len())

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+int(dataSize)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(headerSize-8)+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, fmtChunk{
		AudioFormat:   1, // PCM
		NumChannels:   uint16(f.Channels()),
		SampleRate:    uint32(f.SampleRate()),
		ByteRate:      uint32(f.BytesRate()),
		BlockAlign:    uint16(f.SampleSize()),
		BitsPerSample: uint16(f.Depth()),
	})
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	if _, err := c.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("wav: write samples: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a WAV file image into a chunk. Only mono 16-bit PCM at
// the sample rates pcm knows is accepted; sub-chunks other than "fmt "
// and "data" are skipped.
func Decode(data []byte) (pcm.Chunk, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var format *fmtChunk
	rest := data[12:]
	for len(rest) >= 8 {
		id := string(rest[0:4])
		size := int(binary.LittleEndian.Uint32(rest[4:8]))
		body := rest[8:]
		if size > len(body) {
			size = len(body)
		}
		switch id {
		case "fmt ":
			var fc fmtChunk
			if err := binary.Read(bytes.NewReader(body[:size]), binary.LittleEndian, &fc); err != nil {
				return nil, fmt.Errorf("wav: read fmt chunk: %w", err)
			}
			format = &fc
		case "data":
			if format == nil {
				return nil, fmt.Errorf("%w: data chunk before fmt", ErrNotWAV)
			}
			f, err := formatOf(format)
			if err != nil {
				return nil, err
			}
			samples := make([]byte, size)
			copy(samples, body[:size])
			return f.DataChunk(samples), nil
		}
		// Sub-chunks are word-aligned.
		if size%2 == 1 {
			size++
		}
		if size >= len(body) {
			break
		}
		rest = body[size:]
	}
	return nil, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}

func formatOf(fc *fmtChunk) (pcm.Format, error) {
	if fc.AudioFormat != 1 {
		return 0, fmt.Errorf("%w: audio format %d, want PCM", ErrUnsupported, fc.AudioFormat)
	}
	if fc.NumChannels != 1 {
		return 0, fmt.Errorf("%w: %d channels, want mono", ErrUnsupported, fc.NumChannels)
	}
	if fc.BitsPerSample != 16 {
		return 0, fmt.Errorf("%w: %d bits per sample, want 16", ErrUnsupported, fc.BitsPerSample)
	}
	switch fc.SampleRate {
	case 16000:
		return pcm.L16Mono16K, nil
	case 24000:
		return pcm.L16Mono24K, nil
	case 48000:
		return pcm.L16Mono48K, nil
	}
	return 0, fmt.Errorf("%w: sample rate %d", ErrUnsupported, fc.SampleRate)
}
