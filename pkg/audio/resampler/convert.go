package resampler

import (
	"bytes"
	"fmt"
	"io"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

// Convert resamples an entire chunk into the target format. A chunk
// already in the target format is returned as is.
func Convert(c pcm.Chunk, to pcm.Format) (pcm.Chunk, error) {
	if c.Format() == to {
		return c, nil
	}
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("resampler: read chunk: %w", err)
	}
	r, err := New(&buf, c.Format(), to)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("resampler: convert chunk: %w", err)
	}
	return to.DataChunk(out), nil
}
