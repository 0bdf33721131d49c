package pcm

import (
	"errors"
	"io"
	"time"
)

// Writer consumes chunks of audio data.
type Writer interface {
	Write(Chunk) error
}

var _ Writer = WriteFunc(nil)

// WriteFunc adapts a function to the Writer interface.
type WriteFunc func(Chunk) error

func (f WriteFunc) Write(c Chunk) error {
	return f(c)
}

// WriteCloser is a Writer that must be closed when the stream ends.
type WriteCloser interface {
	Writer
	io.Closer
}

// Discard is a Writer that drops all chunks.
var Discard Writer = discard{}

type discard struct{}

func (discard) Write(Chunk) error {
	return nil
}

// ChunkWriter wraps an io.Writer as a Writer. Each chunk's raw samples are
// written through via WriteTo.
func ChunkWriter(w io.Writer) Writer {
	return &chunkWriter{w: w}
}

type chunkWriter struct {
	w io.Writer
}

func (w *chunkWriter) Write(c Chunk) error {
	_, err := c.WriteTo(w.w)
	return err
}

// Copy reads raw samples from r and hands them to w as DataChunks of at
// least the given duration each (the final chunk may be shorter). A zero
// duration defaults to 20ms. Returns nil once r is exhausted.
func Copy(w Writer, r io.Reader, format Format, chunk time.Duration) error {
	if chunk <= 0 {
		chunk = 20 * time.Millisecond
	}
	minChunk := int(format.BytesInDuration(chunk))
	buf := make([]byte, 10*minChunk)
	for {
		n, err := io.ReadAtLeast(r, buf, minChunk)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if err := w.Write(format.DataChunk(data)); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
	}
}
