// Package speech synthesizes spoken audio from text.
package speech

import (
	"context"
	"errors"
	"io"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("speech: empty text")

// Synthesizer turns text into raw audio samples.
type Synthesizer interface {
	// Speak synthesizes text into audio. The returned reader streams
	// raw samples in the returned format; the caller must close it.
	Speak(ctx context.Context, text string) (io.ReadCloser, pcm.Format, error)
}

// SpeakFunc is a function that implements the Synthesizer interface.
type SpeakFunc func(ctx context.Context, text string) (io.ReadCloser, pcm.Format, error)

// Speak implements the Synthesizer interface.
func (f SpeakFunc) Speak(ctx context.Context, text string) (io.ReadCloser, pcm.Format, error) {
	return f(ctx, text)
}
