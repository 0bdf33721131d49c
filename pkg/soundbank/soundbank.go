// Package soundbank stores named audio clips: prompt sounds, jingles,
// and cached speech synthesis output.
//
// Clip names are forward-slash separated paths relative to the bank
// root, e.g. "cues/chime.wav" or "tts/9f2a.wav". Names arrive from
// model-produced cues, so they are validated before touching storage.
// Backends cover a local directory and S3-compatible object stores.
package soundbank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/audio/wav"
)

// ErrBadName is returned for clip names that escape the bank root or
// are otherwise malformed.
var ErrBadName = errors.New("soundbank: invalid clip name")

// Bank is a store of named audio clips.
// Implementations must be safe for concurrent use.
type Bank interface {
	// Open opens the named clip for reading. The caller must close the
	// returned ReadCloser. If the clip does not exist, an error
	// wrapping os.ErrNotExist is returned.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Save opens the named clip for writing, replacing any previous
	// content. The caller must close the returned WriteCloser to
	// complete the save.
	Save(ctx context.Context, name string) (io.WriteCloser, error)

	// Exists reports whether the named clip exists.
	Exists(ctx context.Context, name string) (bool, error)

	// Remove deletes the named clip. Removing an absent clip is not an
	// error.
	Remove(ctx context.Context, name string) error
}

// CacheKey derives a stable clip name for synthesized speech, so the
// same voice and text reuse a prior synthesis.
func CacheKey(voice, text string) string {
	sum := sha256.Sum256([]byte(voice + "\x00" + text))
	return "tts/" + hex.EncodeToString(sum[:8]) + ".wav"
}

// ReadClip opens a named WAV clip and decodes it, trying the name as
// given and then with a .wav extension.
func ReadClip(ctx context.Context, bank Bank, name string) (pcm.Chunk, error) {
	rc, err := bank.Open(ctx, name)
	if err != nil && path.Ext(name) == "" {
		rc, err = bank.Open(ctx, name+".wav")
	}
	if err != nil {
		return nil, fmt.Errorf("soundbank: clip %q: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("soundbank: clip %q: %w", name, err)
	}
	return wav.Decode(data)
}

// cleanName validates a clip name and returns its canonical form.
func cleanName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", ErrBadName
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrBadName
	}
	return cleaned, nil
}
