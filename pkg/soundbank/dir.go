package soundbank

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir implements Bank on top of a local directory.
type Dir struct {
	root string
}

// NewDir creates a Dir bank rooted at dir, creating the directory
// (with parents) if needed.
func NewDir(dir string) (*Dir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) resolve(name string) (string, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(cleaned)), nil
}

// Open opens the named clip for reading.
func (d *Dir) Open(_ context.Context, name string) (io.ReadCloser, error) {
	full, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Save opens the named clip for writing, creating parent directories
// as needed. An existing clip is truncated.
func (d *Dir) Save(_ context.Context, name string) (io.WriteCloser, error) {
	full, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.Create(full)
}

// Exists reports whether the named clip exists.
func (d *Dir) Exists(_ context.Context, name string) (bool, error) {
	full, err := d.resolve(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Remove deletes the named clip. Removing an absent clip returns nil.
func (d *Dir) Remove(_ context.Context, name string) error {
	full, err := d.resolve(name)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

var _ Bank = (*Dir)(nil)
