package cli

import (
	"os"
	"path/filepath"
)

// Paths locates the loro directory layout under $HOME.
type Paths struct {
	// HomeDir is the user's home directory.
	HomeDir string
}

// NewPaths resolves the user's home directory.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns the base directory (~/.loro).
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns the config file path (~/.loro/config.yaml).
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// DataDir returns the database directory (~/.loro/data).
func (p *Paths) DataDir() string {
	return filepath.Join(p.BaseDir(), "data")
}

// SoundsDir returns the default sound bank directory (~/.loro/sounds).
func (p *Paths) SoundsDir() string {
	return filepath.Join(p.BaseDir(), "sounds")
}

// LogDir returns the log directory (~/.loro/logs).
func (p *Paths) LogDir() string {
	return filepath.Join(p.BaseDir(), "logs")
}

// EnsureDataDir creates the database directory if needed.
func (p *Paths) EnsureDataDir() error {
	return os.MkdirAll(p.DataDir(), 0o755)
}

// EnsureSoundsDir creates the sound bank directory if needed.
func (p *Paths) EnsureSoundsDir() error {
	return os.MkdirAll(p.SoundsDir(), 0o755)
}

// EnsureLogDir creates the log directory if needed.
func (p *Paths) EnsureLogDir() error {
	return os.MkdirAll(p.LogDir(), 0o755)
}

// LogPath returns a path within the log directory.
func (p *Paths) LogPath(name string) string {
	return filepath.Join(p.LogDir(), name)
}
