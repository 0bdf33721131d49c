// Package config loads the serve settings document.
//
// Settings describe one engine deployment: where to listen for
// producers, which output device to drive, where the sound bank lives,
// and the playback engine tuning. The document is YAML:
//
//	ingest:
//	  listen: ":7700"
//	  rtp: ":5004"
//	  rtp_rate: 48000
//	engine:
//	  rate: 24000
//	  max_chunks: 256
//	  stale_ttl: 30s
//	  sweep_interval: 5s
//	  concurrent: false
//	device:
//	  kind: speaker
//	  volume: 100
//	bank: ~/.loro/sounds
//
// Every field has a default; a missing or empty file yields a fully
// usable Settings value.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Device kinds.
const (
	DeviceSpeaker = "speaker"
	DeviceNull    = "null"
)

// Settings is the serve configuration document.
type Settings struct {
	Ingest Ingest `yaml:"ingest"`
	Engine Engine `yaml:"engine"`
	Device Device `yaml:"device"`

	// Bank locates the sound bank: a directory path or an
	// "s3://bucket/prefix" URL. Empty means ~/.loro/sounds.
	Bank string `yaml:"bank,omitempty"`
}

// Ingest configures the producer-facing transports.
type Ingest struct {
	// Listen is the websocket/HTTP listen address.
	Listen string `yaml:"listen"`

	// RTP is the UDP listen address for RTP ingest. Empty disables it.
	RTP string `yaml:"rtp,omitempty"`

	// RTPRate is the sample rate of incoming RTP audio.
	RTPRate int `yaml:"rtp_rate,omitempty"`
}

// Engine configures the playback engine.
type Engine struct {
	// Rate is the playback sample rate (16000, 24000 or 48000).
	Rate int `yaml:"rate"`

	// MaxChunks bounds stored chunks per request.
	MaxChunks int `yaml:"max_chunks,omitempty"`

	// StaleTTL is how long an idle request survives before the sweep
	// clears it.
	StaleTTL Duration `yaml:"stale_ttl,omitempty"`

	// SweepInterval is how often the stale sweep runs.
	SweepInterval Duration `yaml:"sweep_interval,omitempty"`

	// Concurrent buffers chunks for pending requests instead of
	// rejecting them while another request is active.
	Concurrent bool `yaml:"concurrent,omitempty"`
}

// Device configures the output device.
type Device struct {
	// Kind selects the device: "speaker" (ffplay) or "null".
	Kind string `yaml:"kind"`

	// Volume is the speaker volume (0-100).
	Volume int `yaml:"volume,omitempty"`
}

// Default returns the default settings.
func Default() *Settings {
	return &Settings{
		Ingest: Ingest{
			Listen:  ":7700",
			RTPRate: 48000,
		},
		Engine: Engine{
			Rate: 24000,
		},
		Device: Device{
			Kind:   DeviceSpeaker,
			Volume: 100,
		},
	}
}

// Load reads settings from a YAML file, applying defaults for absent
// fields. An empty path returns Default().
func Load(path string) (*Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("config: parse settings: %w", err)
	}
	return s, s.Validate()
}

// Validate checks field values.
func (s *Settings) Validate() error {
	switch s.Device.Kind {
	case DeviceSpeaker, DeviceNull:
	default:
		return fmt.Errorf("config: unknown device kind %q", s.Device.Kind)
	}
	switch s.Engine.Rate {
	case 16000, 24000, 48000:
	default:
		return fmt.Errorf("config: unsupported engine rate %d", s.Engine.Rate)
	}
	if s.Ingest.Listen == "" {
		return fmt.Errorf("config: ingest listen address is required")
	}
	return nil
}

// Duration is a time.Duration that round-trips through YAML as a
// "30s" style string.
type Duration time.Duration

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalYAML implements yaml.InterfaceMarshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (d *Duration) UnmarshalYAML(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"'`)
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}
