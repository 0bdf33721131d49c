// Package audio provides audio processing utilities.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - pcm: PCM (Pulse Code Modulation) audio format handling
//   - resampler: sample rate conversion between PCM formats
//   - speaker: local playback devices (ffplay subprocess, null)
//   - wav: minimal WAV encoding and decoding
//
// Example usage:
//
//	import "github.com/loroworks/loro/go/pkg/audio/pcm"
//
//	format := pcm.L16Mono24K
//	chunk := format.DataChunk(audioData)
package audio
