// Package pcm provides types and utilities for working with PCM (Pulse Code
// Modulation) audio data.
//
// The package defines the audio formats used across loro (16-bit mono at
// 16/24/48 kHz) and the Chunk abstraction that carries decoded audio from
// ingest, through playback scheduling, to the output device. Format exposes
// the byte/sample/duration conversions the playback cursor arithmetic is
// built on.
package pcm
