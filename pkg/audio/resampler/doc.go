// Package resampler converts 16-bit mono audio between the sample rates
// pcm knows, using a pure Go polyphase converter.
//
// Two entry points: New wraps an io.Reader of raw samples for streaming
// conversion, Convert resamples one pcm.Chunk wholesale. Feed decoding
// uses Convert to bring provider audio onto the device rate.
package resampler
