package playout

import (
	"time"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

// Handle refers to one buffer scheduled on a Device.
type Handle interface {
	// Stop cancels the buffer. Stopping a buffer that already finished
	// (or was stopped before) is a silent no-op.
	Stop()
}

// Device is the audio output a Player drives.
//
// Play queues the chunk to begin at the given time on the device clock and
// returns immediately; it must not block. The device invokes done exactly
// once when the buffer has finished playing, from its own goroutine, never
// synchronously from inside Play. After Stop, done may be skipped; the
// Player treats late or skipped callbacks as expected.
type Device interface {
	// Now returns the current value of the device's monotonic clock.
	Now() time.Time

	// Play schedules chunk to start at the given time.
	Play(chunk pcm.Chunk, at time.Time, done func()) (Handle, error)
}
