// Package playout reassembles ordered audio chunks and plays them back
// gaplessly.
//
// Synthesized speech reaches the device as indexed chunks that arrive over
// the network out of order and in unpredictable sizes. A [Registry] holds
// one queue per in-flight request, hands chunks out strictly by index,
// bounds memory for abandoned requests, and admits at most one audible
// request at a time unless concurrent buffering is enabled. A [Player]
// drains the active request into a [Device], keeping a monotonically
// advancing output-time cursor so consecutive buffers begin exactly where
// the previous one ends, and emits PlaybackStarted/PlaybackStopped
// transitions that the rest of the system observes. A [Ducker] consumes
// those transitions to ramp the capture gain down while the device is
// speaking and back up afterwards.
//
// All registry and scheduler state is serialized: mutation happens either
// inside a producer's Enqueue call or inside a device completion callback,
// both behind the same mutex, and no blocking work is done while it is
// held. Operations on unknown request ids degrade to no-ops; races between
// producer completion and consumer eviction are expected, not exceptional.
package playout
