package playout

// Listener observes playback transitions emitted by a Player.
//
// PlaybackStarted fires when the first buffer of a run is handed to the
// device, carrying the correlation message id of the request being played.
// PlaybackStopped fires when a run ends for any reason: drained to
// completion, cleared, evicted, or the player closed. The two always
// alternate. Listeners are invoked outside the scheduler lock and may call
// back into the Player.
type Listener interface {
	PlaybackStarted(messageID string)
	PlaybackStopped()
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil
// fields are skipped.
type ListenerFuncs struct {
	OnStarted func(messageID string)
	OnStopped func()
}

// PlaybackStarted implements Listener.
func (l ListenerFuncs) PlaybackStarted(messageID string) {
	if l.OnStarted != nil {
		l.OnStarted(messageID)
	}
}

// PlaybackStopped implements Listener.
func (l ListenerFuncs) PlaybackStopped() {
	if l.OnStopped != nil {
		l.OnStopped()
	}
}

type eventKind int

const (
	evStarted eventKind = iota
	evStopped
	evError
)

// event is a pending notification collected under the scheduler lock and
// delivered after it is released.
type event struct {
	kind    eventKind
	message string
	err     error
}
