package playout

import (
	"log/slog"
	"time"
)

const (
	// DefaultMaxChunksPerRequest is the soft bound on stored chunks per
	// request. Exceeding it evicts played chunks; unplayed chunks are
	// never dropped even if the bound is temporarily exceeded.
	DefaultMaxChunksPerRequest = 256

	// DefaultStaleRequestTTL is how long a request may sit with no
	// activity before the background sweep clears it.
	DefaultStaleRequestTTL = 30 * time.Second

	// DefaultSweepInterval is how often the background sweep runs.
	DefaultSweepInterval = 5 * time.Second
)

type config struct {
	maxChunks  int
	staleTTL   time.Duration
	sweepEvery time.Duration
	concurrent bool
	now        func() time.Time
	logger     *slog.Logger
	listeners  []Listener
	onError    func(error)
}

func defaultConfig() config {
	return config{
		maxChunks:  DefaultMaxChunksPerRequest,
		staleTTL:   DefaultStaleRequestTTL,
		sweepEvery: DefaultSweepInterval,
		logger:     slog.Default(),
	}
}

// Option configures a Registry or a Player.
type Option func(*config)

// WithMaxChunksPerRequest sets the soft bound on stored chunks per request.
func WithMaxChunksPerRequest(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxChunks = n
		}
	}
}

// WithStaleRequestTTL sets how long an idle request survives before the
// background sweep clears it.
func WithStaleRequestTTL(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.staleTTL = d
		}
	}
}

// WithSweepInterval sets how often the background sweep runs.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.sweepEvery = d
		}
	}
}

// WithConcurrentRequests allows multiple requests to buffer chunks at the
// same time. Only the active request is ever drained to the device; the
// rest hold their audio until promoted. Without this option, enqueues for
// anything but the active request are rejected outright.
func WithConcurrentRequests(allow bool) Option {
	return func(c *config) {
		c.concurrent = allow
	}
}

// WithClock overrides the clock used for arrival stamps and staleness
// checks. A Player defaults to its device's clock; a standalone Registry
// defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithListener registers a listener for playback transitions. May be given
// multiple times; listeners are notified in registration order, outside the
// scheduler lock.
func WithListener(l Listener) Option {
	return func(c *config) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// WithErrorHandler sets the hook that receives device failures. Failures
// never surface through Enqueue or other operations; this hook is the only
// error path out of a Player. Defaults to logging at error level.
func WithErrorHandler(fn func(error)) Option {
	return func(c *config) {
		if fn != nil {
			c.onError = fn
		}
	}
}
