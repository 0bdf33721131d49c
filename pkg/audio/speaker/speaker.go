// Package speaker plays pcm chunks through the system audio output using
// an ffplay subprocess, and provides a silent device for headless use.
package speaker

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/buffer"
	"github.com/loroworks/loro/go/pkg/playout"
)

// ErrClosed is returned by Play on a closed Speaker.
var ErrClosed = errors.New("speaker: closed")

var _ playout.Device = (*Speaker)(nil)

// Speaker is a playout.Device backed by ffplay reading raw samples from a
// pipe. Play never blocks: chunks queue to a writer goroutine that feeds
// the pipe when each chunk comes due, so pipe backpressure never reaches
// the scheduler. Completion callbacks fire on the wall clock at each
// chunk's scheduled end.
//
// Stopping an already-written chunk restarts the subprocess to flush its
// buffered tail, which is the closest a pipe sink gets to cancellation.
type Speaker struct {
	format pcm.Format
	proc   *ffplay
	logger *slog.Logger
	jobs   *buffer.Buffer[*job]

	cutMu   sync.Mutex
	lastCut time.Time

	closed atomic.Bool
	done   chan struct{}
}

type Option func(*Speaker)

// WithPath overrides the ffplay binary path.
func WithPath(path string) Option {
	return func(s *Speaker) { s.proc.path = path }
}

// WithVolume sets the output volume, 0 to 100.
func WithVolume(volume int) Option {
	return func(s *Speaker) { s.proc.volume = volume }
}

// WithLogLevel sets ffplay's -loglevel.
func WithLogLevel(level string) Option {
	return func(s *Speaker) { s.proc.logLevel = level }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Speaker) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Speaker for the given output format. The subprocess is
// spawned lazily on the first chunk.
func New(format pcm.Format, opts ...Option) *Speaker {
	s := &Speaker{
		format: format,
		proc:   newFFPlay(format),
		logger: slog.Default(),
		jobs:   buffer.N[*job](16),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.proc.logger = s.logger
	go s.run()
	return s
}

func (s *Speaker) Now() time.Time {
	return time.Now()
}

// Play queues the chunk for the pipe at its scheduled time. The done
// callback fires from a timer goroutine at the chunk's scheduled end.
func (s *Speaker) Play(data pcm.Chunk, at time.Time, done func()) (playout.Handle, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	j := &job{speaker: s, data: data, at: at, done: done}
	if err := s.jobs.Add(j); err != nil {
		return nil, ErrClosed
	}
	return j, nil
}

// Close stops the writer and kills the subprocess. Queued chunks are
// dropped; their callbacks never fire.
func (s *Speaker) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)
	s.jobs.CloseWithError(ErrClosed)
	return s.proc.close()
}

func (s *Speaker) run() {
	for {
		j, err := s.jobs.Next()
		if err != nil {
			return
		}
		if j.stopped.Load() {
			continue
		}
		if wait := time.Until(j.at); wait > 0 {
			select {
			case <-time.After(wait):
			case <-s.done:
				return
			}
		}
		if j.stopped.Load() {
			continue
		}
		j.written.Store(true)
		if err := s.proc.writeChunk(j.data); err != nil {
			// Keep the stream moving; the next ensure respawns.
			s.logger.Error("speaker: write to ffplay", "error", err)
		}
		end := time.Until(j.at.Add(j.data.Duration()))
		if end < 0 {
			end = 0
		}
		time.AfterFunc(end, j.finish)
	}
}

// cut restarts the subprocess to drop its buffered audio. Interruptions
// stop every in-flight chunk in one burst; the debounce collapses that
// into a single restart.
func (s *Speaker) cut() {
	if s.closed.Load() {
		return
	}
	s.cutMu.Lock()
	defer s.cutMu.Unlock()
	if time.Since(s.lastCut) < 100*time.Millisecond {
		return
	}
	s.lastCut = time.Now()
	if err := s.proc.restart(); err != nil {
		s.logger.Error("speaker: restart ffplay", "error", err)
	}
}

// job is one scheduled chunk; it doubles as the playout.Handle.
type job struct {
	speaker *Speaker
	data    pcm.Chunk
	at      time.Time
	done    func()

	stopped atomic.Bool
	written atomic.Bool
	fired   atomic.Bool
}

// Stop cancels the job. A chunk already written to the pipe cannot be
// unwritten, so the subprocess is restarted to cut its tail.
func (j *job) Stop() {
	if j.stopped.Swap(true) {
		return
	}
	if j.written.Load() && !j.fired.Load() {
		j.speaker.cut()
	}
}

func (j *job) finish() {
	if j.stopped.Load() || j.fired.Swap(true) {
		return
	}
	if j.done != nil {
		j.done()
	}
}
