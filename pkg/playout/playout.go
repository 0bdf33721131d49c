package playout

import (
	"fmt"
	"sync"
	"time"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

// Player drains the active request's queue into a Device in strict index
// order, scheduling every buffer to begin exactly where the previous one
// ends.
//
// The drain is re-entrant, never polls, and runs in whatever goroutine
// triggered it: a producer's Enqueue, a device completion callback, or the
// staleness sweep. One mutex serializes all of it; nothing blocking is
// done while it is held. Completion callbacks carry the request id and a
// generation token and are validated before acting, so callbacks that
// outlive their request (after an interruption) fall through harmlessly.
type Player struct {
	dev Device
	reg *Registry
	cfg config

	mu       sync.Mutex
	next     time.Time // output-time cursor; never regresses
	playing  string    // request id of the current audible run
	gen      uint64    // bumped whenever a run ends
	inflight int       // buffers scheduled but not yet finished
	handles  []Handle
	closed   bool
	done     chan struct{}
}

// New creates a Player on the given device and starts its staleness sweep.
// The device clock is used for arrival stamps and TTL checks unless
// WithClock overrides it.
func New(dev Device, opts ...Option) *Player {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.now == nil {
		cfg.now = dev.Now
	}
	p := &Player{
		dev:  dev,
		reg:  newRegistry(append(opts, WithClock(cfg.now)), false),
		cfg:  cfg,
		done: make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// Enqueue stores one chunk and, when the chunk is immediately playable,
// drains the queue to the device. It reports whether the chunk was
// immediately playable; rejected, duplicate, and buffered-out-of-order
// chunks all report false. Safe to call from any goroutine.
func (p *Player) Enqueue(requestID string, index int, data pcm.Chunk, messageID string) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	playable := p.reg.Enqueue(requestID, index, data, messageID)
	var evs []event
	// Peek catches the retry case: the head chunk was handed back after a
	// device failure and a later arrival should kick the drain again.
	if playable || p.reg.Peek(requestID) {
		evs = p.drainLocked()
	}
	p.mu.Unlock()
	p.emit(evs)
	return playable
}

// MarkComplete records that no further chunks will arrive for the request
// and lets the drain finalize it once everything has played out.
func (p *Player) MarkComplete(requestID string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.reg.MarkComplete(requestID)
	evs := p.drainLocked()
	p.mu.Unlock()
	p.emit(evs)
}

// Clear drops the request, interrupting it mid-playback if it is the one
// audible: in-flight device buffers are stopped best-effort and a stopped
// transition is emitted. Clearing an unknown id is a no-op.
func (p *Player) Clear(requestID string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	var evs []event
	if p.playing == requestID {
		evs = p.endRunLocked()
	}
	p.reg.Clear(requestID)
	evs = append(evs, p.drainLocked()...)
	p.mu.Unlock()
	p.emit(evs)
}

// ClearAll interrupts playback and drops every request.
func (p *Player) ClearAll() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	evs := p.endRunLocked()
	p.reg.ClearAll()
	p.mu.Unlock()
	p.emit(evs)
}

// Stats returns a snapshot of the request's queue.
func (p *Player) Stats(requestID string) (QueueStats, bool) {
	return p.reg.Stats(requestID)
}

// Requests returns the ids of all tracked requests in admission order.
func (p *Player) Requests() []string {
	return p.reg.Requests()
}

// Active returns the id of the currently active request, or "".
func (p *Player) Active() string {
	return p.reg.Active()
}

// Playing returns the request id of the current audible run, or "".
func (p *Player) Playing() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Close interrupts playback, drops all state, and stops the sweep.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	evs := p.endRunLocked()
	p.reg.ClearAll()
	p.reg.Close()
	p.mu.Unlock()
	p.emit(evs)
	return nil
}

// drainLocked implements the scheduling pass. Called with p.mu held; the
// returned events must be emitted after the lock is released.
func (p *Player) drainLocked() []event {
	var evs []event
	for {
		if p.closed {
			return evs
		}
		active := p.reg.Active()
		if active == "" {
			// Nothing tracked anywhere. End the run once its tail
			// finishes playing.
			if p.playing != "" && p.inflight == 0 {
				evs = append(evs, p.endRunLocked()...)
			}
			return evs
		}
		if p.playing != "" && p.playing != active {
			// Our request vanished (cleared or evicted) while others
			// were pending. Let in-flight audio run out first.
			if p.inflight > 0 {
				return evs
			}
			evs = append(evs, p.endRunLocked()...)
			continue
		}
		data := p.reg.Next(active)
		if data == nil {
			if p.inflight > 0 {
				return evs
			}
			if p.reg.Finished(active) {
				p.reg.Clear(active)
				evs = append(evs, p.endRunLocked()...)
				continue
			}
			// Starving on a gap: wait for the missing chunk.
			return evs
		}
		now := p.dev.Now()
		at := p.next
		if at.Before(now) {
			if !p.next.IsZero() && p.playing != "" {
				p.cfg.logger.Debug("playout: cursor behind device clock",
					"request", active, "behind", now.Sub(p.next))
			}
			at = now
		}
		requestID, gen := active, p.gen
		h, err := p.dev.Play(data, at, func() { p.onDone(requestID, gen) })
		if err != nil {
			p.reg.unconsume(active)
			evs = append(evs, event{kind: evError,
				err: fmt.Errorf("playout: play chunk for request %s: %w", active, err)})
			return evs
		}
		p.handles = append(p.handles, h)
		p.inflight++
		p.next = at.Add(data.Duration())
		if p.playing == "" {
			p.playing = active
			msg := p.reg.Message(active)
			p.cfg.logger.Info("playout: playback started", "request", active, "message", msg)
			evs = append(evs, event{kind: evStarted, message: msg})
		}
	}
}

// onDone is the device completion callback for one scheduled buffer.
func (p *Player) onDone(requestID string, gen uint64) {
	p.mu.Lock()
	if p.closed || gen != p.gen || requestID != p.playing {
		p.mu.Unlock()
		return
	}
	if p.inflight > 0 {
		p.inflight--
	}
	// Buffers finish in schedule order.
	if len(p.handles) > 0 {
		p.handles = p.handles[1:]
	}
	if now := p.dev.Now(); p.next.Before(now) {
		p.next = now
	}
	evs := p.drainLocked()
	p.mu.Unlock()
	p.emit(evs)
}

// endRunLocked stops whatever is in flight and closes out the current run.
// Emits a stopped transition only if a run had started.
func (p *Player) endRunLocked() []event {
	var evs []event
	for _, h := range p.handles {
		h.Stop()
	}
	p.handles = nil
	p.inflight = 0
	p.gen++
	p.next = time.Time{} // next run starts from the device clock
	if p.playing != "" {
		p.cfg.logger.Info("playout: playback stopped", "request", p.playing)
		p.playing = ""
		evs = append(evs, event{kind: evStopped})
	}
	return evs
}

func (p *Player) emit(evs []event) {
	for _, ev := range evs {
		switch ev.kind {
		case evStarted:
			for _, l := range p.cfg.listeners {
				l.PlaybackStarted(ev.message)
			}
		case evStopped:
			for _, l := range p.cfg.listeners {
				l.PlaybackStopped()
			}
		case evError:
			if p.cfg.onError != nil {
				p.cfg.onError(ev.err)
			} else {
				p.cfg.logger.Error("playout: device error", "error", ev.err)
			}
		}
	}
}

func (p *Player) sweepLoop() {
	ticker := time.NewTicker(p.cfg.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.sweepOnce()
		}
	}
}

// sweepOnce clears stale requests through the same path Clear uses,
// interrupting the audible run if it is the one that went stale.
func (p *Player) sweepOnce() {
	for _, id := range p.reg.staleIDs() {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		var evs []event
		if p.reg.clearIfStale(id) {
			if p.playing == id {
				evs = p.endRunLocked()
			}
			evs = append(evs, p.drainLocked()...)
		}
		p.mu.Unlock()
		p.emit(evs)
	}
}
