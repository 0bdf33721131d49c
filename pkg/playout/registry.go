package playout

import (
	"sync"
	"time"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

// QueueStats is a point-in-time snapshot of one request's queue.
type QueueStats struct {
	TotalChunks  int  `json:"total_chunks"`
	PlayedChunks int  `json:"played_chunks"`
	NextIndex    int  `json:"next_index"`
	Complete     bool `json:"complete"`
}

// Registry owns the reassembly queues of all in-flight requests.
//
// One request at a time is active: the first request to get a chunk
// accepted claims the slot, and enqueues for other ids are rejected until
// it is cleared or finished (see WithConcurrentRequests for the buffering
// variant). A background sweep clears requests whose producers went silent.
//
// All methods are safe for concurrent use. Operations on unknown ids are
// no-ops with zero results; no method blocks or panics on caller input.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*queue
	active string
	seq    uint64
	cfg    config

	done      chan struct{}
	closeOnce func()
}

// NewRegistry creates a registry and starts its background sweep. Close
// stops the sweep.
func NewRegistry(opts ...Option) *Registry {
	r := newRegistry(opts, true)
	return r
}

func newRegistry(opts []Option, sweep bool) *Registry {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	r := &Registry{
		queues: make(map[string]*queue),
		cfg:    cfg,
		done:   make(chan struct{}),
	}
	var once bool
	r.closeOnce = func() {
		if !once {
			once = true
			close(r.done)
		}
	}
	if sweep {
		go r.sweepLoop()
	}
	return r
}

// Close stops the background sweep. Queued state is left in place.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeOnce()
	return nil
}

// Enqueue stores one chunk for the given request, creating its queue on
// first contact. It reports whether the chunk is immediately playable:
// the request is (or just became) the active one and the chunk landed on
// the next expected index.
//
// Negative indexes and empty chunks are dropped silently. Duplicate
// indexes keep the first arrival. If storing the chunk would exceed the
// per-request bound, played chunks are evicted oldest-first to make room;
// when nothing played is left to evict the chunk is stored anyway.
func (r *Registry) Enqueue(requestID string, index int, data pcm.Chunk, messageID string) bool {
	if requestID == "" || index < 0 || data == nil || data.Len() == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enqueueLocked(requestID, index, data, messageID)
}

func (r *Registry) enqueueLocked(requestID string, index int, data pcm.Chunk, messageID string) bool {
	q, ok := r.queues[requestID]
	if !ok {
		if !r.cfg.concurrent && r.active != "" && r.active != requestID {
			r.cfg.logger.Debug("playout: reject chunk for non-active request",
				"request", requestID, "index", index, "active", r.active)
			return false
		}
		q = newQueue(messageID, r.seq, r.cfg.now())
		r.seq++
		r.queues[requestID] = q
		if r.active == "" {
			r.active = requestID
		}
	}
	if q.messageID == "" && messageID != "" {
		q.messageID = messageID
	}
	now := r.cfg.now()
	if _, dup := q.chunks[index]; dup || index < q.floor {
		r.cfg.logger.Debug("playout: drop duplicate chunk",
			"request", requestID, "index", index)
		q.lastActivity = now
		return false
	}
	if len(q.chunks) >= r.cfg.maxChunks {
		if n := q.reclaim(r.cfg.maxChunks); n > 0 {
			r.cfg.logger.Debug("playout: reclaim played chunks",
				"request", requestID, "evicted", n, "stored", len(q.chunks))
		}
	}
	q.add(index, data, now)
	return r.active == requestID && index == q.nextIndex
}

// MarkComplete records that no further chunks will arrive for the request.
// Idempotent. If nothing unplayed remains the request is finalized and
// removed immediately.
func (r *Registry) MarkComplete(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[requestID]
	if !ok {
		return
	}
	if !q.complete {
		q.complete = true
		q.lastActivity = r.cfg.now()
	}
	if q.unplayed == 0 {
		r.removeLocked(requestID)
	}
}

// Next consumes and returns the chunk at the request's next expected
// index, or nil if it has not arrived (or the request is unknown).
func (r *Registry) Next(requestID string) pcm.Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[requestID]
	if !ok {
		return nil
	}
	return q.next(r.cfg.now())
}

// unconsume reverts the most recent Next for the request. The Player uses
// it when the device refuses a chunk, so the chunk is not accounted played.
func (r *Registry) unconsume(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[requestID]; ok {
		q.unconsume()
	}
}

// Peek reports whether Next would return a chunk.
func (r *Registry) Peek(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[requestID]
	return ok && q.peek()
}

// Finished reports whether the request is complete and fully played. An
// unknown id is trivially finished: there is nothing left to play.
func (r *Registry) Finished(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[requestID]
	if !ok {
		return true
	}
	return q.finished()
}

// Message returns the correlation message id recorded for the request.
func (r *Registry) Message(requestID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[requestID]; ok {
		return q.messageID
	}
	return ""
}

// Active returns the id of the currently active request, or "".
func (r *Registry) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Stats returns a snapshot of the request's queue. ok is false for
// unknown ids.
func (r *Registry) Stats(requestID string) (stats QueueStats, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, present := r.queues[requestID]
	if !present {
		return QueueStats{}, false
	}
	return QueueStats{
		TotalChunks:  len(q.chunks),
		PlayedChunks: q.playedStored(),
		NextIndex:    q.nextIndex,
		Complete:     q.complete,
	}, true
}

// Requests returns the ids of all tracked requests in admission order.
func (r *Registry) Requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.queues))
	for id := range r.queues {
		ids = append(ids, id)
	}
	// admission order
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && r.queues[ids[j]].seq < r.queues[ids[j-1]].seq; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// Clear drops all state for the request. If it was active, the oldest
// pending request (by admission order) is promoted, or none.
func (r *Registry) Clear(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(requestID)
}

// ClearAll drops every request.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues = make(map[string]*queue)
	r.active = ""
}

// removeLocked is the single removal path shared by Clear, MarkComplete
// finalization, and the staleness sweep.
func (r *Registry) removeLocked(requestID string) {
	if _, ok := r.queues[requestID]; !ok {
		return
	}
	delete(r.queues, requestID)
	if r.active == requestID {
		r.promoteLocked()
	}
}

// promoteLocked selects the pending request with the lowest admission
// order as the new active request, or leaves none active.
func (r *Registry) promoteLocked() {
	r.active = ""
	var best *queue
	for id, q := range r.queues {
		if best == nil || q.seq < best.seq {
			best = q
			r.active = id
		}
	}
	if r.active != "" {
		r.cfg.logger.Debug("playout: promote request", "request", r.active)
	}
}

// clearIfStale clears the request if it is still idle beyond the TTL,
// re-checking under the lock. Used by a Player's sweep.
func (r *Registry) clearIfStale(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[requestID]
	if !ok {
		return false
	}
	idle := r.cfg.now().Sub(q.lastActivity)
	if idle <= r.cfg.staleTTL {
		return false
	}
	r.cfg.logger.Info("playout: evict stale request", "request", requestID, "idle", idle)
	r.removeLocked(requestID)
	return true
}

// staleIDs returns requests idle beyond the TTL.
func (r *Registry) staleIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.cfg.now()
	var ids []string
	for id, q := range r.queues {
		if now.Sub(q.lastActivity) > r.cfg.staleTTL {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.cfg.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep clears every request idle beyond the TTL, through the same
// removal path Clear uses.
func (r *Registry) sweep() {
	for _, id := range r.staleIDs() {
		r.clearIfStale(id)
	}
}
