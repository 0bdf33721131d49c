package playout

import (
	"time"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

// chunk is one indexed unit of decoded audio inside a request queue.
type chunk struct {
	index     int
	data      pcm.Chunk
	played    bool
	arrivedAt time.Time
}

// queue holds the reassembly state of a single request. It is not safe for
// concurrent use; the owning Registry serializes access.
type queue struct {
	chunks    map[int]*chunk
	nextIndex int
	unplayed  int
	floor     int // lowest index still stored; everything below was evicted
	messageID string
	complete  bool

	lastActivity time.Time
	seq          uint64 // admission order, drives deterministic promotion
}

func newQueue(messageID string, seq uint64, now time.Time) *queue {
	return &queue{
		chunks:       make(map[int]*chunk),
		messageID:    messageID,
		seq:          seq,
		lastActivity: now,
	}
}

// add stores a chunk. The caller has already rejected duplicates and
// negative indexes.
func (q *queue) add(index int, data pcm.Chunk, now time.Time) {
	q.chunks[index] = &chunk{index: index, data: data, arrivedAt: now}
	q.unplayed++
	q.lastActivity = now
}

// next consumes and returns the chunk at nextIndex, or nil if it has not
// arrived yet. Consumed chunks stay in the map, marked played, until
// reclaimed or the request ends.
func (q *queue) next(now time.Time) pcm.Chunk {
	c, ok := q.chunks[q.nextIndex]
	if !ok || c.played {
		return nil
	}
	c.played = true
	q.unplayed--
	q.nextIndex++
	q.lastActivity = now
	return c.data
}

// unconsume reverts the most recent next call. Only valid immediately
// after a successful next with no intervening mutation.
func (q *queue) unconsume() {
	c, ok := q.chunks[q.nextIndex-1]
	if !ok || !c.played {
		return
	}
	c.played = false
	q.unplayed++
	q.nextIndex--
}

// peek reports whether next would return a chunk.
func (q *queue) peek() bool {
	c, ok := q.chunks[q.nextIndex]
	return ok && !c.played
}

// finished reports whether the request is complete and fully played.
func (q *queue) finished() bool {
	return q.complete && q.unplayed == 0
}

// reclaim evicts played chunks, oldest first, until the stored count drops
// below max. Unplayed chunks are never evicted; reclaim stops at the first
// one. Returns the number of chunks evicted.
func (q *queue) reclaim(max int) int {
	evicted := 0
	for len(q.chunks) >= max {
		c, ok := q.chunks[q.floor]
		if !ok || !c.played {
			break
		}
		delete(q.chunks, q.floor)
		q.floor++
		evicted++
	}
	return evicted
}

// playedStored returns how many played chunks are still stored.
func (q *queue) playedStored() int {
	return q.nextIndex - q.floor
}
