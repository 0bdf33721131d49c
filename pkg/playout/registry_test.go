package playout

import (
	"testing"
	"time"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

func testChunk(fill byte) pcm.Chunk {
	data := make([]byte, 640) // 20ms at 16kHz mono
	for i := range data {
		data[i] = fill
	}
	return pcm.L16Mono16K.DataChunk(data)
}

func manualClock(start time.Time) (now func() time.Time, advance func(time.Duration)) {
	t := start
	return func() time.Time { return t }, func(d time.Duration) { t = t.Add(d) }
}

func TestRegistryOrderedArrival(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	chunks := []pcm.Chunk{testChunk(1), testChunk(2), testChunk(3)}
	for i, c := range chunks {
		if !r.Enqueue("r1", i, c, "m1") {
			t.Fatalf("Enqueue(%d) = false, want true", i)
		}
		if got := r.Next("r1"); got != c {
			t.Fatalf("Next() after enqueue %d = %v, want chunk %d", i, got, i)
		}
	}
	if got := r.Next("r1"); got != nil {
		t.Fatalf("Next() on drained queue = %v, want nil", got)
	}
	if r.Finished("r1") {
		t.Fatal("Finished() = true before MarkComplete")
	}
	r.MarkComplete("r1")
	if !r.Finished("r1") {
		t.Fatal("Finished() = false after MarkComplete on fully played queue")
	}
	if _, ok := r.Stats("r1"); ok {
		t.Fatal("Stats() still tracks request after finalization")
	}
	if got := r.Active(); got != "" {
		t.Fatalf("Active() = %q, want \"\"", got)
	}
}

func TestRegistryOutOfOrderArrival(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	c0, c1, c2 := testChunk(0), testChunk(1), testChunk(2)
	if !r.Enqueue("r1", 0, c0, "m1") {
		t.Fatal("Enqueue(0) = false, want true")
	}
	if got := r.Next("r1"); got != c0 {
		t.Fatalf("Next() = %v, want chunk 0", got)
	}
	// Chunk 2 lands before chunk 1: buffered, not playable.
	if r.Enqueue("r1", 2, c2, "m1") {
		t.Fatal("Enqueue(2) = true with chunk 1 missing, want false")
	}
	if got := r.Next("r1"); got != nil {
		t.Fatalf("Next() across a gap = %v, want nil", got)
	}
	if !r.Enqueue("r1", 1, c1, "m1") {
		t.Fatal("Enqueue(1) = false, want true once the gap fills")
	}
	if got := r.Next("r1"); got != c1 {
		t.Fatalf("Next() = %v, want chunk 1", got)
	}
	if got := r.Next("r1"); got != c2 {
		t.Fatalf("Next() = %v, want chunk 2", got)
	}
}

func TestRegistryDuplicateKeepsFirst(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	first, second := testChunk(1), testChunk(2)
	if !r.Enqueue("r1", 0, first, "m1") {
		t.Fatal("Enqueue(first) = false, want true")
	}
	if r.Enqueue("r1", 0, second, "m1") {
		t.Fatal("Enqueue(duplicate) = true, want false")
	}
	if got := r.Next("r1"); got != first {
		t.Fatalf("Next() = %v, want the first arrival", got)
	}
	stats, _ := r.Stats("r1")
	if stats.TotalChunks != 1 {
		t.Fatalf("TotalChunks = %d, want 1", stats.TotalChunks)
	}
}

func TestRegistryRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	tests := []struct {
		name      string
		requestID string
		index     int
		data      pcm.Chunk
	}{
		{"empty request id", "", 0, testChunk(1)},
		{"negative index", "r1", -1, testChunk(1)},
		{"nil chunk", "r1", 0, nil},
		{"empty chunk", "r1", 0, pcm.L16Mono16K.DataChunk(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r.Enqueue(tt.requestID, tt.index, tt.data, "m1") {
				t.Fatal("Enqueue = true, want false")
			}
		})
	}
	if _, ok := r.Stats("r1"); ok {
		t.Fatal("rejected enqueues created a queue")
	}
}

func TestRegistryExclusiveAdmission(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	if !r.Enqueue("r1", 0, testChunk(1), "m1") {
		t.Fatal("Enqueue(r1) = false, want true")
	}
	if r.Enqueue("r2", 0, testChunk(2), "m2") {
		t.Fatal("Enqueue(r2) = true while r1 is active, want reject")
	}
	if _, ok := r.Stats("r2"); ok {
		t.Fatal("rejected request r2 was tracked")
	}
	r.Clear("r1")
	if !r.Enqueue("r2", 0, testChunk(2), "m2") {
		t.Fatal("Enqueue(r2) = false after r1 cleared, want true")
	}
	if got := r.Active(); got != "r2" {
		t.Fatalf("Active() = %q, want r2", got)
	}
}

func TestRegistryConcurrentBuffering(t *testing.T) {
	r := NewRegistry(WithConcurrentRequests(true))
	defer r.Close()

	if !r.Enqueue("r1", 0, testChunk(1), "m1") {
		t.Fatal("Enqueue(r1) = false, want true")
	}
	// r2 buffers while r1 holds the device: accepted but not playable.
	if r.Enqueue("r2", 0, testChunk(2), "m2") {
		t.Fatal("Enqueue(r2) = true while r1 is active, want false")
	}
	if _, ok := r.Stats("r2"); !ok {
		t.Fatal("pending request r2 not tracked")
	}
	if got, want := r.Requests(), []string{"r1", "r2"}; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Requests() = %v, want %v", got, want)
	}
	r.Clear("r1")
	if got := r.Active(); got != "r2" {
		t.Fatalf("Active() after clearing r1 = %q, want r2", got)
	}
	if !r.Peek("r2") {
		t.Fatal("Peek(r2) = false after promotion, want true")
	}
}

func TestRegistryPromotionOrder(t *testing.T) {
	r := NewRegistry(WithConcurrentRequests(true))
	defer r.Close()

	for i, id := range []string{"r1", "r2", "r3"} {
		r.Enqueue(id, 0, testChunk(byte(i)), "")
	}
	r.Clear("r3") // clearing a pending request must not disturb the rest
	r.Clear("r1")
	if got := r.Active(); got != "r2" {
		t.Fatalf("Active() = %q, want r2", got)
	}
	r.Clear("r2")
	if got := r.Active(); got != "" {
		t.Fatalf("Active() = %q, want \"\"", got)
	}
}

func TestRegistryMarkComplete(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	r.MarkComplete("unknown") // no-op

	// Completion with chunks still unplayed keeps the queue alive.
	r.Enqueue("r1", 0, testChunk(1), "m1")
	r.MarkComplete("r1")
	r.MarkComplete("r1") // idempotent
	stats, ok := r.Stats("r1")
	if !ok || !stats.Complete {
		t.Fatalf("Stats() = %+v, %v; want tracked and complete", stats, ok)
	}
	if r.Finished("r1") {
		t.Fatal("Finished() = true with an unplayed chunk")
	}
	if got := r.Next("r1"); got == nil {
		t.Fatal("Next() = nil, want the remaining chunk")
	}
	if !r.Finished("r1") {
		t.Fatal("Finished() = false after the last chunk played")
	}

	// Completion after everything played finalizes immediately.
	r.Clear("r1")
	r.Enqueue("r2", 0, testChunk(2), "m2")
	r.Next("r2")
	r.MarkComplete("r2")
	if _, ok := r.Stats("r2"); ok {
		t.Fatal("Stats() still tracks r2 after immediate finalization")
	}
}

func TestRegistryFinishedUnknown(t *testing.T) {
	r := NewRegistry()
	defer r.Close()
	if !r.Finished("never-seen") {
		t.Fatal("Finished(unknown) = false, want trivially true")
	}
}

func TestRegistryUnconsume(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	c := testChunk(7)
	r.Enqueue("r1", 0, c, "m1")
	if got := r.Next("r1"); got != c {
		t.Fatalf("Next() = %v, want the chunk", got)
	}
	r.unconsume("r1")
	if !r.Peek("r1") {
		t.Fatal("Peek() = false after unconsume, want true")
	}
	if got := r.Next("r1"); got != c {
		t.Fatalf("Next() after unconsume = %v, want the same chunk", got)
	}
}

func TestRegistryBoundedMemory(t *testing.T) {
	r := NewRegistry(WithMaxChunksPerRequest(4))
	defer r.Close()

	// Fill and play the window, then keep streaming: the stored count
	// stays at the bound, with played chunks evicted oldest first.
	for i := 0; i < 4; i++ {
		r.Enqueue("r1", i, testChunk(byte(i)), "m1")
		r.Next("r1")
	}
	for i := 4; i < 32; i++ {
		r.Enqueue("r1", i, testChunk(byte(i)), "m1")
		stats, _ := r.Stats("r1")
		if stats.TotalChunks > 4 {
			t.Fatalf("TotalChunks = %d after enqueue %d, want <= 4", stats.TotalChunks, i)
		}
		r.Next("r1")
	}

	// A re-send of an evicted index is treated as a duplicate.
	if r.Enqueue("r1", 0, testChunk(0), "m1") {
		t.Fatal("Enqueue(evicted index) = true, want false")
	}

	// Unplayed chunks are never evicted: the bound is soft.
	r2 := NewRegistry(WithMaxChunksPerRequest(2))
	defer r2.Close()
	for i := 0; i < 8; i++ {
		r2.Enqueue("r2", i, testChunk(byte(i)), "m2")
	}
	stats, _ := r2.Stats("r2")
	if stats.TotalChunks != 8 {
		t.Fatalf("TotalChunks = %d, want all 8 unplayed chunks kept", stats.TotalChunks)
	}
}

func TestRegistryStaleSweep(t *testing.T) {
	now, advance := manualClock(time.Unix(1700000000, 0))
	r := newRegistry([]Option{
		WithConcurrentRequests(true),
		WithStaleRequestTTL(time.Second),
		WithClock(now),
	}, false)

	r.Enqueue("r1", 0, testChunk(1), "m1")
	advance(600 * time.Millisecond)
	r.Enqueue("r2", 0, testChunk(2), "m2")

	// r1 refreshed by new activity survives the sweep.
	r.Enqueue("r1", 1, testChunk(3), "m1")
	advance(700 * time.Millisecond)
	r.sweep()
	if _, ok := r.Stats("r1"); !ok {
		t.Fatal("r1 swept despite recent activity")
	}
	if _, ok := r.Stats("r2"); !ok {
		t.Fatal("r2 swept before its TTL elapsed")
	}

	advance(time.Second)
	r.sweep()
	if _, ok := r.Stats("r1"); ok {
		t.Fatal("r1 not swept after going idle past the TTL")
	}
	if _, ok := r.Stats("r2"); ok {
		t.Fatal("r2 not swept after going idle past the TTL")
	}
	if got := r.Active(); got != "" {
		t.Fatalf("Active() = %q after sweep, want \"\"", got)
	}
}

func TestRegistryClearAll(t *testing.T) {
	r := NewRegistry(WithConcurrentRequests(true))
	defer r.Close()

	r.Enqueue("r1", 0, testChunk(1), "m1")
	r.Enqueue("r2", 0, testChunk(2), "m2")
	r.ClearAll()
	if got := len(r.Requests()); got != 0 {
		t.Fatalf("Requests() has %d entries after ClearAll, want 0", got)
	}
	if got := r.Active(); got != "" {
		t.Fatalf("Active() = %q after ClearAll, want \"\"", got)
	}
	// The registry is reusable afterwards.
	if !r.Enqueue("r3", 0, testChunk(3), "m3") {
		t.Fatal("Enqueue after ClearAll = false, want true")
	}
}
