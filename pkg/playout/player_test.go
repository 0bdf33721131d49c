package playout_test

import (
	"errors"
	"testing"
	"time"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/playout"
	"github.com/loroworks/loro/go/pkg/playout/playtest"
)

var testBase = time.Unix(1700000000, 0)

func chunk20ms(fill byte) pcm.Chunk {
	data := make([]byte, 640)
	for i := range data {
		data[i] = fill
	}
	return pcm.L16Mono16K.DataChunk(data)
}

// newPlayer builds a player on a manual-clock device with the background
// sweep effectively disabled, so tests drive everything explicitly.
func newPlayer(t *testing.T, opts ...playout.Option) (*playout.Player, *playtest.Device) {
	t.Helper()
	dev := playtest.New(testBase)
	p := playout.New(dev, append(opts, playout.WithSweepInterval(time.Hour))...)
	t.Cleanup(func() { p.Close() })
	return p, dev
}

func TestPlayerGaplessSchedule(t *testing.T) {
	p, dev := newPlayer(t)

	for i := 0; i < 3; i++ {
		if !p.Enqueue("r1", i, chunk20ms(byte(i)), "m1") {
			t.Fatalf("Enqueue(%d) = false, want true", i)
		}
	}
	bufs := dev.Scheduled()
	if len(bufs) != 3 {
		t.Fatalf("scheduled %d buffers, want 3", len(bufs))
	}
	if got := bufs[0].At(); !got.Equal(testBase) {
		t.Fatalf("first buffer at %v, want %v", got, testBase)
	}
	for i := 1; i < 3; i++ {
		if got, want := bufs[i].At(), bufs[i-1].End(); !got.Equal(want) {
			t.Fatalf("buffer %d at %v, want %v (end of previous)", i, got, want)
		}
	}
}

func TestPlayerOutOfOrderSchedulesInOrder(t *testing.T) {
	p, dev := newPlayer(t)

	p.Enqueue("r1", 0, chunk20ms(0), "m1")
	if p.Enqueue("r1", 2, chunk20ms(2), "m1") {
		t.Fatal("Enqueue(2) = true with chunk 1 missing, want false")
	}
	if got := len(dev.Scheduled()); got != 1 {
		t.Fatalf("scheduled %d buffers across a gap, want 1", got)
	}
	if !p.Enqueue("r1", 1, chunk20ms(1), "m1") {
		t.Fatal("Enqueue(1) = false, want true")
	}
	bufs := dev.Scheduled()
	if len(bufs) != 3 {
		t.Fatalf("scheduled %d buffers after the gap filled, want 3", len(bufs))
	}
	for i := 1; i < 3; i++ {
		if got, want := bufs[i].At(), bufs[i-1].End(); !got.Equal(want) {
			t.Fatalf("buffer %d at %v, want %v", i, got, want)
		}
	}
}

func TestPlayerStartStopEvents(t *testing.T) {
	started := make(chan string, 4)
	stopped := make(chan struct{}, 4)
	p, dev := newPlayer(t, playout.WithListener(playout.ListenerFuncs{
		OnStarted: func(messageID string) { started <- messageID },
		OnStopped: func() { stopped <- struct{}{} },
	}))

	p.Enqueue("r1", 0, chunk20ms(0), "m1")
	select {
	case got := <-started:
		if got != "m1" {
			t.Fatalf("started with message %q, want m1", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no started event after first playable chunk")
	}

	p.MarkComplete("r1")
	select {
	case <-stopped:
		t.Fatal("stopped event before the scheduled audio finished")
	default:
	}

	dev.Advance(20 * time.Millisecond)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("no stopped event after playback drained")
	}
	if _, ok := p.Stats("r1"); ok {
		t.Fatal("request still tracked after finishing")
	}
}

func TestPlayerUnderrunResumesAtNow(t *testing.T) {
	p, dev := newPlayer(t)

	p.Enqueue("r1", 0, chunk20ms(0), "m1")
	dev.Advance(20 * time.Millisecond) // chunk 0 plays out
	dev.Advance(30 * time.Millisecond) // producer stalls; output goes silent

	p.Enqueue("r1", 1, chunk20ms(1), "m1")
	bufs := dev.Scheduled()
	if len(bufs) != 2 {
		t.Fatalf("scheduled %d buffers, want 2", len(bufs))
	}
	want := testBase.Add(50 * time.Millisecond)
	if got := bufs[1].At(); !got.Equal(want) {
		t.Fatalf("late chunk at %v, want %v (device now, not the stale cursor)", got, want)
	}
}

func TestPlayerClearInterruptsRun(t *testing.T) {
	started := make(chan string, 4)
	stopped := make(chan struct{}, 4)
	p, dev := newPlayer(t, playout.WithListener(playout.ListenerFuncs{
		OnStarted: func(messageID string) { started <- messageID },
		OnStopped: func() { stopped <- struct{}{} },
	}))

	for i := 0; i < 3; i++ {
		p.Enqueue("r1", i, chunk20ms(byte(i)), "m1")
	}
	dev.Advance(20 * time.Millisecond) // chunk 0 done, two in flight
	<-started

	p.Clear("r1")
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("no stopped event on interruption")
	}
	bufs := dev.Scheduled()
	if !bufs[1].Stopped() || !bufs[2].Stopped() {
		t.Fatal("in-flight buffers not stopped on interruption")
	}

	// A new request starts immediately on the device clock.
	p.Enqueue("r2", 0, chunk20ms(9), "m2")
	select {
	case got := <-started:
		if got != "m2" {
			t.Fatalf("started with message %q, want m2", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no started event for the next request")
	}
	bufs = dev.Scheduled()
	last := bufs[len(bufs)-1]
	if got := last.At(); !got.Equal(dev.Now()) {
		t.Fatalf("next request scheduled at %v, want %v (device now)", got, dev.Now())
	}
}

func TestPlayerStaleCallbackIgnored(t *testing.T) {
	stopped := make(chan struct{}, 4)
	p, dev := newPlayer(t, playout.WithListener(playout.ListenerFuncs{
		OnStopped: func() { stopped <- struct{}{} },
	}))

	p.Enqueue("r1", 0, chunk20ms(0), "m1")
	b0 := dev.Scheduled()[0]

	p.Clear("r1")
	<-stopped

	p.Enqueue("r2", 0, chunk20ms(1), "m2")
	if got := p.Playing(); got != "r2" {
		t.Fatalf("Playing() = %q, want r2", got)
	}

	// The device lost the cancel race: the old buffer completes anyway.
	// Its callback belongs to a dead run and must change nothing.
	b0.Finish()
	select {
	case <-stopped:
		t.Fatal("stale completion callback ended the new run")
	default:
	}
	if got := p.Playing(); got != "r2" {
		t.Fatalf("Playing() = %q after stale callback, want r2", got)
	}

	p.MarkComplete("r2")
	dev.Advance(20 * time.Millisecond)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("no stopped event when the new run drained")
	}
}

func TestPlayerExclusiveRejectsOthers(t *testing.T) {
	p, dev := newPlayer(t)

	p.Enqueue("r1", 0, chunk20ms(0), "m1")
	if p.Enqueue("r2", 0, chunk20ms(1), "m2") {
		t.Fatal("Enqueue(r2) = true during r1 playback, want reject")
	}
	if got := len(dev.Scheduled()); got != 1 {
		t.Fatalf("scheduled %d buffers, want 1 (r2 rejected)", got)
	}
	if got := p.Playing(); got != "r1" {
		t.Fatalf("Playing() = %q, want r1", got)
	}
	if _, ok := p.Stats("r2"); ok {
		t.Fatal("rejected request r2 is tracked")
	}
}

func TestPlayerPromotesPendingRequest(t *testing.T) {
	started := make(chan string, 4)
	p, dev := newPlayer(t,
		playout.WithConcurrentRequests(true),
		playout.WithListener(playout.ListenerFuncs{
			OnStarted: func(messageID string) { started <- messageID },
		}))

	p.Enqueue("r1", 0, chunk20ms(0), "m1")
	p.Enqueue("r1", 1, chunk20ms(1), "m1")
	if p.Enqueue("r2", 0, chunk20ms(2), "m2") {
		t.Fatal("Enqueue(r2) = true while r1 active, want buffered")
	}
	p.MarkComplete("r1")
	if got := <-started; got != "m1" {
		t.Fatalf("first run message %q, want m1", got)
	}

	dev.Advance(40 * time.Millisecond) // r1 plays out, r2 promoted
	select {
	case got := <-started:
		if got != "m2" {
			t.Fatalf("second run message %q, want m2", got)
		}
	case <-time.After(time.Second):
		t.Fatal("pending request not promoted after the active one finished")
	}
	bufs := dev.Scheduled()
	if len(bufs) != 3 {
		t.Fatalf("scheduled %d buffers, want 3", len(bufs))
	}
	// Handoff lands exactly at the end of the finished run.
	if got, want := bufs[2].At(), bufs[1].End(); !got.Equal(want) {
		t.Fatalf("promoted request at %v, want %v", got, want)
	}
}

func TestPlayerDeviceErrorRetries(t *testing.T) {
	errs := make(chan error, 4)
	p, dev := newPlayer(t, playout.WithErrorHandler(func(err error) { errs <- err }))

	boom := errors.New("device wedged")
	dev.FailNextPlay(boom)
	if p.Enqueue("r1", 0, chunk20ms(0), "m1") != true {
		t.Fatal("Enqueue(0) = false, want true (chunk was playable even though the device failed)")
	}
	select {
	case err := <-errs:
		if !errors.Is(err, boom) {
			t.Fatalf("error %v, want wrapped %v", err, boom)
		}
	case <-time.After(time.Second):
		t.Fatal("device failure not surfaced")
	}
	// The chunk survives the failure unplayed.
	stats, ok := p.Stats("r1")
	if !ok || stats.PlayedChunks != 0 || stats.TotalChunks != 1 {
		t.Fatalf("Stats() = %+v, %v; want the failed chunk retained unplayed", stats, ok)
	}

	// The next arrival kicks the drain again and both chunks schedule.
	p.Enqueue("r1", 1, chunk20ms(1), "m1")
	bufs := dev.Scheduled()
	if len(bufs) != 2 {
		t.Fatalf("scheduled %d buffers after retry, want 2", len(bufs))
	}
	if got, want := bufs[1].At(), bufs[0].End(); !got.Equal(want) {
		t.Fatalf("retried chunks not gapless: %v then %v", bufs[0].At(), got)
	}
}

func TestPlayerMarkCompleteUnknownRequest(t *testing.T) {
	p, dev := newPlayer(t)

	p.MarkComplete("ghost") // trivially finished, nothing to do
	if got := len(dev.Scheduled()); got != 0 {
		t.Fatalf("scheduled %d buffers, want 0", got)
	}

	// And it does not disturb an audible run.
	p.Enqueue("r1", 0, chunk20ms(0), "m1")
	p.MarkComplete("ghost")
	if got := p.Playing(); got != "r1" {
		t.Fatalf("Playing() = %q after unrelated MarkComplete, want r1", got)
	}
}

func TestPlayerSweepEvictsSilentRequest(t *testing.T) {
	stopped := make(chan struct{}, 4)
	dev := playtest.New(testBase)
	p := playout.New(dev,
		playout.WithStaleRequestTTL(50*time.Millisecond),
		playout.WithSweepInterval(5*time.Millisecond),
		playout.WithListener(playout.ListenerFuncs{
			OnStopped: func() { stopped <- struct{}{} },
		}))
	defer p.Close()

	p.Enqueue("r1", 0, chunk20ms(0), "m1")
	dev.Advance(20 * time.Millisecond)  // audio plays out, producer never finishes
	dev.Advance(100 * time.Millisecond) // idle well past the TTL

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("no stopped event after the stale request was evicted")
	}
	if _, ok := p.Stats("r1"); ok {
		t.Fatal("stale request still tracked after the sweep")
	}
	if got := p.Playing(); got != "" {
		t.Fatalf("Playing() = %q after eviction, want \"\"", got)
	}
}

func TestPlayerClose(t *testing.T) {
	stopped := make(chan struct{}, 4)
	dev := playtest.New(testBase)
	p := playout.New(dev, playout.WithListener(playout.ListenerFuncs{
		OnStopped: func() { stopped <- struct{}{} },
	}))

	p.Enqueue("r1", 0, chunk20ms(0), "m1")
	if err := p.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("no stopped event on Close during playback")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
	if p.Enqueue("r1", 1, chunk20ms(1), "m1") {
		t.Fatal("Enqueue = true on a closed player")
	}
}
