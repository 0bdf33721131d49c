// Package playtest provides an in-memory playout.Device driven by a
// manual clock, for deterministic scheduler tests.
package playtest

import (
	"sync"
	"time"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/playout"
)

// Device records scheduled buffers instead of playing them. Time only
// moves when Advance is called; completion callbacks for buffers whose
// end time has been reached fire from inside Advance, in end-time order,
// with no Device lock held.
type Device struct {
	mu        sync.Mutex
	now       time.Time
	scheduled []*Buffer
	playErr   error
}

// A Buffer is one Play call.
type Buffer struct {
	dev      *Device
	data     pcm.Chunk
	at       time.Time
	done     func()
	stopped  bool
	finished bool
}

func New(start time.Time) *Device {
	return &Device{now: start}
}

func (d *Device) Now() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

func (d *Device) Play(data pcm.Chunk, at time.Time, done func()) (playout.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.playErr; err != nil {
		d.playErr = nil
		return nil, err
	}
	b := &Buffer{dev: d, data: data, at: at, done: done}
	d.scheduled = append(d.scheduled, b)
	return b, nil
}

// FailNextPlay makes the next Play call return err without scheduling.
func (d *Device) FailNextPlay(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playErr = err
}

// Advance moves the clock forward by dur, firing the completion callback
// of every unstopped buffer whose end time is reached, oldest end first.
// Callbacks run on the caller's goroutine and may schedule further
// buffers, which are picked up within the same call if they too complete
// before the new clock reading.
func (d *Device) Advance(dur time.Duration) {
	d.mu.Lock()
	target := d.now.Add(dur)
	for {
		b := d.nextDueLocked(target)
		if b == nil {
			d.now = target
			d.mu.Unlock()
			return
		}
		if end := b.End(); end.After(d.now) {
			d.now = end
		}
		b.finished = true
		done := b.done
		d.mu.Unlock()
		if done != nil {
			done()
		}
		d.mu.Lock()
	}
}

func (d *Device) nextDueLocked(target time.Time) *Buffer {
	var due *Buffer
	for _, b := range d.scheduled {
		if b.finished || b.stopped || b.End().After(target) {
			continue
		}
		if due == nil || b.End().Before(due.End()) {
			due = b
		}
	}
	return due
}

// Scheduled returns every buffer ever passed to Play, in call order.
func (d *Device) Scheduled() []*Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Buffer, len(d.scheduled))
	copy(out, d.scheduled)
	return out
}

// Live reports how many buffers are scheduled but neither finished nor
// stopped.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, b := range d.scheduled {
		if !b.finished && !b.stopped {
			n++
		}
	}
	return n
}

// Stop marks the buffer stopped; its completion callback never fires.
// Stopping a finished buffer is a no-op.
func (b *Buffer) Stop() {
	b.dev.mu.Lock()
	defer b.dev.mu.Unlock()
	if !b.finished {
		b.stopped = true
	}
}

// Finish fires the completion callback immediately, even on a stopped
// buffer, modeling a device whose cancel lost the race with playback.
func (b *Buffer) Finish() {
	b.dev.mu.Lock()
	if b.finished {
		b.dev.mu.Unlock()
		return
	}
	b.finished = true
	done := b.done
	b.dev.mu.Unlock()
	if done != nil {
		done()
	}
}

func (b *Buffer) Data() pcm.Chunk { return b.data }

func (b *Buffer) At() time.Time { return b.at }

func (b *Buffer) End() time.Time { return b.at.Add(b.data.Duration()) }

func (b *Buffer) Stopped() bool {
	b.dev.mu.Lock()
	defer b.dev.mu.Unlock()
	return b.stopped
}
