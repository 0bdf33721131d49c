package speaker

import (
	"sync/atomic"
	"time"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
	"github.com/loroworks/loro/go/pkg/playout"
)

var _ playout.Device = (*NullDevice)(nil)

// NullDevice consumes audio on the wall clock without producing sound.
// Servers without an output device use it to keep playback state honest.
type NullDevice struct {
	closed atomic.Bool
}

func Null() *NullDevice {
	return &NullDevice{}
}

func (d *NullDevice) Now() time.Time {
	return time.Now()
}

func (d *NullDevice) Play(data pcm.Chunk, at time.Time, done func()) (playout.Handle, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	j := &nullJob{done: done}
	end := time.Until(at.Add(data.Duration()))
	if end < 0 {
		end = 0
	}
	j.timer = time.AfterFunc(end, j.finish)
	return j, nil
}

func (d *NullDevice) Close() error {
	d.closed.Store(true)
	return nil
}

type nullJob struct {
	done    func()
	stopped atomic.Bool
	timer   *time.Timer
}

func (j *nullJob) Stop() {
	if j.stopped.Swap(true) {
		return
	}
	if j.timer != nil {
		j.timer.Stop()
	}
}

func (j *nullJob) finish() {
	if j.stopped.Load() {
		return
	}
	if j.done != nil {
		j.done()
	}
}
