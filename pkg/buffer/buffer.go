// Package buffer provides thread-safe queues for streaming pipelines.
//
// Buffer is a growable FIFO queue: producers Add or Write without ever
// blocking, a consumer drains with Next or Read, blocking while the
// queue is empty. CloseWrite ends the stream gracefully, CloseWithError
// tears it down and hands the error to both sides. Ring is a
// fixed-capacity sliding window that keeps the most recent elements.
package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrDone is returned by Next once the queue is closed for writing and
// fully drained.
var ErrDone = errors.New("buffer: no more elements")

// Buffer is a growable FIFO queue of T, safe for concurrent use. The zero
// value is not usable; construct with N. With T = byte it doubles as an
// io.ReadWriter bridging byte streams into the same shutdown model.
type Buffer[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	closeWrite bool
	closeErr   error
	buf        []T
}

// N creates a Buffer with capacity for n elements before the first grow.
func N[T any](n int) *Buffer[T] {
	return &Buffer[T]{
		writeNotify: make(chan struct{}, 1),
		buf:         make([]T, 0, n),
	}
}

// Add appends one element and wakes a blocked consumer. Returns an error
// if the queue is closed for writing.
func (b *Buffer[T]) Add(t T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writableLocked(); err != nil {
		return err
	}
	b.buf = append(b.buf, t)
	b.notifyLocked()
	return nil
}

// Write appends all of p. Implements io.Writer for Buffer[byte].
func (b *Buffer[T]) Write(p []T) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writableLocked(); err != nil {
		return 0, err
	}
	b.buf = append(b.buf, p...)
	b.notifyLocked()
	return len(p), nil
}

// Next removes and returns the oldest element, blocking while the queue is
// empty. Returns ErrDone once the queue is closed for writing and drained,
// or the close error if the queue was torn down.
func (b *Buffer[T]) Next() (t T, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.closeErr != nil {
			err = fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
			return
		}
		if len(b.buf) > 0 {
			t = b.buf[0]
			b.buf = b.buf[1:]
			return
		}
		if b.closeWrite {
			err = ErrDone
			return
		}
		b.mu.Unlock()
		<-b.writeNotify
		b.mu.Lock()
	}
}

// Read fills p with up to len(p) oldest elements, blocking while the queue
// is empty. Implements io.Reader for Buffer[byte]: returns io.EOF once the
// queue is closed for writing and drained.
func (b *Buffer[T]) Read(p []T) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.closeErr != nil {
			return 0, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
		}
		if len(b.buf) > 0 {
			n := copy(p, b.buf)
			b.buf = b.buf[n:]
			return n, nil
		}
		if b.closeWrite {
			return 0, io.EOF
		}
		b.mu.Unlock()
		<-b.writeNotify
		b.mu.Lock()
	}
}

// CloseWrite ends the stream: no further writes are accepted, the consumer
// drains what remains and then sees ErrDone or io.EOF.
func (b *Buffer[T]) CloseWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeWrite {
		return nil
	}
	b.closeWrite = true
	close(b.writeNotify)
	return nil
}

// CloseWithError tears the queue down: buffered elements are dropped and
// both sides see err from then on. A nil err defaults to io.ErrClosedPipe.
// The first close wins; later calls are no-ops.
func (b *Buffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return nil
	}
	b.closeErr = err
	b.buf = nil
	if !b.closeWrite {
		b.closeWrite = true
		close(b.writeNotify)
	}
	return nil
}

// Close is CloseWithError(io.ErrClosedPipe). Implements io.Closer.
func (b *Buffer[T]) Close() error {
	return b.CloseWithError(io.ErrClosedPipe)
}

// Error returns the error the queue was torn down with, or nil.
func (b *Buffer[T]) Error() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeErr
}

// Len reports how many elements are queued.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

func (b *Buffer[T]) writableLocked() error {
	if b.closeErr != nil {
		return fmt.Errorf("buffer: write to closed buffer: %w", b.closeErr)
	}
	if b.closeWrite {
		return fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	return nil
}

// notifyLocked wakes at most one blocked consumer. Dropped when the signal
// slot is already full; the consumer re-checks the queue on every wake.
func (b *Buffer[T]) notifyLocked() {
	select {
	case b.writeNotify <- struct{}{}:
	default:
	}
}
