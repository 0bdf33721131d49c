package cli

import (
	"strings"

	"github.com/loroworks/loro/go/pkg/buffer"
)

// LogWriter implements io.Writer and captures log output for the
// monitor view. Lines land in a sliding window; a channel signals new
// lines so the view can redraw.
type LogWriter struct {
	buf *buffer.Ring[string]
	ch  chan string
}

// NewLogWriter creates a log writer keeping the last maxLines lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{
		buf: buffer.RingN[string](maxLines),
		ch:  make(chan string, 100),
	}
}

// Write implements io.Writer, splitting multi-line input.
func (w *LogWriter) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		w.buf.Add(line)
		select {
		case w.ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Lines returns the buffered lines, oldest first.
func (w *LogWriter) Lines() []string {
	return w.buf.Snapshot()
}

// Channel returns the notification channel for new lines.
func (w *LogWriter) Channel() <-chan string {
	return w.ch
}
