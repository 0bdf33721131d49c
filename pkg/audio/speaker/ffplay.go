package speaker

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/loroworks/loro/go/pkg/audio/pcm"
)

// ffplay manages one ffplay process reading s16le samples from stdin.
type ffplay struct {
	path     string
	volume   int
	logLevel string
	format   pcm.Format
	logger   *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	closed bool
}

func newFFPlay(format pcm.Format) *ffplay {
	return &ffplay{
		path:     "ffplay",
		volume:   80,
		logLevel: "error",
		format:   format,
		logger:   slog.Default(),
	}
}

func (f *ffplay) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", f.logLevel,
		"-nostats",
		"-volume", strconv.Itoa(f.volume),
		"-nodisp",
		"-f", "s16le",
		"-ch_layout", "mono",
		"-ar", strconv.Itoa(f.format.SampleRate()),
		"-i", "-",
	}
}

// ensureLocked starts the process if it is not running.
func (f *ffplay) ensureLocked() error {
	if f.closed {
		return ErrClosed
	}
	if f.cmd != nil {
		return nil
	}
	cmd := exec.Command(f.path, f.args()...)
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if runtime.GOOS == "darwin" && os.Getenv("SDL_AUDIODRIVER") == "" {
		cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER=coreaudio")
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("speaker: ffplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("speaker: start %s: %w", f.path, err)
	}
	f.cmd = cmd
	f.stdin = stdin
	f.logger.Debug("speaker: ffplay started", "pid", cmd.Process.Pid, "rate", f.format.SampleRate())
	go func() {
		err := cmd.Wait()
		f.mu.Lock()
		if f.cmd == cmd {
			f.cmd = nil
			f.stdin = nil
		}
		f.mu.Unlock()
		if err != nil && !f.isClosed() {
			f.logger.Warn("speaker: ffplay exited", "error", err)
		}
	}()
	return nil
}

func (f *ffplay) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *ffplay) writeChunk(data pcm.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureLocked(); err != nil {
		return err
	}
	if _, err := data.WriteTo(f.stdin); err != nil {
		f.killLocked()
		return fmt.Errorf("speaker: write samples: %w", err)
	}
	return nil
}

// restart kills the process so buffered audio is dropped. The next write
// spawns a fresh one.
func (f *ffplay) restart() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.killLocked()
	return f.ensureLocked()
}

func (f *ffplay) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.killLocked()
	return nil
}

func (f *ffplay) killLocked() {
	if f.cmd == nil {
		return
	}
	if f.stdin != nil {
		f.stdin.Close()
	}
	if f.cmd.Process != nil {
		f.cmd.Process.Kill()
	}
	f.cmd = nil
	f.stdin = nil
}
