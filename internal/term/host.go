package term

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/creack/pty"

	"aiterm/internal/event"
)

// Host owns the PTY master side and the child shell process. A background
// reader drains the master into a bounded channel; the writer sits behind a
// mutex shared by the user-input path and the security gate.
type Host struct {
	ptmx *os.File
	cmd  *exec.Cmd

	writeMu sync.Mutex
	closed  atomic.Bool

	cols, rows int
}

// StartHost spawns the shell on a fresh PTY and begins draining its output.
// The returned channel carries raw chunks, bounded at event.ByteStreamCap; a
// full channel backpressures the reader, never dropping output. The channel
// closes when the shell exits or the PTY errors.
func StartHost(shell string, cols, rows int, events chan<- event.AppEvent) (*Host, <-chan []byte, error) {
	if shell == "" {
		return nil, nil, errors.New("shell path is empty")
	}
	if cols < 1 || rows < 1 {
		return nil, nil, fmt.Errorf("invalid terminal size %dx%d", cols, rows)
	}

	cmd := exec.Command(shell)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("spawn shell %s: %w", shell, err)
	}

	h := &Host{ptmx: ptmx, cmd: cmd, cols: cols, rows: rows}
	out := make(chan []byte, event.ByteStreamCap)

	go func() {
		defer close(out)
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				out <- data
			}
			if err != nil {
				// PTY masters report EIO once the child hangs up, so the read
				// error itself is not inspected: the wait status decides. A
				// status of -1 (no exit code) is also reported as a ShellError.
				wasOpen := !h.closed.Swap(true)
				if wasOpen {
					status := h.waitStatus()
					if status == -1 {
						events <- event.ShellError{Err: fmt.Errorf("read pty: %w", err)}
					}
					events <- event.ShellExited{Status: status}
				}
				return
			}
		}
	}()

	return h, out, nil
}

func (h *Host) waitStatus() int {
	if h.cmd == nil {
		return -1
	}
	err := h.cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// WriteInput enqueues user keystrokes to the PTY. Fails once the shell has
// exited.
func (h *Host) WriteInput(data []byte) error {
	if h == nil || h.ptmx == nil {
		return errors.New("pty is not open")
	}
	if h.closed.Load() {
		return errors.New("shell has exited")
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if _, err := h.ptmx.Write(data); err != nil {
		return fmt.Errorf("write pty: %w", err)
	}
	return nil
}

// Resize propagates new dimensions to the kernel. Idempotent when unchanged.
func (h *Host) Resize(cols, rows int) error {
	if h == nil || h.ptmx == nil {
		return errors.New("pty is not open")
	}
	if cols < 1 || rows < 1 {
		return fmt.Errorf("invalid terminal size %dx%d", cols, rows)
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if cols == h.cols && rows == h.rows {
		return nil
	}
	if err := pty.Setsize(h.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("resize pty: %w", err)
	}
	h.cols, h.rows = cols, rows
	return nil
}

// Alive reports whether the shell is still attached.
func (h *Host) Alive() bool {
	return h != nil && !h.closed.Load()
}

// Close detaches from the PTY. The reader goroutine winds down on the next
// read error.
func (h *Host) Close() error {
	if h == nil || h.ptmx == nil {
		return nil
	}
	h.closed.Store(true)
	return h.ptmx.Close()
}
