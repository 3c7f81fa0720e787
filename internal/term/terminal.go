package term

import (
	"errors"
	"fmt"
	"strings"

	"aiterm/internal/event"
)

// Terminal binds the PTY host and the emulator behind one contract. The UI
// task feeds it bytes from the returned channel and paints its frames; the
// security gate reaches it only through ExecuteVisible.
type Terminal struct {
	host *Host
	emu  *Emulator
}

// New spawns the shell and wires the emulator. The byte stream is bounded;
// the UI must drain it.
func New(shell string, events chan<- event.AppEvent, cols, rows int) (*Terminal, <-chan []byte, error) {
	host, bytes, err := StartHost(shell, cols, rows, events)
	if err != nil {
		return nil, nil, err
	}
	emu := NewEmulator(cols, rows)
	emu.Respond = func(data []byte) {
		// Protocol responses (cursor reports) go straight back to the child.
		_ = host.WriteInput(data)
	}
	return &Terminal{host: host, emu: emu}, bytes, nil
}

// Emulator exposes the grid for the UI painter and selection handling.
func (t *Terminal) Emulator() *Emulator {
	return t.emu
}

// Advance feeds one chunk of shell output to the emulator.
func (t *Terminal) Advance(chunk []byte) {
	t.emu.Advance(chunk)
}

// WriteInput forwards user keystrokes to the shell.
func (t *Terminal) WriteInput(data []byte) error {
	return t.host.WriteInput(data)
}

// WritePaste forwards pasted text, bracketing it when negotiated.
func (t *Terminal) WritePaste(text string) error {
	return t.host.WriteInput(t.emu.WrapPaste(text))
}

// Resize propagates new inner dimensions to both the kernel and the grid.
// Idempotent when the dimensions are unchanged.
func (t *Terminal) Resize(cols, rows int) error {
	if err := t.host.Resize(cols, rows); err != nil {
		return err
	}
	t.emu.Resize(cols, rows)
	return nil
}

// ExecuteVisible writes the literal command followed by a single newline. The
// output returns through the normal byte stream asynchronously. This is the
// security gate's entrypoint; it must stay the only path for AI text.
func (t *Terminal) ExecuteVisible(cmd string) error {
	if t == nil || t.host == nil {
		return errors.New("terminal is not running")
	}
	if strings.TrimSpace(cmd) == "" {
		return errors.New("empty command")
	}
	if err := t.host.WriteInput([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("execute %q: %w", cmd, err)
	}
	return nil
}

// MouseModeEnabled reports whether the foreground program asked for any form
// of mouse reporting. Any-bit intersection: partial adopters (click-only
// pagers) still get passthrough.
func (t *Terminal) MouseModeEnabled() bool {
	return t.emu.Modes().Intersects(mouseReportMask)
}

// SendMouse encodes and forwards one mouse event. Only called when the
// foreground program requested mouse reporting.
func (t *Terminal) SendMouse(ev MouseEvent) error {
	cols, rows := t.emu.Size()
	return t.host.WriteInput(EncodeSGR(ev, cols, rows))
}

// RenderFrame produces the cell grid to paint for the given view offset.
func (t *Terminal) RenderFrame(viewOffset int) *Frame {
	return t.emu.RenderFrame(viewOffset)
}

// Alive reports whether the shell is still attached.
func (t *Terminal) Alive() bool {
	return t.host.Alive()
}

// Close detaches from the PTY.
func (t *Terminal) Close() error {
	return t.host.Close()
}
