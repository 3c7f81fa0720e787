package term

import (
	"os"
	"strings"
	"testing"
	"time"

	"aiterm/internal/event"
)

func startTestHost(t *testing.T) (*Host, <-chan []byte, chan event.AppEvent) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh on this system")
	}
	events := make(chan event.AppEvent, 16)
	host, out, err := StartHost("/bin/sh", 80, 24, events)
	if err != nil {
		t.Fatalf("start host: %v", err)
	}
	t.Cleanup(func() { host.Close() })
	return host, out, events
}

// readUntil drains the byte stream until the wanted substring shows up in the
// accumulated output.
func readUntil(t *testing.T, out <-chan []byte, want string) string {
	t.Helper()
	var b strings.Builder
	deadline := time.After(10 * time.Second)
	for {
		select {
		case data, ok := <-out:
			if !ok {
				t.Fatalf("stream closed before %q appeared; got %q", want, b.String())
			}
			b.Write(data)
			if strings.Contains(b.String(), want) {
				return b.String()
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q; got %q", want, b.String())
		}
	}
}

func TestHost_EchoRoundTrip(t *testing.T) {
	host, out, _ := startTestHost(t)

	if err := host.WriteInput([]byte("echo rt-marker-42\n")); err != nil {
		t.Fatalf("write input: %v", err)
	}
	// The echoed bytes coming back contain the command text.
	readUntil(t, out, "rt-marker-42")
}

func TestHost_ResizeIdempotent(t *testing.T) {
	host, _, _ := startTestHost(t)
	if err := host.Resize(100, 30); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if err := host.Resize(100, 30); err != nil {
		t.Fatalf("repeated resize must be a no-op, got %v", err)
	}
}

func TestHost_WriteAfterExitFails(t *testing.T) {
	host, out, events := startTestHost(t)

	if err := host.WriteInput([]byte("exit 3\n")); err != nil {
		t.Fatalf("write input: %v", err)
	}

	deadline := time.After(10 * time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				out = nil
			}
		case ev := <-events:
			if exited, isExit := ev.(event.ShellExited); isExit {
				if exited.Status != 3 {
					t.Fatalf("expected exit status 3, got %d", exited.Status)
				}
				// The reader marks the host closed before emitting the event.
				if err := host.WriteInput([]byte("x")); err == nil {
					t.Fatalf("expected write to fail after shell exit")
				}
				return
			}
		case <-deadline:
			t.Fatalf("shell did not exit")
		}
	}
}

func TestTerminal_ExecuteVisibleFailsWhenNotStarted(t *testing.T) {
	var term Terminal
	if err := term.ExecuteVisible("ls"); err == nil {
		t.Fatalf("expected error on unstarted terminal")
	}
}
