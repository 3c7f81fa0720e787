package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestKeyToBytes_Basics(t *testing.T) {
	cases := []struct {
		msg  tea.KeyMsg
		want string
	}{
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ls")}, "ls"},
		{tea.KeyMsg{Type: tea.KeySpace}, " "},
		{tea.KeyMsg{Type: tea.KeyEnter}, "\r"},
		{tea.KeyMsg{Type: tea.KeyBackspace}, "\x7f"},
		{tea.KeyMsg{Type: tea.KeyTab}, "\t"},
		{tea.KeyMsg{Type: tea.KeyEsc}, "\x1b"},
		{tea.KeyMsg{Type: tea.KeyUp}, "\x1b[A"},
		{tea.KeyMsg{Type: tea.KeyDown}, "\x1b[B"},
		{tea.KeyMsg{Type: tea.KeyRight}, "\x1b[C"},
		{tea.KeyMsg{Type: tea.KeyLeft}, "\x1b[D"},
		{tea.KeyMsg{Type: tea.KeyPgUp}, "\x1b[5~"},
		{tea.KeyMsg{Type: tea.KeyPgDown}, "\x1b[6~"},
		{tea.KeyMsg{Type: tea.KeyDelete}, "\x1b[3~"},
		{tea.KeyMsg{Type: tea.KeyCtrlC}, "\x03"},
		{tea.KeyMsg{Type: tea.KeyCtrlD}, "\x04"},
		{tea.KeyMsg{Type: tea.KeyCtrlZ}, "\x1a"},
	}
	for _, tc := range cases {
		got := keyToBytes(tc.msg, false)
		if string(got) != tc.want {
			t.Fatalf("keyToBytes(%s) = %q, want %q", tc.msg.String(), got, tc.want)
		}
	}
}

func TestKeyToBytes_AppCursorMode(t *testing.T) {
	if got := keyToBytes(tea.KeyMsg{Type: tea.KeyUp}, true); string(got) != "\x1bOA" {
		t.Fatalf("expected SS3 arrow in app cursor mode, got %q", got)
	}
	if got := keyToBytes(tea.KeyMsg{Type: tea.KeyHome}, true); string(got) != "\x1bOH" {
		t.Fatalf("expected SS3 home in app cursor mode, got %q", got)
	}
}

func TestKeyToBytes_AltPrefix(t *testing.T) {
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x"), Alt: true}
	if got := keyToBytes(msg, false); string(got) != "\x1bx" {
		t.Fatalf("expected ESC prefix for alt, got %q", got)
	}
}
