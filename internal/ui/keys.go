package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// keyToBytes encodes a key press as the bytes a terminal would send to the
// child. appCursor switches arrows and Home/End to SS3 form (DECCKM).
func keyToBytes(msg tea.KeyMsg, appCursor bool) []byte {
	switch msg.Type {
	case tea.KeyRunes:
		s := string(msg.Runes)
		if msg.Alt {
			return []byte("\x1b" + s)
		}
		return []byte(s)
	case tea.KeySpace:
		return []byte(" ")
	case tea.KeyEnter:
		return []byte("\r")
	case tea.KeyBackspace:
		return []byte{0x7f}
	case tea.KeyTab:
		return []byte("\t")
	case tea.KeyShiftTab:
		return []byte("\x1b[Z")
	case tea.KeyEsc:
		return []byte{0x1b}
	case tea.KeyUp:
		return cursorKey('A', appCursor)
	case tea.KeyDown:
		return cursorKey('B', appCursor)
	case tea.KeyRight:
		return cursorKey('C', appCursor)
	case tea.KeyLeft:
		return cursorKey('D', appCursor)
	case tea.KeyHome:
		return cursorKey('H', appCursor)
	case tea.KeyEnd:
		return cursorKey('F', appCursor)
	case tea.KeyPgUp:
		return []byte("\x1b[5~")
	case tea.KeyPgDown:
		return []byte("\x1b[6~")
	case tea.KeyDelete:
		return []byte("\x1b[3~")
	case tea.KeyInsert:
		return []byte("\x1b[2~")
	case tea.KeyF1:
		return []byte("\x1bOP")
	case tea.KeyF2:
		return []byte("\x1bOQ")
	case tea.KeyF3:
		return []byte("\x1bOR")
	case tea.KeyF4:
		return []byte("\x1bOS")
	case tea.KeyF5:
		return []byte("\x1b[15~")
	case tea.KeyF6:
		return []byte("\x1b[17~")
	case tea.KeyF7:
		return []byte("\x1b[18~")
	case tea.KeyF8:
		return []byte("\x1b[19~")
	case tea.KeyF9:
		return []byte("\x1b[20~")
	case tea.KeyF10:
		return []byte("\x1b[21~")
	case tea.KeyF11:
		return []byte("\x1b[23~")
	case tea.KeyF12:
		return []byte("\x1b[24~")
	}

	// Control chords arrive as their own key types; map through the string
	// form so ctrl+a..ctrl+z stay one branch.
	s := msg.String()
	if rest, ok := strings.CutPrefix(s, "ctrl+"); ok && len(rest) == 1 {
		c := rest[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []byte{c - 'a' + 1}
		case c == '@':
			return []byte{0}
		case c == '\\':
			return []byte{0x1c}
		case c == ']':
			return []byte{0x1d}
		case c == '^':
			return []byte{0x1e}
		case c == '_':
			return []byte{0x1f}
		}
	}
	return nil
}

func cursorKey(final byte, appCursor bool) []byte {
	if appCursor {
		return []byte{0x1b, 'O', final}
	}
	return []byte{0x1b, '[', final}
}
