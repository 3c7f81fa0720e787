package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"aiterm/internal/term"
)

// cellStyleKey collapses everything that affects a cell's style so adjacent
// cells can share one lipgloss render call.
type cellStyleKey struct {
	fg, bg   term.Color
	attr     term.AttrFlags
	inverted bool
}

func lipglossColor(c term.Color) lipgloss.TerminalColor {
	switch c.Kind {
	case term.ColorANSI, term.ColorIndexed:
		return lipgloss.Color(strconv.Itoa(int(c.Value)))
	case term.ColorRGB:
		return lipgloss.Color(fmt.Sprintf("#%06x", c.Value))
	default:
		return lipgloss.NoColor{}
	}
}

func styleFor(key cellStyleKey) lipgloss.Style {
	st := lipgloss.NewStyle().
		Foreground(lipglossColor(key.fg)).
		Background(lipglossColor(key.bg))
	if key.attr&term.AttrBold != 0 {
		st = st.Bold(true)
	}
	if key.attr&term.AttrDim != 0 {
		st = st.Faint(true)
	}
	if key.attr&term.AttrItalic != 0 {
		st = st.Italic(true)
	}
	if key.attr&term.AttrUnderline != 0 {
		st = st.Underline(true)
	}
	if key.attr&term.AttrStrike != 0 {
		st = st.Strikethrough(true)
	}
	if (key.attr&term.AttrReverse != 0) != key.inverted {
		st = st.Reverse(true)
	}
	return st
}

// visualCursor is the frozen-grid cursor shown in visual mode.
type visualCursor struct {
	row, col int
	active   bool
}

// renderTerminalFrame paints the cell grid, inverting selected cells and the
// cursor. Rows are joined with newlines; each row is exactly f.Cols wide.
func renderTerminalFrame(f *term.Frame, vis visualCursor) string {
	var out strings.Builder
	for r := 0; r < f.Rows; r++ {
		var (
			run     strings.Builder
			runKey  cellStyleKey
			started bool
		)
		flush := func() {
			if run.Len() > 0 {
				out.WriteString(styleFor(runKey).Render(run.String()))
				run.Reset()
			}
		}
		row := f.Cells[r]
		for c := 0; c < f.Cols; c++ {
			cell := row[c]
			if cell.Width == 0 {
				continue // covered by the wide head
			}
			inverted := f.Selected[r][c]
			if f.CursorVisible && r == f.CursorRow && c == f.CursorCol {
				inverted = !inverted
			}
			if vis.active && r == vis.row && c == vis.col {
				inverted = !inverted
			}
			key := cellStyleKey{fg: cell.FG, bg: cell.BG, attr: cell.Attr, inverted: inverted}
			if !started || key != runKey {
				flush()
				runKey = key
				started = true
			}
			ch := cell.Rune
			if ch == 0 {
				ch = ' '
			}
			run.WriteRune(ch)
		}
		flush()
		if r < f.Rows-1 {
			out.WriteString("\n")
		}
	}
	return out.String()
}

// scrollIndicator annotates a scrolled-back view.
func scrollIndicator(offset, scrollbackLen int) string {
	if offset == 0 {
		return ""
	}
	return fmt.Sprintf(" SCROLL %d/%d ", offset, scrollbackLen)
}
