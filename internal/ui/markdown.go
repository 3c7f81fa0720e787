package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// markdownRenderer wraps glamour with a per-width renderer cache; resizes are
// frequent and renderer construction is not cheap.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

func (m *markdownRenderer) render(text string, width int) string {
	if width < 10 {
		width = 10
	}
	if m.renderer == nil || m.width != width {
		style := glamour.WithStandardStyle("notty")
		if termenv.HasDarkBackground() {
			style = glamour.WithStandardStyle("dark")
		} else if termenv.ColorProfile() != termenv.Ascii {
			style = glamour.WithStandardStyle("light")
		}
		r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
		if err != nil {
			return text
		}
		m.renderer = r
		m.width = width
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
