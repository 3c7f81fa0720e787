package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"aiterm/internal/term"
)

const (
	doubleClickWindow   = 500 * time.Millisecond
	tripleClickWindow   = 800 * time.Millisecond
	doubleClickDistance = 2
)

// clickState feeds double/triple-click detection.
type clickState struct {
	at     time.Time
	x, y   int
	target mouseTarget
	count  int
}

// dragState tracks a left-button drag for local selection.
type dragState struct {
	target   mouseTarget
	startCol int
	startRow int
	started  bool
}

// clickCount advances the chord counter: ≤500 ms and ≤2 cells for the second
// click, ≤800 ms for the third.
func (m *Model) clickCount(target mouseTarget, x, y int) int {
	now := time.Now()
	last := m.lastClick
	count := 1
	if last != nil && last.target == target &&
		absInt(x-last.x) <= doubleClickDistance && absInt(y-last.y) <= doubleClickDistance {
		window := doubleClickWindow
		if last.count >= 2 {
			window = tripleClickWindow
		}
		if now.Sub(last.at) <= window {
			count = last.count + 1
			if count > 3 {
				count = 1
			}
		}
	}
	m.lastClick = &clickState{at: now, x: x, y: y, target: target, count: count}
	return count
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	l := m.layout
	target := l.target(msg.X, msg.Y)

	// A separator drag in progress owns the mouse until release.
	if m.sepDragging {
		switch msg.Action {
		case tea.MouseActionMotion:
			m.setRatio(msg.X * 100 / maxInt(m.width-1, 1))
		case tea.MouseActionRelease:
			m.sepDragging = false
		}
		return nil
	}

	if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && target == targetSeparator {
		m.sepDragging = true
		return nil
	}

	// A click that switches pane focus does only that.
	if msg.Action == tea.MouseActionPress && msg.Button != tea.MouseButtonWheelUp && msg.Button != tea.MouseButtonWheelDown {
		if pane, ok := paneFor(target); ok && pane != m.focus {
			m.focus = pane
			return nil
		}
	}

	switch target {
	case targetTerminal:
		return m.handleTerminalMouse(msg)
	case targetAssistantTabs:
		return m.handleTabsMouse(msg)
	case targetAssistantMessages:
		return m.handleMessagesMouse(msg)
	case targetAssistantInput:
		return m.handleInputMouse(msg)
	}
	return nil
}

func paneFor(target mouseTarget) (Pane, bool) {
	switch target {
	case targetTerminal:
		return PaneTerminal, true
	case targetAssistantTabs, targetAssistantMessages, targetAssistantInput:
		return PaneAssistant, true
	default:
		return PaneTerminal, false
	}
}

func (m *Model) handleTerminalMouse(msg tea.MouseMsg) tea.Cmd {
	col, row := m.layout.terminalInner(msg.X, msg.Y)

	// Foreground program asked for mouse reporting: passthrough, the check is
	// any-bit so click-only pagers still get their events.
	if m.term.MouseModeEnabled() && !m.shellDown {
		ev, ok := passthroughEvent(msg, m.term.Emulator().Modes(), m.leftHeld)
		if !ok {
			return nil
		}
		ev.Col = col + 1
		ev.Row = row + 1
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.leftHeld = true
		}
		if msg.Action == tea.MouseActionRelease {
			m.leftHeld = false
		}
		if err := m.term.SendMouse(ev); err != nil {
			m.notice = err.Error()
		}
		return nil
	}

	emu := m.term.Emulator()
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.scrollTerminal(3)
	case msg.Button == tea.MouseButtonWheelDown:
		m.scrollTerminal(-3)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.leftHeld = true
		switch m.clickCount(targetTerminal, msg.X, msg.Y) {
		case 2:
			emu.SelectWordAt(col, row, m.termOffset)
		case 3:
			emu.SelectLineAt(row, m.termOffset)
		default:
			emu.ClearSelection()
			m.drag = &dragState{target: targetTerminal, startCol: col, startRow: row}
		}
	case msg.Action == tea.MouseActionMotion && m.leftHeld && m.drag != nil:
		if !m.drag.started {
			if absInt(col-m.drag.startCol) < 1 && absInt(row-m.drag.startRow) < 1 {
				return nil
			}
			emu.StartSelection(m.drag.startCol, m.drag.startRow, m.termOffset, term.SelectionStream)
			m.drag.started = true
		}
		emu.ExtendSelection(col, row, m.termOffset)
	case msg.Action == tea.MouseActionRelease:
		m.leftHeld = false
		if m.drag != nil && m.drag.started && emu.HasSelection() {
			if text := emu.CopySelection(); text != "" {
				m.clip.Copy(text)
				m.notice = "copied selection"
			}
		}
		m.drag = nil
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonMiddle:
		if !m.shellDown {
			if text := m.clip.Paste(); text != "" {
				if err := m.term.WritePaste(text); err != nil {
					m.notice = err.Error()
				}
			}
		}
	}
	return nil
}

// passthroughEvent translates a tea mouse message into an SGR report. Motion
// is only forwarded when the program asked for motion (or drag with a button
// held) reporting.
func passthroughEvent(msg tea.MouseMsg, modes term.ModeFlags, leftHeld bool) (term.MouseEvent, bool) {
	ev := term.MouseEvent{
		Press: msg.Action != tea.MouseActionRelease,
		Shift: msg.Shift,
		Alt:   msg.Alt,
		Ctrl:  msg.Ctrl,
	}
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		ev.Button = term.MouseWheelUp
	case msg.Button == tea.MouseButtonWheelDown:
		ev.Button = term.MouseWheelDown
	case msg.Action == tea.MouseActionMotion:
		if !modes.Intersects(term.ModeMouseMotion) &&
			!(modes.Intersects(term.ModeMouseDrag) && leftHeld) {
			return term.MouseEvent{}, false
		}
		ev.Button = term.MouseMotion
	case msg.Button == tea.MouseButtonMiddle:
		ev.Button = term.MouseMiddle
	case msg.Button == tea.MouseButtonRight:
		ev.Button = term.MouseRight
	default:
		ev.Button = term.MouseLeft
	}
	return ev, true
}

func (m *Model) handleTabsMouse(msg tea.MouseMsg) tea.Cmd {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return nil
	}
	col := msg.X - m.layout.asstX
	if col >= m.tabPlusCol && col < m.tabPlusCol+3 {
		m.openSession()
		return nil
	}
	for _, span := range m.tabSpans {
		if col < span.start || col >= span.end {
			continue
		}
		if span.closeCol >= 0 && col == span.closeCol {
			m.closeCurrentSession()
			return nil
		}
		m.switchSession(span.id)
		return nil
	}
	return nil
}

func (m *Model) handleMessagesMouse(msg tea.MouseMsg) tea.Cmd {
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.vp.LineUp(3)
	case msg.Button == tea.MouseButtonWheelDown:
		m.vp.LineDown(3)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		line := m.vp.YOffset + (msg.Y - m.layout.msgY)
		col := msg.X - m.layout.asstX
		for i := range m.cardHits {
			hit := &m.cardHits[i]
			if hit.line != line || hit.card.status != cardPending {
				continue
			}
			// Button columns are offset by the card border and padding.
			local := col - 2
			switch {
			case local >= hit.runStart && local < hit.runEnd:
				m.executeCard(hit.card)
			case local >= hit.dismissStart && local < hit.dismissEnd:
				hit.card.status = cardRejected
				m.refreshChat()
			}
			return nil
		}
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonMiddle:
		if text := m.clip.Paste(); text != "" {
			m.input.InsertString(text)
			m.syncInputHeight()
		}
	}
	return nil
}

func (m *Model) handleInputMouse(msg tea.MouseMsg) tea.Cmd {
	if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonMiddle {
		if text := m.clip.Paste(); text != "" {
			m.input.InsertString(text)
			m.syncInputHeight()
		}
	}
	return nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
