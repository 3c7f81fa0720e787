package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"aiterm/internal/event"
	"aiterm/internal/security"
	"aiterm/internal/term"
)

// Pane identifies which side of the split owns the keyboard.
type Pane int

const (
	PaneTerminal Pane = iota
	PaneAssistant
)

// Mode is the router's modal state. Together with the focused pane and the
// optional drag/click state it is the single tagged value every key and mouse
// decision branches on.
type Mode int

const (
	ModeNormal Mode = iota
	ModeCommandPrefix
	ModeVisual
)

// visualSelPhase cycles None → Line → Block with Space.
type visualSelPhase int

const (
	visualSelNone visualSelPhase = iota
	visualSelLine
	visualSelBlock
)

// visualState is the frozen-grid cursor for visual mode.
type visualState struct {
	row, col int
	count    int
	phase    visualSelPhase
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch m.mode {
	case ModeCommandPrefix:
		return m.handleKeyPrefix(msg)
	case ModeVisual:
		return m.handleKeyVisual(msg)
	default:
		if m.focus == PaneTerminal {
			return m.handleKeyTerminal(msg)
		}
		return m.handleKeyAssistant(msg)
	}
}

// handleKeyTerminal passes keys through to the PTY verbatim, except the
// leader and the scroll chords.
func (m *Model) handleKeyTerminal(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+b":
		m.mode = ModeCommandPrefix
		return nil
	case "shift+up":
		m.scrollTerminal(1)
		return nil
	case "shift+down":
		m.scrollTerminal(-1)
		return nil
	case "shift+pgup":
		m.scrollTerminal(m.layout.termInnerH)
		return nil
	case "shift+pgdown":
		m.scrollTerminal(-m.layout.termInnerH)
		return nil
	case "shift+end":
		m.termOffset = 0
		return nil
	}

	if m.shellDown {
		return nil
	}
	appCursor := m.term.Emulator().Modes().Intersects(term.ModeAppCursor)
	data := keyToBytes(msg, appCursor)
	if len(data) == 0 {
		return nil
	}
	// Typing snaps the view back to live.
	m.termOffset = 0
	m.trackTypedLine(msg)
	if err := m.term.WriteInput(data); err != nil {
		m.notice = err.Error()
	}
	return nil
}

// trackTypedLine keeps the heuristic command line for the context collector:
// printable runes accumulate, Enter commits, Backspace retracts.
func (m *Model) trackTypedLine(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyRunes:
		m.typedLine = append(m.typedLine, msg.Runes...)
	case tea.KeySpace:
		m.typedLine = append(m.typedLine, ' ')
	case tea.KeyBackspace:
		if len(m.typedLine) > 0 {
			m.typedLine = m.typedLine[:len(m.typedLine)-1]
		}
	case tea.KeyEnter:
		if line := strings.TrimSpace(string(m.typedLine)); line != "" {
			m.collector.RecordCommand(line)
		}
		m.typedLine = m.typedLine[:0]
	case tea.KeyCtrlC, tea.KeyCtrlU:
		m.typedLine = m.typedLine[:0]
	}
}

func (m *Model) scrollTerminal(delta int) {
	m.termOffset = m.term.Emulator().ClampOffset(m.termOffset + delta)
}

func (m *Model) handleKeyAssistant(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+b":
		m.mode = ModeCommandPrefix
		return nil
	case "ctrl+c":
		return m.quit()
	case "tab":
		m.cycleSession(1)
		return nil
	case "shift+tab":
		m.cycleSession(-1)
		return nil
	case "enter":
		m.sendInput()
		return nil
	case "ctrl+o":
		m.input.InsertString("\n")
		return nil
	case "ctrl+y":
		m.confirmPending()
		return nil
	case "ctrl+n":
		m.rejectPending()
		return nil
	case "ctrl+a":
		m.cycleAlternative()
		return nil
	case "shift+up":
		m.vp.LineUp(1)
		return nil
	case "shift+down":
		m.vp.LineDown(1)
		return nil
	case "shift+pgup", "pgup":
		m.vp.ViewUp()
		return nil
	case "shift+pgdown", "pgdown":
		m.vp.ViewDown()
		return nil
	case "esc":
		// Scrolled chat returns to live; the editor text is left as it is.
		if !m.vp.AtBottom() {
			m.vp.GotoBottom()
		}
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.syncInputHeight()
	return cmd
}

// handleKeyPrefix resolves the second key of the Ctrl+B chord. Unrecognized
// keys fall back to Normal.
func (m *Model) handleKeyPrefix(msg tea.KeyMsg) tea.Cmd {
	m.mode = ModeNormal
	switch msg.String() {
	case "ctrl+b":
		// Re-send the leader to the shell.
		if m.focus == PaneTerminal && !m.shellDown {
			if err := m.term.WriteInput([]byte{0x02}); err != nil {
				m.notice = err.Error()
			}
		}
	case "c":
		m.openSession()
	case "x":
		m.closeCurrentSession()
	case "v":
		m.enterVisual()
	case "o", "left", "right":
		if m.focus == PaneTerminal {
			m.focus = PaneAssistant
		} else {
			m.focus = PaneTerminal
		}
	case "q":
		return m.quit()
	}
	return nil
}

func (m *Model) enterVisual() {
	frame := m.term.RenderFrame(m.termOffset)
	m.mode = ModeVisual
	m.focus = PaneTerminal
	m.vis = visualState{row: frame.CursorRow, col: frame.CursorCol}
}

func (m *Model) handleKeyVisual(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()

	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		m.vis.count = m.vis.count*10 + int(key[0]-'0')
		return nil
	}
	if key == "0" && m.vis.count > 0 {
		m.vis.count *= 10
		return nil
	}

	step := m.vis.count
	if step <= 0 {
		step = 1
	}
	m.vis.count = 0

	emu := m.term.Emulator()
	switch key {
	case "h", "left":
		m.vis.col = clampInt(m.vis.col-step, 0, m.layout.termInnerW-1)
	case "l", "right":
		m.vis.col = clampInt(m.vis.col+step, 0, m.layout.termInnerW-1)
	case "k", "up":
		m.vis.row = clampInt(m.vis.row-step, 0, m.layout.termInnerH-1)
	case "j", "down":
		m.vis.row = clampInt(m.vis.row+step, 0, m.layout.termInnerH-1)
	case " ", "space":
		switch m.vis.phase {
		case visualSelNone:
			m.vis.phase = visualSelLine
			emu.StartSelection(m.vis.col, m.vis.row, m.termOffset, term.SelectionLine)
		case visualSelLine:
			m.vis.phase = visualSelBlock
			emu.SetSelectionMode(term.SelectionBlock)
		default:
			m.vis.phase = visualSelNone
			emu.ClearSelection()
		}
		return nil
	case "y":
		if emu.HasSelection() {
			if text := emu.CopySelection(); text != "" {
				m.clip.Copy(text)
				m.notice = "copied selection"
			}
			emu.ClearSelection()
		}
		m.mode = ModeNormal
		m.vis = visualState{}
		return nil
	case "esc":
		if emu.HasSelection() {
			emu.ClearSelection()
			m.vis.phase = visualSelNone
			return nil
		}
		m.mode = ModeNormal
		m.vis = visualState{}
		return nil
	default:
		return nil
	}

	if m.vis.phase != visualSelNone {
		emu.ExtendSelection(m.vis.col, m.vis.row, m.termOffset)
	}
	return nil
}

func (m *Model) cycleSession(dir int) {
	ids := m.mgr.SessionIDs()
	if len(ids) == 0 {
		return
	}
	current := m.mgr.CurrentSessionID()
	idx := 0
	for i, id := range ids {
		if id == current {
			idx = i
			break
		}
	}
	idx = (idx + dir + len(ids)) % len(ids)
	m.switchSession(ids[idx])
}

func (m *Model) switchSession(id event.SessionID) {
	if !m.mgr.SwitchSession(id) {
		return
	}
	m.ensureChat(id)
	m.refreshChat()
}

func (m *Model) openSession() {
	id := m.mgr.NewSession()
	m.ensureChat(id)
	m.focus = PaneAssistant
	m.refreshChat()
}

func (m *Model) closeCurrentSession() {
	id := m.mgr.CurrentSessionID()
	m.mgr.CloseSession(id)
	delete(m.chats, id)
	m.ensureChat(m.mgr.CurrentSessionID())
	m.refreshChat()
}

func (m *Model) sendInput() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	id := m.mgr.CurrentSessionID()
	if err := m.mgr.SendMessage(m.ctx, id, text, m.collector.Snapshot()); err != nil {
		m.appendNotice(id, err.Error())
		return
	}
	log := m.ensureChat(id)
	log.items = append(log.items,
		chatItem{kind: itemUser, text: text},
		chatItem{kind: itemAssistant, streaming: true},
	)
	m.input.Reset()
	m.syncInputHeight()
	m.refreshChat()
}

// confirmPending routes Ctrl+Y: Allow runs through the gate, confirmation
// verdicts take the confirmed path, Deny stays inert and turns the card red.
func (m *Model) confirmPending() {
	log := m.ensureChat(m.mgr.CurrentSessionID())
	card := log.lastPendingCard()
	if card == nil {
		return
	}
	m.executeCard(card)
}

func (m *Model) executeCard(card *commandCard) {
	eval := card.currentEvaluation(m.gate.Policy())
	cmd := card.currentCommand()
	switch eval.Verdict {
	case security.VerdictDeny:
		// The gate surfaces the denial; nothing reaches the shell.
		if err := m.gate.TryExecuteSuggested(cmd); err != nil {
			m.notice = err.Error()
		}
		card.status = cardRejected
	case security.VerdictAllow:
		if err := m.gate.TryExecuteSuggested(cmd); err != nil {
			m.notice = err.Error()
			return
		}
		m.collector.RecordCommand(cmd)
		card.status = cardExecuted
	default:
		if err := m.gate.ExecuteConfirmed(cmd); err != nil {
			m.notice = err.Error()
			return
		}
		m.collector.RecordCommand(cmd)
		card.status = cardExecuted
	}
	m.refreshChat()
}

func (m *Model) rejectPending() {
	log := m.ensureChat(m.mgr.CurrentSessionID())
	if card := log.lastPendingCard(); card != nil {
		card.status = cardRejected
		m.refreshChat()
	}
}

func (m *Model) cycleAlternative() {
	log := m.ensureChat(m.mgr.CurrentSessionID())
	card := log.lastPendingCard()
	if card == nil || len(card.sug.Alternatives) == 0 {
		return
	}
	card.altIndex = (card.altIndex + 1) % (len(card.sug.Alternatives) + 1)
	m.refreshChat()
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
