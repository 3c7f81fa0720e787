// Package ui is the event router and renderer: one bubbletea model owning
// focus, modes, and the channels between the producers and the screen.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"aiterm/internal/event"
	"aiterm/internal/llm"
	"aiterm/internal/security"
	"aiterm/internal/session"
	"aiterm/internal/shellctx"
	"aiterm/internal/term"
)

const defaultSplitRatio = 55

// Options wires the model to its collaborators.
type Options struct {
	Terminal  *term.Terminal
	Bytes     <-chan []byte
	Tokens    <-chan event.StreamData
	Events    <-chan event.AppEvent
	Manager   *session.Manager
	Gate      *security.Executor
	Collector *shellctx.Collector
}

// Model is the UI state machine. All mutation happens on the bubbletea
// goroutine; producers only touch the channels.
type Model struct {
	ctx context.Context

	term      *term.Terminal
	bytesCh   <-chan []byte
	tokensCh  <-chan event.StreamData
	eventsCh  <-chan event.AppEvent
	mgr       *session.Manager
	gate      *security.Executor
	collector *shellctx.Collector

	width, height int
	ratio         int
	layout        appLayout

	mode  Mode
	focus Pane
	vis   visualState

	termOffset int

	input textarea.Model
	vp    viewport.Model
	chats map[event.SessionID]*chatLog

	cardHits   []cardHit
	tabSpans   []tabSpan
	tabPlusCol int

	md   markdownRenderer
	clip clipboardBuffer

	drag        *dragState
	sepDragging bool
	lastClick   *clickState
	leftHeld    bool

	typedLine []rune

	notice      string
	shellDown   bool
	shellStatus int
	ptyDone     bool
	quitting    bool
}

// New builds the model. The terminal is resized to the pane on the first
// WindowSizeMsg.
func New(ctx context.Context, opts Options) *Model {
	input := textarea.New()
	input.Placeholder = "Ask for a command…"
	input.Prompt = "│ "
	input.SetHeight(1)
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.Focus()

	m := &Model{
		ctx:       ctx,
		term:      opts.Terminal,
		bytesCh:   opts.Bytes,
		tokensCh:  opts.Tokens,
		eventsCh:  opts.Events,
		mgr:       opts.Manager,
		gate:      opts.Gate,
		collector: opts.Collector,
		ratio:     defaultSplitRatio,
		focus:     PaneTerminal,
		input:     input,
		vp:        viewport.New(0, 0),
		chats:     make(map[event.SessionID]*chatLog),
	}
	m.ensureChat(m.mgr.CurrentSessionID())
	return m
}

type (
	ptyChunkMsg  []byte
	ptyClosedMsg struct{}
	tokenMsg     struct{ data event.StreamData }
	appEventMsg  struct{ data event.AppEvent }
)

func waitBytes(ch <-chan []byte) tea.Cmd {
	return func() tea.Msg {
		data, ok := <-ch
		if !ok {
			return ptyClosedMsg{}
		}
		return ptyChunkMsg(data)
	}
}

func waitTokens(ch <-chan event.StreamData) tea.Cmd {
	return func() tea.Msg {
		return tokenMsg{data: <-ch}
	}
}

func waitEvents(ch <-chan event.AppEvent) tea.Cmd {
	return func() tea.Msg {
		return appEventMsg{data: <-ch}
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		waitBytes(m.bytesCh),
		waitTokens(m.tokensCh),
		waitEvents(m.eventsCh),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.applyLayout()
		return m, nil

	case ptyChunkMsg:
		m.consumeChunk([]byte(msg))
		// Drain a burst without a render per chunk.
	drain:
		for i := 0; i < 32; i++ {
			select {
			case data, ok := <-m.bytesCh:
				if !ok {
					m.ptyDone = true
					return m, nil
				}
				m.consumeChunk(data)
			default:
				break drain
			}
		}
		return m, waitBytes(m.bytesCh)

	case ptyClosedMsg:
		m.ptyDone = true
		return m, nil

	case tokenMsg:
		m.handleStreamData(msg.data)
		return m, waitTokens(m.tokensCh)

	case appEventMsg:
		m.handleAppEvent(msg.data)
		return m, waitEvents(m.eventsCh)

	case tea.KeyMsg:
		m.notice = ""
		return m, m.handleKey(msg)

	case tea.MouseMsg:
		return m, m.handleMouse(msg)
	}
	return m, nil
}

func (m *Model) consumeChunk(data []byte) {
	m.term.Advance(data)
	m.collector.AppendOutput(data)
}

func (m *Model) handleStreamData(data event.StreamData) {
	switch d := data.(type) {
	case event.StreamChunk:
		// Chunks for a closed session are discarded at receipt.
		if !m.mgr.HasSession(d.SessionID) {
			return
		}
		m.mgr.AppendChunk(d.SessionID, d.Text)
		log := m.ensureChat(d.SessionID)
		item := log.streamingItem()
		if item == nil {
			log.items = append(log.items, chatItem{kind: itemAssistant, streaming: true})
			item = &log.items[len(log.items)-1]
		}
		item.text += d.Text
		if d.SessionID == m.mgr.CurrentSessionID() {
			m.refreshChat()
		}
	case event.StreamError:
		if !m.mgr.HasSession(d.SessionID) {
			return
		}
		m.appendNotice(d.SessionID, llm.ClassifyErrorText(d.Message)+": "+d.Message)
	case event.StreamEnd:
		if !m.mgr.HasSession(d.SessionID) {
			return
		}
		full := m.mgr.CurrentResponse(d.SessionID)
		m.mgr.FinalizeResponse(d.SessionID, full)
		log := m.ensureChat(d.SessionID)
		if item := log.streamingItem(); item != nil {
			item.streaming = false
			if strings.TrimSpace(item.text) == "" {
				// Tool-call-only responses leave no prose behind.
				log.removeEmptyStreamingTail()
			}
		}
		if d.SessionID == m.mgr.CurrentSessionID() {
			m.refreshChat()
		}
	}
}

func (m *Model) handleAppEvent(data event.AppEvent) {
	switch d := data.(type) {
	case event.AiCommandSuggestion:
		if !m.mgr.HasSession(d.Suggestion.SessionID) {
			return
		}
		log := m.ensureChat(d.Suggestion.SessionID)
		log.items = append(log.items, chatItem{
			kind: itemCard,
			card: &commandCard{sug: d.Suggestion},
		})
		if d.Suggestion.SessionID == m.mgr.CurrentSessionID() {
			m.refreshChat()
		}
	case event.ExecuteAiCommand:
		log := m.ensureChat(d.SessionID)
		if card := log.lastPendingCard(); card != nil {
			m.executeCard(card)
		}
	case event.ShellExited:
		m.shellDown = true
		m.shellStatus = d.Status
	case event.ShellError:
		m.notice = d.Err.Error()
	case event.GateDenied:
		m.appendNotice(m.mgr.CurrentSessionID(), "blocked: "+d.Reason)
	}
}

func (m *Model) ensureChat(id event.SessionID) *chatLog {
	log, ok := m.chats[id]
	if !ok {
		log = &chatLog{}
		m.chats[id] = log
	}
	return log
}

func (m *Model) appendNotice(id event.SessionID, text string) {
	log := m.ensureChat(id)
	log.items = append(log.items, chatItem{kind: itemNotice, text: text})
	if id == m.mgr.CurrentSessionID() {
		m.refreshChat()
	}
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	m.mgr.CancelAll()
	_ = m.term.Close()
	return tea.Quit
}

func (m *Model) applyLayout() {
	m.layout = computeLayout(m.width, m.height, m.ratio, m.input.Height())
	// One row inside the terminal border is the status line.
	innerRows := m.layout.termInnerH - 1
	if innerRows < 1 {
		innerRows = 1
	}
	m.layout.termInnerH = innerRows
	if err := m.term.Resize(m.layout.termInnerW, innerRows); err != nil && m.term.Alive() {
		m.notice = err.Error()
	}
	m.termOffset = m.term.Emulator().ClampOffset(m.termOffset)

	m.input.SetWidth(m.layout.asstW - 4)
	m.vp.Width = m.layout.asstW
	m.vp.Height = m.layout.msgH
	m.refreshChat()
}

func (m *Model) setRatio(ratio int) {
	ratio = clampInt(ratio, minSplitRatio, maxSplitRatio)
	if ratio == m.ratio {
		return
	}
	m.ratio = ratio
	m.applyLayout()
}

func (m *Model) syncInputHeight() {
	lines := clampInt(m.input.LineCount(), 1, 5)
	if lines != m.input.Height() {
		m.input.SetHeight(lines)
		m.applyLayout()
	}
}

// refreshChat rebuilds the assistant viewport content and the card button hit
// map for the current session.
func (m *Model) refreshChat() {
	if m.width == 0 {
		return
	}
	stick := m.vp.AtBottom()
	log := m.ensureChat(m.mgr.CurrentSessionID())
	width := m.layout.asstW

	var (
		blocks []string
		hits   []cardHit
		line   int
	)
	for i := range log.items {
		item := &log.items[i]
		var block string
		switch item.kind {
		case itemUser:
			block = styleUserPrefix.Render("› ") + item.text
		case itemAssistant:
			if item.streaming {
				block = item.text
				if block == "" {
					block = styleCardDim.Render("…")
				}
			} else {
				block = m.md.render(item.text, width-2)
			}
		case itemCard:
			rendered, hit := renderCard(item.card, m.gate.Policy(), width)
			if hit.line >= 0 {
				// Account for the card's top border row.
				hit.line += line + 1
				hits = append(hits, hit)
			}
			block = rendered
		case itemNotice:
			block = styleNotice.Render("✗ " + item.text)
		}
		blocks = append(blocks, block)
		line += strings.Count(block, "\n") + 2 // block plus separating blank
	}

	m.cardHits = hits
	m.vp.SetContent(strings.Join(blocks, "\n\n"))
	if stick {
		m.vp.GotoBottom()
	}
}

func (log *chatLog) removeEmptyStreamingTail() {
	for i := len(log.items) - 1; i >= 0; i-- {
		if log.items[i].kind != itemAssistant {
			continue
		}
		if strings.TrimSpace(log.items[i].text) == "" {
			log.items = append(log.items[:i], log.items[i+1:]...)
		}
		return
	}
}

var (
	styleBorderFocused = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("6"))
	styleBorderIdle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
	styleStatus        = lipgloss.NewStyle().Faint(true)
	styleBanner        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	styleSeparator     = lipgloss.NewStyle().Faint(true)
)

func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 || m.quitting {
		return ""
	}

	terminal := m.renderTerminalPane()
	separator := m.renderSeparator()
	assistant := m.renderAssistantPane()
	return lipgloss.JoinHorizontal(lipgloss.Top, terminal, separator, assistant)
}

func (m *Model) renderTerminalPane() string {
	frame := m.term.RenderFrame(m.termOffset)
	vis := visualCursor{}
	if m.mode == ModeVisual {
		vis = visualCursor{row: m.vis.row, col: m.vis.col, active: true}
	}
	content := renderTerminalFrame(frame, vis)

	status := m.statusLine(frame)
	body := content + "\n" + status

	border := styleBorderIdle
	if m.focus == PaneTerminal {
		border = styleBorderFocused
	}
	return border.Width(m.layout.termW - 2).Height(m.layout.height - 2).Render(body)
}

func (m *Model) statusLine(frame *term.Frame) string {
	var parts []string
	switch m.mode {
	case ModeCommandPrefix:
		parts = append(parts, "PREFIX")
	case ModeVisual:
		label := "VISUAL"
		switch m.vis.phase {
		case visualSelLine:
			label = "VISUAL LINE"
		case visualSelBlock:
			label = "VISUAL BLOCK"
		}
		if m.vis.count > 0 {
			label = fmt.Sprintf("%s %d", label, m.vis.count)
		}
		parts = append(parts, label)
	}
	if ind := scrollIndicator(frame.Offset, m.term.Emulator().ScrollbackLen()); ind != "" {
		parts = append(parts, strings.TrimSpace(ind))
	}
	if m.notice != "" {
		parts = append(parts, m.notice)
	}

	if m.shellDown {
		status := fmt.Sprintf("shell exited (status %d) — ctrl+b q quits", m.shellStatus)
		parts = append(parts, status)
		return styleBanner.Render(truncateLine(strings.Join(parts, " · "), m.layout.termInnerW))
	}
	if len(parts) == 0 {
		parts = append(parts, "ctrl+b: prefix")
	}
	return styleStatus.Render(truncateLine(strings.Join(parts, " · "), m.layout.termInnerW))
}

func (m *Model) renderSeparator() string {
	col := strings.TrimSuffix(strings.Repeat("│\n", m.layout.height), "\n")
	return styleSeparator.Render(col)
}

func (m *Model) renderAssistantPane() string {
	ids := m.mgr.SessionIDs()
	tabs, spans, plusCol := renderTabBar(ids, m.mgr.CurrentSessionID(), m.layout.asstW)
	m.tabSpans = spans
	m.tabPlusCol = plusCol

	inputBorder := styleBorderIdle
	if m.focus == PaneAssistant {
		inputBorder = styleBorderFocused
	}
	inputBox := inputBorder.Width(m.layout.asstW - 2).Render(m.input.View())

	tabLine := lipgloss.NewStyle().Width(m.layout.asstW).Render(tabs)
	msgView := lipgloss.NewStyle().Width(m.layout.asstW).Height(m.layout.msgH).Render(m.vp.View())
	return lipgloss.JoinVertical(lipgloss.Left, tabLine, msgView, inputBox)
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width])
}
