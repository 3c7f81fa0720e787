// Package session owns all live AI conversation state and every in-flight
// model request. Outside code holds only SessionIDs and goes through the
// manager's methods; the session table never leaks.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"aiterm/internal/event"
	"aiterm/internal/llm"
	"aiterm/internal/security"
	"aiterm/internal/shellctx"
)

// maxHistoryMessages caps a session's conversation history; the leading
// system message always survives trimming.
const maxHistoryMessages = 50

// streamClient is the slice of llm.Client the manager needs. Narrowed so
// tests can script streams.
type streamClient interface {
	ChatStream(ctx context.Context, req llm.ChatRequest) (llm.Stream, error)
}

// Session is one conversation thread. Created and mutated only by the
// manager.
type Session struct {
	ID             event.SessionID
	History        []llm.Message
	Current        string
	LastSuggestion *event.CommandSuggestion
	Streaming      bool

	cancel       context.CancelFunc
	pendingCalls []llm.ToolCall
}

// Manager multiplexes sessions and streaming requests. Different sessions may
// stream concurrently; one session never has two in-flight requests.
type Manager struct {
	mu       sync.Mutex
	sessions map[event.SessionID]*Session
	order    []event.SessionID
	current  event.SessionID
	nextID   event.SessionID

	tokens chan<- event.StreamData
	events chan<- event.AppEvent
	client streamClient
	policy security.Policy
	model  string
}

// NewManager creates the manager with one initial session. The token sink is
// bounded (event.TokenStreamCap); a full sink backpressures the stream task.
func NewManager(client streamClient, model string, policy security.Policy, tokens chan<- event.StreamData, events chan<- event.AppEvent) *Manager {
	m := &Manager{
		sessions: make(map[event.SessionID]*Session),
		nextID:   1,
		tokens:   tokens,
		events:   events,
		client:   client,
		policy:   policy,
		model:    model,
	}
	m.current = m.addSessionLocked()
	return m
}

func (m *Manager) addSessionLocked() event.SessionID {
	id := m.nextID
	m.nextID++
	m.sessions[id] = &Session{
		ID:      id,
		History: []llm.Message{{Role: "system", Content: SystemPrompt}},
	}
	m.order = append(m.order, id)
	return id
}

// NewSession creates and selects a fresh session.
func (m *Manager) NewSession() event.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.addSessionLocked()
	m.current = id
	return id
}

// SwitchSession selects an existing session.
func (m *Manager) SwitchSession(id event.SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	m.current = id
	return true
}

// CloseSession cancels any in-flight request and drops the session. Closing
// the last session replaces it with a fresh one. Chunks already emitted for a
// closed session are discarded by the UI via HasSession.
func (m *Manager) CloseSession(id event.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	delete(m.sessions, id)
	for i, sid := range m.order {
		if sid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if len(m.order) == 0 {
		m.current = m.addSessionLocked()
		return
	}
	if m.current == id {
		m.current = nextLowerID(m.order, id)
	}
}

// nextLowerID picks the closest id below the closed one, falling back to the
// lowest remaining id when nothing sits below it.
func nextLowerID(order []event.SessionID, closed event.SessionID) event.SessionID {
	var (
		below    event.SessionID
		hasBelow bool
		lowest   = order[0]
	)
	for _, id := range order {
		if id < lowest {
			lowest = id
		}
		if id < closed && (!hasBelow || id > below) {
			below = id
			hasBelow = true
		}
	}
	if hasBelow {
		return below
	}
	return lowest
}

// CurrentSessionID returns the foreground session.
func (m *Manager) CurrentSessionID() event.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SessionIDs returns all sessions in creation order.
func (m *Manager) SessionIDs() []event.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.SessionID, len(m.order))
	copy(out, m.order)
	return out
}

// HasSession reports whether a session is still live. Used by the UI to
// discard stream data that raced a close.
func (m *Manager) HasSession(id event.SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

// IsStreaming reports whether a request is in flight for the session.
func (m *Manager) IsStreaming(id event.SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return ok && s.Streaming
}

// CurrentResponse returns the accumulating text of the in-flight response.
func (m *Manager) CurrentResponse(id event.SessionID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s.Current
	}
	return ""
}

// GetLastSuggestion returns the session's most recent suggestion, if any.
func (m *Manager) GetLastSuggestion(id event.SessionID) (event.CommandSuggestion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.LastSuggestion == nil {
		return event.CommandSuggestion{}, false
	}
	return *s.LastSuggestion, true
}

// ExecuteSuggestion emits an ExecuteAiCommand app event carrying the
// session's last suggestion, if one exists.
func (m *Manager) ExecuteSuggestion(id event.SessionID) error {
	if _, ok := m.GetLastSuggestion(id); !ok {
		return fmt.Errorf("session %d has no command suggestion", id)
	}
	m.events <- event.ExecuteAiCommand{SessionID: id}
	return nil
}

// SendMessage appends the user turn, builds the prompt, and launches the
// streaming request. Returns immediately. A second send while the session is
// streaming is rejected.
func (m *Manager) SendMessage(ctx context.Context, id event.SessionID, userText string, snap shellctx.Snapshot) error {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return errors.New("empty message")
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session %d not found", id)
	}
	if s.Streaming {
		m.mu.Unlock()
		return fmt.Errorf("session %d is already streaming", id)
	}

	prompt := BuildPrompt(userText, snap)
	s.History = append(s.History, llm.Message{Role: "user", Content: prompt})
	trimHistory(s)
	s.Current = ""
	s.pendingCalls = nil
	s.Streaming = true

	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	history := make([]llm.Message, len(s.History))
	copy(history, s.History)
	m.mu.Unlock()

	go m.stream(streamCtx, id, history)
	return nil
}

// stream runs one request lifecycle. Ordering guarantees: chunks arrive in
// send order; any AiCommandSuggestion app event is emitted before the End for
// the same cycle; End is always last on the token sink, error or not.
func (m *Manager) stream(ctx context.Context, id event.SessionID, history []llm.Message) {
	defer func() {
		m.mu.Lock()
		if s, ok := m.sessions[id]; ok {
			s.Streaming = false
			s.cancel = nil
		}
		m.mu.Unlock()
		m.tokens <- event.StreamEnd{SessionID: id}
	}()

	stream, err := m.client.ChatStream(ctx, llm.ChatRequest{
		Model:    m.model,
		Messages: history,
		Tools:    []llm.ToolDefinition{suggestCommandTool()},
	})
	if err != nil {
		m.tokens <- event.StreamError{SessionID: id, Message: err.Error()}
		return
	}
	defer stream.Close()

	type toolAcc struct {
		id   string
		name string
		args strings.Builder
	}
	var (
		fullText strings.Builder
		calls    = make(map[int]*toolAcc)
	)

	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.tokens <- event.StreamError{SessionID: id, Message: err.Error()}
			return
		}
		if ev.Text != "" {
			fullText.WriteString(ev.Text)
			m.tokens <- event.StreamChunk{SessionID: id, Text: ev.Text}
		}
		for _, delta := range ev.ToolCallDeltas {
			acc, ok := calls[delta.Index]
			if !ok {
				acc = &toolAcc{}
				calls[delta.Index] = acc
			}
			if delta.ID != "" {
				acc.id = delta.ID
			}
			if delta.Name != "" {
				acc.name = delta.Name
			}
			acc.args.WriteString(delta.ArgumentsFragment)
		}
	}

	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var toolCalls []llm.ToolCall
	suggested := false
	for _, idx := range indexes {
		acc := calls[idx]
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:   acc.id,
			Type: "function",
			Function: llm.ToolCallFunction{
				Name:      acc.name,
				Arguments: acc.args.String(),
			},
		})
		if acc.name != "suggest_command" {
			continue
		}
		suggestion, err := m.parseSuggestion(id, acc.id, acc.args.String())
		if err != nil {
			// Malformed tool-call payloads are discarded; the natural
			// language text stays visible.
			continue
		}
		m.recordSuggestion(id, suggestion)
		m.events <- event.AiCommandSuggestion{Suggestion: suggestion}
		suggested = true
	}

	if !suggested {
		if legacy, ok := ParseLegacySuggestion(fullText.String()); ok {
			suggestion := m.buildSuggestion(id, "", legacy)
			m.recordSuggestion(id, suggestion)
			m.events <- event.AiCommandSuggestion{Suggestion: suggestion}
		}
	}

	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		s.pendingCalls = toolCalls
	}
	m.mu.Unlock()
}

func (m *Manager) parseSuggestion(id event.SessionID, callID, payload string) (event.CommandSuggestion, error) {
	var args struct {
		Command      string   `json:"command"`
		Explanation  string   `json:"explanation"`
		Alternatives []string `json:"alternatives"`
	}
	if err := json.Unmarshal([]byte(payload), &args); err != nil {
		return event.CommandSuggestion{}, fmt.Errorf("parse suggest_command payload: %w", err)
	}
	if strings.TrimSpace(args.Command) == "" {
		return event.CommandSuggestion{}, errors.New("suggest_command payload has no command")
	}
	s := m.buildSuggestion(id, callID, Suggestion{
		Command:      strings.TrimSpace(args.Command),
		Explanation:  strings.TrimSpace(args.Explanation),
		Alternatives: args.Alternatives,
	})
	return s, nil
}

// buildSuggestion computes the verdict once; it is immutable afterwards.
func (m *Manager) buildSuggestion(id event.SessionID, callID string, s Suggestion) event.CommandSuggestion {
	eval := m.policy.Evaluate(s.Command)
	return event.CommandSuggestion{
		SessionID:     id,
		ToolCallID:    callID,
		Command:       s.Command,
		Explanation:   s.Explanation,
		Alternatives:  s.Alternatives,
		Verdict:       eval.Verdict,
		VerdictReason: eval.Reason,
	}
}

func (m *Manager) recordSuggestion(id event.SessionID, suggestion event.CommandSuggestion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastSuggestion = &suggestion
	}
}

// AppendChunk adds streamed text to the session's current response buffer.
// Called by the UI as chunks arrive.
func (m *Manager) AppendChunk(id event.SessionID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Current += text
	}
}

// FinalizeResponse closes the assistant turn, stores it in history, and
// clears the current-response buffer.
func (m *Manager) FinalizeResponse(id event.SessionID, fullText string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	msg := llm.Message{Role: "assistant", Content: fullText, ToolCalls: s.pendingCalls}
	if fullText != "" || len(s.pendingCalls) > 0 {
		s.History = append(s.History, msg)
	}
	s.pendingCalls = nil
	s.Current = ""
	trimHistory(s)
}

// CancelAll cancels every in-flight request. Used at shutdown.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.cancel != nil {
			s.cancel()
		}
	}
}

func trimHistory(s *Session) {
	if len(s.History) <= maxHistoryMessages {
		return
	}
	trimmed := make([]llm.Message, 0, maxHistoryMessages)
	trimmed = append(trimmed, s.History[0]) // system prompt
	tail := s.History[len(s.History)-(maxHistoryMessages-1):]
	trimmed = append(trimmed, tail...)
	s.History = trimmed
}
