package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"aiterm/internal/event"
	"aiterm/internal/security"
)

type cardStatus int

const (
	cardPending cardStatus = iota
	cardExecuted
	cardRejected
)

// commandCard wraps one suggestion plus its execution status. The verdict on
// the primary command is immutable; cycling to an alternative re-evaluates
// for display, and execution always re-enters the gate anyway.
type commandCard struct {
	sug      event.CommandSuggestion
	status   cardStatus
	altIndex int // 0 = primary command, 1.. = alternatives
	denied   string
}

func (c *commandCard) currentCommand() string {
	if c.altIndex == 0 || c.altIndex > len(c.sug.Alternatives) {
		return c.sug.Command
	}
	return c.sug.Alternatives[c.altIndex-1]
}

func (c *commandCard) currentEvaluation(policy security.Policy) security.Evaluation {
	if c.altIndex == 0 {
		return security.Evaluation{Verdict: c.sug.Verdict, Reason: c.sug.VerdictReason}
	}
	return policy.Evaluate(c.currentCommand())
}

type chatItemKind int

const (
	itemUser chatItemKind = iota
	itemAssistant
	itemCard
	itemNotice
)

type chatItem struct {
	kind      chatItemKind
	text      string
	streaming bool
	card      *commandCard
}

// chatLog is one session's display list. The manager owns conversation
// history; this holds only what the pane paints.
type chatLog struct {
	items []chatItem
}

func (c *chatLog) lastPendingCard() *commandCard {
	for i := len(c.items) - 1; i >= 0; i-- {
		if c.items[i].kind == itemCard && c.items[i].card.status == cardPending {
			return c.items[i].card
		}
	}
	return nil
}

// streamingItem returns the assistant item currently receiving chunks.
func (c *chatLog) streamingItem() *chatItem {
	for i := len(c.items) - 1; i >= 0; i-- {
		if c.items[i].kind == itemAssistant && c.items[i].streaming {
			return &c.items[i]
		}
	}
	return nil
}

var (
	styleUserPrefix  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	styleNotice      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleCardAllow   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleCardConfirm = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleCardDeny    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleCardDim     = lipgloss.NewStyle().Faint(true)
	styleCardCmd     = lipgloss.NewStyle().Bold(true)
	styleTabActive   = lipgloss.NewStyle().Bold(true).Reverse(true)
	styleTabIdle     = lipgloss.NewStyle().Faint(true)
)

// cardHit records where a card's buttons landed in the rendered chat content
// so mouse clicks can find them.
type cardHit struct {
	line         int // content line of the button row
	runStart     int
	runEnd       int
	dismissStart int
	dismissEnd   int
	card         *commandCard
}

// tabSpan records a tab's cells on the tab bar.
type tabSpan struct {
	id         event.SessionID
	start, end int // [start, end)
	closeCol   int // column of the × marker, -1 when absent
}

// renderTabBar paints the session tabs plus the [+] button and returns the
// hit spans.
func renderTabBar(ids []event.SessionID, current event.SessionID, width int) (string, []tabSpan, int) {
	var (
		b     strings.Builder
		spans []tabSpan
		col   int
	)
	for _, id := range ids {
		label := fmt.Sprintf(" %d ", id)
		closeCol := -1
		if id == current {
			label = fmt.Sprintf(" %d × ", id)
			closeCol = col + runewidth.StringWidth(label) - 2
			b.WriteString(styleTabActive.Render(label))
		} else {
			b.WriteString(styleTabIdle.Render(label))
		}
		w := runewidth.StringWidth(label)
		spans = append(spans, tabSpan{id: id, start: col, end: col + w, closeCol: closeCol})
		col += w
		b.WriteString(" ")
		col++
	}
	plusCol := col
	b.WriteString(styleTabIdle.Render("[+]"))
	line := b.String()
	if runewidth.StringWidth(line) > width {
		line = runewidth.Truncate(line, width, "")
	}
	return line, spans, plusCol
}

// verdictBadge renders the card's verdict line.
func verdictBadge(eval security.Evaluation, status cardStatus) string {
	switch status {
	case cardExecuted:
		return styleCardAllow.Render("✓ executed")
	case cardRejected:
		if eval.Verdict == security.VerdictDeny {
			return styleCardDeny.Render("✗ denied: " + eval.Reason)
		}
		return styleCardDim.Render("✗ dismissed")
	}
	switch eval.Verdict {
	case security.VerdictAllow:
		return styleCardAllow.Render("✓ safe · ctrl+y runs")
	case security.VerdictRequireConfirmation:
		return styleCardConfirm.Render("⚠ needs confirmation · ctrl+y confirms")
	default:
		return styleCardDeny.Render("✗ blocked: " + eval.Reason)
	}
}

// renderCard paints one command card and reports the local line index and
// column ranges of its buttons (-1 line when no buttons are shown).
func renderCard(card *commandCard, policy security.Policy, width int) (string, cardHit) {
	eval := card.currentEvaluation(policy)

	var lines []string
	cmd := styleCardCmd.Render("$ " + card.currentCommand())
	if n := len(card.sug.Alternatives); n > 0 {
		cmd += styleCardDim.Render(fmt.Sprintf("  (%d/%d · ctrl+a cycles)", card.altIndex+1, n+1))
	}
	lines = append(lines, cmd)
	if card.sug.Explanation != "" {
		lines = append(lines, styleCardDim.Render(card.sug.Explanation))
	}
	lines = append(lines, verdictBadge(eval, card.status))
	if card.denied != "" {
		lines = append(lines, styleCardDeny.Render(card.denied))
	}

	hit := cardHit{line: -1, card: card}
	if card.status == cardPending {
		const runLabel = "[run]"
		const dismissLabel = "[dismiss]"
		buttons := styleCardAllow.Render(runLabel) + "  " + styleCardDim.Render(dismissLabel)
		hit.line = len(lines)
		hit.runStart = 0
		hit.runEnd = len(runLabel)
		hit.dismissStart = hit.runEnd + 2
		hit.dismissEnd = hit.dismissStart + len(dismissLabel)
		lines = append(lines, buttons)
	}

	var border lipgloss.Style
	switch {
	case card.status == cardExecuted:
		border = lipgloss.NewStyle().BorderForeground(lipgloss.Color("2"))
	case card.status == cardRejected || eval.Verdict == security.VerdictDeny:
		border = lipgloss.NewStyle().BorderForeground(lipgloss.Color("1"))
	default:
		border = lipgloss.NewStyle().BorderForeground(lipgloss.Color("3"))
	}
	box := border.
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(width - 2).
		Render(strings.Join(lines, "\n"))
	return box, hit
}
