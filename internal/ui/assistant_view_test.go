package ui

import (
	"strings"
	"testing"

	"aiterm/internal/event"
	"aiterm/internal/security"
)

func TestRenderTabBar_Spans(t *testing.T) {
	ids := []event.SessionID{1, 2, 3}
	line, spans, plusCol := renderTabBar(ids, 2, 80)

	if line == "" {
		t.Fatalf("expected tab bar content")
	}
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			t.Fatalf("spans overlap: %+v", spans)
		}
	}
	if spans[0].closeCol != -1 || spans[2].closeCol != -1 {
		t.Fatalf("only the active tab carries a close marker: %+v", spans)
	}
	if spans[1].closeCol < spans[1].start || spans[1].closeCol >= spans[1].end {
		t.Fatalf("close marker must sit inside its tab: %+v", spans[1])
	}
	if plusCol < spans[2].end {
		t.Fatalf("[+] must follow the last tab: %d < %d", plusCol, spans[2].end)
	}
}

func TestCommandCard_AlternativeCycling(t *testing.T) {
	card := &commandCard{sug: event.CommandSuggestion{
		Command:      "ls -la",
		Alternatives: []string{"ls -lh", "ls | head"},
		Verdict:      security.VerdictAllow,
	}}

	if card.currentCommand() != "ls -la" {
		t.Fatalf("expected primary command first")
	}
	card.altIndex = 1
	if card.currentCommand() != "ls -lh" {
		t.Fatalf("expected first alternative, got %q", card.currentCommand())
	}

	policy := security.DefaultPolicy()
	if eval := card.currentEvaluation(policy); eval.Verdict != security.VerdictAllow {
		t.Fatalf("expected alternative re-evaluated as Allow, got %v", eval.Verdict)
	}
	card.altIndex = 2
	if eval := card.currentEvaluation(policy); eval.Verdict != security.VerdictDeny {
		t.Fatalf("piped alternative must re-evaluate to Deny, got %v", eval.Verdict)
	}
}

func TestRenderCard_PendingHasButtons(t *testing.T) {
	card := &commandCard{sug: event.CommandSuggestion{
		Command:     "ls -la",
		Explanation: "list all files",
		Verdict:     security.VerdictAllow,
	}}
	rendered, hit := renderCard(card, security.DefaultPolicy(), 50)
	if hit.line < 0 {
		t.Fatalf("pending card must expose buttons")
	}
	if hit.runEnd <= hit.runStart || hit.dismissEnd <= hit.dismissStart {
		t.Fatalf("malformed button ranges: %+v", hit)
	}
	if !strings.Contains(rendered, "ls -la") {
		t.Fatalf("card must show its command: %q", rendered)
	}

	card.status = cardExecuted
	_, hit = renderCard(card, security.DefaultPolicy(), 50)
	if hit.line >= 0 {
		t.Fatalf("executed card must not expose buttons")
	}
}

func TestChatLog_LastPendingCard(t *testing.T) {
	log := &chatLog{}
	if log.lastPendingCard() != nil {
		t.Fatalf("empty log has no pending card")
	}
	done := &commandCard{status: cardExecuted}
	pending := &commandCard{}
	log.items = append(log.items,
		chatItem{kind: itemCard, card: done},
		chatItem{kind: itemUser, text: "x"},
		chatItem{kind: itemCard, card: pending},
	)
	if got := log.lastPendingCard(); got != pending {
		t.Fatalf("expected the pending card, got %+v", got)
	}
	pending.status = cardRejected
	if log.lastPendingCard() != nil {
		t.Fatalf("rejected cards are not pending")
	}
}
