package llm

import (
	"regexp"
	"strings"
)

var (
	contextWindowTooSmallRe = regexp.MustCompile(`(?i)context window.*(too small|minimum is)`)
	contextOverflowHintRe   = regexp.MustCompile(`(?i)context.*overflow|context window.*(too (?:large|long)|exceed|over|limit|max(?:imum)?|requested|sent|tokens)|prompt.*(too (?:large|long)|exceed|over|limit|max(?:imum)?)`)
	rateLimitHintRe         = regexp.MustCompile(`(?i)rate limit|too many requests|requests per (?:minute|hour|day)|quota|throttl|429\b|tpm\b|tpd\b`)
	authHintRe              = regexp.MustCompile(`(?i)invalid.*api key|incorrect api key|authentication|unauthorized|401\b|403\b`)
)

// ClassifyError buckets a transient model failure for the inline notice shown
// in the assistant pane. The session stays usable regardless of the class.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	return ClassifyErrorText(err.Error())
}

// ClassifyErrorText is ClassifyError for failures that crossed a channel as
// plain text.
func ClassifyErrorText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	switch {
	case IsLikelyRateLimitText(text):
		return "rate limited"
	case IsLikelyAuthErrorText(text):
		return "auth failed"
	case IsLikelyContextOverflowText(text):
		return "context too long"
	default:
		return "request failed"
	}
}

func IsLikelyRateLimitText(errorMessage string) bool {
	return rateLimitHintRe.MatchString(strings.TrimSpace(errorMessage))
}

func IsLikelyAuthErrorText(errorMessage string) bool {
	return authHintRe.MatchString(strings.TrimSpace(errorMessage))
}

func IsLikelyContextOverflowText(errorMessage string) bool {
	text := strings.TrimSpace(errorMessage)
	if text == "" {
		return false
	}
	if contextWindowTooSmallRe.MatchString(text) {
		return false
	}
	// Rate limit errors can match broad overflow heuristics (e.g. "request
	// reached ... limit").
	if rateLimitHintRe.MatchString(text) {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "request_too_large") ||
		strings.Contains(lower, "context length exceeded") ||
		strings.Contains(lower, "maximum context length") ||
		strings.Contains(lower, "prompt is too long") ||
		strings.Contains(lower, "exceeds model context window") {
		return true
	}
	return contextOverflowHintRe.MatchString(text)
}
