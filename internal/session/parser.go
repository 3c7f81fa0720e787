package session

import "strings"

// Suggestion is the pre-verdict shape of a parsed command suggestion.
type Suggestion struct {
	Command      string
	Explanation  string
	Alternatives []string
}

// ParseLegacySuggestion extracts a command suggestion from plain assistant
// text. This is the compatibility path for models that answered without a
// tool call: a COMMAND:/EXPLANATION:/ALTERNATIVES: block, a fenced code
// block, or a single backticked command in a short reply.
func ParseLegacySuggestion(response string) (Suggestion, bool) {
	if s, ok := parseStructuredFormat(response); ok {
		return s, true
	}
	if s, ok := parseCodeBlockFormat(response); ok {
		return s, true
	}
	return parseInlineFormat(response)
}

func parseStructuredFormat(response string) (Suggestion, bool) {
	var (
		command      string
		explanation  string
		haveCommand  bool
		haveExplain  bool
		alternatives []string
	)
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "COMMAND:"):
			command = strings.TrimSpace(strings.TrimPrefix(line, "COMMAND:"))
			haveCommand = command != ""
		case strings.HasPrefix(line, "EXPLANATION:"):
			explanation = strings.TrimSpace(strings.TrimPrefix(line, "EXPLANATION:"))
			haveExplain = true
		case strings.HasPrefix(line, "ALTERNATIVES:"):
			for _, alt := range strings.Split(strings.TrimPrefix(line, "ALTERNATIVES:"), ",") {
				if alt = strings.TrimSpace(alt); alt != "" {
					alternatives = append(alternatives, alt)
				}
			}
		}
	}
	if !haveCommand || !haveExplain {
		return Suggestion{}, false
	}
	return Suggestion{Command: command, Explanation: explanation, Alternatives: alternatives}, true
}

func parseCodeBlockFormat(response string) (Suggestion, bool) {
	var (
		inBlock     bool
		beforeBlock = true
		command     []string
		explanation []string
	)
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```"):
			if inBlock {
				inBlock = false
				beforeBlock = false
			} else {
				inBlock = true
			}
		case inBlock:
			if trimmed != "" {
				command = append(command, trimmed)
			}
		case trimmed != "" && beforeBlock:
			explanation = append(explanation, trimmed)
		}
	}
	if len(command) == 0 {
		return Suggestion{}, false
	}
	exp := strings.Join(explanation, " ")
	if exp == "" {
		exp = "Command suggested by the assistant"
	}
	return Suggestion{
		Command:     strings.Join(command, "\n"),
		Explanation: exp,
	}, true
}

// inlineReplyLimit keeps the backtick heuristic to short replies where a
// single inline command is plausibly the whole answer.
const inlineReplyLimit = 400

func parseInlineFormat(response string) (Suggestion, bool) {
	if len(response) > inlineReplyLimit {
		return Suggestion{}, false
	}
	rest := response
	for {
		start := strings.IndexByte(rest, '`')
		if start < 0 {
			return Suggestion{}, false
		}
		end := strings.IndexByte(rest[start+1:], '`')
		if end < 0 {
			return Suggestion{}, false
		}
		candidate := strings.TrimSpace(rest[start+1 : start+1+end])
		if candidate != "" && isLikelyCommand(candidate) {
			return Suggestion{
				Command:     candidate,
				Explanation: extractInlineExplanation(response, candidate),
			}, true
		}
		rest = rest[start+1+end+1:]
	}
}

var commonCommandVerbs = []string{
	"ls", "cd", "pwd", "echo", "cat", "grep", "find", "mkdir", "rm", "cp", "mv",
	"chmod", "chown", "ps", "kill", "top", "df", "du", "tar", "curl", "wget",
	"git", "npm", "go", "cargo", "python", "node", "docker", "kubectl", "ssh", "scp",
	"head", "tail", "which", "make", "sed", "awk", "sort", "uniq", "wc",
}

func isLikelyCommand(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	verb := strings.Fields(text)[0]
	for _, cmd := range commonCommandVerbs {
		if verb == cmd {
			return true
		}
	}
	// Flags or paths after a space still read as a command.
	return strings.Contains(text, " ") && (strings.Contains(text, "-") || strings.Contains(text, "/"))
}

func extractInlineExplanation(response, command string) string {
	explanation := strings.ReplaceAll(response, "`"+command+"`", "")
	explanation = strings.ReplaceAll(explanation, command, "")
	explanation = strings.TrimSpace(explanation)
	if explanation == "" {
		return "Command suggested by the assistant"
	}
	if idx := strings.IndexByte(explanation, '\n'); idx >= 0 {
		explanation = explanation[:idx]
	}
	if len(explanation) > 200 {
		explanation = explanation[:200]
	}
	return strings.TrimSpace(explanation)
}
