package session

import (
	"fmt"
	"strings"

	"aiterm/internal/llm"
	"aiterm/internal/shellctx"
)

// SystemPrompt instructs the model to either answer conversationally or emit
// a suggest_command tool call.
const SystemPrompt = `You are a shell copilot embedded next to a live terminal session.
Answer conversationally when the user asks a question. When a shell command
would satisfy the request, call the suggest_command tool with the exact
command, a one-sentence explanation, and optional alternatives. Suggest one
command per request. Be cautious with destructive operations: prefer the
least destructive command that does the job, and say so in the explanation.
Never suggest pipelines or command chains; suggest a single simple command.`

const (
	maxEnvValueLen      = 100
	maxRecordOutput     = 2048
	promptHistoryLimit  = 10
	promptRecordsLimit  = 5
	promptOutputPreview = "...\n"
)

// suggestCommandTool is the single tool definition sent with every request.
func suggestCommandTool() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunctionDef{
			Name:        "suggest_command",
			Description: "Propose a shell command for the user's request.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"command":     map[string]interface{}{"type": "string", "description": "The shell command"},
					"explanation": map[string]interface{}{"type": "string", "description": "One sentence on what it does"},
					"alternatives": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"command", "explanation"},
			},
		},
	}
}

// BuildPrompt assembles the user turn: the request first, then the context
// snapshot the model needs to ground its suggestion.
func BuildPrompt(userText string, snap shellctx.Snapshot) string {
	var b strings.Builder

	b.WriteString("USER REQUEST:\n")
	b.WriteString(userText)
	b.WriteString("\n\n")

	b.WriteString("CURRENT DIRECTORY:\n")
	b.WriteString(snap.Cwd)
	b.WriteString("\n\n")

	if len(snap.RecentCommands) > 0 {
		b.WriteString("RECENT COMMANDS AND OUTPUT:\n")
		records := snap.RecentCommands
		if len(records) > promptRecordsLimit {
			records = records[len(records)-promptRecordsLimit:]
		}
		for _, rec := range records {
			b.WriteString(fmt.Sprintf("$ %s\n", rec.CommandLine))
			if out := truncateOutput(rec.Output, maxRecordOutput); out != "" {
				b.WriteString(out)
				if !strings.HasSuffix(out, "\n") {
					b.WriteString("\n")
				}
			}
		}
		b.WriteString("\n")
	} else if len(snap.RecentHistory) > 0 {
		b.WriteString("RECENT COMMAND HISTORY:\n")
		history := snap.RecentHistory
		if len(history) > promptHistoryLimit {
			history = history[len(history)-promptHistoryLimit:]
		}
		for i, cmd := range history {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, cmd))
		}
		b.WriteString("\n")
	}

	if len(snap.EnvVars) > 0 {
		b.WriteString("RELEVANT ENVIRONMENT:\n")
		for _, kv := range snap.EnvVars {
			value := kv[1]
			if len(value) > maxEnvValueLen {
				value = value[:maxEnvValueLen] + "..."
			}
			b.WriteString(fmt.Sprintf("  %s=%s\n", kv[0], value))
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// truncateOutput keeps the tail of long command output, marking the cut.
func truncateOutput(output string, maxBytes int) string {
	output = strings.TrimRight(output, "\n")
	if len(output) <= maxBytes {
		return output
	}
	cut := len(output) - maxBytes
	// Don't split a UTF-8 sequence.
	for cut < len(output) && output[cut]&0xc0 == 0x80 {
		cut++
	}
	return promptOutputPreview + output[cut:]
}
