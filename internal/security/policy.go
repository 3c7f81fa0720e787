// Package security classifies AI-suggested shell commands and owns the single
// execution checkpoint through which any suggested command may reach the PTY.
//
// Evaluate and Gate are pure: for any command c, Gate(c, Evaluate(c)) depends
// only on c, so the policy can be table-tested without a terminal.
package security

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Verdict is the security classification of a candidate command.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictRequireConfirmation
	VerdictDeny
)

func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictRequireConfirmation:
		return "confirm"
	case VerdictDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// Evaluation pairs a verdict with its human-readable reason.
type Evaluation struct {
	Verdict Verdict
	Reason  string
}

// Policy holds the three classification lists. Entries may be multi-word
// ("git status"); longer entries win over shorter ones.
type Policy struct {
	// Allow lists read-only / inspection commands.
	Allow []string
	// Confirm lists mutating commands that need an explicit user confirmation.
	Confirm []string
	// DenyPrefixes lists destructive verb+flag forms blocked outright,
	// matched against the whitespace-normalized command prefix.
	DenyPrefixes []string
}

// dangerousOperators are shell composition tokens that make a suggested
// command unreviewable: the lexed first verb no longer bounds what runs.
var dangerousOperators = []string{"|", ">", "<", "&", ";", "$(", "`"}

// DefaultPolicy returns the built-in classification lists.
func DefaultPolicy() Policy {
	return Policy{
		Allow: []string{
			"ls", "pwd", "cd", "echo", "cat", "head", "tail", "find", "grep",
			"which", "env", "date", "uname", "whoami", "wc", "file", "stat",
			"df", "du", "ps", "id", "hostname", "uptime", "printenv", "type",
			"git status", "git log", "git diff", "git show",
			"go build", "go test", "go vet", "go version", "go env",
			"cargo build", "cargo check", "cargo test",
		},
		Confirm: []string{
			"rm", "cp", "mv", "chmod", "chown", "kill", "pkill", "mkdir",
			"rmdir", "touch", "ln", "sudo", "curl", "wget", "tar", "make",
			"git commit", "git push", "git reset", "git add", "git checkout",
			"git merge", "git rebase", "git pull", "git clean", "git stash",
		},
		DenyPrefixes: []string{
			"rm -rf /",
			"rm -rf ~",
			"rm -fr /",
			"rm -fr ~",
			"mkfs",
			":(){",
			":() {",
		},
	}
}

// policyFile is the optional "security" section of the config file. Entries
// extend the defaults; they never remove built-in deny rules.
type policyFile struct {
	Security struct {
		Allow        []string `json:"allow"`
		Confirm      []string `json:"confirm"`
		DenyPrefixes []string `json:"deny_prefixes"`
	} `json:"security"`
}

// LoadPolicy reads policy extensions from the shared config file. A missing
// file yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("read security policy: %w", err)
	}
	var f policyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return p, fmt.Errorf("parse security policy: %w", err)
	}
	p.Allow = append(p.Allow, f.Security.Allow...)
	p.Confirm = append(p.Confirm, f.Security.Confirm...)
	p.DenyPrefixes = append(p.DenyPrefixes, f.Security.DenyPrefixes...)
	return p, nil
}

// Evaluate classifies a command without executing any shell expansion.
func (p Policy) Evaluate(cmd string) Evaluation {
	trimmed := strings.TrimSpace(cmd)
	if trimmed == "" {
		return Evaluation{VerdictDeny, "empty command"}
	}

	for _, op := range dangerousOperators {
		if strings.Contains(trimmed, op) {
			return Evaluation{VerdictDeny, "contains dangerous shell operators"}
		}
	}

	normalized := strings.Join(strings.Fields(trimmed), " ")
	for _, prefix := range p.DenyPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return Evaluation{VerdictDeny, fmt.Sprintf("matches blocked destructive pattern %q", prefix)}
		}
	}
	if isDeviceWrite(normalized) {
		return Evaluation{VerdictDeny, "writes directly to a block device"}
	}

	fields := strings.Fields(trimmed)
	verb := fields[0]

	// Bare git prints usage; any subcommand is judged on its own entry.
	if normalized == "git" {
		return Evaluation{VerdictAllow, ""}
	}

	if entry, ok := matchList(p.Confirm, fields); ok {
		return Evaluation{VerdictRequireConfirmation, fmt.Sprintf("%q is a mutating command", entry)}
	}
	if _, ok := matchList(p.Allow, fields); ok {
		// Allow-listed verbs lose their pass when combined with destructive
		// flags the list did not anticipate.
		if verb == "find" && hasField(fields, "-delete") {
			return Evaluation{VerdictRequireConfirmation, "find -delete removes files"}
		}
		return Evaluation{VerdictAllow, ""}
	}

	return Evaluation{VerdictRequireConfirmation, fmt.Sprintf("%q is not on the allow list", verb)}
}

// Evaluate classifies a command under the default policy.
func Evaluate(cmd string) Evaluation {
	return DefaultPolicy().Evaluate(cmd)
}

// matchList finds the longest list entry whose words prefix the command
// fields. Multi-word entries ("git status") take precedence over their verb.
func matchList(list []string, fields []string) (string, bool) {
	best := ""
	bestLen := 0
	for _, entry := range list {
		parts := strings.Fields(entry)
		if len(parts) == 0 || len(parts) > len(fields) {
			continue
		}
		matched := true
		for i, part := range parts {
			if fields[i] != part {
				matched = false
				break
			}
		}
		if matched && len(parts) > bestLen {
			best = entry
			bestLen = len(parts)
		}
	}
	if bestLen == 0 {
		return "", false
	}
	return best, true
}

func hasField(fields []string, want string) bool {
	for _, f := range fields {
		if f == want {
			return true
		}
	}
	return false
}

// isDeviceWrite catches dd invocations targeting a device node.
func isDeviceWrite(normalized string) bool {
	if !strings.HasPrefix(normalized, "dd ") {
		return false
	}
	for _, f := range strings.Fields(normalized) {
		if strings.HasPrefix(f, "of=/dev/") {
			return true
		}
	}
	return false
}
