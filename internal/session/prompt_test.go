package session

import (
	"strings"
	"testing"

	"aiterm/internal/shellctx"
)

func TestBuildPrompt_Sections(t *testing.T) {
	snap := shellctx.Snapshot{
		Cwd: "/home/user/projects",
		EnvVars: [][2]string{
			{"HOME", "/home/user"},
			{"SHELL", "/bin/bash"},
		},
		RecentHistory: []string{"ls -la", "cd projects"},
	}
	prompt := BuildPrompt("list all files", snap)

	for _, want := range []string{
		"USER REQUEST:",
		"list all files",
		"CURRENT DIRECTORY:",
		"/home/user/projects",
		"RECENT COMMAND HISTORY:",
		"ls -la",
		"RELEVANT ENVIRONMENT:",
		"HOME=/home/user",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPrompt_PrefersCommandRecords(t *testing.T) {
	snap := shellctx.Snapshot{
		Cwd:           "/",
		RecentHistory: []string{"old command"},
		RecentCommands: []shellctx.CommandRecord{
			{CommandLine: "make build", Output: "ok\n"},
		},
	}
	prompt := BuildPrompt("build it", snap)
	if !strings.Contains(prompt, "$ make build") {
		t.Fatalf("expected command record in prompt:\n%s", prompt)
	}
	if strings.Contains(prompt, "RECENT COMMAND HISTORY:") {
		t.Fatalf("history fallback should be skipped when records exist")
	}
}

func TestBuildPrompt_TruncatesLongEnvValues(t *testing.T) {
	snap := shellctx.Snapshot{
		Cwd: "/",
		EnvVars: [][2]string{
			{"PATH", strings.Repeat("/usr/bin:", 40)},
		},
	}
	prompt := BuildPrompt("x", snap)
	for _, line := range strings.Split(prompt, "\n") {
		if strings.Contains(line, "PATH=") && len(line) > 120 {
			t.Fatalf("expected PATH truncated, got %d chars", len(line))
		}
	}
	if !strings.Contains(prompt, "...") {
		t.Fatalf("expected truncation marker")
	}
}

func TestBuildPrompt_EmptyContext(t *testing.T) {
	prompt := BuildPrompt("help me", shellctx.Snapshot{Cwd: "/"})
	if !strings.Contains(prompt, "USER REQUEST:") || !strings.Contains(prompt, "help me") {
		t.Fatalf("minimal prompt malformed:\n%s", prompt)
	}
}

func TestTruncateOutput_KeepsTail(t *testing.T) {
	out := truncateOutput(strings.Repeat("a", 100)+"TAIL", 20)
	if !strings.HasSuffix(out, "TAIL") {
		t.Fatalf("expected tail preserved, got %q", out)
	}
	if !strings.HasPrefix(out, "...") {
		t.Fatalf("expected truncation marker, got %q", out)
	}
}
