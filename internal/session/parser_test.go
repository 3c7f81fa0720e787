package session

import "testing"

func TestParseLegacy_StructuredFormat(t *testing.T) {
	response := `
COMMAND: ls -la
EXPLANATION: Lists all files including hidden ones in long format
ALTERNATIVES: ls -lh, ll
`
	s, ok := ParseLegacySuggestion(response)
	if !ok {
		t.Fatalf("expected structured format to parse")
	}
	if s.Command != "ls -la" {
		t.Fatalf("unexpected command: %q", s.Command)
	}
	if s.Explanation != "Lists all files including hidden ones in long format" {
		t.Fatalf("unexpected explanation: %q", s.Explanation)
	}
	if len(s.Alternatives) != 2 || s.Alternatives[0] != "ls -lh" || s.Alternatives[1] != "ll" {
		t.Fatalf("unexpected alternatives: %v", s.Alternatives)
	}
}

func TestParseLegacy_CodeBlockFormat(t *testing.T) {
	response := "You can list all files with:\n\n```bash\nls -la\n```\n\nThis shows hidden files too."
	s, ok := ParseLegacySuggestion(response)
	if !ok {
		t.Fatalf("expected code block format to parse")
	}
	if s.Command != "ls -la" {
		t.Fatalf("unexpected command: %q", s.Command)
	}
	if s.Explanation != "You can list all files with:" {
		t.Fatalf("unexpected explanation: %q", s.Explanation)
	}
}

func TestParseLegacy_InlineFormat(t *testing.T) {
	s, ok := ParseLegacySuggestion("You should run `ls -la` to see all files.")
	if !ok {
		t.Fatalf("expected inline format to parse")
	}
	if s.Command != "ls -la" {
		t.Fatalf("unexpected command: %q", s.Command)
	}
}

func TestParseLegacy_InlineSkipsNonCommands(t *testing.T) {
	if _, ok := ParseLegacySuggestion("The word `banana` is not a command."); ok {
		t.Fatalf("expected non-command backticks rejected")
	}
}

func TestParseLegacy_InlineSkipsLongReplies(t *testing.T) {
	long := "Here is a long essay about shells. "
	for len(long) < 500 {
		long += long
	}
	if _, ok := ParseLegacySuggestion(long + " maybe `ls -la`"); ok {
		t.Fatalf("expected long replies to skip the inline heuristic")
	}
}

func TestParseLegacy_PlainTextNoSuggestion(t *testing.T) {
	if _, ok := ParseLegacySuggestion("A shell is a command interpreter."); ok {
		t.Fatalf("expected plain prose to yield no suggestion")
	}
}

func TestParseLegacy_StructuredNeedsBothFields(t *testing.T) {
	if _, ok := ParseLegacySuggestion("COMMAND: ls"); ok {
		t.Fatalf("expected command without explanation rejected")
	}
}
