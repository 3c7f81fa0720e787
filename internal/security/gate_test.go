package security

import "testing"

type fakeTerminal struct {
	writes []string
	fail   error
}

func (f *fakeTerminal) ExecuteVisible(cmd string) error {
	if f.fail != nil {
		return f.fail
	}
	f.writes = append(f.writes, cmd)
	return nil
}

func TestExecutor_AllowWritesExactly(t *testing.T) {
	ft := &fakeTerminal{}
	ex := NewExecutor(DefaultPolicy(), ft)

	if err := ex.TryExecuteSuggested("ls -la"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ft.writes) != 1 || ft.writes[0] != "ls -la" {
		t.Fatalf("expected exactly [ls -la], got %v", ft.writes)
	}
}

func TestExecutor_ConfirmationDoesNotWrite(t *testing.T) {
	ft := &fakeTerminal{}
	ex := NewExecutor(DefaultPolicy(), ft)

	if err := ex.TryExecuteSuggested("rm file.txt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ft.writes) != 0 {
		t.Fatalf("confirmation verdict must not write, got %v", ft.writes)
	}
}

func TestExecutor_DenyNeverWrites(t *testing.T) {
	ft := &fakeTerminal{}
	ex := NewExecutor(DefaultPolicy(), ft)
	var denied string
	ex.OnDeny = func(cmd, reason string) { denied = reason }

	if err := ex.TryExecuteSuggested("ls | grep foo"); err != nil {
		t.Fatalf("denials are notices, not errors: %v", err)
	}
	if len(ft.writes) != 0 {
		t.Fatalf("deny verdict must not write, got %v", ft.writes)
	}
	if denied == "" {
		t.Fatalf("expected OnDeny to fire with a reason")
	}
}

func TestExecutor_EmptyCommandNeverWrites(t *testing.T) {
	ft := &fakeTerminal{}
	ex := NewExecutor(DefaultPolicy(), ft)

	if err := ex.TryExecuteSuggested(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ex.ExecuteConfirmed(""); err == nil {
		t.Fatalf("expected error confirming an empty command")
	}
	if len(ft.writes) != 0 {
		t.Fatalf("empty command must never reach the shell, got %v", ft.writes)
	}
}

func TestExecutor_ConfirmedPathWrites(t *testing.T) {
	ft := &fakeTerminal{}
	ex := NewExecutor(DefaultPolicy(), ft)

	if err := ex.ExecuteConfirmed("rm file.txt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ft.writes) != 1 || ft.writes[0] != "rm file.txt" {
		t.Fatalf("expected exactly [rm file.txt], got %v", ft.writes)
	}
}

func TestExecutor_ConfirmationNeverOverridesDeny(t *testing.T) {
	ft := &fakeTerminal{}
	ex := NewExecutor(DefaultPolicy(), ft)

	if err := ex.ExecuteConfirmed("rm -rf /"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ft.writes) != 0 {
		t.Fatalf("deny must hold even on the confirmed path, got %v", ft.writes)
	}
}
