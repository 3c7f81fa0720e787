package security

import "testing"

func TestEvaluate_EmptyCommand(t *testing.T) {
	if got := Evaluate("").Verdict; got != VerdictDeny {
		t.Fatalf("expected empty command denied, got %v", got)
	}
	if got := Evaluate("   ").Verdict; got != VerdictDeny {
		t.Fatalf("expected blank command denied, got %v", got)
	}
}

func TestEvaluate_DangerousOperators(t *testing.T) {
	cases := []string{
		"ls | grep foo",
		"echo hi > out.txt",
		"ls >> log",
		"cat < input",
		"sleep 10 &",
		"ls; pwd",
		"ls && pwd",
		"ls || pwd",
		"echo $(pwd)",
		"echo `date`",
		"git status | grep modified",
		"pwd > out.txt",
	}
	for _, cmd := range cases {
		eval := Evaluate(cmd)
		if eval.Verdict != VerdictDeny {
			t.Fatalf("expected %q denied, got %v", cmd, eval.Verdict)
		}
		if eval.Reason != "contains dangerous shell operators" {
			t.Fatalf("unexpected reason for %q: %q", cmd, eval.Reason)
		}
	}
}

func TestEvaluate_DestructivePatterns(t *testing.T) {
	cases := []string{
		"rm -rf /",
		"rm  -rf  /",
		"rm -rf ~",
		"mkfs.ext4 /dev/sda1",
		"dd if=/dev/zero of=/dev/sda",
	}
	for _, cmd := range cases {
		if got := Evaluate(cmd).Verdict; got != VerdictDeny {
			t.Fatalf("expected %q denied, got %v", cmd, got)
		}
	}
}

func TestEvaluate_AllowList(t *testing.T) {
	cases := []string{
		"ls",
		"ls -la",
		"ls -lah /home",
		"pwd",
		"echo hello",
		"echo 'hello world'",
		"cat file.txt",
		"head -n 5 file",
		"tail -f", // tail without operators
		"grep pattern file",
		"which python3",
		"date",
		"uname -a",
		"git status",
		"git log --oneline",
		"git diff HEAD~1",
		"git",
		"go build ./...",
		"cargo test",
		"find . -name foo",
	}
	for _, cmd := range cases {
		if got := Evaluate(cmd).Verdict; got != VerdictAllow {
			t.Fatalf("expected %q allowed, got %v", cmd, got)
		}
	}
}

func TestEvaluate_ConfirmList(t *testing.T) {
	cases := []string{
		"rm file.txt",
		"cp -r a b",
		"mv a b",
		"chmod +x script.sh",
		"chown user file",
		"kill 1234",
		"pkill httpd",
		"sudo apt install foo",
		"git commit -m test",
		"git push origin main",
		"git reset --hard",
	}
	for _, cmd := range cases {
		if got := Evaluate(cmd).Verdict; got != VerdictRequireConfirmation {
			t.Fatalf("expected %q to require confirmation, got %v", cmd, got)
		}
	}
}

func TestEvaluate_FindDeleteNeedsConfirmation(t *testing.T) {
	if got := Evaluate("find . -name '*.tmp' -delete").Verdict; got != VerdictRequireConfirmation {
		t.Fatalf("expected find -delete to require confirmation, got %v", got)
	}
}

func TestEvaluate_UnknownVerbDefaultsToConfirmation(t *testing.T) {
	for _, cmd := range []string{"frobnicate --now", "terraform apply", "git bisect start"} {
		if got := Evaluate(cmd).Verdict; got != VerdictRequireConfirmation {
			t.Fatalf("expected %q to default to confirmation, got %v", cmd, got)
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	for _, cmd := range []string{"", "ls -la", "rm -rf /", "rm file", "ls | wc"} {
		first := Evaluate(cmd)
		for i := 0; i < 3; i++ {
			if got := Evaluate(cmd); got != first {
				t.Fatalf("evaluate(%q) not deterministic: %v then %v", cmd, first, got)
			}
		}
	}
}

func TestGate_MapsVerdicts(t *testing.T) {
	if d := Gate("ls -la", Evaluation{Verdict: VerdictAllow}); d.Kind != DecisionExecute {
		t.Fatalf("expected execute, got %v", d.Kind)
	}
	d := Gate("rm file.txt", Evaluation{Verdict: VerdictRequireConfirmation, Reason: "mutating"})
	if d.Kind != DecisionRequireConfirmation {
		t.Fatalf("expected confirmation, got %v", d.Kind)
	}
	if d.Reason == "" {
		t.Fatalf("expected a reason on confirmation decisions")
	}
	d = Gate("ls | grep foo", Evaluation{Verdict: VerdictDeny, Reason: "contains dangerous shell operators"})
	if d.Kind != DecisionDeny {
		t.Fatalf("expected deny, got %v", d.Kind)
	}
}

func TestPolicyExtension(t *testing.T) {
	p := DefaultPolicy()
	p.Allow = append(p.Allow, "kubectl get")
	if got := p.Evaluate("kubectl get pods").Verdict; got != VerdictAllow {
		t.Fatalf("expected extended allow entry to pass, got %v", got)
	}
	if got := p.Evaluate("kubectl delete pods").Verdict; got != VerdictRequireConfirmation {
		t.Fatalf("expected non-matching kubectl to confirm, got %v", got)
	}
}
