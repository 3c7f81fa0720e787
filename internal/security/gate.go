package security

import (
	"errors"
	"fmt"
	"strings"
)

// DecisionKind enumerates the outcomes of gating a command.
type DecisionKind int

const (
	DecisionExecute DecisionKind = iota
	DecisionRequireConfirmation
	DecisionDeny
)

// Decision is the gating outcome for one candidate command.
type Decision struct {
	Kind   DecisionKind
	Reason string
}

// Gate maps an evaluation onto an execution decision. Pure.
func Gate(cmd string, eval Evaluation) Decision {
	switch eval.Verdict {
	case VerdictAllow:
		return Decision{Kind: DecisionExecute}
	case VerdictRequireConfirmation:
		return Decision{
			Kind:   DecisionRequireConfirmation,
			Reason: fmt.Sprintf("command %q: %s", cmd, eval.Reason),
		}
	default:
		return Decision{
			Kind:   DecisionDeny,
			Reason: fmt.Sprintf("command %q: %s", cmd, eval.Reason),
		}
	}
}

// CommandWriter is the slice of the terminal host the executor needs.
type CommandWriter interface {
	ExecuteVisible(cmd string) error
}

// Executor is the sole path by which an AI-suggested command reaches the
// shell. No other code may hand AI-originated text to the PTY writer.
type Executor struct {
	policy Policy
	term   CommandWriter
	// OnDeny is invoked with a user-visible reason when the gate refuses a
	// command. Denials are notices, not errors.
	OnDeny func(cmd, reason string)
}

// NewExecutor builds the gate in front of the given terminal writer.
func NewExecutor(policy Policy, term CommandWriter) *Executor {
	return &Executor{policy: policy, term: term}
}

// Policy returns the active classification lists.
func (e *Executor) Policy() Policy {
	if e == nil {
		return DefaultPolicy()
	}
	return e.policy
}

// TryExecuteSuggested evaluates, gates, and on an Execute decision writes the
// command to the shell. RequireConfirmation does nothing and returns nil: the
// user's confirmation re-enters through ExecuteConfirmed. Deny surfaces a
// notice via OnDeny and returns nil.
func (e *Executor) TryExecuteSuggested(cmd string) error {
	if e == nil || e.term == nil {
		return errors.New("security executor is not configured")
	}
	eval := e.policy.Evaluate(cmd)
	decision := Gate(cmd, eval)
	switch decision.Kind {
	case DecisionExecute:
		if err := e.term.ExecuteVisible(cmd); err != nil {
			return fmt.Errorf("execute suggested command: %w", err)
		}
		return nil
	case DecisionRequireConfirmation:
		return nil
	default:
		if e.OnDeny != nil {
			e.OnDeny(cmd, decision.Reason)
		}
		return nil
	}
}

// ExecuteConfirmed is the direct path for a command the user has explicitly
// confirmed. Deny verdicts still hold: confirmation never overrides a Deny.
func (e *Executor) ExecuteConfirmed(cmd string) error {
	if e == nil || e.term == nil {
		return errors.New("security executor is not configured")
	}
	if strings.TrimSpace(cmd) == "" {
		return errors.New("empty command")
	}
	eval := e.policy.Evaluate(cmd)
	if eval.Verdict == VerdictDeny {
		decision := Gate(cmd, eval)
		if e.OnDeny != nil {
			e.OnDeny(cmd, decision.Reason)
		}
		return nil
	}
	if err := e.term.ExecuteVisible(cmd); err != nil {
		return fmt.Errorf("execute confirmed command: %w", err)
	}
	return nil
}
