package agent

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPendingBatch indicates a resolve call on a conversation with nothing
// awaiting approval.
var ErrNoPendingBatch = errors.New("no pending action batch")

// ErrUnknownBatch indicates a resolve call naming a batch that is not the
// conversation's current pending batch.
var ErrUnknownBatch = errors.New("unknown or stale batch")

// ErrInvalidDecision indicates a resolve decision other than approve/reject.
var ErrInvalidDecision = errors.New("decision must be approve or reject")

// FieldViolation describes one constraint failure on one argument field.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports every constraint violation found on a candidate
// action, not just the first, so a caller can explain all problems in one
// message.
type ValidationError struct {
	Kind       string           `json:"kind"`
	Violations []FieldViolation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Reason))
	}
	return fmt.Sprintf("invalid %s action: %s", e.Kind, strings.Join(parts, "; "))
}

// InterpretError wraps a failure of the language-understanding backend:
// unreachable, timed out, rate limited, or a response that could not be
// decoded. The turn fails closed — no batch is created.
type InterpretError struct {
	Provider string
	Err      error
}

func (e *InterpretError) Error() string {
	return fmt.Sprintf("%s interpreter: %v", e.Provider, e.Err)
}

func (e *InterpretError) Unwrap() error { return e.Err }

// ExecutionError wraps a repository failure on one approved action. Sibling
// actions in the same batch are unaffected.
type ExecutionError struct {
	ActionID string
	Kind     string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executing %s action %s: %v", e.Kind, e.ActionID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ConsistencyError reports that a line write succeeded but the totals write
// did not, leaving an invoice's stored totals stale. The executor retries the
// recomputation to settlement before reporting the action; this is the one
// failure class that must not simply be reported and abandoned.
type ConsistencyError struct {
	InvoiceID int64
	Err       error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("invoice %d totals not settled: %v", e.InvoiceID, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }
