package agent

import "context"

// ChatMessage is one turn of conversation history handed to an interpreter.
type ChatMessage struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// InterpretResult is the uniform output of every interpreter backend: the
// assistant's reply text plus zero or more untrusted candidate actions.
// Candidates have NOT been validated; the pipeline runs them through the
// Validator before anything trusts them.
type InterpretResult struct {
	AssistantText string
	Candidates    []RawAction
}

// Interpreter wraps an external language-understanding backend behind one
// contract. Callers never see backend-specific request or response shapes.
// Implementations must surface backend failures (timeout, malformed output,
// rate limiting) as a *InterpretError, never a panic, and must not let one
// malformed candidate discard the rest of the batch or the assistant text.
type Interpreter interface {
	Interpret(ctx context.Context, history []ChatMessage, catalog *Catalog) (*InterpretResult, error)
}
