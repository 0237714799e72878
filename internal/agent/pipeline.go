package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Decision is the user's verdict on a pending batch.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ProposedActionView is the approval-time rendering of one proposed action.
type ProposedActionView struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Preview string `json:"preview"`
}

// BatchView is the pending batch as surfaced to the user.
type BatchView struct {
	ID      string               `json:"id"`
	Actions []ProposedActionView `json:"actions"`
}

// TurnResult is the outcome of one submitted user message.
type TurnResult struct {
	AssistantText string             `json:"assistant_text"`
	Pending       *BatchView         `json:"pending_batch,omitempty"`
	Rejected      []*ValidationError `json:"rejected_candidates,omitempty"`
}

// Pipeline is the exposed entry point of the agent: free text in, validated
// and human-approved domain mutations out. The interpreter is injected —
// there is no global provider selection.
type Pipeline struct {
	interpreter Interpreter
	catalog     *Catalog
	validator   *Validator
	executor    *Executor
	convs       *conversationStore
	timeout     time.Duration
	logger      *slog.Logger
}

type PipelineOption func(*Pipeline)

// WithInterpretTimeout bounds the interpreter call for each turn. On timeout
// the turn fails closed with no pending batch created.
func WithInterpretTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.timeout = d }
}

func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

func NewPipeline(interpreter Interpreter, executor *Executor, catalog *Catalog, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		interpreter: interpreter,
		catalog:     catalog,
		validator:   NewValidator(catalog),
		executor:    executor,
		convs:       newConversationStore(),
		timeout:     30 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StartMaintenance launches the stale-batch purge goroutine.
func (p *Pipeline) StartMaintenance(ctx context.Context) {
	p.convs.startPurge(ctx)
}

// SubmitUserMessage appends a user turn, interprets it, validates the
// candidates, and either surfaces a pending batch or just the reply text.
//
// A message arriving while a batch is still awaiting approval implicitly
// cancels the stale batch before the new turn proceeds.
func (p *Pipeline) SubmitUserMessage(ctx context.Context, conversationID, text string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message text must not be empty")
	}

	conv := p.convs.getOrCreate(conversationID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	if conv.pending != nil {
		p.logger.InfoContext(ctx, "implicitly cancelling stale batch",
			slog.String("conversation_id", conversationID),
			slog.String("batch_id", conv.pending.ID),
		)
		conv.cancelPending("Discarded the previously proposed actions because a new message arrived.")
	}

	conv.append(Message{Role: RoleUser, Text: text})

	interpretCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	transcript := make([]ChatMessage, 0, len(conv.messages))
	for _, m := range conv.messages {
		transcript = append(transcript, ChatMessage{Role: m.Role, Text: m.Text})
	}

	result, err := p.interpreter.Interpret(interpretCtx, transcript, p.catalog)
	if err != nil {
		// Fail closed: no batch, conversation state intact.
		var interpret *InterpretError
		if errors.As(err, &interpret) {
			return nil, err
		}
		return nil, &InterpretError{Provider: "unknown", Err: err}
	}

	turn := &TurnResult{AssistantText: result.AssistantText}
	var accepted []Action
	for _, candidate := range result.Candidates {
		args, verr := p.validator.Validate(candidate)
		if verr != nil {
			// Surfaced verbatim so the user can correct intent; the rest of
			// the batch is unaffected.
			var validation *ValidationError
			if errors.As(verr, &validation) {
				turn.Rejected = append(turn.Rejected, validation)
			}
			continue
		}
		kind := ActionKind(candidate.Kind)
		accepted = append(accepted, Action{
			ID:      uuid.NewString(),
			Kind:    kind,
			Args:    args,
			Raw:     candidate.Arguments,
			Preview: p.validator.Preview(kind, args),
		})
	}

	assistant := Message{Role: RoleAssistant, Text: result.AssistantText}
	if len(accepted) > 0 {
		batch := &Batch{ID: uuid.NewString(), Actions: accepted, CreatedAt: time.Now()}
		conv.pending = batch
		conv.state = gateAwaitingApproval
		assistant.Proposed = accepted

		view := &BatchView{ID: batch.ID}
		for _, a := range accepted {
			view.Actions = append(view.Actions, ProposedActionView{ID: a.ID, Kind: string(a.Kind), Preview: a.Preview})
		}
		turn.Pending = view
	}
	conv.append(assistant)

	return turn, nil
}

// ResolveBatch approves or rejects the conversation's pending batch.
// Approval executes the entire batch; per-action failures are reported in
// the outcomes and never abort resolution. Rejection discards the batch and
// leaves domain state untouched.
func (p *Pipeline) ResolveBatch(ctx context.Context, conversationID, batchID, decision string) ([]ActionOutcome, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, ErrInvalidDecision
	}

	conv, ok := p.convs.get(conversationID)
	if !ok {
		return nil, ErrNoPendingBatch
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()

	if conv.pending == nil {
		return nil, ErrNoPendingBatch
	}
	if conv.pending.ID != batchID {
		return nil, ErrUnknownBatch
	}

	if decision == DecisionReject {
		n := len(conv.pending.Actions)
		conv.cancelPending(fmt.Sprintf("Cancelled %d proposed action(s).", n))
		return nil, nil
	}

	// Approve: the whole batch, atomically — no partial approval.
	batch := *conv.pending
	conv.pending = nil

	outcomes := p.executor.Execute(ctx, conversationID, batch)

	conv.state = gateIdle
	conv.append(Message{Role: RoleAssistant, Text: summarizeOutcomes(outcomes)})

	return outcomes, nil
}

// History returns a copy of the conversation's messages.
func (p *Pipeline) History(conversationID string) []Message {
	conv, ok := p.convs.get(conversationID)
	if !ok {
		return nil
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	out := make([]Message, len(conv.messages))
	copy(out, conv.messages)
	return out
}

func summarizeOutcomes(outcomes []ActionOutcome) string {
	var b strings.Builder
	succeeded := 0
	for _, o := range outcomes {
		if o.OK {
			succeeded++
			fmt.Fprintf(&b, "✓ %s\n", o.Summary)
		} else {
			fmt.Fprintf(&b, "✗ %s failed: %s\n", o.Kind, o.Err)
		}
	}
	header := fmt.Sprintf("Executed %d of %d action(s).\n", succeeded, len(outcomes))
	return header + b.String()
}
