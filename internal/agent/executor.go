package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"invoice-agent/internal/core"
)

// Repository is the narrow persistence contract the executor dispatches
// through. Implementations must make AddInvoiceLine atomic per invoice:
// line write, totals recomputation and totals write behave as one unit.
type Repository interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (*core.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, patch core.TransactionPatch) (*core.Transaction, error)
	FindClientsByName(ctx context.Context, query string, limit int) ([]core.Client, error)
	CreateClient(ctx context.Context, c core.Client) (*core.Client, error)
	CreateInvoice(ctx context.Context, inv core.Invoice) (*core.Invoice, error)
	AddInvoiceLine(ctx context.Context, line core.InvoiceLine) (*core.InvoiceTotals, error)
	RecomputeInvoiceTotals(ctx context.Context, invoiceID int64) (*core.InvoiceTotals, error)
	SetInvoiceStatus(ctx context.Context, id int64, status core.InvoiceStatus) (*core.Invoice, error)
}

// findClientLimit bounds the matches a find-client action returns.
const findClientLimit = 5

// ActionOutcome reports one approved action's result. A failed action never
// blocks its siblings; the batch as a whole always resolves.
type ActionOutcome struct {
	ActionID string `json:"action_id"`
	Kind     string `json:"kind"`
	OK       bool   `json:"ok"`
	Summary  string `json:"summary,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Executor runs approved, validated actions against the repository, in the
// order they were proposed. Actions touching the same invoice are thereby
// serialized; there is no automatic retry of a failed action — retry is a
// caller decision after inspecting the outcome.
type Executor struct {
	repo           Repository
	routes         map[ActionKind]Repository
	validator      *Validator
	audit          AuditSink
	logger         *slog.Logger
	settleAttempts int
	settleBackoff  time.Duration
}

type ExecutorOption func(*Executor)

// WithKindRepository routes one action kind's execution to a different
// repository, as in a hybrid deployment.
func WithKindRepository(kind ActionKind, repo Repository) ExecutorOption {
	return func(e *Executor) {
		if e.routes == nil {
			e.routes = make(map[ActionKind]Repository)
		}
		e.routes[kind] = repo
	}
}

func WithAuditSink(s AuditSink) ExecutorOption {
	return func(e *Executor) { e.audit = s }
}

func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

func NewExecutor(repo Repository, validator *Validator, opts ...ExecutorOption) *Executor {
	e := &Executor{
		repo:           repo,
		validator:      validator,
		logger:         slog.Default(),
		settleAttempts: 3,
		settleBackoff:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.audit == nil {
		e.audit = SlogAuditSink{Logger: e.logger}
	}
	return e
}

// Execute runs every action in the batch and reports per-action outcomes.
// It never returns early: action k failing does not stop actions k+1..N.
func (e *Executor) Execute(ctx context.Context, actorID string, batch Batch) []ActionOutcome {
	outcomes := make([]ActionOutcome, 0, len(batch.Actions))
	for _, action := range batch.Actions {
		outcome := e.executeOne(ctx, actorID, action)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (e *Executor) executeOne(ctx context.Context, actorID string, action Action) ActionOutcome {
	outcome := ActionOutcome{ActionID: action.ID, Kind: string(action.Kind)}

	// Re-validate from the retained raw payload: time has passed since the
	// batch was proposed, and the executor trusts nothing it did not check.
	args, err := e.validator.Validate(RawAction{Kind: string(action.Kind), Arguments: action.Raw})
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}

	summary, entityID, err := e.dispatch(ctx, action.Kind, args)
	if err != nil {
		execErr := &ExecutionError{ActionID: action.ID, Kind: string(action.Kind), Err: err}
		e.logger.WarnContext(ctx, "action failed",
			slog.String("action_id", action.ID),
			slog.String("kind", string(action.Kind)),
			slog.String("error", err.Error()),
		)
		outcome.Err = execErr.Error()
		return outcome
	}

	outcome.OK = true
	outcome.Summary = summary

	if err := e.audit.Record(ctx, actorID, string(action.Kind), entityID, summary); err != nil {
		// Fire-and-forget: audit failure never affects the outcome.
		e.logger.WarnContext(ctx, "audit sink failed", slog.String("error", err.Error()))
	}
	return outcome
}

// repoFor returns the repository an action kind executes against.
func (e *Executor) repoFor(kind ActionKind) Repository {
	if r, ok := e.routes[kind]; ok {
		return r
	}
	return e.repo
}

func (e *Executor) dispatch(ctx context.Context, kind ActionKind, args Arguments) (summary, entityID string, err error) {
	repo := e.repoFor(kind)

	switch a := args.(type) {
	case RecordTransactionArgs:
		t, err := repo.CreateTransaction(ctx, core.Transaction{
			Direction:        a.Direction,
			Date:             a.Date,
			Category:         a.Category,
			CounterpartyName: a.CounterpartyName,
			AmountMinor:      a.AmountMinor,
			Memo:             a.Memo,
		})
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("Recorded %s #%d: %s for %q", t.Direction, t.ID, formatMinor(t.AmountMinor), t.CounterpartyName),
			fmt.Sprintf("transaction:%d", t.ID), nil

	case AmendTransactionArgs:
		t, err := repo.UpdateTransaction(ctx, a.TransactionID, a.Patch())
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("Amended transaction #%d", t.ID), fmt.Sprintf("transaction:%d", t.ID), nil

	case DraftInvoiceArgs:
		return e.draftInvoice(ctx, repo, a)

	case AddInvoiceLineArgs:
		return e.addInvoiceLine(ctx, repo, a)

	case FindClientArgs:
		clients, err := repo.FindClientsByName(ctx, a.Query, findClientLimit)
		if err != nil {
			return "", "", err
		}
		if len(clients) == 0 {
			return fmt.Sprintf("No clients match %q", a.Query), "client:none", nil
		}
		names := make([]string, 0, len(clients))
		for _, c := range clients {
			names = append(names, fmt.Sprintf("#%d %s", c.ID, c.Name))
		}
		return fmt.Sprintf("Found %d client(s): %s", len(clients), strings.Join(names, ", ")), "client:search", nil

	case CreateClientArgs:
		c, err := repo.CreateClient(ctx, core.Client{
			Name:              a.Name,
			Email:             a.Email,
			Address:           a.Address,
			TaxRegistrationID: a.TaxRegistrationID,
		})
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("Created client #%d %q", c.ID, c.Name), fmt.Sprintf("client:%d", c.ID), nil

	case SetInvoiceStatusArgs:
		inv, err := repo.SetInvoiceStatus(ctx, a.InvoiceID, a.Status)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("Invoice #%d is now %s", inv.ID, inv.Status), fmt.Sprintf("invoice:%d", inv.ID), nil

	default:
		return "", "", fmt.Errorf("no dispatch for kind %s", kind)
	}
}

// draftInvoice looks the client up by case-insensitive substring match and
// creates the client first when nothing matches, then creates the invoice in
// draft with zero totals.
func (e *Executor) draftInvoice(ctx context.Context, repo Repository, a DraftInvoiceArgs) (string, string, error) {
	matches, err := repo.FindClientsByName(ctx, a.ClientName, 1)
	if err != nil {
		return "", "", fmt.Errorf("client lookup failed: %w", err)
	}

	var client *core.Client
	if len(matches) > 0 {
		client = &matches[0]
	} else {
		client, err = repo.CreateClient(ctx, core.Client{Name: a.ClientName})
		if err != nil {
			return "", "", fmt.Errorf("client creation failed: %w", err)
		}
	}

	inv, err := repo.CreateInvoice(ctx, core.Invoice{
		ClientID:    client.ID,
		IssueDate:   a.IssueDate,
		DueDate:     a.DueDate,
		Notes:       a.Notes,
		BankAccount: a.BankAccount,
	})
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf("Drafted invoice #%d for client #%d %q (due %s)", inv.ID, client.ID, client.Name, inv.DueDate),
		fmt.Sprintf("invoice:%d", inv.ID), nil
}

// addInvoiceLine writes the line and obtains the recomputed totals from the
// same atomic write. A partial completion (line written, totals not) is
// retried to settlement before the action is reported — this failure class
// is never reported and abandoned.
func (e *Executor) addInvoiceLine(ctx context.Context, repo Repository, a AddInvoiceLineArgs) (string, string, error) {
	totals, err := repo.AddInvoiceLine(ctx, core.InvoiceLine{
		InvoiceID:      a.InvoiceID,
		Description:    a.Description,
		Quantity:       a.Quantity,
		UnitPriceMinor: a.UnitPriceMinor,
		TaxRate:        a.TaxRate,
	})
	if err != nil {
		var consistency *ConsistencyError
		if !errors.As(err, &consistency) {
			return "", "", err
		}
		totals, err = e.settleTotals(ctx, repo, consistency.InvoiceID)
		if err != nil {
			return "", "", err
		}
	}

	return fmt.Sprintf("Added line to invoice #%d — subtotal %s, tax %s, total %s",
			a.InvoiceID, formatMinor(totals.SubtotalMinor), formatMinor(totals.TaxMinor), formatMinor(totals.TotalMinor)),
		fmt.Sprintf("invoice:%d", a.InvoiceID), nil
}

// settleTotals retries the totals recomputation until it succeeds or the
// attempt budget runs out, in which case the still-unsettled state surfaces
// as a ConsistencyError in the outcome.
func (e *Executor) settleTotals(ctx context.Context, repo Repository, invoiceID int64) (*core.InvoiceTotals, error) {
	var lastErr error
	for attempt := 0; attempt < e.settleAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &ConsistencyError{InvoiceID: invoiceID, Err: ctx.Err()}
			case <-time.After(e.settleBackoff):
			}
		}
		totals, err := repo.RecomputeInvoiceTotals(ctx, invoiceID)
		if err == nil {
			return totals, nil
		}
		lastErr = err
		e.logger.WarnContext(ctx, "totals settlement retry",
			slog.Int64("invoice_id", invoiceID),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	return nil, &ConsistencyError{InvoiceID: invoiceID, Err: lastErr}
}
