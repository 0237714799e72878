package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-agent/internal/core"
)

// fakeRepo is an in-memory Repository with per-method failure injection.
type fakeRepo struct {
	clients      []core.Client
	transactions []core.Transaction
	invoices     []core.Invoice

	failCreateTransaction error
	failAddLine           error
	failRecompute         error
	recomputeCalls        int

	createdClients int
}

func (f *fakeRepo) CreateTransaction(_ context.Context, t core.Transaction) (*core.Transaction, error) {
	if f.failCreateTransaction != nil {
		return nil, f.failCreateTransaction
	}
	t.ID = int64(len(f.transactions) + 1)
	f.transactions = append(f.transactions, t)
	return &t, nil
}

func (f *fakeRepo) UpdateTransaction(_ context.Context, id int64, patch core.TransactionPatch) (*core.Transaction, error) {
	for i := range f.transactions {
		if f.transactions[i].ID == id {
			if patch.AmountMinor != nil {
				f.transactions[i].AmountMinor = *patch.AmountMinor
			}
			if patch.Category != nil {
				f.transactions[i].Category = *patch.Category
			}
			return &f.transactions[i], nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRepo) FindClientsByName(_ context.Context, query string, limit int) ([]core.Client, error) {
	var out []core.Client
	for _, c := range f.clients {
		if len(out) >= limit {
			break
		}
		if containsFold(c.Name, query) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateClient(_ context.Context, c core.Client) (*core.Client, error) {
	c.ID = int64(len(f.clients) + 1)
	f.clients = append(f.clients, c)
	f.createdClients++
	return &c, nil
}

func (f *fakeRepo) CreateInvoice(_ context.Context, inv core.Invoice) (*core.Invoice, error) {
	inv.ID = int64(len(f.invoices) + 1)
	inv.Status = core.InvoiceStatusDraft
	f.invoices = append(f.invoices, inv)
	return &inv, nil
}

func (f *fakeRepo) AddInvoiceLine(_ context.Context, line core.InvoiceLine) (*core.InvoiceTotals, error) {
	if f.failAddLine != nil {
		return nil, f.failAddLine
	}
	sub := line.Quantity * line.UnitPriceMinor
	return &core.InvoiceTotals{
		SubtotalMinor: sub,
		TaxMinor:      core.LineTaxMinor(sub, line.TaxRate),
		TotalMinor:    sub + core.LineTaxMinor(sub, line.TaxRate),
	}, nil
}

func (f *fakeRepo) RecomputeInvoiceTotals(_ context.Context, invoiceID int64) (*core.InvoiceTotals, error) {
	f.recomputeCalls++
	if f.failRecompute != nil {
		return nil, f.failRecompute
	}
	return &core.InvoiceTotals{SubtotalMinor: 1000, TaxMinor: 100, TotalMinor: 1100}, nil
}

func (f *fakeRepo) SetInvoiceStatus(_ context.Context, id int64, status core.InvoiceStatus) (*core.Invoice, error) {
	for i := range f.invoices {
		if f.invoices[i].ID == id {
			if !core.CanTransition(f.invoices[i].Status, status) {
				return nil, core.ErrStatusRegression
			}
			f.invoices[i].Status = status
			return &f.invoices[i], nil
		}
	}
	return nil, core.ErrNotFound
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func newTestExecutor(repo Repository, opts ...ExecutorOption) *Executor {
	e := NewExecutor(repo, newTestValidator(), opts...)
	e.settleBackoff = time.Millisecond
	return e
}

func batchOf(actions ...Action) Batch {
	return Batch{ID: "batch-1", Actions: actions, CreatedAt: time.Now()}
}

func action(id string, kind ActionKind, raw map[string]any) Action {
	return Action{ID: id, Kind: kind, Raw: raw}
}

func TestExecutor_FailedActionDoesNotBlockSiblings(t *testing.T) {
	repo := &fakeRepo{failCreateTransaction: fmt.Errorf("connection reset")}
	e := newTestExecutor(repo)

	outcomes := e.Execute(context.Background(), "conv-1", batchOf(
		action("a1", KindRecordTransaction, map[string]any{
			"direction": "income", "date": "2026-08-01", "category": "sales",
			"counterparty_name": "Acme", "amount_minor": float64(5000),
		}),
		action("a2", KindCreateClient, map[string]any{"name": "Beta LLC"}),
	))

	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].OK)
	assert.Contains(t, outcomes[0].Err, "connection reset")
	assert.True(t, outcomes[1].OK, "second action must still run: %s", outcomes[1].Err)
	assert.Equal(t, 1, repo.createdClients)
}

func TestExecutor_RevalidatesBeforeExecuting(t *testing.T) {
	repo := &fakeRepo{}
	e := newTestExecutor(repo)

	outcomes := e.Execute(context.Background(), "conv-1", batchOf(
		action("a1", KindRecordTransaction, map[string]any{"direction": "income"}),
	))

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].OK)
	assert.Empty(t, repo.transactions)
}

func TestExecutor_DraftInvoice(t *testing.T) {
	t.Run("CreatesClientWhenNoneMatches", func(t *testing.T) {
		repo := &fakeRepo{}
		e := newTestExecutor(repo)

		outcomes := e.Execute(context.Background(), "conv-1", batchOf(
			action("a1", KindDraftInvoice, map[string]any{
				"client_name": "Northwind", "issue_date": "2026-08-01", "due_date": "2026-08-31",
			}),
		))

		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].OK, outcomes[0].Err)
		assert.Equal(t, 1, repo.createdClients)
		require.Len(t, repo.invoices, 1)
		assert.Equal(t, core.InvoiceStatusDraft, repo.invoices[0].Status)
	})

	t.Run("ReusesMatchingClient", func(t *testing.T) {
		repo := &fakeRepo{clients: []core.Client{{ID: 1, Name: "Northwind Trading"}}}
		e := newTestExecutor(repo)

		outcomes := e.Execute(context.Background(), "conv-1", batchOf(
			action("a1", KindDraftInvoice, map[string]any{
				"client_name": "northwind", "issue_date": "2026-08-01", "due_date": "2026-08-31",
			}),
		))

		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].OK, outcomes[0].Err)
		assert.Equal(t, 0, repo.createdClients)
		require.Len(t, repo.invoices, 1)
		assert.Equal(t, int64(1), repo.invoices[0].ClientID)
	})
}

func TestExecutor_AddInvoiceLine(t *testing.T) {
	lineArgs := map[string]any{
		"invoice_id": float64(1), "description": "consulting",
		"quantity": float64(2), "unit_price_minor": float64(50000), "tax_rate": 0.1,
	}

	t.Run("TotalsFromAtomicWrite", func(t *testing.T) {
		repo := &fakeRepo{}
		e := newTestExecutor(repo)

		outcomes := e.Execute(context.Background(), "conv-1", batchOf(
			action("a1", KindAddInvoiceLine, lineArgs),
		))

		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].OK, outcomes[0].Err)
		assert.Contains(t, outcomes[0].Summary, "110,000")
		assert.Zero(t, repo.recomputeCalls, "no refetch when the write returned totals")
	})

	t.Run("ConsistencyFailureRetriedToSettlement", func(t *testing.T) {
		repo := &fakeRepo{
			failAddLine: &ConsistencyError{InvoiceID: 1, Err: fmt.Errorf("totals write lost")},
		}
		e := newTestExecutor(repo)

		outcomes := e.Execute(context.Background(), "conv-1", batchOf(
			action("a1", KindAddInvoiceLine, lineArgs),
		))

		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].OK, outcomes[0].Err)
		assert.Equal(t, 1, repo.recomputeCalls)
	})

	t.Run("UnsettledAfterBudgetSurfacesConsistencyError", func(t *testing.T) {
		repo := &fakeRepo{
			failAddLine:   &ConsistencyError{InvoiceID: 1, Err: fmt.Errorf("totals write lost")},
			failRecompute: fmt.Errorf("still down"),
		}
		e := newTestExecutor(repo)

		outcomes := e.Execute(context.Background(), "conv-1", batchOf(
			action("a1", KindAddInvoiceLine, lineArgs),
		))

		require.Len(t, outcomes, 1)
		assert.False(t, outcomes[0].OK)
		assert.Equal(t, 3, repo.recomputeCalls)
		assert.Contains(t, outcomes[0].Err, "invoice 1")
	})

	t.Run("OrdinaryFailureNotRetried", func(t *testing.T) {
		repo := &fakeRepo{failAddLine: fmt.Errorf("invoice 1: %w", core.ErrNotFound)}
		e := newTestExecutor(repo)

		outcomes := e.Execute(context.Background(), "conv-1", batchOf(
			action("a1", KindAddInvoiceLine, lineArgs),
		))

		require.Len(t, outcomes, 1)
		assert.False(t, outcomes[0].OK)
		assert.Zero(t, repo.recomputeCalls)
	})
}

func TestExecutor_SetInvoiceStatusRegressionReported(t *testing.T) {
	repo := &fakeRepo{invoices: []core.Invoice{{ID: 1, Status: core.InvoiceStatusPaid}}}
	e := newTestExecutor(repo)

	outcomes := e.Execute(context.Background(), "conv-1", batchOf(
		action("a1", KindSetInvoiceStatus, map[string]any{"invoice_id": float64(1), "status": "sent"}),
	))

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].OK)
	assert.Equal(t, core.InvoiceStatusPaid, repo.invoices[0].Status)
}

func TestExecutor_KindRouting(t *testing.T) {
	primary := &fakeRepo{}
	secondary := &fakeRepo{}
	e := newTestExecutor(primary, WithKindRepository(KindCreateClient, secondary))

	e.Execute(context.Background(), "conv-1", batchOf(
		action("a1", KindCreateClient, map[string]any{"name": "Routed Inc"}),
	))

	assert.Zero(t, primary.createdClients)
	assert.Equal(t, 1, secondary.createdClients)
}

// captureHandler is a minimal slog.Handler collecting record messages.
type captureHandler struct {
	messages []string
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.messages = append(h.messages, r.Message)
	return nil
}
func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func TestExecutor_DefaultAuditSinkLogsThroughConfiguredLogger(t *testing.T) {
	handler := &captureHandler{}
	repo := &fakeRepo{}
	e := NewExecutor(repo, newTestValidator(), WithLogger(slog.New(handler)))

	e.Execute(context.Background(), "conv-1", batchOf(
		action("a1", KindCreateClient, map[string]any{"name": "Acme"}),
	))

	found := false
	for _, msg := range handler.messages {
		if msg == "audit" {
			found = true
		}
	}
	assert.True(t, found, "successful action should produce an audit log record")
}

type recordingAudit struct {
	records []string
}

func (r *recordingAudit) Record(_ context.Context, actorID, actionKind, entityID, detail string) error {
	r.records = append(r.records, actionKind+"/"+entityID)
	return nil
}

func TestExecutor_AuditsSuccessfulActionsOnly(t *testing.T) {
	repo := &fakeRepo{failCreateTransaction: fmt.Errorf("down")}
	audit := &recordingAudit{}
	e := newTestExecutor(repo, WithAuditSink(audit))

	e.Execute(context.Background(), "conv-1", batchOf(
		action("a1", KindCreateClient, map[string]any{"name": "Acme"}),
		action("a2", KindRecordTransaction, map[string]any{
			"direction": "income", "date": "2026-08-01", "category": "sales",
			"counterparty_name": "Acme", "amount_minor": float64(100),
		}),
	))

	require.Len(t, audit.records, 1)
	assert.Equal(t, "create-client/client:1", audit.records[0])
}

func TestExecutor_FindClientPreviewListsMatches(t *testing.T) {
	repo := &fakeRepo{clients: []core.Client{
		{ID: 1, Name: "Globex"}, {ID: 2, Name: "Global Dynamics"},
	}}
	e := newTestExecutor(repo)

	outcomes := e.Execute(context.Background(), "conv-1", batchOf(
		action("a1", KindFindClient, map[string]any{"query": "glob"}),
	))

	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].OK)
	assert.Contains(t, outcomes[0].Summary, "Globex")
	assert.Contains(t, outcomes[0].Summary, "Global Dynamics")
}
