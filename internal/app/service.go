package app

import (
	"context"

	"invoice-agent/internal/agent"
	"invoice-agent/internal/core"
)

// AddInvoiceLineRequest is the direct-CRUD shape for adding a line.
// TaxRate must be exactly "0", "0.08" or "0.10".
type AddInvoiceLineRequest struct {
	InvoiceID      int64  `json:"invoice_id"`
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	TaxRate        string `json:"tax_rate"`
}

// UpdateInvoiceLineRequest replaces a line's fields.
type UpdateInvoiceLineRequest struct {
	LineID         int64  `json:"line_id"`
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	TaxRate        string `json:"tax_rate"`
}

// InvoiceResult bundles an invoice header with its current lines.
type InvoiceResult struct {
	Invoice *core.Invoice      `json:"invoice"`
	Lines   []core.InvoiceLine `json:"lines"`
}

// ApplicationService is the single interface adapters call. Implementations
// contain no display logic of any kind.
type ApplicationService interface {
	// SubmitChatMessage runs one user turn through the agent pipeline:
	// interpret, validate, and surface a pending batch when the interpreter
	// proposed executable actions.
	SubmitChatMessage(ctx context.Context, conversationID, text string) (*agent.TurnResult, error)

	// ResolveChatBatch approves or rejects the conversation's pending batch.
	// decision is agent.DecisionApprove or agent.DecisionReject.
	ResolveChatBatch(ctx context.Context, conversationID, batchID, decision string) ([]agent.ActionOutcome, error)

	// ChatHistory returns the conversation's messages.
	ChatHistory(conversationID string) []agent.Message

	// ListClients returns all clients ordered by name.
	ListClients(ctx context.Context) ([]core.Client, error)

	// CreateClient creates a client record.
	CreateClient(ctx context.Context, c core.Client) (*core.Client, error)

	// ListTransactions returns the most recent transactions.
	ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error)

	// GetTransaction returns a single transaction by id.
	GetTransaction(ctx context.Context, id int64) (*core.Transaction, error)

	// RecordTransaction creates an income or expense record.
	RecordTransaction(ctx context.Context, t core.Transaction) (*core.Transaction, error)

	// ListInvoices returns invoices, optionally filtered by status.
	ListInvoices(ctx context.Context, status *core.InvoiceStatus) ([]core.Invoice, error)

	// GetInvoice returns an invoice with its lines.
	GetInvoice(ctx context.Context, id int64) (*InvoiceResult, error)

	// AddInvoiceLine adds a line and returns the recomputed totals.
	AddInvoiceLine(ctx context.Context, req AddInvoiceLineRequest) (*core.InvoiceTotals, error)

	// UpdateInvoiceLine edits a line and returns the recomputed totals.
	UpdateInvoiceLine(ctx context.Context, req UpdateInvoiceLineRequest) (*core.InvoiceTotals, error)

	// DeleteInvoiceLine removes a line and returns the recomputed totals.
	DeleteInvoiceLine(ctx context.Context, lineID int64) (*core.InvoiceTotals, error)

	// SetInvoiceStatus moves an invoice forward to sent or paid.
	SetInvoiceStatus(ctx context.Context, id int64, status core.InvoiceStatus) (*core.Invoice, error)
}
