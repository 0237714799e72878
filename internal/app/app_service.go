package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"invoice-agent/internal/agent"
	"invoice-agent/internal/core"
)

type appService struct {
	store    *core.Store
	pipeline *agent.Pipeline
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(store *core.Store, pipeline *agent.Pipeline) ApplicationService {
	return &appService{store: store, pipeline: pipeline}
}

// ── Chat ─────────────────────────────────────────────────────────────────────

func (s *appService) SubmitChatMessage(ctx context.Context, conversationID, text string) (*agent.TurnResult, error) {
	return s.pipeline.SubmitUserMessage(ctx, conversationID, text)
}

func (s *appService) ResolveChatBatch(ctx context.Context, conversationID, batchID, decision string) ([]agent.ActionOutcome, error) {
	return s.pipeline.ResolveBatch(ctx, conversationID, batchID, decision)
}

func (s *appService) ChatHistory(conversationID string) []agent.Message {
	return s.pipeline.History(conversationID)
}

// ── Clients ──────────────────────────────────────────────────────────────────

func (s *appService) ListClients(ctx context.Context) ([]core.Client, error) {
	return s.store.ListClients(ctx)
}

func (s *appService) CreateClient(ctx context.Context, c core.Client) (*core.Client, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("client name is required")
	}
	return s.store.CreateClient(ctx, c)
}

// ── Transactions ─────────────────────────────────────────────────────────────

func (s *appService) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, limit)
}

func (s *appService) GetTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *appService) RecordTransaction(ctx context.Context, t core.Transaction) (*core.Transaction, error) {
	if t.Direction != core.DirectionIncome && t.Direction != core.DirectionExpense {
		return nil, fmt.Errorf("direction must be income or expense")
	}
	if t.AmountMinor <= 0 {
		return nil, fmt.Errorf("amount must be a positive number of minor units")
	}
	return s.store.CreateTransaction(ctx, t)
}

// ── Invoices ─────────────────────────────────────────────────────────────────

func (s *appService) ListInvoices(ctx context.Context, status *core.InvoiceStatus) ([]core.Invoice, error) {
	return s.store.ListInvoices(ctx, status)
}

func (s *appService) GetInvoice(ctx context.Context, id int64) (*InvoiceResult, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.store.GetInvoiceLines(ctx, id)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv, Lines: lines}, nil
}

func (s *appService) AddInvoiceLine(ctx context.Context, req AddInvoiceLineRequest) (*core.InvoiceTotals, error) {
	rate, err := parseTaxRate(req.TaxRate)
	if err != nil {
		return nil, err
	}
	if req.Quantity <= 0 || req.UnitPriceMinor <= 0 {
		return nil, fmt.Errorf("quantity and unit price must be positive")
	}
	return s.store.AddInvoiceLine(ctx, core.InvoiceLine{
		InvoiceID:      req.InvoiceID,
		Description:    req.Description,
		Quantity:       req.Quantity,
		UnitPriceMinor: req.UnitPriceMinor,
		TaxRate:        rate,
	})
}

func (s *appService) UpdateInvoiceLine(ctx context.Context, req UpdateInvoiceLineRequest) (*core.InvoiceTotals, error) {
	rate, err := parseTaxRate(req.TaxRate)
	if err != nil {
		return nil, err
	}
	if req.Quantity <= 0 || req.UnitPriceMinor <= 0 {
		return nil, fmt.Errorf("quantity and unit price must be positive")
	}
	return s.store.UpdateInvoiceLine(ctx, core.InvoiceLine{
		ID:             req.LineID,
		Description:    req.Description,
		Quantity:       req.Quantity,
		UnitPriceMinor: req.UnitPriceMinor,
		TaxRate:        rate,
	})
}

func (s *appService) DeleteInvoiceLine(ctx context.Context, lineID int64) (*core.InvoiceTotals, error) {
	return s.store.DeleteInvoiceLine(ctx, lineID)
}

func (s *appService) SetInvoiceStatus(ctx context.Context, id int64, status core.InvoiceStatus) (*core.Invoice, error) {
	return s.store.SetInvoiceStatus(ctx, id, status)
}

// parseTaxRate enforces the whitelist on the direct CRUD path too.
func parseTaxRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid tax rate %q: %w", raw, err)
	}
	if !core.AllowedTaxRate(rate) {
		return decimal.Zero, fmt.Errorf("tax rate must be exactly 0, 0.08 or 0.10")
	}
	return rate, nil
}
