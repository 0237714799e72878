package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-agent/internal/agent"
	"invoice-agent/internal/app"
	"invoice-agent/internal/core"
)

// stubService scripts ApplicationService responses per test.
type stubService struct {
	turn        *agent.TurnResult
	submitErr   error
	outcomes    []agent.ActionOutcome
	resolveErr  error
	invoice     *app.InvoiceResult
	invoiceErr  error
	transaction *core.Transaction
	txErr       error
	statusErr   error
	totalsErr   error
	lastResolve [3]string
}

func (s *stubService) SubmitChatMessage(_ context.Context, conversationID, text string) (*agent.TurnResult, error) {
	return s.turn, s.submitErr
}

func (s *stubService) ResolveChatBatch(_ context.Context, conversationID, batchID, decision string) ([]agent.ActionOutcome, error) {
	s.lastResolve = [3]string{conversationID, batchID, decision}
	return s.outcomes, s.resolveErr
}

func (s *stubService) ChatHistory(string) []agent.Message { return nil }

func (s *stubService) ListClients(context.Context) ([]core.Client, error) { return nil, nil }

func (s *stubService) CreateClient(_ context.Context, c core.Client) (*core.Client, error) {
	c.ID = 1
	return &c, nil
}

func (s *stubService) ListTransactions(context.Context, int) ([]core.Transaction, error) {
	return nil, nil
}

func (s *stubService) GetTransaction(context.Context, int64) (*core.Transaction, error) {
	return s.transaction, s.txErr
}

func (s *stubService) RecordTransaction(_ context.Context, t core.Transaction) (*core.Transaction, error) {
	t.ID = 1
	return &t, nil
}

func (s *stubService) ListInvoices(context.Context, *core.InvoiceStatus) ([]core.Invoice, error) {
	return nil, nil
}

func (s *stubService) GetInvoice(context.Context, int64) (*app.InvoiceResult, error) {
	return s.invoice, s.invoiceErr
}

func (s *stubService) AddInvoiceLine(context.Context, app.AddInvoiceLineRequest) (*core.InvoiceTotals, error) {
	return &core.InvoiceTotals{SubtotalMinor: 100, TaxMinor: 10, TotalMinor: 110}, s.totalsErr
}

func (s *stubService) UpdateInvoiceLine(context.Context, app.UpdateInvoiceLineRequest) (*core.InvoiceTotals, error) {
	return &core.InvoiceTotals{}, s.totalsErr
}

func (s *stubService) DeleteInvoiceLine(context.Context, int64) (*core.InvoiceTotals, error) {
	return &core.InvoiceTotals{}, s.totalsErr
}

func (s *stubService) SetInvoiceStatus(_ context.Context, id int64, status core.InvoiceStatus) (*core.Invoice, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &core.Invoice{ID: id, Status: status}, nil
}

func doRequest(t *testing.T, svc app.ApplicationService, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	NewHandler(svc, nil).ServeHTTP(rec, req)
	return rec
}

func TestChatMessage(t *testing.T) {
	t.Run("ReturnsTurn", func(t *testing.T) {
		svc := &stubService{turn: &agent.TurnResult{AssistantText: "hi"}}
		rec := doRequest(t, svc, http.MethodPost, "/api/chat/message",
			map[string]string{"conversation_id": "c1", "text": "hello"})

		require.Equal(t, http.StatusOK, rec.Code)
		var turn agent.TurnResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
		assert.Equal(t, "hi", turn.AssistantText)
	})

	t.Run("MissingFields", func(t *testing.T) {
		rec := doRequest(t, &stubService{}, http.MethodPost, "/api/chat/message",
			map[string]string{"conversation_id": "c1"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("InterpreterDownIsBadGateway", func(t *testing.T) {
		svc := &stubService{submitErr: &agent.InterpretError{Provider: "openai", Err: fmt.Errorf("timeout")}}
		rec := doRequest(t, svc, http.MethodPost, "/api/chat/message",
			map[string]string{"conversation_id": "c1", "text": "hello"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestChatResolve(t *testing.T) {
	t.Run("PassesDecisionThrough", func(t *testing.T) {
		svc := &stubService{outcomes: []agent.ActionOutcome{{ActionID: "a1", OK: true}}}
		rec := doRequest(t, svc, http.MethodPost, "/api/chat/resolve",
			map[string]string{"conversation_id": "c1", "batch_id": "b1", "decision": "approve"})

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, [3]string{"c1", "b1", "approve"}, svc.lastResolve)
	})

	t.Run("RejectReturnsEmptyOutcomes", func(t *testing.T) {
		rec := doRequest(t, &stubService{}, http.MethodPost, "/api/chat/resolve",
			map[string]string{"conversation_id": "c1", "batch_id": "b1", "decision": "reject"})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Outcomes []agent.ActionOutcome `json:"outcomes"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotNil(t, resp.Outcomes)
		assert.Empty(t, resp.Outcomes)
	})

	t.Run("ErrorMapping", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
		}{
			{agent.ErrInvalidDecision, http.StatusBadRequest},
			{agent.ErrNoPendingBatch, http.StatusConflict},
			{agent.ErrUnknownBatch, http.StatusConflict},
		}
		for _, tc := range cases {
			svc := &stubService{resolveErr: tc.err}
			rec := doRequest(t, svc, http.MethodPost, "/api/chat/resolve",
				map[string]string{"conversation_id": "c1", "batch_id": "b1", "decision": "approve"})
			assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		}
	})
}

func TestInvoiceEndpoints(t *testing.T) {
	t.Run("GetInvoiceNotFound", func(t *testing.T) {
		svc := &stubService{invoiceErr: fmt.Errorf("invoice 9: %w", core.ErrNotFound)}
		rec := doRequest(t, svc, http.MethodGet, "/api/invoices/9", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("BadInvoiceID", func(t *testing.T) {
		rec := doRequest(t, &stubService{}, http.MethodGet, "/api/invoices/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("StatusRegressionIsConflict", func(t *testing.T) {
		svc := &stubService{statusErr: fmt.Errorf("invoice 3 is paid: %w", core.ErrStatusRegression)}
		rec := doRequest(t, svc, http.MethodPost, "/api/invoices/3/status",
			map[string]string{"status": "sent"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("UnknownStatusFilter", func(t *testing.T) {
		rec := doRequest(t, &stubService{}, http.MethodGet, "/api/invoices?status=void", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("AddLineReturnsTotals", func(t *testing.T) {
		rec := doRequest(t, &stubService{}, http.MethodPost, "/api/invoices/1/lines",
			map[string]any{"description": "x", "quantity": 1, "unit_price_minor": 100, "tax_rate": "0.10"})

		require.Equal(t, http.StatusOK, rec.Code)
		var totals core.InvoiceTotals
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &totals))
		assert.Equal(t, int64(110), totals.TotalMinor)
	})
}

func TestGetTransaction(t *testing.T) {
	t.Run("ReturnsRecord", func(t *testing.T) {
		svc := &stubService{transaction: &core.Transaction{ID: 5, Direction: core.DirectionIncome, AmountMinor: 4200}}
		rec := doRequest(t, svc, http.MethodGet, "/api/transactions/5", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var got core.Transaction
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, int64(5), got.ID)
		assert.Equal(t, int64(4200), got.AmountMinor)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := &stubService{txErr: fmt.Errorf("transaction 5: %w", core.ErrNotFound)}
		rec := doRequest(t, svc, http.MethodGet, "/api/transactions/5", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("BadID", func(t *testing.T) {
		rec := doRequest(t, &stubService{}, http.MethodGet, "/api/transactions/x", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	NewHandler(&stubService{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
