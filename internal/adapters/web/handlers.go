package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"invoice-agent/internal/app"
	"invoice-agent/internal/core"
)

// Handler exposes the ApplicationService as a JSON API.
type Handler struct {
	svc    app.ApplicationService
	logger *slog.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	// Chat — the agent pipeline boundary
	r.Post("/api/chat/message", h.chatMessage)
	r.Post("/api/chat/resolve", h.chatResolve)
	r.Get("/api/chat/{conversationID}/history", h.chatHistory)

	// Direct CRUD
	r.Get("/api/clients", h.listClients)
	r.Post("/api/clients", h.createClient)
	r.Get("/api/transactions", h.listTransactions)
	r.Get("/api/transactions/{id}", h.getTransaction)
	r.Post("/api/transactions", h.createTransaction)
	r.Get("/api/invoices", h.listInvoices)
	r.Get("/api/invoices/{id}", h.getInvoice)
	r.Post("/api/invoices/{id}/lines", h.addInvoiceLine)
	r.Put("/api/invoices/lines/{lineID}", h.updateInvoiceLine)
	r.Delete("/api/invoices/lines/{lineID}", h.deleteInvoiceLine)
	r.Post("/api/invoices/{id}/status", h.setInvoiceStatus)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// ── Clients ──────────────────────────────────────────────────────────────────

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.svc.ListClients(r.Context())
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"clients": clients})
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var c core.Client
	if !decodeJSON(w, r, &c) {
		return
	}
	created, err := h.svc.CreateClient(r.Context(), c)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, created)
}

// ── Transactions ─────────────────────────────────────────────────────────────

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	transactions, err := h.svc.ListTransactions(r.Context(), limit)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"transactions": transactions})
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	transaction, err := h.svc.GetTransaction(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, transaction)
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var t core.Transaction
	if !decodeJSON(w, r, &t) {
		return
	}
	created, err := h.svc.RecordTransaction(r.Context(), t)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, created)
}

// ── Invoices ─────────────────────────────────────────────────────────────────

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	var status *core.InvoiceStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := core.InvoiceStatus(s)
		if !core.ValidStatus(st) {
			writeError(w, "unknown invoice status", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		status = &st
	}
	invoices, err := h.svc.ListInvoices(r.Context(), status)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"invoices": invoices})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) addInvoiceLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.AddInvoiceLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.InvoiceID = id
	totals, err := h.svc.AddInvoiceLine(r.Context(), req)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, totals)
}

func (h *Handler) updateInvoiceLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := h.pathID(w, r, "lineID")
	if !ok {
		return
	}
	var req app.UpdateInvoiceLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.LineID = lineID
	totals, err := h.svc.UpdateInvoiceLine(r.Context(), req)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, totals)
}

func (h *Handler) deleteInvoiceLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := h.pathID(w, r, "lineID")
	if !ok {
		return
	}
	totals, err := h.svc.DeleteInvoiceLine(r.Context(), lineID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, totals)
}

func (h *Handler) setInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.SetInvoiceStatus(r.Context(), id, core.InvoiceStatus(req.Status))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, inv)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, "invalid "+param, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// serviceError maps service failures onto HTTP statuses.
func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrStatusRegression):
		writeError(w, err.Error(), "CONFLICT", http.StatusConflict)
	default:
		h.logger.Warn("request failed", slog.String("error", err.Error()))
		writeError(w, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
