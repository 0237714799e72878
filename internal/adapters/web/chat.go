package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"invoice-agent/internal/agent"
)

type chatMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type chatResolveRequest struct {
	ConversationID string `json:"conversation_id"`
	BatchID        string `json:"batch_id"`
	Decision       string `json:"decision"`
}

type chatResolveResponse struct {
	Outcomes []agent.ActionOutcome `json:"outcomes"`
}

// chatMessage runs one user turn through the pipeline. The response carries
// the assistant text and, when actions were proposed, the pending batch the
// client must resolve before anything executes.
func (h *Handler) chatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeError(w, "conversation_id is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, "text is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	turn, err := h.svc.SubmitChatMessage(r.Context(), req.ConversationID, req.Text)
	if err != nil {
		var interpret *agent.InterpretError
		if errors.As(err, &interpret) {
			writeError(w, err.Error(), "INTERPRETER_UNAVAILABLE", http.StatusBadGateway)
			return
		}
		h.serviceError(w, err)
		return
	}
	writeJSON(w, turn)
}

// chatResolve approves or rejects a pending batch. Rejection returns an empty
// outcome list; approval returns one outcome per action, failures included.
func (h *Handler) chatResolve(w http.ResponseWriter, r *http.Request) {
	var req chatResolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	outcomes, err := h.svc.ResolveChatBatch(r.Context(), req.ConversationID, req.BatchID, req.Decision)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrInvalidDecision):
			writeError(w, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		case errors.Is(err, agent.ErrNoPendingBatch):
			writeError(w, err.Error(), "NO_PENDING_BATCH", http.StatusConflict)
		case errors.Is(err, agent.ErrUnknownBatch):
			writeError(w, err.Error(), "UNKNOWN_BATCH", http.StatusConflict)
		default:
			h.serviceError(w, err)
		}
		return
	}
	if outcomes == nil {
		outcomes = []agent.ActionOutcome{}
	}
	writeJSON(w, chatResolveResponse{Outcomes: outcomes})
}

func (h *Handler) chatHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	messages := h.svc.ChatHistory(conversationID)
	if messages == nil {
		messages = []agent.Message{}
	}
	writeJSON(w, map[string]any{"messages": messages})
}
