package agent

import (
	"context"
	"log/slog"
)

// AuditSink records executed actions. Calls are fire-and-forget: a sink
// failure must never abort an otherwise-successful action.
type AuditSink interface {
	Record(ctx context.Context, actorID, actionKind, entityID, detail string) error
}

// SlogAuditSink writes audit records to a structured logger. It is the
// executor's default sink; deployments that persist audit rows swap in their
// own via WithAuditSink.
type SlogAuditSink struct {
	Logger *slog.Logger
}

func (s SlogAuditSink) Record(ctx context.Context, actorID, actionKind, entityID, detail string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		slog.String("actor_id", actorID),
		slog.String("action_kind", actionKind),
		slog.String("entity_id", entityID),
		slog.String("detail", detail),
	)
	return nil
}
