package agent

import "context"

// Hybrid is a composite interpreter wiring: one backend does all the
// interpretation, while chosen action kinds execute against a different
// repository (for example a second backend's data store). The Interpreter
// contract is identical to any other backend; only the wiring differs.
//
// Pass Routes() to NewExecutor via WithKindRepository when building the
// executor for a hybrid deployment.
type Hybrid struct {
	interpret Interpreter
	routes    map[ActionKind]Repository
}

func NewHybrid(interpret Interpreter, routes map[ActionKind]Repository) *Hybrid {
	return &Hybrid{interpret: interpret, routes: routes}
}

func (h *Hybrid) Interpret(ctx context.Context, history []ChatMessage, catalog *Catalog) (*InterpretResult, error) {
	return h.interpret.Interpret(ctx, history, catalog)
}

// Routes returns the per-kind repository overrides for the executor.
func (h *Hybrid) Routes() map[ActionKind]Repository {
	return h.routes
}
