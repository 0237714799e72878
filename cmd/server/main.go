package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	webAdapter "invoice-agent/internal/adapters/web"
	"invoice-agent/internal/agent"
	"invoice-agent/internal/app"
	"invoice-agent/internal/core"
	"invoice-agent/internal/db"

	"github.com/joho/godotenv"
)

// storeAudit adapts the persistence layer to the executor's audit sink.
type storeAudit struct {
	store *core.Store
}

func (a storeAudit) Record(ctx context.Context, actorID, actionKind, entityID, detail string) error {
	return a.store.RecordAudit(ctx, actorID, actionKind, entityID, detail)
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	store := core.NewStore(pool)

	interpreter, err := agent.NewInterpreter(agent.InterpreterConfig{
		Provider:        envOr("AGENT_PROVIDER", "openai"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  os.Getenv("ANTHROPIC_MODEL"),
	})
	if err != nil {
		log.Fatalf("interpreter: %v", err)
	}

	catalog := agent.DefaultCatalog()
	executor := agent.NewExecutor(store, agent.NewValidator(catalog),
		agent.WithAuditSink(storeAudit{store: store}),
		agent.WithLogger(logger),
	)
	pipeline := agent.NewPipeline(interpreter, executor, catalog,
		agent.WithPipelineLogger(logger),
	)
	pipeline.StartMaintenance(ctx)

	svc := app.NewAppService(store, pipeline)
	handler := webAdapter.NewHandler(svc, logger)

	port := envOr("SERVER_PORT", "8080")
	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
