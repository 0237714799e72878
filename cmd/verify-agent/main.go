package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"invoice-agent/internal/agent"

	"github.com/joho/godotenv"
)

// Smoke-tests the configured interpreter without touching the database:
// sends one prompt, validates the proposed actions, prints the previews.
func main() {
	_ = godotenv.Load() // Load .env if present

	interpreter, err := agent.NewInterpreter(agent.InterpreterConfig{
		Provider:        providerOrDefault(),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  os.Getenv("ANTHROPIC_MODEL"),
	})
	if err != nil {
		log.Fatalf("interpreter: %v", err)
	}

	catalog := agent.DefaultCatalog()
	validator := agent.NewValidator(catalog)
	ctx := context.Background()

	text := "Invoice Northwind Trading 3 days of consulting at 80000 per day plus 10% tax, due 2026-09-30."
	fmt.Printf("INTERPRETING: %s\n", text)

	result, err := interpreter.Interpret(ctx, []agent.ChatMessage{{Role: agent.RoleUser, Text: text}}, catalog)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("\n--- ASSISTANT ---\n%s\n", result.AssistantText)
	fmt.Printf("\n--- CANDIDATES (%d) ---\n", len(result.Candidates))
	for i, candidate := range result.Candidates {
		args, err := validator.Validate(candidate)
		if err != nil {
			fmt.Printf("%d. %s REJECTED: %v\n", i+1, candidate.Kind, err)
			continue
		}
		fmt.Printf("%d. %s\n", i+1, validator.Preview(agent.ActionKind(candidate.Kind), args))
	}
}

func providerOrDefault() string {
	if p := os.Getenv("AGENT_PROVIDER"); p != "" {
		return p
	}
	return "openai"
}
