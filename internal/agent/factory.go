package agent

import (
	"fmt"
	"strings"
)

// InterpreterConfig selects and configures a language-understanding backend.
// The chosen interpreter is injected into the pipeline explicitly — there is
// no process-wide provider default.
type InterpreterConfig struct {
	Provider        string // "openai" or "anthropic"
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AnthropicModel  string
}

// NewInterpreter builds the configured backend.
func NewInterpreter(cfg InterpreterConfig) (Interpreter, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		return NewOpenAIInterpreter(cfg.OpenAIAPIKey), nil
	case "anthropic":
		return NewAnthropicInterpreter(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	default:
		return nil, fmt.Errorf("unsupported interpreter provider: %s", cfg.Provider)
	}
}
