package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// AnthropicInterpreter interprets user intent through the Anthropic Messages
// API over plain HTTP. The catalog description rides in the system prompt and
// the model is instructed to emit the interpreter envelope as JSON.
type AnthropicInterpreter struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
	maxTokens  int
}

func NewAnthropicInterpreter(apiKey, model string) (*AnthropicInterpreter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &AnthropicInterpreter{
		apiKey:    apiKey,
		model:     model,
		endpoint:  anthropicEndpoint,
		maxTokens: 2048,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

func (a *AnthropicInterpreter) Interpret(ctx context.Context, history []ChatMessage, catalog *Catalog) (*InterpretResult, error) {
	messages := make([]map[string]string, 0, len(history))
	for _, m := range history {
		role := m.Role
		if role != RoleUser && role != RoleAssistant {
			role = RoleUser
		}
		messages = append(messages, map[string]string{"role": role, "content": m.Text})
	}

	requestBody := map[string]any{
		"model":      a.model,
		"max_tokens": a.maxTokens,
		"system":     interpreterInstructions(catalog),
		"messages":   messages,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, &InterpretError{Provider: "anthropic", Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, &InterpretError{Provider: "anthropic", Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &InterpretError{Provider: "anthropic", Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &InterpretError{Provider: "anthropic", Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &InterpretError{Provider: "anthropic",
			Err: fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))}
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &InterpretError{Provider: "anthropic", Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if len(response.Content) == 0 {
		return nil, &InterpretError{Provider: "anthropic", Err: fmt.Errorf("no content in response")}
	}

	result, err := decodeInterpreterPayload(response.Content[0].Text)
	if err != nil {
		return nil, &InterpretError{Provider: "anthropic", Err: err}
	}
	return result, nil
}

// anthropicResponse is the Messages API response envelope.
type anthropicResponse struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
