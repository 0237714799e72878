package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// interpreterEnvelope is the JSON document every backend is instructed to
// emit: reply text plus candidate actions. Actions are decoded individually
// so a single malformed element never discards its siblings or the text.
type interpreterEnvelope struct {
	AssistantText string            `json:"assistant_text"`
	Actions       []json.RawMessage `json:"actions"`
}

// decodeInterpreterPayload parses a backend's raw text output into an
// InterpretResult. The envelope itself failing to parse is an error (the
// caller wraps it as an InterpretError); a malformed individual action is
// skipped.
func decodeInterpreterPayload(content string) (*InterpretResult, error) {
	content = cleanMarkdownWrapper(content)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var envelope interpreterEnvelope
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response envelope: %w", err)
	}

	result := &InterpretResult{AssistantText: envelope.AssistantText}
	for _, rawMsg := range envelope.Actions {
		var candidate RawAction
		if err := json.Unmarshal(rawMsg, &candidate); err != nil {
			continue
		}
		if candidate.Kind == "" {
			continue
		}
		if candidate.Arguments == nil {
			candidate.Arguments = map[string]any{}
		}
		result.Candidates = append(result.Candidates, candidate)
	}
	return result, nil
}

// cleanMarkdownWrapper strips ```json fences some models wrap around their
// output despite instructions.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}

// interpreterInstructions renders the system prompt shared by all backends.
func interpreterInstructions(catalog *Catalog) string {
	return fmt.Sprintf(`You are a bookkeeping assistant for a small business.
Interpret the user's request and propose concrete bookkeeping actions.
Rules:
1. Respond ONLY with a JSON object: {"assistant_text": string, "actions": [{"kind": string, "arguments": object}]}.
2. Use ONLY the action kinds listed below, with their exact argument schemas.
3. Amounts are always positive integers in the smallest currency unit. Never use floats for money.
4. Dates are YYYY-MM-DD strings.
5. Tax rates are exactly 0, 0.08 or 0.10.
6. If the request needs no action (a question, a greeting), return an empty actions array and answer in assistant_text.
7. assistant_text should briefly explain what you propose; the user approves or rejects before anything is executed.

Available actions:
%s`, catalog.PromptDescription())
}

// renderTranscript flattens conversation history into a prompt transcript.
func renderTranscript(history []ChatMessage) string {
	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
	}
	return b.String()
}
