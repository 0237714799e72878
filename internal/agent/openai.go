package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// OpenAIInterpreter interprets user intent through the OpenAI Responses API,
// constraining the output to the interpreter envelope via a JSON schema built
// from the action catalog.
type OpenAIInterpreter struct {
	client *openai.Client
}

func NewOpenAIInterpreter(apiKey string) *OpenAIInterpreter {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIInterpreter{client: &client}
}

func (a *OpenAIInterpreter) Interpret(ctx context.Context, history []ChatMessage, catalog *Catalog) (*InterpretResult, error) {
	prompt := fmt.Sprintf("%s\n\nConversation so far:\n%s",
		interpreterInstructions(catalog), renderTranscript(history))

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "bookkeeping_actions",
					Strict:      param.NewOpt(false),
					Schema:      envelopeSchema(catalog),
					Description: param.NewOpt("Assistant reply text plus proposed bookkeeping actions"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, &InterpretError{Provider: "openai", Err: err}
	}

	result, err := decodeInterpreterPayload(resp.OutputText())
	if err != nil {
		return nil, &InterpretError{Provider: "openai", Err: err}
	}
	return result, nil
}

// envelopeSchema builds the response-format schema for the interpreter
// envelope. Per-action argument constraints live in the catalog schemas and
// the Validator; here the arguments stay an open object so one malformed
// action cannot invalidate the whole response.
func envelopeSchema(catalog *Catalog) map[string]any {
	kinds := make([]string, 0, len(catalog.All()))
	for _, s := range catalog.All() {
		kinds = append(kinds, string(s.Kind))
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"assistant_text": map[string]any{
				"type":        "string",
				"description": "Reply shown to the user before they approve or reject the actions",
			},
			"actions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"kind":      map[string]any{"type": "string", "enum": kinds},
						"arguments": map[string]any{"type": "object"},
					},
					"required": []string{"kind", "arguments"},
				},
			},
		},
		"required": []string{"assistant_text", "actions"},
	}
}
