package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInterpreterPayload(t *testing.T) {
	t.Run("PlainEnvelope", func(t *testing.T) {
		result, err := decodeInterpreterPayload(`{
			"assistant_text": "Recording it now.",
			"actions": [
				{"kind": "record-transaction", "arguments": {"direction": "expense", "amount_minor": 4500}}
			]
		}`)
		require.NoError(t, err)
		assert.Equal(t, "Recording it now.", result.AssistantText)
		require.Len(t, result.Candidates, 1)
		assert.Equal(t, "record-transaction", result.Candidates[0].Kind)
		assert.Equal(t, float64(4500), result.Candidates[0].Arguments["amount_minor"])
	})

	t.Run("MarkdownFencedEnvelope", func(t *testing.T) {
		result, err := decodeInterpreterPayload("```json\n{\"assistant_text\": \"Done.\", \"actions\": []}\n```")
		require.NoError(t, err)
		assert.Equal(t, "Done.", result.AssistantText)
		assert.Empty(t, result.Candidates)
	})

	t.Run("MalformedActionSkippedSiblingsKept", func(t *testing.T) {
		result, err := decodeInterpreterPayload(`{
			"assistant_text": "Two things.",
			"actions": [
				"not an object",
				{"kind": "find-client", "arguments": {"query": "acme"}}
			]
		}`)
		require.NoError(t, err)
		require.Len(t, result.Candidates, 1)
		assert.Equal(t, "find-client", result.Candidates[0].Kind)
	})

	t.Run("MissingKindSkipped", func(t *testing.T) {
		result, err := decodeInterpreterPayload(`{"assistant_text": "hm", "actions": [{"arguments": {}}]}`)
		require.NoError(t, err)
		assert.Empty(t, result.Candidates)
	})

	t.Run("MissingArgumentsBecomesEmptyMap", func(t *testing.T) {
		result, err := decodeInterpreterPayload(`{"assistant_text": "", "actions": [{"kind": "find-client"}]}`)
		require.NoError(t, err)
		require.Len(t, result.Candidates, 1)
		assert.NotNil(t, result.Candidates[0].Arguments)
	})

	t.Run("BrokenEnvelopeIsAnError", func(t *testing.T) {
		_, err := decodeInterpreterPayload(`{"assistant_text": "oops"`)
		require.Error(t, err)
	})

	t.Run("EmptyContentIsAnError", func(t *testing.T) {
		_, err := decodeInterpreterPayload("   ")
		require.Error(t, err)
	})
}

func TestCleanMarkdownWrapper(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanMarkdownWrapper("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanMarkdownWrapper("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanMarkdownWrapper(`{"a":1}`))
}
