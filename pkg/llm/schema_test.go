package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolSchemaMarshal(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []any{"path"},
	}

	t.Run("function shape", func(t *testing.T) {
		data, err := json.Marshal(ToolSchema{Format: FormatFunction, Name: "read_file", Description: "Read a file", Parameters: params})
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"type": "function",
			"function": {
				"name": "read_file",
				"description": "Read a file",
				"parameters": {"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}
			}
		}`, string(data))
	})

	t.Run("input_schema shape", func(t *testing.T) {
		data, err := json.Marshal(ToolSchema{Format: FormatInputSchema, Name: "read_file", Description: "Read a file", Parameters: params})
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"name": "read_file",
			"description": "Read a file",
			"input_schema": {"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}
		}`, string(data))
	})

	t.Run("nil parameters become empty object", func(t *testing.T) {
		data, err := json.Marshal(ToolSchema{Format: FormatFunction, Name: "ping"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"function","function":{"name":"ping","description":"","parameters":{"type":"object","properties":{}}}}`, string(data))
	})
}

func TestNormalizeParameters(t *testing.T) {
	t.Run("missing type becomes object", func(t *testing.T) {
		got := NormalizeParameters(map[string]any{"properties": map[string]any{"q": map[string]any{"type": "string"}}})
		assert.Equal(t, "object", got["type"])
		assert.Contains(t, got["properties"], "q")
	})

	t.Run("object without properties", func(t *testing.T) {
		got := NormalizeParameters(map[string]any{"type": "object"})
		assert.Equal(t, map[string]any{}, got["properties"])
	})

	t.Run("raw json input", func(t *testing.T) {
		got := NormalizeParameters(json.RawMessage(`{"type":"object","properties":{"n":{"type":"integer","description":"count"}},"required":["n"]}`))
		assert.Equal(t, []any{"n"}, got["required"])
		props := got["properties"].(map[string]any)
		assert.Equal(t, "count", props["n"].(map[string]any)["description"])
	})

	t.Run("draft-04 schema keeps its parameters", func(t *testing.T) {
		got := NormalizeParameters(json.RawMessage(`{
			"type": "object",
			"properties": {"n": {"type": "number", "minimum": 0, "exclusiveMinimum": true}},
			"required": ["n"]
		}`))
		assert.Equal(t, "object", got["type"])
		assert.Equal(t, []any{"n"}, got["required"])
		n := got["properties"].(map[string]any)["n"].(map[string]any)
		assert.Equal(t, "number", n["type"])
		assert.Equal(t, true, n["exclusiveMinimum"])
	})

	t.Run("draft-04 schema without type gets object defaults", func(t *testing.T) {
		got := NormalizeParameters(map[string]any{"exclusiveMaximum": true, "maximum": 5})
		assert.Equal(t, "object", got["type"])
		assert.Equal(t, map[string]any{}, got["properties"])
		assert.Equal(t, true, got["exclusiveMaximum"])
	})

	t.Run("non-object json degrades to empty object", func(t *testing.T) {
		assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, NormalizeParameters([]any{1, 2}))
	})

	t.Run("garbage degrades to empty object", func(t *testing.T) {
		got := NormalizeParameters("not a schema")
		assert.Equal(t, "object", got["type"])
	})
}
