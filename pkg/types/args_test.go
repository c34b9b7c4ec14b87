package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeArguments(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want map[string]any
	}{
		{"nil", nil, map[string]any{}},
		{"empty string", "  ", map[string]any{}},
		{"json string", `{"path":"/tmp","depth":2}`, map[string]any{"path": "/tmp", "depth": float64(2)}},
		{"raw message", json.RawMessage(`{"q":"go"}`), map[string]any{"q": "go"}},
		{"bytes", []byte(`{"q":"go"}`), map[string]any{"q": "go"}},
		{"map passthrough", map[string]any{"a": 1}, map[string]any{"a": 1}},
		{"struct", struct {
			Query string `json:"query"`
		}{"x"}, map[string]any{"query": "x"}},
		{"json null", "null", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeArguments(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("array rejected", func(t *testing.T) {
		_, err := NormalizeArguments(`[1,2]`)
		require.Error(t, err)
	})

	t.Run("malformed rejected", func(t *testing.T) {
		_, err := NormalizeArguments(`{"a":`)
		require.Error(t, err)
	})
}

func TestArgumentsJSON(t *testing.T) {
	assert.Equal(t, "{}", ArgumentsJSON(""))
	assert.Equal(t, `{"a":1}`, ArgumentsJSON(`{"a":1}`))
	assert.Equal(t, `{"a":"b"}`, ArgumentsJSON(map[string]any{"a": "b"}))
	assert.Equal(t, "{}", ArgumentsJSON(json.RawMessage(nil)))
	assert.Equal(t, "{}", ArgumentsJSON(42))
}
