package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeArguments converts a provider-supplied argument payload into the
// structured form tool servers expect.
//
// Hosted providers stream arguments as a JSON string; local ones deliver an
// object. Empty input yields an empty map. A JSON value that is not an object
// is rejected.
func NormalizeArguments(v any) (map[string]any, error) {
	switch a := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return a, nil
	case string:
		return decodeObject([]byte(a))
	case []byte:
		return decodeObject(a)
	case json.RawMessage:
		return decodeObject(a)
	default:
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("arguments: %w", err)
		}
		return decodeObject(data)
	}
}

// ArgumentsJSON renders a payload as a JSON object string, the shape
// chat-completions APIs carry in function.arguments.
func ArgumentsJSON(v any) string {
	switch a := v.(type) {
	case string:
		if strings.TrimSpace(a) == "" {
			return "{}"
		}
		return a
	case json.RawMessage:
		if len(a) == 0 {
			return "{}"
		}
		return string(a)
	}
	m, err := NormalizeArguments(v)
	if err != nil {
		return "{}"
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func decodeObject(data []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("arguments: not a JSON object: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
