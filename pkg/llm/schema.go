package llm

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolFormat names one of the tool schema shapes backends accept.
type ToolFormat string

const (
	// FormatFunction is {"type":"function","function":{name,description,parameters}},
	// used by Ollama and chat-completions APIs.
	FormatFunction ToolFormat = "function"

	// FormatInputSchema is {name,description,input_schema}, used by the
	// Anthropic Messages API.
	FormatInputSchema ToolFormat = "input_schema"
)

// ToolSchema is one tool definition projected for a backend. Both shapes
// carry the same fields; Format only selects the JSON encoding.
type ToolSchema struct {
	Format      ToolFormat
	Name        string
	Description string
	Parameters  map[string]any
}

type functionTool struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type inputSchemaTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

func (s ToolSchema) MarshalJSON() ([]byte, error) {
	params := s.Parameters
	if params == nil {
		params = NormalizeParameters(nil)
	}
	if s.Format == FormatInputSchema {
		return json.Marshal(inputSchemaTool{Name: s.Name, Description: s.Description, InputSchema: params})
	}
	return json.Marshal(functionTool{
		Type:     "function",
		Function: functionDef{Name: s.Name, Description: s.Description, Parameters: params},
	})
}

// NormalizeParameters turns a tool server's input schema into a parameter
// object every backend accepts: a missing type becomes "object" and an
// object without properties gets an empty property map. Schemas the
// jsonschema package cannot model (draft-04 keywords, for one) are patched
// as plain maps. Only input that is not a JSON object degrades to an empty
// object schema.
func NormalizeParameters(schema any) map[string]any {
	if schema == nil {
		return emptyParameters()
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return emptyParameters()
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return emptyParameters()
	}

	if m, ok := normalizeTyped(data); ok {
		return m
	}
	return patchObjectDefaults(raw)
}

func emptyParameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// normalizeTyped round-trips the schema through jsonschema.Schema.
func normalizeTyped(data []byte) (map[string]any, bool) {
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false
	}
	if s.Type == "" && len(s.Types) == 0 {
		s.Type = "object"
	}
	if s.Type == "object" && s.Properties == nil {
		s.Properties = map[string]*jsonschema.Schema{}
	}

	out, err := json.Marshal(&s)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		return nil, false
	}
	// An empty Properties map is dropped by omitempty; restore it.
	return patchObjectDefaults(m), true
}

func patchObjectDefaults(m map[string]any) map[string]any {
	_, hasType := m["type"]
	if !hasType {
		m["type"] = "object"
	}
	if m["type"] == "object" {
		if _, ok := m["properties"]; !ok {
			m["properties"] = map[string]any{}
		}
	}
	return m
}
