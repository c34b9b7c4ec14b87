// Package config loads the declarative tool-server list and the assistant's
// read-only preferences.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jg-phare/yappr/pkg/types"
)

// serversKey is the top-level key holding the server map.
const serversKey = "mcpServers"

// LoadMCPConfig reads the server list at path.
//
// A missing file is not an error: it yields an empty config and exists=false.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
// Servers are returned in the order they are declared in the file.
func LoadMCPConfig(path string) (cfg types.MCPConfig, exists bool, err error) {
	path = ExpandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.MCPConfig{}, false, nil
		}
		return types.MCPConfig{}, false, fmt.Errorf("config: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = ParseMCPConfigYAML(data)
	default:
		cfg, err = ParseMCPConfig(data)
	}
	if err != nil {
		return types.MCPConfig{}, true, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, true, nil
}

// ParseMCPConfig decodes a JSON document of the form
// {"mcpServers": {"<id>": {...}}}, preserving key order.
func ParseMCPConfig(data []byte) (types.MCPConfig, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return types.MCPConfig{}, err
	}
	raw, ok := root[serversKey]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return types.MCPConfig{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return types.MCPConfig{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return types.MCPConfig{}, fmt.Errorf("%s must be an object", serversKey)
	}

	var cfg types.MCPConfig
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return types.MCPConfig{}, err
		}
		id, _ := tok.(string)

		var entry types.ServerEntry
		if err := dec.Decode(&entry); err != nil {
			return types.MCPConfig{}, fmt.Errorf("server %q: %w", id, err)
		}
		entry.ID = id
		cfg.Servers = append(cfg.Servers, entry)
	}
	return cfg, nil
}

// ParseMCPConfigYAML decodes the YAML form of the server list. Mapping order
// is preserved by walking the node tree rather than decoding into a map.
func ParseMCPConfigYAML(data []byte) (types.MCPConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return types.MCPConfig{}, err
	}
	if len(doc.Content) == 0 {
		return types.MCPConfig{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return types.MCPConfig{}, fmt.Errorf("top level must be a mapping")
	}

	var servers *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == serversKey {
			servers = root.Content[i+1]
			break
		}
	}
	if servers == nil || servers.Tag == "!!null" {
		return types.MCPConfig{}, nil
	}
	if servers.Kind != yaml.MappingNode {
		return types.MCPConfig{}, fmt.Errorf("%s must be a mapping", serversKey)
	}

	var cfg types.MCPConfig
	for i := 0; i+1 < len(servers.Content); i += 2 {
		id := servers.Content[i].Value
		var entry types.ServerEntry
		if err := servers.Content[i+1].Decode(&entry); err != nil {
			return types.MCPConfig{}, fmt.Errorf("server %q: %w", id, err)
		}
		entry.ID = id
		cfg.Servers = append(cfg.Servers, entry)
	}
	return cfg, nil
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
