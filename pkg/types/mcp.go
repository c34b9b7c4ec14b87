package types

// ServerEntry is one declared tool server.
//
// Exactly one of Command and URL is expected to be set. An entry with
// neither is skipped during connection, not treated as a failure.
type ServerEntry struct {
	ID string `json:"-" yaml:"-"`

	// stdio
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// streamable-http / sse
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// HasCommand reports whether the entry launches a child process.
func (e ServerEntry) HasCommand() bool { return e.Command != "" }

// HasURL reports whether the entry points at a network endpoint.
func (e ServerEntry) HasURL() bool { return e.URL != "" }

// MCPConfig is the parsed server list, in declaration order.
type MCPConfig struct {
	Servers []ServerEntry
}

// Lookup returns the entry with the given id.
func (c MCPConfig) Lookup(id string) (ServerEntry, bool) {
	for _, s := range c.Servers {
		if s.ID == id {
			return s, true
		}
	}
	return ServerEntry{}, false
}

// IDs returns the server ids in declaration order.
func (c MCPConfig) IDs() []string {
	ids := make([]string, len(c.Servers))
	for i, s := range c.Servers {
		ids[i] = s.ID
	}
	return ids
}
