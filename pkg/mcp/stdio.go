package mcp

import (
	"os"
	"os/exec"
	"sort"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jg-phare/yappr/pkg/types"
)

// defaultTerminateDuration is how long Close waits for a child process to
// exit after its stdin is closed.
const defaultTerminateDuration = 5 * time.Second

// NewStdioTransport builds a transport that launches entry.Command and speaks
// newline-delimited JSON-RPC over its stdin/stdout. The child inherits the
// current environment, overridden by entry.Env. Its stderr is left nil, which
// exec connects to the null device.
func NewStdioTransport(client *sdk.Client, entry types.ServerEntry) Transport {
	cmd := exec.Command(entry.Command, entry.Args...)
	cmd.Env = mergeEnv(os.Environ(), entry.Env)
	return NewTransport(TransportStdio, client, &sdk.CommandTransport{
		Command:           cmd,
		TerminateDuration: defaultTerminateDuration,
	})
}

// mergeEnv returns base with overrides applied. Later entries win when exec
// sees duplicate keys, so overrides are appended in a stable order.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(keys))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
