package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jg-phare/yappr/pkg/llm"
	"github.com/jg-phare/yappr/pkg/mcp"
	"github.com/jg-phare/yappr/pkg/types"
)

func TestMCPSource_MissingConfig(t *testing.T) {
	called := false
	src := MCPSource(mcp.NewManager(), filepath.Join(t.TempDir(), "absent.json"), func(st []mcp.ServerStatus) {
		called = true
		assert.Empty(t, st)
	})

	sess, err := src.Open(context.Background())
	require.NoError(t, err)
	defer sess.Close()
	assert.True(t, called)
	assert.Empty(t, sess.ExportForProvider(llm.FormatFunction))
}

type shoutInput struct {
	Text string `json:"text"`
}

func TestRun_WithMCPServer(t *testing.T) {
	server := sdk.NewServer(&sdk.Implementation{Name: "shout", Version: "0.0.1"}, nil)
	sdk.AddTool(server, &sdk.Tool{Name: "shout", Description: "Upper-case the text"},
		func(_ context.Context, _ *sdk.CallToolRequest, in shoutInput) (*sdk.CallToolResult, any, error) {
			return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: in.Text + "!"}}}, nil, nil
		})
	ts := httptest.NewServer(sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server { return server }, nil))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers":{"shout":{"url":"`+ts.URL+`"}}}`), 0o600))

	var statuses []mcp.ServerStatus
	p := &mockProvider{turns: []scriptedTurn{
		toolTurn("", types.ToolCall{ID: "c1", Name: "shout", Arguments: `{"text":"hey"}`}),
		textTurn("They said hey!"),
	}}
	o := New(p, WithToolSource(MCPSource(mcp.NewManager(), path, func(st []mcp.ServerStatus) { statuses = st })))

	res, err := o.Run(context.Background(), RunRequest{Prompt: "shout hey", ToolsEnabled: true})
	require.NoError(t, err)

	require.Len(t, statuses, 1)
	assert.Equal(t, mcp.OutcomeConnected, statuses[0].Outcome)
	require.Len(t, p.requests[0].Tools, 1)
	assert.Equal(t, "shout", p.requests[0].Tools[0].Name)
	assert.JSONEq(t, `[{"type":"text","text":"hey!"}]`, res.Messages[2].Content)
	assert.Equal(t, "They said hey!", res.Text)
}
