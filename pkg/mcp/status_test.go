package mcp

import (
	"errors"
	"net/http"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	got := Summarize([]ServerStatus{
		{ID: "a", Outcome: OutcomeConnected, ToolCount: 4},
		{ID: "b", Outcome: OutcomeFailed, Message: "Command not found"},
		{ID: "c", Outcome: OutcomeSkipped, Message: "No command/url"},
		{ID: "d", Outcome: OutcomeConnected, ToolCount: 1},
	})
	assert.Equal(t, Summary{Connected: 2, Failed: 1, Skipped: 1, TotalTools: 5}, got)
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestConnectionErrorMessage(t *testing.T) {
	tests := []struct {
		err  *ConnectionError
		want string
	}{
		{&ConnectionError{ServerID: "x", Kind: KindCommandNotFound, Err: exec.ErrNotFound}, "Command not found"},
		{&ConnectionError{ServerID: "x", Kind: KindRejected, Status: 403, Err: errors.New("Forbidden")}, "Auth/Connection Err"},
		{&ConnectionError{ServerID: "x", Kind: KindTransport, Err: errors.New("dial tcp: connection refused")}, "dial tcp: connection refused"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Message())
		assert.Contains(t, tt.err.Error(), "connect x")
	}
}

func TestIsCommandNotFound(t *testing.T) {
	err := exec.Command("yappr-definitely-not-installed").Start()
	assert.True(t, isCommandNotFound(err))
	err = exec.Command("/nonexistent/dir/server").Start()
	assert.True(t, isCommandNotFound(err))
	assert.False(t, isCommandNotFound(errors.New("permission denied")))
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/root"}
	assert.Equal(t, base, mergeEnv(base, nil))

	got := mergeEnv(base, map[string]string{"HOME": "/tmp", "API_KEY": "k"})
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "API_KEY=k", "HOME=/tmp"}, got)
}

func TestHTTPConnectionErrorKinds(t *testing.T) {
	cause := errors.New("handshake failed")
	tests := []struct {
		status  int
		kind    ErrorKind
		message string
	}{
		{http.StatusUnauthorized, KindRejected, "Auth/Connection Err"},
		{http.StatusNotFound, KindRejected, "Auth/Connection Err"},
		{http.StatusInternalServerError, KindTransport, "handshake failed"},
		{http.StatusBadGateway, KindTransport, "handshake failed"},
		{0, KindTransport, "handshake failed"},
	}
	for _, tt := range tests {
		var ce *ConnectionError
		require.ErrorAs(t, httpConnectionError("srv", tt.status, cause), &ce)
		assert.Equal(t, tt.kind, ce.Kind, "status %d", tt.status)
		assert.Equal(t, tt.status, ce.Status)
		assert.Equal(t, tt.message, ce.Message(), "status %d", tt.status)
	}
}
