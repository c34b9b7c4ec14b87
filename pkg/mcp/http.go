package mcp

import (
	"net/http"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// statusRecorder is the RoundTripper shared by both HTTP transports of one
// server entry. It adds the entry's configured headers to every request and
// remembers the last non-2xx status, which is how the manager tells a
// protocol rejection (4xx) from other failures.
type statusRecorder struct {
	base    http.RoundTripper
	headers map[string]string

	mu     sync.Mutex
	status int
}

func newStatusRecorder(base http.RoundTripper, headers map[string]string) *statusRecorder {
	if base == nil {
		base = http.DefaultTransport
	}
	return &statusRecorder{base: base, headers: headers}
}

func (r *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(r.headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range r.headers {
			req.Header.Set(k, v)
		}
	}
	resp, err := r.base.RoundTrip(req)
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		r.mu.Lock()
		r.status = resp.StatusCode
		r.mu.Unlock()
	}
	return resp, err
}

// Status returns the last non-2xx status seen since the last reset, or 0.
func (r *statusRecorder) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *statusRecorder) reset() {
	r.mu.Lock()
	r.status = 0
	r.mu.Unlock()
}

// NewStreamableTransport builds a streamable-http transport for url.
// Reconnect retries are disabled so a rejected endpoint fails fast.
func NewStreamableTransport(client *sdk.Client, url string, httpClient *http.Client) Transport {
	return NewTransport(TransportStreamableHTTP, client, &sdk.StreamableClientTransport{
		Endpoint:   url,
		HTTPClient: httpClient,
		MaxRetries: -1,
	})
}

// NewSSETransport builds a legacy SSE transport for url.
func NewSSETransport(client *sdk.Client, url string, httpClient *http.Client) Transport {
	return NewTransport(TransportSSE, client, &sdk.SSEClientTransport{
		Endpoint:   url,
		HTTPClient: httpClient,
	})
}

func isClientRejection(status int) bool {
	return status >= 400 && status < 500
}
