package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ProviderError is a failure reported by a chat backend, either as an HTTP
// rejection or as an error event inside the stream.
type ProviderError struct {
	Provider   string
	StatusCode int    // 0 when the error arrived mid-stream
	Kind       string // classification of StatusCode
	Message    string
	Retryable  bool
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
}

// ErrMaxRetriesExceeded is returned when all retry attempts are exhausted.
type ErrMaxRetriesExceeded struct {
	Attempts   int
	LastStatus int
}

func (e *ErrMaxRetriesExceeded) Error() string {
	return fmt.Sprintf("llm: max retries exceeded (%d attempts, last HTTP %d)", e.Attempts, e.LastStatus)
}

// toolsUnsupportedSignatures are the phrases backends use when a model
// cannot take tool definitions.
var toolsUnsupportedSignatures = []string{
	"does not support tools",
	"does not support function calling",
	"does not support tool use",
	"tool use is not supported",
	"tools are not supported",
	"no endpoints found that support tool use",
}

// IsToolsUnsupported reports whether err says the selected model cannot
// call tools. Detection is by error text because no backend exposes a
// structured code for it.
func IsToolsUnsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range toolsUnsupportedSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// IsModelNotFound reports whether err says the configured model does not
// exist on the backend.
func IsModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "model") && strings.Contains(msg, "not found")
}

// classifyError maps an HTTP response to a ProviderError. The body is
// consumed. JSON bodies of the form {"error": "..."} or
// {"error": {"message": "..."}} are unwrapped.
func classifyError(provider string, resp *http.Response) *ProviderError {
	bodyBytes, _ := io.ReadAll(resp.Body)
	msg := errorMessage(bodyBytes)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	kind, retryable := classifyStatus(resp.StatusCode)

	return &ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Kind:       kind,
		Message:    msg,
		Retryable:  retryable,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

func errorMessage(body []byte) string {
	var wrapped struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Error) > 0 {
		var s string
		if json.Unmarshal(wrapped.Error, &s) == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(wrapped.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return strings.TrimSpace(string(body))
}

type statusClass struct {
	kind      string
	retryable bool
}

var statusClasses = map[int]statusClass{
	http.StatusBadRequest:          {"invalid_request", false},
	http.StatusUnprocessableEntity: {"invalid_request", false},
	http.StatusUnauthorized:        {"authentication_failed", false},
	http.StatusPaymentRequired:     {"billing_error", false},
	http.StatusForbidden:           {"billing_error", false},
	http.StatusNotFound:            {"not_found", false},
	http.StatusTooManyRequests:     {"rate_limit", true},
	529:                            {"rate_limit", true}, // Anthropic "overloaded"
	http.StatusInternalServerError: {"server_error", true},
	http.StatusBadGateway:          {"server_error", true},
	http.StatusServiceUnavailable:  {"server_error", true},
}

func classifyStatus(code int) (kind string, retryable bool) {
	c, ok := statusClasses[code]
	if !ok {
		return "unknown", false
	}
	return c.kind, c.retryable
}

func isRetryable(code int, statuses []int) bool {
	return slices.Contains(statuses, code)
}

// parseRetryAfter reads a Retry-After header given either as delta seconds
// or as an HTTP date. Past dates and garbage yield zero.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(max(n, 0)) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(time.Until(at), 0)
	}
	return 0
}
