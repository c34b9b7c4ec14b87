package llm

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestIsToolsUnsupported(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("registry.ollama.ai/library/gemma:2b does not support tools"), true},
		{errors.New("Model Does Not Support Tools"), true},
		{&ProviderError{Provider: "openrouter", StatusCode: 404, Message: "No endpoints found that support tool use"}, true},
		{fmt.Errorf("turn 1: %w", errors.New("this model does not support function calling")), true},
		{errors.New("connection refused"), false},
		{&ProviderError{Provider: "ollama", StatusCode: 500, Message: "out of memory"}, false},
	}
	for _, tt := range tests {
		if got := IsToolsUnsupported(tt.err); got != tt.want {
			t.Errorf("IsToolsUnsupported(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsModelNotFound(t *testing.T) {
	if !IsModelNotFound(&ProviderError{Provider: "ollama", StatusCode: 404, Message: "whatever"}) {
		t.Error("404 should be model-not-found")
	}
	if !IsModelNotFound(errors.New(`model "llama9" not found, try pulling it first`)) {
		t.Error("message match should be model-not-found")
	}
	if IsModelNotFound(errors.New("file not found")) {
		t.Error("unrelated not-found must not match")
	}
	if IsModelNotFound(nil) {
		t.Error("nil must not match")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  string
		wantMsg   string
		retryable bool
	}{
		{"string error", 400, `{"error":"bad input"}`, "invalid_request", "bad input", false},
		{"object error", 401, `{"error":{"message":"no key"}}`, "authentication_failed", "no key", false},
		{"plain body", 503, "overloaded", "server_error", "overloaded", true},
		{"empty body", 429, "", "rate_limit", "Too Many Requests", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.status,
				Header:     http.Header{},
				Body:       io.NopCloser(strings.NewReader(tt.body)),
			}
			pe := classifyError("test", resp)
			if pe.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", pe.Kind, tt.wantKind)
			}
			if pe.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", pe.Message, tt.wantMsg)
			}
			if pe.Retryable != tt.retryable {
				t.Errorf("Retryable = %v", pe.Retryable)
			}
		})
	}
}

func TestProviderErrorString(t *testing.T) {
	e := &ProviderError{Provider: "ollama", Message: "boom"}
	if e.Error() != "ollama: boom" {
		t.Errorf("Error() = %q", e.Error())
	}
	e = &ProviderError{Provider: "openrouter", StatusCode: 401, Kind: "authentication_failed", Message: "no key"}
	if e.Error() != "openrouter: authentication_failed (HTTP 401): no key" {
		t.Errorf("Error() = %q", e.Error())
	}
}
