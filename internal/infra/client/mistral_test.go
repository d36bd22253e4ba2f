package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/observability"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/resilience"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, srv *httptest.Server, apiKey string) *MistralClient {
	t.Helper()
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 2}
	return NewMistralClient(srv.Client(), srv.URL, apiKey, "mistral-large-latest",
		resilience.NewCircuitBreaker("mistral-test", zap.NewNop()), cfg, observability.NewMetrics())
}

func TestComplete_SendsSingleUserMessage(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Troca da bateria.  "}}],"usage":{"prompt_tokens":12,"completion_tokens":4}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "secret")
	reply, err := c.Complete(context.Background(), "Resuma: não liga")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Troca da bateria." {
		t.Errorf("expected trimmed reply, got %q", reply)
	}
	if got.Model != "mistral-large-latest" {
		t.Errorf("unexpected model %q", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "Resuma: não liga" {
		t.Errorf("expected one user message, got %+v", got.Messages)
	}
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	reply, err := newTestClient(t, srv, "k").Complete(context.Background(), "oi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "ok" || calls.Load() != 3 {
		t.Errorf("expected ok after 3 calls, got %q after %d", reply, calls.Load())
	}
}

func TestComplete_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "bad").Complete(context.Background(), "oi")
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one call, got %d", calls.Load())
	}
}

func TestComplete_MissingAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without api key")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "").Complete(context.Background(), "oi")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "k").Complete(context.Background(), "oi")
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}
