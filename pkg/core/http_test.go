package core

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var fastRetry = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
}

func TestWithRetrySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := WithRetry(context.Background(), req, server.Client(), fastRetry, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body %q", body)
	}
}

func TestWithRetryRecoversFromServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := WithRetry(context.Background(), req, server.Client(), fastRetry, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestWithRetryDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad bbox", http.StatusBadRequest)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := WithRetry(context.Background(), req, server.Client(), fastRetry, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsKind(err, KindServerRejection) {
		t.Errorf("expected server rejection, got %s", KindOf(err))
	}
	if got := UserMessage(err); got != "bad bbox" {
		t.Errorf("message = %q, want %q", got, "bad bbox")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestWithRetryNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	_, err := WithRetry(context.Background(), req, nil, fastRetry, nil)
	if !IsKind(err, KindNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
}

func TestWithRetryRejectsBodyRetries(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid/geo/correct_station", strings.NewReader(`{}`))

	_, err := WithRetry(context.Background(), req, nil, fastRetry, nil)
	if err == nil {
		t.Fatal("expected error for retried request with body")
	}
	if KindOf(err) != KindInternal {
		t.Errorf("expected internal error, got %s", KindOf(err))
	}
}
