package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := DefaultConfig("jira-harvest-test/1.0 (test@example.com)")
	cfg.BaseURL = baseURL
	cfg.RateLimitInterval = 0
	cfg.RequestTimeout = 2 * time.Second
	cfg.Retry = Policy{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
		JitterMax:   0,
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:   "valid config",
			config: DefaultConfig("TestApp/1.0 (test@example.com)"),
		},
		{
			name:        "empty user agent",
			config:      Config{BaseURL: DefaultBaseURL},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if tt.expectError && err == nil {
				t.Error("Expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got == "" {
			t.Error("Expected User-Agent header")
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	outcome := c.Do(context.Background(), Request{Endpoint: "/rest/api/2/search", Op: OpSearch})

	if !outcome.Success() {
		t.Fatalf("Outcome = %s, want success", outcome.Kind)
	}
	if outcome.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", outcome.StatusCode)
	}
	if string(outcome.Body) != `{"ok": true}` {
		t.Errorf("Body = %s", outcome.Body)
	}
	if outcome.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", outcome.Attempts)
	}
}

func TestDo_ClientErrorNoRetry(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	outcome := c.Do(context.Background(), Request{Endpoint: "/rest/api/2/issue/KAFKA-404", Op: OpIssue})

	if outcome.Kind != KindClientError {
		t.Errorf("Kind = %s, want client_error", outcome.Kind)
	}
	if outcome.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", outcome.StatusCode)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("Requests = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestDo_RetriesServerErrorThenSucceeds(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	outcome := c.Do(context.Background(), Request{Endpoint: "/rest/api/2/search", Op: OpSearch})

	if !outcome.Success() {
		t.Fatalf("Outcome = %s, want success after retries", outcome.Kind)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", outcome.Attempts)
	}
}

func TestDo_RetryExhaustion(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	outcome := c.Do(context.Background(), Request{Endpoint: "/rest/api/2/search", Op: OpSearch})

	if outcome.Kind != KindServerError {
		t.Errorf("Kind = %s, want server_error", outcome.Kind)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("Requests = %d, want 3 (max attempts)", got)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", outcome.Attempts)
	}
}

func TestDo_RateLimitedCarriesRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := DefaultConfig("test/1.0")
	cfg.BaseURL = server.URL
	cfg.RateLimitInterval = 0
	// One attempt only so the outcome surfaces directly.
	cfg.Retry = Policy{MaxAttempts: 1, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	outcome := c.Do(context.Background(), Request{Endpoint: "/rest/api/2/search", Op: OpSearch})

	if outcome.Kind != KindRateLimited {
		t.Errorf("Kind = %s, want rate_limited", outcome.Kind)
	}
	if outcome.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", outcome.RetryAfter)
	}
}

func TestDo_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	cfg := DefaultConfig("test/1.0")
	cfg.BaseURL = server.URL
	cfg.RateLimitInterval = 0
	cfg.RequestTimeout = 50 * time.Millisecond
	cfg.Retry = Policy{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	outcome := c.Do(context.Background(), Request{Endpoint: "/rest/api/2/search", Op: OpSearch})

	if outcome.Kind != KindTimeout {
		t.Errorf("Kind = %s, want timeout", outcome.Kind)
	}
	if outcome.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", outcome.Attempts)
	}
}

func TestDo_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse all connections

	c := newTestClient(t, server.URL)
	outcome := c.Do(context.Background(), Request{Endpoint: "/rest/api/2/search", Op: OpSearch})

	if outcome.Kind != KindConnectionFailure {
		t.Errorf("Kind = %s, want connection_failure", outcome.Kind)
	}
	if outcome.Err == nil {
		t.Error("Expected transport error in Err")
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := DefaultConfig("test/1.0")
	cfg.BaseURL = server.URL
	cfg.RateLimitInterval = 0
	cfg.Retry = Policy{MaxAttempts: 5, BaseBackoff: 10 * time.Second, MaxBackoff: 10 * time.Second}

	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome := c.Do(ctx, Request{Endpoint: "/rest/api/2/search", Op: OpSearch})

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Do() took %v after cancellation, want prompt return", elapsed)
	}
	if outcome.Success() {
		t.Error("Cancelled fetch must not report success")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"10", 10 * time.Second},
		{"0", 0},
		{"-5", 0},
		{"soon", 0},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.value); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestParseRetryAfter_HTTPDate(t *testing.T) {
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(future)
	if got < 25*time.Second || got > 30*time.Second {
		t.Errorf("parseRetryAfter(%q) = %v, want roughly 30s", future, got)
	}

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(past); got != 0 {
		t.Errorf("parseRetryAfter(past date) = %v, want 0", got)
	}
}
