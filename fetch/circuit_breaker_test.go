package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCircuitBreakerFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"react"}`))
	}))
	defer server.Close()

	cbf := NewCircuitBreakerFetcher(NewFetcher())
	resp, err := cbf.Fetch(context.Background(), server.URL+"/react")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"name":"react"}` {
		t.Errorf("unexpected body %q", string(body))
	}
}

func TestRegistryHost(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"npm registry", "https://registry.npmjs.org/react", "registry.npmjs.org"},
		{"yarn registry", "https://registry.yarnpkg.com/@babel%2fcore", "registry.yarnpkg.com"},
		{"invalid URL", "not-a-valid-url", "not-a-valid-url"},
		{"with port", "http://localhost:4873/pkg", "localhost:4873"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := registryHost(tt.url); got != tt.expected {
				t.Errorf("registryHost(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}

func TestCircuitBreakerStates(t *testing.T) {
	server1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))
	defer server1.Close()
	server2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))
	defer server2.Close()

	cbf := NewCircuitBreakerFetcher(NewFetcher())
	if len(cbf.States()) != 0 {
		t.Fatal("expected no breakers before any fetch")
	}

	for _, u := range []string{server1.URL, server2.URL} {
		resp, err := cbf.Fetch(context.Background(), u+"/x")
		if err != nil {
			t.Fatalf("fetch %s: %v", u, err)
		}
		_ = resp.Body.Close()
	}

	states := cbf.States()
	if len(states) != 2 {
		t.Errorf("expected 2 breaker states, got %d", len(states))
	}
	for host, state := range states {
		if state != "closed" {
			t.Errorf("%s: expected closed, got %s", host, state)
		}
	}
}

func TestCircuitBreakerIgnoresDefiniteAnswers(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusUnauthorized} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			defer server.Close()

			cbf := NewCircuitBreakerFetcher(NewFetcher(WithMaxRetries(0)))
			for range 10 {
				_, err := cbf.Fetch(context.Background(), server.URL+"/unpublished")
				var serr *StatusError
				if !errors.As(err, &serr) || serr.Code != code {
					t.Fatalf("expected status %d, got %v", code, err)
				}
			}
			for host, state := range cbf.States() {
				if state != "closed" {
					t.Errorf("%s: %d answers should not trip the breaker, got %s", host, code, state)
				}
			}
		})
	}
}

func TestCircuitBreakerOpensOnFailures(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cbf := NewCircuitBreakerFetcher(NewFetcher(WithMaxRetries(0), WithBaseDelay(0)))
	for range 10 {
		_, _ = cbf.Fetch(context.Background(), server.URL+"/x")
	}

	if requests >= 10 {
		t.Logf("breaker may not have opened yet (server saw %d requests)", requests)
	}
	_, err := cbf.Fetch(context.Background(), server.URL+"/x")
	if !errors.Is(err, ErrUpstreamDown) {
		t.Errorf("expected ErrUpstreamDown from open breaker, got %v", err)
	}
}
