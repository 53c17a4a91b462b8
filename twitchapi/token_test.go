package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func tokenServer(t *testing.T, expiresIn int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "test-client" {
			t.Errorf("client_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token-123",
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTokenSource_GetCached(t *testing.T) {
	var calls atomic.Int32
	server := tokenServer(t, 3600, &calls)
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: server.URL}

	for i := 0; i < 3; i++ {
		tok, err := ts.Get(context.Background())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if tok != "test-token-123" {
			t.Errorf("Get() = %s, want test-token-123", tok)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 token request, got %d", calls.Load())
	}
}

func TestTokenSource_RefreshesNearExpiry(t *testing.T) {
	var calls atomic.Int32
	// inside the one minute buffer, so every Get refreshes
	server := tokenServer(t, 30, &calls)
	ts := &TokenSource{ClientID: "test-client", ClientSecret: "test-secret", TokenURL: server.URL}
	for i := 0; i < 2; i++ {
		if _, err := ts.Get(context.Background()); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 token requests, got %d", calls.Load())
	}
}

func TestTokenSource_MissingCredentials(t *testing.T) {
	ts := &TokenSource{ClientID: "only-id"}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestTokenSource_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
	}))
	defer server.Close()
	ts := &TokenSource{ClientID: "a", ClientSecret: "b", TokenURL: server.URL, HTTPClient: server.Client()}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Fatal("expected error from failing token endpoint")
	}
}
