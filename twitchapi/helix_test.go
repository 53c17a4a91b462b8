package twitchapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"

	"github.com/onnwee/vod-tender/archive/testutil"
)

func newTestClient(srv *testutil.MockTwitchServer) *HelixClient {
	return &HelixClient{
		AppTokenSource: testutil.StaticToken("test-token"),
		ClientID:       "test-client-id",
		BaseURL:        srv.URL + "/helix",
	}
}

func TestHelixClient_GetUserID(t *testing.T) {
	tests := []struct {
		name        string
		login       string
		mock        bool
		wantUserID  string
		errContains string
	}{
		{name: "successful user lookup", login: "testuser", mock: true, wantUserID: "12345"},
		{name: "user not found", login: "nonexistent", errContains: "not found"},
		{name: "empty login", login: "", errContains: "login empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewMockTwitchServer(t)
			if tt.mock {
				srv.MockUserResponse("12345", tt.login)
			}
			id, err := newTestClient(srv).GetUserID(context.Background(), tt.login)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("GetUserID() error = %v, want containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetUserID() error = %v", err)
			}
			if id != tt.wantUserID {
				t.Errorf("GetUserID() = %s, want %s", id, tt.wantUserID)
			}
		})
	}
}

func TestHelixClient_GetVideo(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.MockVideo("111", "muted stream", "2024-03-01T10:00:00Z", "1h2m3s", [2]int{30, 360})
	srv.MockVideo("222", "clean stream", "2024-03-02T10:00:00Z", "45m")
	hc := newTestClient(srv)

	t.Run("muted", func(t *testing.T) {
		v, err := hc.GetVideo(context.Background(), "111")
		if err != nil {
			t.Fatalf("GetVideo() error = %v", err)
		}
		want := []MutedSegment{{Offset: 30, Duration: 360}}
		if diff := cmp.Diff(want, v.MutedSegments); diff != "" {
			t.Errorf("muted segments mismatch (-want +got):\n%s", diff)
		}
		if v.URL != "https://www.twitch.tv/videos/111" {
			t.Errorf("URL = %q", v.URL)
		}
	})
	t.Run("unmuted", func(t *testing.T) {
		v, err := hc.GetVideo(context.Background(), "222")
		if err != nil {
			t.Fatalf("GetVideo() error = %v", err)
		}
		if len(v.MutedSegments) != 0 {
			t.Errorf("expected no muted segments, got %v", v.MutedSegments)
		}
	})
	t.Run("missing", func(t *testing.T) {
		_, err := hc.GetVideo(context.Background(), "333")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetVideo() error = %v, want ErrNotFound", err)
		}
	})
	t.Run("empty id", func(t *testing.T) {
		if _, err := hc.GetVideo(context.Background(), ""); err == nil {
			t.Fatal("expected error for empty id")
		}
	})
}

func TestHelixClient_GetVideo_EmptyDataIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()
	hc := &HelixClient{AppTokenSource: testutil.StaticToken("t"), BaseURL: server.URL}
	if _, err := hc.GetVideo(context.Background(), "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestHelixClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()
	hc := &HelixClient{AppTokenSource: testutil.StaticToken("t"), BaseURL: server.URL}
	_, err := hc.GetVideo(context.Background(), "1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want transport error", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error %q should carry the status", err)
	}
}

func TestHelixClient_Headers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Client-Id") != "cid" {
			t.Errorf("Client-Id = %q", r.Header.Get("Client-Id"))
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"9"}]}`))
	}))
	defer server.Close()
	hc := &HelixClient{AppTokenSource: testutil.StaticToken("tok"), ClientID: "cid", BaseURL: server.URL}
	if _, err := hc.GetVideo(context.Background(), "9"); err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
}

func TestHelixClient_ListVideos(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	srv.MockVideosResponse([]map[string]string{
		{"id": "1", "title": "a", "duration": "1h", "created_at": "2024-01-01T00:00:00Z", "url": "u1"},
		{"id": "2", "title": "b", "duration": "2h", "created_at": "2024-01-02T00:00:00Z", "url": "u2"},
	}, "next")
	got, cursor, err := newTestClient(srv).ListVideos(context.Background(), "42", "", 0)
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}
	want := []VideoMeta{
		{ID: "1", Title: "a", Duration: "1h", CreatedAt: "2024-01-01T00:00:00Z", URL: "u1"},
		{ID: "2", Title: "b", Duration: "2h", CreatedAt: "2024-01-02T00:00:00Z", URL: "u2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListVideos mismatch (-want +got):\n%s", diff)
	}
	if cursor != "next" {
		t.Errorf("cursor = %q, want next", cursor)
	}
	if _, _, err := newTestClient(srv).ListVideos(context.Background(), "", "", 0); err == nil {
		t.Error("expected error for empty user id")
	}
}

func TestHelixClient_LimiterHonorsContext(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	hc := newTestClient(srv)
	hc.Limiter = rate.NewLimiter(rate.Every(1e12), 1)
	hc.Limiter.Allow() // drain the only token
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := hc.GetVideo(ctx, "1"); err == nil {
		t.Fatal("expected limiter wait to fail on canceled context")
	}
	if srv.Hits() != 0 {
		t.Errorf("request should not reach the server, hits=%d", srv.Hits())
	}
}
