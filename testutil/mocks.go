package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix API responses.
// Helix clients under test should use URL+"/helix" as their base URL and
// URL+"/oauth2/token" as the token endpoint.
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu     sync.Mutex
	videos map[string]map[string]any
	list   []map[string]any
	cursor string

	hits atomic.Int64
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
		videos:   make(map[string]map[string]any),
	}
	m.Handlers["/helix/videos"] = m.serveVideos
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.hits.Add(1)
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Hits returns the number of requests served so far.
func (m *MockTwitchServer) Hits() int { return int(m.hits.Load()) }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockUserResponse adds a handler for /helix/users endpoint
func (m *MockTwitchServer) MockUserResponse(userID, login string) {
	m.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"data": []map[string]string{
				{"id": userID, "login": login},
			},
		})
	}
}

// MockVideo registers a single video served for /helix/videos?id=<id>.
// mutedSegments is a list of {offset,duration} pairs in seconds.
func (m *MockTwitchServer) MockVideo(id, title, createdAt, duration string, mutedSegments ...[2]int) {
	segs := make([]map[string]int, 0, len(mutedSegments))
	for _, s := range mutedSegments {
		segs = append(segs, map[string]int{"offset": s[0], "duration": s[1]})
	}
	v := map[string]any{
		"id":         id,
		"title":      title,
		"created_at": createdAt,
		"duration":   duration,
		"url":        "https://www.twitch.tv/videos/" + id,
		"type":       "archive",
	}
	// Helix reports null for videos without muted segments
	if len(segs) > 0 {
		v["muted_segments"] = segs
	} else {
		v["muted_segments"] = nil
	}
	m.mu.Lock()
	m.videos[id] = v
	m.mu.Unlock()
}

// MockVideosResponse sets the archive listing served for /helix/videos?user_id=<id>.
func (m *MockTwitchServer) MockVideosResponse(videos []map[string]string, cursor string) {
	list := make([]map[string]any, 0, len(videos))
	for _, v := range videos {
		e := make(map[string]any, len(v))
		for k, val := range v {
			e[k] = val
		}
		list = append(list, e)
	}
	m.mu.Lock()
	m.list, m.cursor = list, cursor
	m.mu.Unlock()
}

func (m *MockTwitchServer) serveVideos(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ids := r.URL.Query()["id"]; len(ids) > 0 {
		data := []map[string]any{}
		for _, id := range ids {
			if v, ok := m.videos[id]; ok {
				data = append(data, v)
			}
		}
		if len(data) == 0 {
			// Helix answers unknown video ids with 404
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "Not Found", "status": 404, "message": "videos not found"}) //nolint:errcheck // test mock response
			return
		}
		writeJSON(w, map[string]any{"data": data})
		return
	}
	list := m.list
	if list == nil {
		list = []map[string]any{}
	}
	writeJSON(w, map[string]any{
		"data":       list,
		"pagination": map[string]string{"cursor": m.cursor},
	})
}

// MockOAuthTokenResponse adds a handler for OAuth token endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		})
	}
}

// StaticToken is a Tokener that always returns the same token.
type StaticToken string

func (s StaticToken) Get(context.Context) (string, error) { return string(s), nil }
