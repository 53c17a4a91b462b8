// Package twitchapi contains minimal helpers to interact with Twitch Helix APIs
// for user id resolution, archive listing and single video lookup, using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Helix API root.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// ErrNotFound is returned when Helix has no object for the requested id.
var ErrNotFound = errors.New("twitchapi: not found")

// Tokener supplies bearer tokens. *TokenSource implements it.
type Tokener interface {
	Get(ctx context.Context) (string, error)
}

// HelixClient provides the Helix calls needed for VOD verification and matching.
type HelixClient struct {
	AppTokenSource Tokener
	ClientID       string
	HTTPClient     *http.Client
	BaseURL        string
	// Limiter throttles outgoing requests; nil means unthrottled.
	Limiter *rate.Limiter
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) base() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return DefaultBaseURL
}

// get performs an authenticated GET against path and decodes the JSON body into out.
func (hc *HelixClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if hc.Limiter != nil {
		if err := hc.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.base()+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("helix %s: %s: %s", path, resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "/users", url.Values{"login": {login}}, &body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("user not found")
	}
	return body.Data[0].ID, nil
}

// MutedSegment is one muted span of a video, in seconds.
type MutedSegment struct {
	Duration int `json:"duration"`
	Offset   int `json:"offset"`
}

// Video is a Helix video object.
type Video struct {
	ID            string         `json:"id"`
	StreamID      string         `json:"stream_id"`
	UserID        string         `json:"user_id"`
	UserLogin     string         `json:"user_login"`
	UserName      string         `json:"user_name"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	CreatedAt     string         `json:"created_at"`
	PublishedAt   string         `json:"published_at"`
	URL           string         `json:"url"`
	Type          string         `json:"type"`
	Duration      string         `json:"duration"`
	ViewCount     int            `json:"view_count"`
	MutedSegments []MutedSegment `json:"muted_segments"`
}

// GetVideo looks up a single video by id. A missing video yields ErrNotFound.
func (hc *HelixClient) GetVideo(ctx context.Context, id string) (*Video, error) {
	if id == "" {
		return nil, fmt.Errorf("video id empty")
	}
	var body struct {
		Data []Video `json:"data"`
	}
	if err := hc.get(ctx, "/videos", url.Values{"id": {id}}, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, ErrNotFound
	}
	return &body.Data[0], nil
}

// VideoMeta is the subset of an archive listing entry used for matching.
type VideoMeta struct{ ID, Title, Duration, CreatedAt, URL string }

// ListVideos lists archive videos for a user.
func (hc *HelixClient) ListVideos(ctx context.Context, userID, after string, first int) ([]VideoMeta, string, error) {
	if userID == "" {
		return nil, "", fmt.Errorf("userID empty")
	}
	if first <= 0 {
		first = 20
	}
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("type", "archive")
	q.Set("first", strconv.Itoa(first))
	if after != "" {
		q.Set("after", after)
	}
	var body struct {
		Data       []Video `json:"data"`
		Pagination struct {
			Cursor string `json:"cursor"`
		} `json:"pagination"`
	}
	if err := hc.get(ctx, "/videos", q, &body); err != nil {
		return nil, "", err
	}
	out := make([]VideoMeta, 0, len(body.Data))
	for _, v := range body.Data {
		out = append(out, VideoMeta{ID: v.ID, Title: v.Title, Duration: v.Duration, CreatedAt: v.CreatedAt, URL: v.URL})
	}
	return out, body.Pagination.Cursor, nil
}
