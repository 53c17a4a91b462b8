package vod

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/vod-tender/archive/twitchapi"
)

// VideoLister is the archive listing side of the Helix client.
type VideoLister interface {
	GetUserID(ctx context.Context, login string) (string, error)
	ListVideos(ctx context.Context, userID, after string, first int) ([]twitchapi.VideoMeta, string, error)
}

// Matcher links captured records to the platform's own archive of the same broadcast.
type Matcher struct {
	Videos VideoLister
	// Window is the allowed distance between the capture start and the archive's
	// created_at. Zero means five minutes.
	Window time.Duration
	// MaxPages bounds how far back the archive is paged. Zero means five pages.
	MaxPages int
	// PageDelay spaces archive page requests.
	PageDelay time.Duration
}

// MatchProviderVod searches the streamer's archive for a video created within Window of
// r.StartedAt. A match fills the twitch_vod_* fields; no match flags the record as never
// saved on the platform. Records that already carry a remote id are left alone.
func (m *Matcher) MatchProviderVod(ctx context.Context, r *Record, save bool) (bool, error) {
	log := r.log.With(slog.String("component", "vod_match"))
	if r.TwitchVODID != "" {
		log.Debug("vod already matched", slog.String("video_id", r.TwitchVODID))
		return true, nil
	}
	if r.StartedAt.IsZero() {
		return false, fmt.Errorf("%w: %s has no start time", ErrUnresolvable, r.Basename)
	}
	userID := r.StreamerID
	if userID == "" {
		if r.StreamerLogin == "" {
			return false, fmt.Errorf("%w: %s", ErrNoStreamer, r.Basename)
		}
		id, err := m.Videos.GetUserID(ctx, r.StreamerLogin)
		if err != nil {
			return false, fmt.Errorf("%w: resolve %s: %v", ErrUnresolvable, r.StreamerLogin, err)
		}
		userID = id
	}
	window := m.Window
	if window <= 0 {
		window = 5 * time.Minute
	}
	pages := m.MaxPages
	if pages <= 0 {
		pages = 5
	}

	var found *twitchapi.VideoMeta
	after := ""
search:
	for page := 0; page < pages; page++ {
		videos, cursor, err := m.Videos.ListVideos(ctx, userID, after, 100)
		if err != nil {
			return false, fmt.Errorf("%w: list videos: %v", ErrUnresolvable, err)
		}
		for i := range videos {
			created, err := time.Parse(time.RFC3339, videos[i].CreatedAt)
			if err != nil {
				continue
			}
			diff := created.Sub(r.StartedAt)
			if diff < 0 {
				diff = -diff
			}
			if diff <= window {
				found = &videos[i]
				break search
			}
			// archives are listed newest first
			if created.Before(r.StartedAt.Add(-window)) {
				break search
			}
		}
		if cursor == "" || len(videos) == 0 {
			break
		}
		after = cursor
		if m.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(m.PageDelay):
			}
		}
	}

	r.TwitchVODAttempted = boolPtr(true)
	if found == nil {
		log.Warn("no matching platform vod found", slog.Time("started_at", r.StartedAt))
		r.TwitchVODNeverSaved = boolPtr(true)
		r.TwitchVODExists = boolPtr(false)
		if r.ExistStatus == ExistUnknown {
			r.ExistStatus = ExistNeverExisted
		}
		if save {
			if err := r.Save(ctx, "match provider vod failed"); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	log.Info("matched platform vod", slog.String("video_id", found.ID), slog.String("title", found.Title))
	r.TwitchVODID = found.ID
	r.TwitchVODURL = found.URL
	if r.TwitchVODURL == "" {
		r.TwitchVODURL = "https://www.twitch.tv/videos/" + found.ID
	}
	r.TwitchVODDuration = parseTwitchDuration(found.Duration)
	r.TwitchVODTitle = found.Title
	r.TwitchVODDate = found.CreatedAt
	r.TwitchVODNeverSaved = boolPtr(false)
	r.TwitchVODExists = boolPtr(true)
	r.ExistStatus = ExistExists
	if save {
		if err := r.Save(ctx, "match provider vod"); err != nil {
			return true, err
		}
	}
	return true, nil
}

// parseTwitchDuration converts Helix durations like "1h2m3s" to seconds.
func parseTwitchDuration(s string) int {
	var total, n int
	digits := false
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
			digits = true
			continue
		}
		if !digits {
			continue
		}
		switch c {
		case 'h':
			total += n * 3600
		case 'm':
			total += n * 60
		case 's':
			total += n
		}
		n, digits = 0, false
	}
	return total
}
