package vod

import (
	"context"
	"log/slog"
)

// ActionVideoDownload is emitted when a platform download finishes, successfully or not.
const ActionVideoDownload = "video_download"

// EventDispatcher delivers pipeline events to outside consumers (webhooks).
type EventDispatcher interface {
	Dispatch(ctx context.Context, action string, payload any)
}

// DownloadFinished is the ActionVideoDownload payload. Success false is the normal
// failure signal.
type DownloadFinished struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

// LogDispatcher only logs events.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(_ context.Context, action string, payload any) {
	slog.Info("event", slog.String("component", "events"), slog.String("action", action), slog.Any("payload", payload))
}
