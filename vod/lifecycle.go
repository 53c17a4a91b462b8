package vod

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

// probeMedia fetches technical metadata for the first segment. A failed probe sets
// VideoFail2 so later loads do not retry forever. It reports whether the record changed.
func (r *Record) probeMedia(ctx context.Context) bool {
	if r.prober == nil || len(r.Segments) == 0 {
		return false
	}
	mi, err := r.prober.Probe(ctx, r.Segments[0].Filename)
	if err != nil {
		r.log.Error("could not get mediainfo", slog.String("segment", r.Segments[0].Basename), slog.Any("err", err))
		r.VideoFail2 = true
		return true
	}
	r.VideoMetadata = mi
	r.VideoFail2 = false
	if res := mi.Resolution(); res != "" && r.StreamResolution == "" {
		r.StreamResolution = res
	}
	return true
}

// Duration returns the duration in seconds, deriving it from media metadata when it
// is not stored yet. With save set, a newly derived duration is persisted.
func (r *Record) Duration(ctx context.Context, save bool) (int, bool) {
	if r.DurationSeconds > 0 {
		return r.DurationSeconds, true
	}
	if r.VideoMetadata == nil {
		switch {
		case r.IsCapturing:
			r.log.Debug("duration unknown while capturing")
			return 0, false
		case r.IsConverting:
			r.log.Debug("duration unknown while converting")
			return 0, false
		case !r.IsFinalized:
			r.log.Debug("duration unknown, vod not finalized")
			return 0, false
		}
		if !r.probeMedia(ctx) || r.VideoMetadata == nil {
			return 0, false
		}
	}
	if r.VideoMetadata.Invalid() {
		r.log.Error("invalid video metadata, file size is zero")
		return 0, false
	}
	d, ok := r.VideoMetadata.DurationSeconds()
	if !ok {
		r.log.Warn("video metadata has no duration")
		return 0, false
	}
	r.DurationSeconds = d
	if save {
		if err := r.Save(ctx, "duration save"); err != nil {
			r.log.Warn("failed to save derived duration", slog.Any("err", err))
		}
	}
	return d, true
}

// Finalize marks a converted capture as done: it drops the capture playlist, probes the
// first segment, writes the chapter cut list and persists the record.
func (r *Record) Finalize(ctx context.Context) error {
	r.log.Info("finalizing vod")
	if err := os.Remove(r.CapturePlaylist()); err != nil && !os.IsNotExist(err) {
		r.log.Warn("failed to remove capture playlist", slog.Any("err", err))
	}
	if len(r.Segments) == 0 {
		if err := r.ParseSegments(r.SegmentsRaw); err != nil {
			return err
		}
	}
	if r.VideoMetadata == nil {
		r.probeMedia(ctx)
	}
	if len(r.Chapters) == 0 && len(r.ChaptersRaw) > 0 {
		if err := r.ParseChapters(r.ChaptersRaw); err != nil {
			return err
		}
	}
	if err := r.SaveLosslessCut(ctx); err != nil && !errors.Is(err, ErrNoChapters) {
		r.log.Warn("failed to write cut list", slog.Any("err", err))
	}
	r.IsCapturing = false
	r.IsConverting = false
	r.IsFinalized = true
	if d, ok := r.VideoMetadata.DurationSeconds(); ok && r.DurationSeconds == 0 && !r.VideoMetadata.Invalid() {
		r.DurationSeconds = d
	}
	return r.Save(ctx, "finalized")
}
