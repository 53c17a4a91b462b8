package vod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/vod-tender/archive/telemetry"
	"github.com/onnwee/vod-tender/archive/twitchapi"
)

const (
	mutedSegmentMarker = "index-muted-"
	videoNotFoundText  = "Unable to find video"
)

// muteChecker is one mute classification strategy.
type muteChecker interface {
	check(ctx context.Context, id string) (MuteStatus, error)
}

type apiMuteChecker struct{ videos VideoLookup }

func (c apiMuteChecker) check(ctx context.Context, id string) (MuteStatus, error) {
	if c.videos == nil {
		return MuteUnknown, fmt.Errorf("%w: no video lookup configured", ErrUnresolvable)
	}
	video, err := c.videos.GetVideo(ctx, id)
	switch {
	case errors.Is(err, twitchapi.ErrNotFound), err == nil && video == nil:
		return MuteUnknown, fmt.Errorf("%w: %s", ErrDeleted, id)
	case err != nil:
		return MuteUnknown, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	if len(video.MutedSegments) > 0 {
		return MuteMuted, nil
	}
	return MuteUnmuted, nil
}

type streamlinkMuteChecker struct {
	runner Runner
	bin    string
}

func (c streamlinkMuteChecker) check(ctx context.Context, id string) (MuteStatus, error) {
	runner := c.runner
	if runner == nil {
		runner = ExecRunner{}
	}
	bin := c.bin
	if bin == "" {
		bin = "streamlink"
	}
	stdout, stderr, err := runner.Run(ctx, bin, "--stream-url", "https://www.twitch.tv/videos/"+id, "best")
	out := strings.TrimSpace(string(stdout) + "\n" + string(stderr))
	switch {
	case out == "":
		if errors.Is(err, ErrToolFailure) {
			return MuteUnknown, err
		}
		return MuteUnknown, fmt.Errorf("%w: no output from streamlink", ErrUnresolvable)
	case strings.Contains(out, mutedSegmentMarker):
		return MuteMuted, nil
	case strings.Contains(out, videoNotFoundText):
		return MuteUnknown, fmt.Errorf("%w: %s", ErrDeleted, id)
	}
	return MuteUnmuted, nil
}

func (v *Verifier) muteChecker() muteChecker {
	if v.Method == MuteMethodStreamlink {
		return streamlinkMuteChecker{runner: v.Runner, bin: v.StreamlinkBin}
	}
	return apiMuteChecker{videos: v.Videos}
}

// CheckMuted classifies whether the platform muted part of r's audio using the configured
// strategy. ErrUnresolvable is returned when r has no remote id, ErrDeleted when the
// platform no longer serves the video. With save set, a changed status is persisted.
func (v *Verifier) CheckMuted(ctx context.Context, r *Record, save bool) (MuteStatus, error) {
	log := v.logger(r, "mute")
	if r.TwitchVODID == "" {
		log.Error("no remote id, cannot check mute status")
		return MuteUnknown, fmt.Errorf("%w: %s has no remote id", ErrUnresolvable, r.Basename)
	}

	ctx, span := telemetry.StartSpan(ctx, "vod", "vod.check_muted",
		attribute.String("vod", r.Basename), attribute.String("video_id", r.TwitchVODID), attribute.String("method", string(v.Method)))
	defer span.End()

	prev := r.MuteStatus
	status, err := v.muteChecker().check(ctx, r.TwitchVODID)
	if err != nil {
		telemetry.RecordError(span, err)
		switch {
		case errors.Is(err, ErrDeleted):
			log.Error("vod deleted on the platform", slog.String("video_id", r.TwitchVODID))
			telemetry.ObserveVerify("mute", "deleted")
		default:
			log.Error("mute check failed", slog.Any("err", err))
			telemetry.ObserveVerify("mute", "unresolvable")
		}
		return MuteUnknown, err
	}

	r.MuteStatus = status
	telemetry.ObserveVerify("mute", status.String())
	if status == MuteMuted {
		log.Warn("vod is muted", slog.String("video_id", r.TwitchVODID))
	} else {
		log.Info("vod is not muted", slog.String("video_id", r.TwitchVODID))
	}
	if save && prev != status {
		reason := "vod mute false"
		if status == MuteMuted {
			reason = "vod mute true"
		}
		if err := r.Save(ctx, reason); err != nil {
			return status, err
		}
	}
	return status, nil
}
