package vod

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/vod-tender/archive/telemetry"
	"github.com/onnwee/vod-tender/archive/twitchapi"
)

// VideoLookup fetches a platform video by id. A missing video is twitchapi.ErrNotFound.
type VideoLookup interface {
	GetVideo(ctx context.Context, id string) (*twitchapi.Video, error)
}

// MuteMethod selects the mute verification strategy.
type MuteMethod string

const (
	MuteMethodAPI        MuteMethod = "api"
	MuteMethodStreamlink MuteMethod = "streamlink"
)

// Verifier classifies the remote state of records. Both checks mutate the record in
// place; callers sharing a record hold its Lock around a check with save enabled.
type Verifier struct {
	Videos        VideoLookup
	Runner        Runner
	StreamlinkBin string
	Method        MuteMethod
	Logger        *slog.Logger
}

func (v *Verifier) logger(r *Record, kind string) *slog.Logger {
	l := v.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("component", "vod_verify"), slog.String("check", kind), slog.String("vod", r.Basename))
}

// CheckValid reports whether the platform copy of r still exists and updates
// ExistStatus. It returns ErrNotFinalized without any lookup for unfinished records.
// NEVER_EXISTED is only entered from a record without a remote id and is never left.
// A failed lookup is not an error: it returns false and leaves ExistStatus as it was.
func (v *Verifier) CheckValid(ctx context.Context, r *Record, save bool) (bool, error) {
	exists, _, err := v.checkValid(ctx, r, save)
	return exists, err
}

// checkValid is CheckValid that also reports whether the platform answered.
func (v *Verifier) checkValid(ctx context.Context, r *Record, save bool) (exists, resolved bool, err error) {
	log := v.logger(r, "exist")
	if !r.IsFinalized {
		log.Debug("vod not finalized, skipping existence check")
		return false, false, ErrNotFinalized
	}

	if r.TwitchVODID == "" {
		if r.TwitchVODNeverSaved != nil && *r.TwitchVODNeverSaved {
			prev, prevExists := r.ExistStatus, r.TwitchVODExists
			if prev == ExistUnknown || prev == ExistNeverExisted {
				r.ExistStatus = ExistNeverExisted
			}
			r.TwitchVODExists = boolPtr(false)
			changed := prev != r.ExistStatus || prevExists == nil || *prevExists
			log.Info("vod was never saved on the platform", slog.Bool("changed", changed))
			telemetry.ObserveVerify("exist", r.ExistStatus.String())
			if save && changed {
				if err := r.Save(ctx, "vod check neversaved"); err != nil {
					return false, true, err
				}
			}
			return false, true, nil
		}
		log.Info("vod has no remote id, cannot check existence")
		return false, false, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "vod", "vod.check_valid", attribute.String("vod", r.Basename), attribute.String("video_id", r.TwitchVODID))
	defer span.End()

	prev := r.ExistStatus
	video, lerr := v.Videos.GetVideo(ctx, r.TwitchVODID)
	switch {
	case lerr == nil && video != nil:
		exists = true
	case lerr == nil, errors.Is(lerr, twitchapi.ErrNotFound):
		exists = false
	default:
		telemetry.RecordError(span, lerr)
		log.Error("video lookup failed, existence unknown", slog.Any("err", lerr), slog.String("status", r.ExistStatus.String()))
		telemetry.ObserveVerify("exist", "unresolvable")
		return false, false, nil
	}

	if prev != ExistNeverExisted {
		if exists {
			r.ExistStatus = ExistExists
		} else {
			r.ExistStatus = ExistNotExists
		}
	}
	r.TwitchVODExists = boolPtr(exists)
	telemetry.ObserveVerify("exist", r.ExistStatus.String())

	if exists {
		log.Info("vod exists on the platform", slog.String("video_id", r.TwitchVODID))
	} else {
		log.Warn("vod no longer exists on the platform", slog.String("video_id", r.TwitchVODID))
	}
	if save && prev != r.ExistStatus {
		reason := "vod check true"
		if !exists {
			reason = "vod check false"
		}
		if err := r.Save(ctx, reason); err != nil {
			return exists, true, err
		}
	}
	return exists, true, nil
}
