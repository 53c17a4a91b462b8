package vod

import "log/slog"

// ExistStatus classifies whether the platform-hosted copy of a VOD is retrievable.
// Numeric values are persisted in descriptions and must not change.
type ExistStatus int

const (
	ExistExists       ExistStatus = 1
	ExistNotExists    ExistStatus = 2
	ExistNeverExisted ExistStatus = 3
	ExistUnknown      ExistStatus = 4
)

func (s ExistStatus) String() string {
	switch s {
	case ExistExists:
		return "exists"
	case ExistNotExists:
		return "not_exists"
	case ExistNeverExisted:
		return "never_existed"
	default:
		return "unknown"
	}
}

func (s ExistStatus) valid() bool { return s >= ExistExists && s <= ExistUnknown }

// MuteStatus classifies whether the platform muted part of a VOD's audio.
type MuteStatus int

const (
	MuteUnmuted MuteStatus = 1
	MuteMuted   MuteStatus = 2
	MuteUnknown MuteStatus = 3
)

func (s MuteStatus) String() string {
	switch s {
	case MuteUnmuted:
		return "unmuted"
	case MuteMuted:
		return "muted"
	default:
		return "unknown"
	}
}

func (s MuteStatus) valid() bool { return s >= MuteUnmuted && s <= MuteUnknown }

// LevelFatal is logged when an action is refused outright (e.g. saving without a streamer).
const LevelFatal = slog.LevelError + 4

// Quality names accepted by the downloader, best first.
var Qualities = []string{"best", "1080p60", "1080p", "720p60", "720p", "480p", "360p", "160p", "140p", "worst"}

// ValidQuality reports whether q is one of Qualities.
func ValidQuality(q string) bool {
	for _, v := range Qualities {
		if v == q {
			return true
		}
	}
	return false
}
