package vod

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/vod-tender/archive/telemetry"
)

// MediaInfo is the technical metadata of the first segment, as persisted in
// video_metadata. Values stay strings the way the probe reports them.
type MediaInfo struct {
	General MediaGeneral `json:"general"`
	Video   *MediaVideo  `json:"video,omitempty"`
	Audio   *MediaAudio  `json:"audio,omitempty"`
}

type MediaGeneral struct {
	Format         string `json:"Format,omitempty"`
	Duration       string `json:"Duration,omitempty"`
	FileSize       string `json:"FileSize,omitempty"`
	OverallBitRate string `json:"OverallBitRate,omitempty"`
}

type MediaVideo struct {
	Format    string `json:"Format,omitempty"`
	Width     string `json:"Width,omitempty"`
	Height    string `json:"Height,omitempty"`
	FrameRate string `json:"FrameRate,omitempty"`
	BitRate   string `json:"BitRate,omitempty"`
}

type MediaAudio struct {
	Format       string `json:"Format,omitempty"`
	Channels     string `json:"Channels,omitempty"`
	SamplingRate string `json:"SamplingRate,omitempty"`
	BitRate      string `json:"BitRate,omitempty"`
}

// DurationSeconds returns the general track duration truncated to whole seconds.
func (m *MediaInfo) DurationSeconds() (int, bool) {
	if m == nil || m.General.Duration == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m.General.Duration, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int(f), true
}

// Invalid reports metadata that describes an empty file.
func (m *MediaInfo) Invalid() bool {
	return m != nil && m.General.FileSize == "0"
}

// Resolution is "WIDTHxHEIGHT" when the video track is known.
func (m *MediaInfo) Resolution() string {
	if m == nil || m.Video == nil || m.Video.Width == "" || m.Video.Height == "" {
		return ""
	}
	return m.Video.Width + "x" + m.Video.Height
}

// Prober extracts technical metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*MediaInfo, error)
}

// MediainfoProber runs `mediainfo --Output=JSON` against a file.
type MediainfoProber struct {
	Bin    string
	Runner Runner
}

func (p MediainfoProber) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	ctx, span := telemetry.StartSpan(ctx, "vod", "mediainfo.probe", attribute.String("path", path))
	defer span.End()

	bin := p.Bin
	if bin == "" {
		bin = "mediainfo"
	}
	runner := p.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	stdout, stderr, err := runner.Run(ctx, bin, "--Output=JSON", path)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: mediainfo: %v: %s", ErrToolFailure, err, strings.TrimSpace(string(stderr)))
	}
	mi, err := parseMediainfoJSON(stdout)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return mi, nil
}

// parseMediainfoJSON maps mediainfo's track list onto MediaInfo. Only the first
// track of each type is kept.
func parseMediainfoJSON(data []byte) (*MediaInfo, error) {
	var doc struct {
		Media *struct {
			Track []map[string]any `json:"track"`
		} `json:"media"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: mediainfo output: %v", ErrToolFailure, err)
	}
	if doc.Media == nil || len(doc.Media.Track) == 0 {
		return nil, fmt.Errorf("%w: mediainfo reported no tracks", ErrToolFailure)
	}
	str := func(t map[string]any, k string) string {
		switch v := t[k].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		return ""
	}
	mi := &MediaInfo{}
	general := false
	for _, t := range doc.Media.Track {
		switch str(t, "@type") {
		case "General":
			if general {
				continue
			}
			general = true
			mi.General = MediaGeneral{
				Format:         str(t, "Format"),
				Duration:       str(t, "Duration"),
				FileSize:       str(t, "FileSize"),
				OverallBitRate: str(t, "OverallBitRate"),
			}
		case "Video":
			if mi.Video == nil {
				mi.Video = &MediaVideo{
					Format:    str(t, "Format"),
					Width:     str(t, "Width"),
					Height:    str(t, "Height"),
					FrameRate: str(t, "FrameRate"),
					BitRate:   str(t, "BitRate"),
				}
			}
		case "Audio":
			if mi.Audio == nil {
				mi.Audio = &MediaAudio{
					Format:       str(t, "Format"),
					Channels:     str(t, "Channels"),
					SamplingRate: str(t, "SamplingRate"),
					BitRate:      str(t, "BitRate"),
				}
			}
		}
	}
	if !general {
		return nil, fmt.Errorf("%w: mediainfo reported no general track", ErrToolFailure)
	}
	return mi, nil
}
