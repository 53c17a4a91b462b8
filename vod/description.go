package vod

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Persisted descriptions are one JSON document per VOD. Every format quirk of older
// writers (boolean mute flags, the "chapters" key, numeric ids) is handled here and
// nowhere else; the Record only ever sees normalized values.

const (
	// schemaVersion is stamped on every save. Documents without it are legacy.
	schemaVersion = 2

	phpDateLayout     = "2006-01-02 15:04:05.000000"
	phpDateParse      = "2006-01-02 15:04:05"
	chapterTimeLayout = "2006-01-02T15:04:05Z"
)

// phpDate is the persisted timestamp shape: {"date":"...","timezone_type":3,"timezone":"UTC"}.
type phpDate struct {
	Date         string `json:"date"`
	TimezoneType int    `json:"timezone_type"`
	Timezone     string `json:"timezone"`
}

func encodeDate(t time.Time) *phpDate {
	if t.IsZero() {
		return nil
	}
	return &phpDate{Date: t.UTC().Format(phpDateLayout), TimezoneType: 3, Timezone: "UTC"}
}

func (p *phpDate) decode() (time.Time, error) {
	if p == nil || p.Date == "" {
		return time.Time{}, nil
	}
	loc := time.UTC
	if p.Timezone != "" && p.Timezone != "UTC" {
		if l, err := time.LoadLocation(p.Timezone); err == nil {
			loc = l
		} else if off, err := time.Parse("-07:00", p.Timezone); err == nil {
			_, secs := off.Zone()
			loc = time.FixedZone(p.Timezone, secs)
		}
	}
	// the parse layout has no fraction; Go accepts one after the seconds field anyway
	t, err := time.ParseInLocation(phpDateParse, p.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", p.Date, err)
	}
	return t, nil
}

// parseChapterTime accepts the platform's event time format and falls back to RFC 3339.
func parseChapterTime(s string) (time.Time, error) {
	if t, err := time.Parse(chapterTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// FlexID is an id that older writers stored either as a number or a string.
// It encodes back as a number when the value is purely numeric.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("id must be string or number: %w", err)
		}
		*f = FlexID(n.String())
	}
	return nil
}

func (f FlexID) MarshalJSON() ([]byte, error) {
	s := string(f)
	if s != "" && strings.Trim(s, "0123456789") == "" && len(s) < 16 {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// muteField is the persisted mute status: legacy writers used true/false/null,
// current writers use the numeric MuteStatus.
type muteField struct {
	Status MuteStatus
	Set    bool
}

func (m *muteField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "null", "":
		*m = muteField{Status: MuteUnknown, Set: true}
		return nil
	case "true":
		*m = muteField{Status: MuteMuted, Set: true}
		return nil
	case "false":
		*m = muteField{Status: MuteUnmuted, Set: true}
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("twitch_vod_muted: %w", err)
	}
	st := MuteStatus(n)
	if !st.valid() {
		st = MuteUnknown
	}
	*m = muteField{Status: st, Set: true}
	return nil
}

func (m muteField) MarshalJSON() ([]byte, error) {
	st := m.Status
	if !st.valid() {
		st = MuteUnknown
	}
	return json.Marshal(int(st))
}

// RawChapter is one chapter event as written by the capture process.
type RawChapter struct {
	Time        string `json:"time"`
	GameID      FlexID `json:"game_id"`
	GameName    string `json:"game_name"`
	Title       string `json:"title"`
	IsMature    bool   `json:"is_mature"`
	Online      bool   `json:"online"`
	ViewerCount int    `json:"viewer_count"`
	BoxArtURL   string `json:"box_art_url,omitempty"`
}

// description is the owned subset of the persisted document. Keys not listed here
// (raw platform metadata and the like) are carried through untouched on save.
type description struct {
	SchemaVersion    int    `json:"schema_version,omitempty"`
	CaptureID        string `json:"capture_id,omitempty"`
	StreamResolution string `json:"stream_resolution"`

	StreamerName  string `json:"streamer_name"`
	StreamerID    FlexID `json:"streamer_id"`
	StreamerLogin string `json:"streamer_login"`

	ChaptersRaw []RawChapter `json:"chapters_raw"`
	// Chapters is the pre-chapters_raw key; read only.
	Chapters    []RawChapter     `json:"chapters,omitempty"`
	SegmentsRaw []json.RawMessage `json:"segments_raw"`

	IsCapturing  bool `json:"is_capturing"`
	IsConverting bool `json:"is_converting"`
	IsFinalized  bool `json:"is_finalized"`

	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	VideoMetadata   *MediaInfo `json:"video_metadata,omitempty"`
	VideoFail2      bool       `json:"video_fail2"`
	ForceRecord     bool       `json:"force_record"`
	AutomatorFail   bool       `json:"automator_fail"`

	SavedAt           *phpDate `json:"saved_at,omitempty"`
	CaptureStarted    *phpDate `json:"dt_capture_started,omitempty"`
	ConversionStarted *phpDate `json:"dt_conversion_started,omitempty"`
	StartedAt         *phpDate `json:"dt_started_at,omitempty"`
	EndedAt           *phpDate `json:"dt_ended_at,omitempty"`

	TwitchVODID         FlexID     `json:"twitch_vod_id,omitempty"`
	TwitchVODURL        string     `json:"twitch_vod_url,omitempty"`
	TwitchVODDuration   *int       `json:"twitch_vod_duration,omitempty"`
	TwitchVODTitle      string     `json:"twitch_vod_title,omitempty"`
	TwitchVODDate       string     `json:"twitch_vod_date,omitempty"`
	TwitchVODExists     *bool      `json:"twitch_vod_exists"`
	TwitchVODAttempted  *bool      `json:"twitch_vod_attempted"`
	TwitchVODNeverSaved *bool      `json:"twitch_vod_neversaved"`
	TwitchVODMuted      *muteField `json:"twitch_vod_muted"`
	TwitchVODStatus     *int       `json:"twitch_vod_status,omitempty"`
}

// decodeDescription parses data into the owned subset and the full raw key map.
func decodeDescription(data []byte) (*description, map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("%w: document is null", ErrMalformed)
	}
	var d description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if d.SchemaVersion == 0 && len(d.ChaptersRaw) == 0 && len(d.Chapters) > 0 {
		d.ChaptersRaw = d.Chapters
	}
	d.Chapters = nil
	return &d, raw, nil
}

// resolveExistStatus applies the load precedence: explicit stored status, then the
// never-saved flag, then the stored exists boolean, then unknown.
func resolveExistStatus(stored *int, neverSaved, exists *bool) ExistStatus {
	switch {
	case stored != nil && ExistStatus(*stored).valid():
		return ExistStatus(*stored)
	case neverSaved != nil && *neverSaved:
		return ExistNeverExisted
	case exists != nil && *exists:
		return ExistExists
	case exists != nil:
		return ExistNotExists
	default:
		return ExistUnknown
	}
}

// mergeDescription overlays the owned fields of d onto base and returns the document bytes.
func mergeDescription(base map[string]json.RawMessage, d *description) ([]byte, error) {
	owned, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(owned, &overlay); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	delete(out, "chapters")
	for k, v := range overlay {
		out[k] = v
	}
	return json.MarshalIndent(out, "", "    ")
}
