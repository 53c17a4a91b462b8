package vod

import (
	"fmt"
	"strings"
	"time"
)

// NiceDuration renders seconds as "1h 2m 3s", omitting leading zero units.
func NiceDuration(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if h > 0 || m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	parts = append(parts, fmt.Sprintf("%ds", s))
	return strings.Join(parts, " ")
}

// FormatDuration renders seconds as "HH:MM:SS".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

// ChapterView is a chapter as shown to API consumers.
type ChapterView struct {
	GameID       string   `json:"game_id"`
	GameName     string   `json:"game_name"`
	Title        string   `json:"title"`
	ImageURL     string   `json:"image_url"`
	Datetime     string   `json:"datetime,omitempty"`
	Offset       *float64 `json:"offset,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	NiceDuration string   `json:"nice_duration,omitempty"`
}

// SegmentView is a segment as shown to API consumers.
type SegmentView struct {
	Basename string `json:"basename"`
	Filesize int64  `json:"filesize"`
}

// View is the read-only snapshot served by the HTTP surface.
type View struct {
	Basename        string        `json:"basename"`
	Directory       string        `json:"directory"`
	StreamerName    string        `json:"streamer_name"`
	StreamerLogin   string        `json:"streamer_login"`
	IsCapturing     bool          `json:"is_capturing"`
	IsConverting    bool          `json:"is_converting"`
	IsFinalized     bool          `json:"is_finalized"`
	DurationSeconds int           `json:"duration_seconds"`
	Duration        string        `json:"duration"`
	NiceDuration    string        `json:"nice_duration"`
	TotalSize       int64         `json:"total_size"`
	GameOffset      *float64      `json:"game_offset,omitempty"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	SavedAt         *time.Time    `json:"saved_at,omitempty"`
	TwitchVODID     string        `json:"twitch_vod_id,omitempty"`
	TwitchVODURL    string        `json:"twitch_vod_url,omitempty"`
	TwitchVODTitle  string        `json:"twitch_vod_title,omitempty"`
	ExistStatus     string        `json:"twitch_vod_status"`
	MuteStatus      string        `json:"twitch_vod_muted"`
	Segments        []SegmentView `json:"segments"`
	Chapters        []ChapterView `json:"chapters"`
	Games           []Game        `json:"unique_games"`
	Files           []string      `json:"associated_files"`

	IsChatDownloaded       bool `json:"is_chat_downloaded"`
	IsVodDownloaded        bool `json:"is_vod_downloaded"`
	IsLosslessCutGenerated bool `json:"is_lossless_cut_generated"`
	IsChatdumpCaptured     bool `json:"is_chatdump_captured"`
	IsCapturePaused        bool `json:"is_capture_paused"`
	IsChatRendered         bool `json:"is_chat_rendered"`
	IsChatBurned           bool `json:"is_chat_burned"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// APIView snapshots r. The file predicates are evaluated once, here.
func (r *Record) APIView() View {
	v := View{
		Basename:        r.Basename,
		Directory:       r.Directory,
		StreamerName:    r.StreamerName,
		StreamerLogin:   r.StreamerLogin,
		IsCapturing:     r.IsCapturing,
		IsConverting:    r.IsConverting,
		IsFinalized:     r.IsFinalized,
		DurationSeconds: r.DurationSeconds,
		Duration:        FormatDuration(r.DurationSeconds),
		NiceDuration:    NiceDuration(r.DurationSeconds),
		TotalSize:       r.TotalSize,
		GameOffset:      r.GameOffset,
		StartedAt:       timePtr(r.StartedAt),
		EndedAt:         timePtr(r.EndedAt),
		SavedAt:         timePtr(r.SavedAt),
		TwitchVODID:     r.TwitchVODID,
		TwitchVODURL:    r.TwitchVODURL,
		TwitchVODTitle:  r.TwitchVODTitle,
		ExistStatus:     r.ExistStatus.String(),
		MuteStatus:      r.MuteStatus.String(),
		Segments:        make([]SegmentView, 0, len(r.Segments)),
		Chapters:        make([]ChapterView, 0, len(r.Chapters)),
		Games:           r.UniqueGames(),
		Files:           r.AssociatedFiles(),

		IsChatDownloaded:       r.IsChatDownloaded(),
		IsVodDownloaded:        r.IsVodDownloaded(),
		IsLosslessCutGenerated: r.IsLosslessCutGenerated(),
		IsChatdumpCaptured:     r.IsChatdumpCaptured(),
		IsCapturePaused:        r.IsCapturePaused(),
		IsChatRendered:         r.IsChatRendered(),
		IsChatBurned:           r.IsChatBurned(),
	}
	if v.Games == nil {
		v.Games = []Game{}
	}
	for _, s := range r.Segments {
		v.Segments = append(v.Segments, SegmentView{Basename: s.Basename, Filesize: s.Filesize})
	}
	for _, c := range r.Chapters {
		cv := ChapterView{
			GameID:   c.GameID,
			GameName: c.GameName,
			Title:    c.Title,
			ImageURL: strings.NewReplacer("{width}", "70", "{height}", "95").Replace(c.BoxArtURL),
			Offset:   c.Offset,
			Duration: c.Duration,
		}
		if !c.Datetime.IsZero() {
			cv.Datetime = c.Datetime.UTC().Format(time.RFC3339)
		}
		if c.Duration != nil {
			cv.NiceDuration = NiceDuration(int(*c.Duration))
		}
		v.Chapters = append(v.Chapters, cv)
	}
	return v
}
