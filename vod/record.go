// Package vod owns the lifecycle of a captured broadcast: its persisted description,
// segment and chapter bookkeeping, remote status verification, the platform download
// pipeline and the file set that belongs to it.
package vod

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/onnwee/vod-tender/archive/telemetry"
)

// timeNow is swapped in tests.
var timeNow = time.Now

// Indexer mirrors saved records into a queryable store. Failures never block a save.
type Indexer interface {
	UpsertRecord(ctx context.Context, s Summary) error
	DeleteRecord(ctx context.Context, basename string) error
}

// Summary is the indexed projection of a record.
type Summary struct {
	Basename        string      `json:"basename"`
	Directory       string      `json:"directory"`
	StreamerName    string      `json:"streamer_name"`
	StreamerLogin   string      `json:"streamer_login"`
	TwitchVODID     string      `json:"twitch_vod_id,omitempty"`
	ExistStatus     ExistStatus `json:"exist_status"`
	MuteStatus      MuteStatus  `json:"mute_status"`
	IsFinalized     bool        `json:"is_finalized"`
	DurationSeconds int         `json:"duration_seconds"`
	TotalSize       int64       `json:"total_size"`
	StartedAt       time.Time   `json:"started_at"`
	SavedAt         time.Time   `json:"saved_at"`
}

// Record is one VOD. A resident Record is shared through the Registry; callers that
// read-verify-write must hold Lock for the whole sequence.
type Record struct {
	mu sync.Mutex

	Filename  string
	Basename  string
	Directory string
	CaptureID string

	StreamerName     string
	StreamerID       string
	StreamerLogin    string
	StreamResolution string

	SegmentsRaw []string
	Segments    []Segment
	TotalSize   int64

	ChaptersRaw []RawChapter
	Chapters    []Chapter
	// GameOffset is the first chapter's offset in seconds, nil when unknown.
	GameOffset *float64

	IsCapturing  bool
	IsConverting bool
	IsFinalized  bool

	// DurationSeconds is authoritative once non-zero.
	DurationSeconds int
	VideoMetadata   *MediaInfo
	VideoFail2      bool
	ForceRecord     bool
	AutomatorFail   bool

	StartedAt           time.Time
	EndedAt             time.Time
	SavedAt             time.Time
	CaptureStartedAt    time.Time
	ConversionStartedAt time.Time

	TwitchVODID         string
	TwitchVODURL        string
	TwitchVODTitle      string
	TwitchVODDate       string
	TwitchVODDuration   int
	TwitchVODExists     *bool
	TwitchVODAttempted  *bool
	TwitchVODNeverSaved *bool
	ExistStatus         ExistStatus
	MuteStatus          MuteStatus

	// Created is set for records made by Registry.Create rather than loaded.
	Created bool

	raw      map[string]json.RawMessage
	hashMu   sync.Mutex
	lastHash [sha256.Size]byte
	prober   Prober
	index    Indexer
	log      *slog.Logger
}

func newRecord(filename string, prober Prober, index Indexer, logger *slog.Logger) *Record {
	base := basenameOf(filename)
	if logger == nil {
		logger = slog.Default()
	}
	return &Record{
		Filename:    filename,
		Basename:    base,
		Directory:   filepath.Dir(filename),
		ExistStatus: ExistUnknown,
		MuteStatus:  MuteUnknown,
		prober:      prober,
		index:       index,
		log:         logger.With(slog.String("component", "vod"), slog.String("vod", base)),
	}
}

// Lock serializes verify-then-save sequences on a shared record.
func (r *Record) Lock() { r.mu.Lock() }

// Unlock releases Lock.
func (r *Record) Unlock() { r.mu.Unlock() }

// Path returns name resolved inside the record's directory.
func (r *Record) Path(name string) string {
	return filepath.Join(r.Directory, name)
}

// ContentHash is the sha256 of the description bytes last read or written by this record.
func (r *Record) ContentHash() [sha256.Size]byte {
	r.hashMu.Lock()
	defer r.hashMu.Unlock()
	return r.lastHash
}

func (r *Record) setContent(data []byte) {
	h := sha256.Sum256(data)
	r.hashMu.Lock()
	r.lastHash = h
	r.hashMu.Unlock()
}

func boolPtr(b bool) *bool { return &b }

func (r *Record) applyDescription(d *description, raw map[string]json.RawMessage) {
	r.raw = raw
	r.CaptureID = d.CaptureID
	r.StreamResolution = d.StreamResolution
	r.StreamerName = d.StreamerName
	r.StreamerID = string(d.StreamerID)
	r.StreamerLogin = d.StreamerLogin

	r.SegmentsRaw = make([]string, 0, len(d.SegmentsRaw))
	for _, m := range d.SegmentsRaw {
		var s string
		if err := json.Unmarshal(m, &s); err != nil {
			// not a path reference; ParseSegments treats "" as malformed
			s = ""
		}
		r.SegmentsRaw = append(r.SegmentsRaw, s)
	}
	r.ChaptersRaw = d.ChaptersRaw

	r.IsCapturing = d.IsCapturing
	r.IsConverting = d.IsConverting
	r.IsFinalized = d.IsFinalized
	if d.DurationSeconds != nil && *d.DurationSeconds > 0 {
		r.DurationSeconds = int(*d.DurationSeconds)
	}
	r.VideoMetadata = d.VideoMetadata
	r.VideoFail2 = d.VideoFail2
	r.ForceRecord = d.ForceRecord
	r.AutomatorFail = d.AutomatorFail

	for _, f := range []struct {
		name string
		src  *phpDate
		dst  *time.Time
	}{
		{"saved_at", d.SavedAt, &r.SavedAt},
		{"dt_capture_started", d.CaptureStarted, &r.CaptureStartedAt},
		{"dt_conversion_started", d.ConversionStarted, &r.ConversionStartedAt},
		{"dt_started_at", d.StartedAt, &r.StartedAt},
		{"dt_ended_at", d.EndedAt, &r.EndedAt},
	} {
		t, err := f.src.decode()
		if err != nil {
			r.log.Warn("unparseable timestamp, leaving unset", slog.String("field", f.name), slog.Any("err", err))
			continue
		}
		*f.dst = t
	}

	r.TwitchVODID = string(d.TwitchVODID)
	r.TwitchVODURL = d.TwitchVODURL
	r.TwitchVODTitle = d.TwitchVODTitle
	r.TwitchVODDate = d.TwitchVODDate
	if d.TwitchVODDuration != nil {
		r.TwitchVODDuration = *d.TwitchVODDuration
	}
	r.TwitchVODExists = d.TwitchVODExists
	r.TwitchVODAttempted = d.TwitchVODAttempted
	r.TwitchVODNeverSaved = d.TwitchVODNeverSaved
	r.ExistStatus = resolveExistStatus(d.TwitchVODStatus, d.TwitchVODNeverSaved, d.TwitchVODExists)
	r.MuteStatus = MuteUnknown
	if d.TwitchVODMuted != nil {
		r.MuteStatus = d.TwitchVODMuted.Status
	}
}

func (r *Record) toDescription() *description {
	d := &description{
		SchemaVersion:    schemaVersion,
		CaptureID:        r.CaptureID,
		StreamResolution: r.StreamResolution,
		StreamerName:     r.StreamerName,
		StreamerID:       FlexID(r.StreamerID),
		StreamerLogin:    r.StreamerLogin,
		ChaptersRaw:      r.ChaptersRaw,
		SegmentsRaw:      make([]json.RawMessage, 0, len(r.SegmentsRaw)),
		IsCapturing:      r.IsCapturing,
		IsConverting:     r.IsConverting,
		IsFinalized:      r.IsFinalized,
		VideoMetadata:    r.VideoMetadata,
		VideoFail2:       r.VideoFail2,
		ForceRecord:      r.ForceRecord,
		AutomatorFail:    r.AutomatorFail,

		SavedAt:           encodeDate(r.SavedAt),
		CaptureStarted:    encodeDate(r.CaptureStartedAt),
		ConversionStarted: encodeDate(r.ConversionStartedAt),
		StartedAt:         encodeDate(r.StartedAt),
		EndedAt:           encodeDate(r.EndedAt),

		TwitchVODID:         FlexID(r.TwitchVODID),
		TwitchVODURL:        r.TwitchVODURL,
		TwitchVODTitle:      r.TwitchVODTitle,
		TwitchVODDate:       r.TwitchVODDate,
		TwitchVODExists:     r.TwitchVODExists,
		TwitchVODAttempted:  r.TwitchVODAttempted,
		TwitchVODNeverSaved: r.TwitchVODNeverSaved,
		TwitchVODMuted:      &muteField{Status: r.MuteStatus, Set: true},
	}
	if d.ChaptersRaw == nil {
		d.ChaptersRaw = []RawChapter{}
	}
	for _, s := range r.SegmentsRaw {
		b, _ := json.Marshal(s)
		d.SegmentsRaw = append(d.SegmentsRaw, b)
	}
	if r.DurationSeconds > 0 {
		v := float64(r.DurationSeconds)
		d.DurationSeconds = &v
	}
	if r.TwitchVODDuration > 0 {
		v := r.TwitchVODDuration
		d.TwitchVODDuration = &v
	}
	st := int(r.ExistStatus)
	d.TwitchVODStatus = &st
	return d
}

// Save persists the record, merging owned fields over the last loaded document.
// reason is logged for observability only.
func (r *Record) Save(ctx context.Context, reason string) error {
	log := r.log.With(slog.String("reason", reason))
	if r.Filename == "" {
		log.Error("no filename bound, cannot save")
		telemetry.ObserveSave("no_filename")
		return ErrNoFilename
	}
	if !r.IsFinalized {
		log.Warn("saving description of non-finalized vod")
	}
	if len(r.Chapters) == 0 && len(r.ChaptersRaw) == 0 {
		log.Warn("saving description with no chapters")
	}
	if r.StreamerName == "" && !r.Created {
		log.Log(ctx, LevelFatal, "found no streamer name in class, refusing to save")
		telemetry.ObserveSave("refused")
		return ErrNoStreamer
	}

	prevSaved := r.SavedAt
	r.SavedAt = timeNow()
	data, err := mergeDescription(r.raw, r.toDescription())
	if err != nil {
		r.SavedAt = prevSaved
		telemetry.ObserveSave("error")
		return fmt.Errorf("encode description: %w", err)
	}
	if err := writeFileAtomic(r.Filename, data); err != nil {
		r.SavedAt = prevSaved
		log.Error("failed to write description", slog.Any("err", err))
		telemetry.ObserveSave("error")
		return err
	}
	r.setContent(data)
	log.Debug("saved description", slog.String("file", r.Filename))
	telemetry.ObserveSave("ok")

	if r.index != nil {
		if err := r.index.UpsertRecord(ctx, r.Summary()); err != nil {
			log.Warn("index upsert failed", slog.Any("err", err))
		}
	}
	return nil
}

// Summary returns the indexed projection.
func (r *Record) Summary() Summary {
	return Summary{
		Basename:        r.Basename,
		Directory:       r.Directory,
		StreamerName:    r.StreamerName,
		StreamerLogin:   r.StreamerLogin,
		TwitchVODID:     r.TwitchVODID,
		ExistStatus:     r.ExistStatus,
		MuteStatus:      r.MuteStatus,
		IsFinalized:     r.IsFinalized,
		DurationSeconds: r.DurationSeconds,
		TotalSize:       r.TotalSize,
		StartedAt:       r.StartedAt,
		SavedAt:         r.SavedAt,
	}
}

// writeFileAtomic replaces path with data via a synced temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			slog.Debug("cleanup pending file", slog.String("path", path), slog.Any("err", err))
		}
	}()
	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
