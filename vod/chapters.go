package vod

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Chapter is a game/category span of the broadcast. Offset and Duration are seconds
// and stay nil until they can be derived.
type Chapter struct {
	GameID      string
	GameName    string
	Title       string
	BoxArtURL   string
	IsMature    bool
	Online      bool
	ViewerCount int
	Datetime    time.Time
	Offset      *float64
	Duration    *float64
}

// Game is one entry of UniqueGames.
type Game struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

func secs(d time.Duration) *float64 {
	v := d.Seconds()
	return &v
}

// ParseChapters builds the chapter timeline in persisted order and derives offsets
// and durations. An empty input returns ErrNoChapters and leaves the record untouched.
func (r *Record) ParseChapters(raw []RawChapter) error {
	if len(raw) == 0 {
		r.log.Error("no chapters to parse")
		return ErrNoChapters
	}
	chapters := make([]Chapter, 0, len(raw))
	for i, rc := range raw {
		t, err := parseChapterTime(rc.Time)
		if err != nil {
			r.log.Warn("unparseable chapter time", slog.Int("chapter", i), slog.String("time", rc.Time))
		}
		ch := Chapter{
			GameID:      string(rc.GameID),
			GameName:    rc.GameName,
			Title:       rc.Title,
			BoxArtURL:   rc.BoxArtURL,
			IsMature:    rc.IsMature,
			Online:      rc.Online,
			ViewerCount: rc.ViewerCount,
			Datetime:    t,
		}
		if !r.StartedAt.IsZero() && !t.IsZero() {
			ch.Offset = secs(t.Sub(r.StartedAt))
		}
		chapters = append(chapters, ch)
	}

	for i := range chapters {
		cur := &chapters[i]
		if cur.Datetime.IsZero() {
			continue
		}
		if i+1 < len(chapters) && !chapters[i+1].Datetime.IsZero() {
			cur.Duration = secs(chapters[i+1].Datetime.Sub(cur.Datetime))
		}
	}
	last := &chapters[len(chapters)-1]
	switch {
	case !r.EndedAt.IsZero() && !last.Datetime.IsZero():
		last.Duration = secs(r.EndedAt.Sub(last.Datetime))
	case last.Duration == nil:
		r.log.Warn("last chapter has no end time, duration unknown")
	}

	r.Chapters = chapters
	r.ChaptersRaw = raw
	r.GameOffset = nil
	if chapters[0].Offset != nil {
		v := *chapters[0].Offset
		r.GameOffset = &v
	}
	return nil
}

// UniqueGames lists each game once in first-seen order. Chapters without a game id are skipped.
func (r *Record) UniqueGames() []Game {
	seen := make(map[string]bool)
	var out []Game
	for _, c := range r.Chapters {
		if c.GameID == "" || seen[c.GameID] {
			continue
		}
		seen[c.GameID] = true
		img := strings.ReplaceAll(c.BoxArtURL, "{width}", "70")
		img = strings.ReplaceAll(img, "{height}", "95")
		out = append(out, Game{ID: c.GameID, Name: c.GameName, ImageURL: img})
	}
	return out
}

// LosslessCutPath is the chapter cut list location.
func (r *Record) LosslessCutPath() string { return r.Path(r.Basename + "-llc-edl.csv") }

func fmtSecs(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// LosslessCut renders the chapter cut list: one "start,end,label" line per chapter with a
// known offset, offsets relative to the first chapter, empty end for the last chapter.
func (r *Record) LosslessCut() ([]byte, error) {
	if len(r.Chapters) == 0 {
		return nil, ErrNoChapters
	}
	var base float64
	if r.Chapters[0].Offset != nil {
		base = *r.Chapters[0].Offset
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for i, c := range r.Chapters {
		if c.Offset == nil {
			continue
		}
		start := *c.Offset - base
		end := ""
		if i < len(r.Chapters)-1 {
			d := 0.0
			if c.Duration != nil {
				d = *c.Duration
			}
			end = fmtSecs(start + d)
		}
		label := c.GameName
		if label == "" {
			label = c.GameID
		}
		if err := w.Write([]string{fmtSecs(start), end, label}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// SaveLosslessCut writes the chapter cut list next to the description.
func (r *Record) SaveLosslessCut(_ context.Context) error {
	if r.Directory == "" {
		return ErrNoDirectory
	}
	data, err := r.LosslessCut()
	if err != nil {
		r.log.Error("no chapters, cannot write cut list")
		return err
	}
	if err := writeFileAtomic(r.LosslessCutPath(), data); err != nil {
		return err
	}
	r.log.Info("wrote lossless cut list", slog.String("file", r.LosslessCutPath()))
	return nil
}
