package vod

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveRefusesWithoutStreamer(t *testing.T) {
	dir := t.TempDir()
	original := `{"streamer_name":"","custom":true}`
	path := writeFile(t, dir, "x.json", original)
	idx := &countingIndex{}

	g := NewRegistry(RegistryOptions{Index: idx})
	rec, err := g.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Save(context.Background(), "test"); !errors.Is(err, ErrNoStreamer) {
		t.Fatalf("Save() error = %v, want ErrNoStreamer", err)
	}
	if got := string(mustRead(t, path)); got != original {
		t.Errorf("file changed on refused save: %s", got)
	}
	if idx.Upserts() != 0 {
		t.Errorf("refused save reached the index")
	}
}

func TestSaveWithoutFilename(t *testing.T) {
	r := newRecord("", nil, nil, nil)
	r.StreamerName = "s"
	if err := r.Save(context.Background(), "test"); !errors.Is(err, ErrNoFilename) {
		t.Fatalf("Save() error = %v, want ErrNoFilename", err)
	}
}

func TestSaveWritesDescription(t *testing.T) {
	dir := t.TempDir()
	idx := &countingIndex{}
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	fixedNow(t, now)

	r := newTestRecord(t, dir, "2024-03-01_streamer", idx)
	r.StartedAt = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	r.TwitchVODID = "123"
	r.ExistStatus = ExistExists
	r.MuteStatus = MuteMuted
	r.SegmentsRaw = []string{"2024-03-01_streamer.mp4"}
	if err := r.Save(context.Background(), "test"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data := mustRead(t, r.Filename)
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("saved description is not JSON: %v", err)
	}
	checks := map[string]any{
		"schema_version":    float64(2),
		"streamer_name":     "Streamer",
		"twitch_vod_id":     float64(123),
		"twitch_vod_status": float64(ExistExists),
		"twitch_vod_muted":  float64(MuteMuted),
	}
	for k, want := range checks {
		if doc[k] != want {
			t.Errorf("%s = %v, want %v", k, doc[k], want)
		}
	}
	saved, _ := doc["saved_at"].(map[string]any)
	if saved["date"] != "2024-03-02 10:00:00.000000" {
		t.Errorf("saved_at = %v", doc["saved_at"])
	}
	if !r.SavedAt.Equal(now) {
		t.Errorf("SavedAt = %v", r.SavedAt)
	}
	if idx.Upserts() != 1 || idx.upserts[0].TwitchVODID != "123" {
		t.Errorf("index upserts = %+v", idx.upserts)
	}
	if r.ContentHash() == ([32]byte{}) {
		t.Error("content hash not recorded")
	}
	// no temp files left behind
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestSaveRoundTripThroughLoad(t *testing.T) {
	dir := t.TempDir()
	r := newTestRecord(t, dir, "rt", nil)
	r.StartedAt = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	r.EndedAt = r.StartedAt.Add(time.Hour)
	r.TwitchVODNeverSaved = boolPtr(true)
	r.TwitchVODExists = boolPtr(false)
	r.ExistStatus = ExistNeverExisted
	r.ChaptersRaw = []RawChapter{{Time: "2024-03-01T18:00:00Z", GameID: "1", GameName: "A"}}
	if err := r.Save(context.Background(), "test"); err != nil {
		t.Fatal(err)
	}

	g := NewRegistry(RegistryOptions{})
	got, err := g.Load(context.Background(), r.Filename)
	if err != nil {
		t.Fatal(err)
	}
	if got == r {
		t.Fatal("expected a freshly parsed record")
	}
	if !got.StartedAt.Equal(r.StartedAt) || !got.EndedAt.Equal(r.EndedAt) {
		t.Errorf("timestamps = %v / %v", got.StartedAt, got.EndedAt)
	}
	if got.ExistStatus != ExistNeverExisted || got.MuteStatus != MuteUnknown {
		t.Errorf("status = %v / %v", got.ExistStatus, got.MuteStatus)
	}
	if len(got.Chapters) != 1 || got.Chapters[0].Duration == nil || *got.Chapters[0].Duration != 3600 {
		t.Errorf("chapters = %+v", got.Chapters)
	}
	if got.ContentHash() != r.ContentHash() {
		t.Error("hash of loaded bytes should match the written bytes")
	}
}

func TestSaveKeepsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "k.json", `{"streamer_name":"S","twitch_vod_muted":true,"extra":{"nested":[1,2]}}`)
	g := NewRegistry(RegistryOptions{})
	rec, err := g.Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if rec.MuteStatus != MuteMuted {
		t.Errorf("legacy boolean mute = %v, want muted", rec.MuteStatus)
	}
	if err := rec.Save(context.Background(), "test"); err != nil {
		t.Fatal(err)
	}
	data := mustRead(t, path)
	if !bytes.Contains(data, []byte(`"extra"`)) {
		t.Errorf("unknown key dropped: %s", data)
	}
	if !bytes.Contains(data, []byte(`"twitch_vod_muted": 2`)) {
		t.Errorf("mute status not normalized: %s", data)
	}
}

func TestSummary(t *testing.T) {
	r := newTestRecord(t, "/data/s", "b", nil)
	r.TotalSize = 10
	s := r.Summary()
	if s.Basename != "b" || s.Directory != "/data/s" || s.TotalSize != 10 || s.ExistStatus != ExistUnknown {
		t.Errorf("Summary() = %+v", s)
	}
	if filepath.Base(r.DescriptionPath()) != "b.json" {
		t.Errorf("DescriptionPath() = %s", r.DescriptionPath())
	}
}
