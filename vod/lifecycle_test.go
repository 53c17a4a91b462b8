package vod

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	ctx := context.Background()

	t.Run("stored value wins", func(t *testing.T) {
		r := newTestRecord(t, t.TempDir(), "d", nil)
		r.DurationSeconds = 42
		r.VideoMetadata = &MediaInfo{General: MediaGeneral{Duration: "99"}}
		if d, ok := r.Duration(ctx, false); !ok || d != 42 {
			t.Errorf("Duration() = %d, %v", d, ok)
		}
	})

	t.Run("unknown while capturing", func(t *testing.T) {
		p := &fakeProber{info: &MediaInfo{General: MediaGeneral{Duration: "10"}}}
		r := newTestRecord(t, t.TempDir(), "d", nil)
		r.prober = p
		r.IsCapturing = true
		r.IsFinalized = true
		if _, ok := r.Duration(ctx, false); ok || p.calls != 0 {
			t.Errorf("capturing record resolved a duration (probe calls %d)", p.calls)
		}
	})

	t.Run("invalid metadata", func(t *testing.T) {
		r := newTestRecord(t, t.TempDir(), "d", nil)
		r.VideoMetadata = &MediaInfo{General: MediaGeneral{Duration: "10", FileSize: "0"}}
		if _, ok := r.Duration(ctx, false); ok {
			t.Error("zero-size metadata produced a duration")
		}
	})

	t.Run("derived and saved", func(t *testing.T) {
		idx := &countingIndex{}
		r := newTestRecord(t, t.TempDir(), "d", idx)
		r.VideoMetadata = &MediaInfo{General: MediaGeneral{Duration: "61.9", FileSize: "5"}}
		if d, ok := r.Duration(ctx, true); !ok || d != 61 {
			t.Fatalf("Duration() = %d, %v", d, ok)
		}
		if r.DurationSeconds != 61 || idx.Upserts() != 1 {
			t.Errorf("derived duration not persisted: %d, upserts %d", r.DurationSeconds, idx.Upserts())
		}
	})

	t.Run("probe failure marks fail flag", func(t *testing.T) {
		dir := t.TempDir()
		writeSized(t, dir, "d.ts", 3)
		r := newTestRecord(t, dir, "d", nil)
		r.prober = &fakeProber{err: ErrToolFailure}
		r.IsFinalized = true
		if err := r.ParseSegments([]string{"d.ts"}); err != nil {
			t.Fatal(err)
		}
		if _, ok := r.Duration(ctx, false); ok {
			t.Error("failed probe produced a duration")
		}
		if !r.VideoFail2 {
			t.Error("probe failure not recorded")
		}
	})
}

func TestFinalize(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, dir, "f.mp4", 20)
	writeFile(t, dir, "f.m3u8", "#EXTM3U")
	idx := &countingIndex{}
	r := newTestRecord(t, dir, "f", idx)
	r.prober = &fakeProber{info: &MediaInfo{General: MediaGeneral{Duration: "120", FileSize: "20"}}}
	r.IsCapturing = true
	r.IsConverting = true
	r.SegmentsRaw = []string{"f.mp4"}
	r.StartedAt = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	r.ChaptersRaw = []RawChapter{{Time: r.StartedAt.Format(chapterTimeLayout), GameID: "1", GameName: "A"}}

	if err := r.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if !r.IsFinalized || r.IsCapturing || r.IsConverting {
		t.Errorf("flags after Finalize: finalized=%v capturing=%v converting=%v", r.IsFinalized, r.IsCapturing, r.IsConverting)
	}
	if r.DurationSeconds != 120 || r.TotalSize != 20 {
		t.Errorf("duration=%d total=%d", r.DurationSeconds, r.TotalSize)
	}
	if fileExists(r.CapturePlaylist()) {
		t.Error("capture playlist not removed")
	}
	if !r.IsLosslessCutGenerated() || !r.IsConverted() {
		t.Error("cut list or converted state missing")
	}
	if idx.Upserts() != 1 {
		t.Errorf("upserts = %d, want 1", idx.Upserts())
	}
}

func TestFinalizeWithoutSegments(t *testing.T) {
	r := newTestRecord(t, t.TempDir(), "empty", nil)
	r.SegmentsRaw = []string{""}
	if err := r.Finalize(context.Background()); !errors.Is(err, ErrNoSegments) {
		t.Fatalf("Finalize() error = %v, want ErrNoSegments", err)
	}
	if r.IsFinalized {
		t.Error("record finalized without segments")
	}
}
