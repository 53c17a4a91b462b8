package vod

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const mediainfoSample = `{
  "media": {
    "@ref": "s_0.mp4",
    "track": [
      {"@type": "General", "Format": "MPEG-4", "Duration": "3723.456", "FileSize": "1048576", "OverallBitRate": "6000000"},
      {"@type": "Video", "Format": "AVC", "Width": "1920", "Height": "1080", "FrameRate": "60.000"},
      {"@type": "Video", "Format": "HEVC", "Width": "1280", "Height": "720"},
      {"@type": "Audio", "Format": "AAC", "Channels": "2", "SamplingRate": 48000}
    ]
  }
}`

func TestParseMediainfoJSON(t *testing.T) {
	mi, err := parseMediainfoJSON([]byte(mediainfoSample))
	if err != nil {
		t.Fatalf("parseMediainfoJSON() error = %v", err)
	}
	want := &MediaInfo{
		General: MediaGeneral{Format: "MPEG-4", Duration: "3723.456", FileSize: "1048576", OverallBitRate: "6000000"},
		Video:   &MediaVideo{Format: "AVC", Width: "1920", Height: "1080", FrameRate: "60.000"},
		Audio:   &MediaAudio{Format: "AAC", Channels: "2", SamplingRate: "48000"},
	}
	if diff := cmp.Diff(want, mi); diff != "" {
		t.Errorf("MediaInfo (-want +got):\n%s", diff)
	}
	if d, ok := mi.DurationSeconds(); !ok || d != 3723 {
		t.Errorf("DurationSeconds() = %d, %v", d, ok)
	}
	if mi.Resolution() != "1920x1080" || mi.Invalid() {
		t.Errorf("Resolution() = %q, Invalid() = %v", mi.Resolution(), mi.Invalid())
	}
}

func TestParseMediainfoJSONErrors(t *testing.T) {
	for name, in := range map[string]string{
		"garbage":    "mediainfo: file not found",
		"no media":   `{}`,
		"no general": `{"media":{"track":[{"@type":"Video"}]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := parseMediainfoJSON([]byte(in)); !errors.Is(err, ErrToolFailure) {
				t.Fatalf("error = %v, want ErrToolFailure", err)
			}
		})
	}
}

func TestMediainfoProber(t *testing.T) {
	runner := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return []byte(mediainfoSample), nil, nil
	}}
	p := MediainfoProber{Bin: "/usr/bin/mediainfo", Runner: runner}
	if _, err := p.Probe(context.Background(), "/data/s_0.mp4"); err != nil {
		t.Fatal(err)
	}
	calls := runner.Calls()
	if len(calls) != 1 {
		t.Fatalf("runner calls = %d", len(calls))
	}
	if diff := cmp.Diff(runCall{"/usr/bin/mediainfo", []string{"--Output=JSON", "/data/s_0.mp4"}}, calls[0]); diff != "" {
		t.Errorf("invocation (-want +got):\n%s", diff)
	}

	failing := MediainfoProber{Runner: &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("boom"), errors.New("exit status 1")
	}}}
	if _, err := failing.Probe(context.Background(), "x"); !errors.Is(err, ErrToolFailure) {
		t.Errorf("Probe() error = %v, want ErrToolFailure", err)
	}
}

func TestMediaInfoNilSafe(t *testing.T) {
	var mi *MediaInfo
	if _, ok := mi.DurationSeconds(); ok {
		t.Error("nil metadata reported a duration")
	}
	if mi.Invalid() || mi.Resolution() != "" {
		t.Error("nil metadata should be neither invalid nor resolved")
	}
	if !(&MediaInfo{General: MediaGeneral{FileSize: "0"}}).Invalid() {
		t.Error("zero file size should be invalid")
	}
}
