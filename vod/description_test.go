package vod

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFlexID(t *testing.T) {
	tests := []struct {
		in      string
		want    FlexID
		encoded string
	}{
		{`"123"`, "123", `123`},
		{`456`, "456", `456`},
		{`null`, "", `""`},
		{`"v123"`, "v123", `"v123"`},
		{`"12345678901234567"`, "12345678901234567", `"12345678901234567"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f FlexID
			if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
			}
			if f != tt.want {
				t.Errorf("got %q, want %q", f, tt.want)
			}
			b, err := json.Marshal(f)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.encoded {
				t.Errorf("Marshal = %s, want %s", b, tt.encoded)
			}
		})
	}
	var f FlexID
	if err := json.Unmarshal([]byte(`{}`), &f); err == nil {
		t.Error("object id should fail")
	}
}

func TestMuteFieldLegacyValues(t *testing.T) {
	tests := []struct {
		in   string
		want MuteStatus
	}{
		{`true`, MuteMuted},
		{`false`, MuteUnmuted},
		{`null`, MuteUnknown},
		{`1`, MuteUnmuted},
		{`2`, MuteMuted},
		{`3`, MuteUnknown},
		{`42`, MuteUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var m muteField
			if err := json.Unmarshal([]byte(tt.in), &m); err != nil {
				t.Fatalf("Unmarshal error = %v", err)
			}
			if m.Status != tt.want {
				t.Errorf("status = %v, want %v", m.Status, tt.want)
			}
		})
	}
}

func TestPHPDate(t *testing.T) {
	ts := time.Date(2024, 3, 1, 18, 30, 15, 0, time.UTC)
	enc := encodeDate(ts)
	if enc.Date != "2024-03-01 18:30:15.000000" || enc.TimezoneType != 3 || enc.Timezone != "UTC" {
		t.Fatalf("encodeDate = %+v", enc)
	}
	got, err := enc.decode()
	if err != nil || !got.Equal(ts) {
		t.Errorf("decode = %v, %v", got, err)
	}
	if encodeDate(time.Time{}) != nil {
		t.Error("zero time should encode as nil")
	}

	offset := &phpDate{Date: "2024-03-01 20:30:15.000000", TimezoneType: 1, Timezone: "+02:00"}
	got, err = offset.decode()
	if err != nil || !got.Equal(ts) {
		t.Errorf("offset decode = %v, %v", got, err)
	}

	if _, err := (&phpDate{Date: "yesterday"}).decode(); err == nil {
		t.Error("expected parse error")
	}
	var nilDate *phpDate
	if got, err := nilDate.decode(); err != nil || !got.IsZero() {
		t.Errorf("nil decode = %v, %v", got, err)
	}
}

func TestDecodeDescription(t *testing.T) {
	t.Run("malformed", func(t *testing.T) {
		for _, in := range []string{`{`, `null`, `[]`} {
			if _, _, err := decodeDescription([]byte(in)); !errors.Is(err, ErrMalformed) {
				t.Errorf("decodeDescription(%s) error = %v, want ErrMalformed", in, err)
			}
		}
	})

	t.Run("legacy chapters key", func(t *testing.T) {
		d, _, err := decodeDescription([]byte(`{"chapters":[{"time":"2024-03-01T18:00:00Z","game_id":509658,"game_name":"Just Chatting"}]}`))
		if err != nil {
			t.Fatal(err)
		}
		want := []RawChapter{{Time: "2024-03-01T18:00:00Z", GameID: "509658", GameName: "Just Chatting"}}
		if diff := cmp.Diff(want, d.ChaptersRaw); diff != "" {
			t.Errorf("ChaptersRaw mismatch (-want +got):\n%s", diff)
		}
		if d.Chapters != nil {
			t.Error("legacy key should be cleared after normalization")
		}
	})

	t.Run("current schema keeps chapters_raw", func(t *testing.T) {
		d, _, err := decodeDescription([]byte(`{"schema_version":2,"chapters_raw":[],"chapters":[{"time":"x"}]}`))
		if err != nil {
			t.Fatal(err)
		}
		if len(d.ChaptersRaw) != 0 {
			t.Errorf("ChaptersRaw = %v", d.ChaptersRaw)
		}
	})
}

func boolp(b bool) *bool { return &b }
func intp(i int) *int    { return &i }

func TestResolveExistStatus(t *testing.T) {
	tests := []struct {
		name       string
		stored     *int
		neverSaved *bool
		exists     *bool
		want       ExistStatus
	}{
		{"nothing stored", nil, nil, nil, ExistUnknown},
		{"neversaved beats exists", nil, boolp(true), boolp(true), ExistNeverExisted},
		{"exists true", nil, boolp(false), boolp(true), ExistExists},
		{"exists false", nil, nil, boolp(false), ExistNotExists},
		{"stored status wins", intp(int(ExistNotExists)), boolp(true), boolp(true), ExistNotExists},
		{"invalid stored status ignored", intp(9), nil, boolp(true), ExistExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveExistStatus(tt.stored, tt.neverSaved, tt.exists); got != tt.want {
				t.Errorf("resolveExistStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeDescriptionPreservesUnknownKeys(t *testing.T) {
	_, raw, err := decodeDescription([]byte(`{"streamer_name":"old","chapters":[],"custom_tool_flag":{"a":1}}`))
	if err != nil {
		t.Fatal(err)
	}
	out, err := mergeDescription(raw, &description{SchemaVersion: schemaVersion, StreamerName: "new"})
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if string(doc["custom_tool_flag"]) == "" {
		t.Error("unknown key dropped")
	}
	if _, ok := doc["chapters"]; ok {
		t.Error("legacy chapters key should not be written back")
	}
	var name string
	_ = json.Unmarshal(doc["streamer_name"], &name)
	if name != "new" {
		t.Errorf("streamer_name = %q", name)
	}
	if string(doc["schema_version"]) != "2" {
		t.Errorf("schema_version = %s", doc["schema_version"])
	}
}
