package vod

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/vod-tender/archive/twitchapi"
)

func TestCheckMutedAPI(t *testing.T) {
	videos := &fakeVideos{videos: map[string]*twitchapi.Video{
		"muted": {ID: "muted", MutedSegments: []twitchapi.MutedSegment{{Offset: 30, Duration: 360}}},
		"clean": {ID: "clean"},
	}}
	tests := []struct {
		id        string
		want      MuteStatus
		wantErr   error
		wantSaves int
	}{
		{"muted", MuteMuted, nil, 1},
		{"clean", MuteUnmuted, nil, 1},
		{"gone", MuteUnknown, ErrDeleted, 0},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			idx := &countingIndex{}
			r := finalizedRecord(t, tt.id, idx)
			v := &Verifier{Videos: videos, Method: MuteMethodAPI}
			got, err := v.CheckMuted(context.Background(), r, true)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckMuted() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CheckMuted() = %v, want %v", got, tt.want)
			}
			if idx.Upserts() != tt.wantSaves {
				t.Errorf("saves = %d, want %d", idx.Upserts(), tt.wantSaves)
			}
		})
	}
}

func TestCheckMutedUnchangedDoesNotSave(t *testing.T) {
	idx := &countingIndex{}
	r := finalizedRecord(t, "clean", idx)
	r.MuteStatus = MuteUnmuted
	v := &Verifier{Videos: &fakeVideos{videos: map[string]*twitchapi.Video{"clean": {ID: "clean"}}}}
	if _, err := v.CheckMuted(context.Background(), r, true); err != nil {
		t.Fatal(err)
	}
	if idx.Upserts() != 0 {
		t.Errorf("saves = %d, want 0", idx.Upserts())
	}
}

func TestCheckMutedNoRemoteID(t *testing.T) {
	v := &Verifier{Videos: &fakeVideos{}}
	if _, err := v.CheckMuted(context.Background(), finalizedRecord(t, "", nil), false); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("CheckMuted() error = %v, want ErrUnresolvable", err)
	}
}

func TestCheckMutedStreamlink(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		stderr  string
		want    MuteStatus
		wantErr error
	}{
		{"muted", "https://d.cloudfront.net/abc/chunked/index-muted-XYZ.m3u8\n", "", MuteMuted, nil},
		{"clean", "https://d.cloudfront.net/abc/chunked/index-dvr.m3u8\n", "", MuteUnmuted, nil},
		{"deleted", "", "error: Unable to find video: 123\n", MuteUnknown, ErrDeleted},
		{"silent", "", "", MuteUnknown, ErrUnresolvable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
				return []byte(tt.stdout), []byte(tt.stderr), nil
			}}
			v := &Verifier{Runner: runner, StreamlinkBin: "sl", Method: MuteMethodStreamlink}
			got, err := v.CheckMuted(context.Background(), finalizedRecord(t, "123", nil), false)
			if !errors.Is(err, tt.wantErr) || got != tt.want {
				t.Fatalf("CheckMuted() = %v, %v; want %v, %v", got, err, tt.want, tt.wantErr)
			}
			calls := runner.Calls()
			if len(calls) != 1 || calls[0].Name != "sl" || argAfter(calls[0].Args, "--stream-url") != "https://www.twitch.tv/videos/123" {
				t.Errorf("invocation = %+v", calls)
			}
		})
	}
}
