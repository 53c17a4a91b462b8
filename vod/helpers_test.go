package vod

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/vod-tender/archive/twitchapi"
)

// runCall is one recorded Runner invocation.
type runCall struct {
	Name string
	Args []string
}

// fakeRunner records invocations and answers from fn.
type fakeRunner struct {
	mu    sync.Mutex
	calls []runCall
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runCall{Name: name, Args: args})
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil, nil
	}
	return f.fn(name, args)
}

func (f *fakeRunner) Calls() []runCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runCall(nil), f.calls...)
}

// argAfter returns the argument following flag.
func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// countingIndex counts index writes; every successful Save upserts exactly once.
type countingIndex struct {
	mu      sync.Mutex
	upserts []Summary
	deletes []string
}

func (c *countingIndex) UpsertRecord(_ context.Context, s Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upserts = append(c.upserts, s)
	return nil
}

func (c *countingIndex) DeleteRecord(_ context.Context, basename string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, basename)
	return nil
}

func (c *countingIndex) Upserts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.upserts)
}

// fakeVideos serves GetVideo from a map; err, when set, is returned for every lookup.
type fakeVideos struct {
	mu     sync.Mutex
	videos map[string]*twitchapi.Video
	err    error
	calls  int
}

func (f *fakeVideos) GetVideo(_ context.Context, id string) (*twitchapi.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.videos[id]
	if !ok {
		return nil, twitchapi.ErrNotFound
	}
	return v, nil
}

// fakeProber returns a fixed result.
type fakeProber struct {
	info  *MediaInfo
	err   error
	calls int
}

func (p *fakeProber) Probe(context.Context, string) (*MediaInfo, error) {
	p.calls++
	return p.info, p.err
}

// writeFile creates dir/name with content, failing the test on error.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// writeSized creates dir/name holding n bytes.
func writeSized(t *testing.T, dir, name string, n int) string {
	t.Helper()
	return writeFile(t, dir, name, strings.Repeat("x", n))
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// newTestRecord builds an unregistered record bound to dir/basename.json.
func newTestRecord(t *testing.T, dir, basename string, idx Indexer) *Record {
	t.Helper()
	r := newRecord(filepath.Join(dir, basename+".json"), nil, idx, nil)
	r.StreamerName = "Streamer"
	r.StreamerLogin = "streamer"
	return r
}

func fixedNow(t *testing.T, ts time.Time) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return ts }
	t.Cleanup(func() { timeNow = prev })
}
