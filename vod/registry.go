package vod

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/onnwee/vod-tender/archive/telemetry"
)

// RegistryOptions are the collaborators handed to every record the registry creates.
type RegistryOptions struct {
	Prober Prober
	Index  Indexer
	Logger *slog.Logger
}

// Registry maps basenames to their single resident Record. Concurrent loads of the
// same basename share one parse.
type Registry struct {
	opts RegistryOptions
	log  *slog.Logger

	mu      sync.RWMutex
	records map[string]*Record
	sf      singleflight.Group
}

// NewRegistry returns an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		opts:    opts,
		log:     opts.Logger.With(slog.String("component", "vod_registry")),
		records: make(map[string]*Record),
	}
}

func basenameOf(filename string) string {
	b := filepath.Base(filename)
	return b[:len(b)-len(filepath.Ext(b))]
}

// Load returns the resident record for filename's basename, parsing the description
// the first time. The description must exist and be non-empty even when resident.
func (g *Registry) Load(ctx context.Context, filename string) (*Record, error) {
	fi, err := os.Stat(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, err
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, filename)
	}
	base := basenameOf(filename)
	if rec := g.Get(base); rec != nil {
		g.log.Debug("returning cached vod", slog.String("vod", base))
		return rec, nil
	}
	v, err, _ := g.sf.Do(base, func() (any, error) {
		if rec := g.Get(base); rec != nil {
			return rec, nil
		}
		rec, err := g.parse(ctx, filename)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		if existing, ok := g.records[base]; ok {
			return existing, nil
		}
		g.records[base] = rec
		telemetry.SetRegistrySize(len(g.records))
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Record), nil
}

func (g *Registry) parse(ctx context.Context, filename string) (*Record, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, filename)
	}
	d, raw, err := decodeDescription(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	rec := newRecord(filename, g.opts.Prober, g.opts.Index, g.opts.Logger)
	rec.applyDescription(d, raw)
	rec.setContent(data)

	if len(rec.ChaptersRaw) > 0 {
		if err := rec.ParseChapters(rec.ChaptersRaw); err != nil {
			rec.log.Warn("chapters not parsed", slog.Any("err", err))
		}
	} else {
		rec.log.Warn("vod has no chapters")
	}

	if rec.IsFinalized {
		if err := rec.ParseSegments(rec.SegmentsRaw); err != nil {
			rec.log.Warn("segments not parsed", slog.Any("err", err))
		}
		if rec.VideoMetadata == nil && !rec.VideoFail2 && rec.probeMedia(ctx) {
			if err := rec.Save(ctx, "fix mediainfo"); err != nil {
				rec.log.Warn("could not persist mediainfo", slog.Any("err", err))
			}
		}
		if rec.DurationSeconds == 0 {
			rec.Duration(ctx, true)
		}
	}
	telemetry.IncRecordsLoaded()
	return rec, nil
}

// Create writes a fresh description shell for filename and registers it.
func (g *Registry) Create(ctx context.Context, filename string) (*Record, error) {
	base := basenameOf(filename)
	if g.Has(base) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, base)
	}
	rec := newRecord(filename, g.opts.Prober, g.opts.Index, g.opts.Logger)
	rec.Created = true
	rec.CaptureID = uuid.NewString()
	if err := rec.Save(ctx, "create json"); err != nil {
		return nil, err
	}
	if err := g.Add(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Add registers rec. Registering a basename twice is a programming error.
func (g *Registry) Add(rec *Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.records[rec.Basename]; ok {
		g.log.Error("vod already registered", slog.String("vod", rec.Basename))
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, rec.Basename)
	}
	g.records[rec.Basename] = rec
	telemetry.SetRegistrySize(len(g.records))
	return nil
}

// Get returns the resident record or nil.
func (g *Registry) Get(basename string) *Record {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.records[basename]
}

func (g *Registry) Has(basename string) bool { return g.Get(basename) != nil }

// Remove evicts basename. It reports whether a record was resident.
func (g *Registry) Remove(basename string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.records[basename]
	delete(g.records, basename)
	telemetry.SetRegistrySize(len(g.records))
	return ok
}

// Clear evicts everything; used on shutdown.
func (g *Registry) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = make(map[string]*Record)
	telemetry.SetRegistrySize(0)
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

// Records returns the resident records sorted by basename.
func (g *Registry) Records() []*Record {
	g.mu.RLock()
	out := make([]*Record, 0, len(g.records))
	for _, r := range g.records {
		out = append(out, r)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Basename < out[j].Basename })
	return out
}
