package vod

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Segment is one capture output file.
type Segment struct {
	Filename string
	Basename string
	// Filesize is 0 when the file was missing at parse time.
	Filesize int64
}

// segmentExts are container extensions the capture writer produces.
var segmentExts = map[string]bool{".ts": true, ".mp4": true, ".mkv": true}

// ParseSegments resolves raw references against the record's directory and stats them.
// A missing file is not an error; it contributes zero to TotalSize. An empty reference
// abandons the pass and rebuilds SegmentsRaw from the directory instead.
func (r *Record) ParseSegments(raw []string) error {
	if r.Directory == "" {
		return ErrNoDirectory
	}
	for i, s := range raw {
		if strings.TrimSpace(s) == "" {
			r.log.Warn("malformed segment reference, rebuilding segment list", slog.Int("index", i))
			if err := r.RebuildSegmentList(); err != nil {
				return err
			}
			raw = r.SegmentsRaw
			break
		}
	}

	segs := make([]Segment, 0, len(raw))
	var total int64
	for _, s := range raw {
		name := filepath.Base(s)
		seg := Segment{Filename: r.Path(name), Basename: name}
		fi, err := os.Stat(seg.Filename)
		switch {
		case err == nil:
			seg.Filesize = fi.Size()
			total += fi.Size()
		case os.IsNotExist(err):
			r.log.Warn("segment file missing", slog.String("segment", name))
		default:
			r.log.Warn("segment stat failed", slog.String("segment", name), slog.Any("err", err))
		}
		segs = append(segs, seg)
	}
	r.Segments = segs
	r.TotalSize = total
	return nil
}

// RebuildSegmentList replaces SegmentsRaw with the media files in the record's directory
// whose names start with the basename, sorted by name. Known derived artifacts
// (downloaded copy, chat renders) are excluded.
func (r *Record) RebuildSegmentList() error {
	if r.Directory == "" {
		return ErrNoDirectory
	}
	entries, err := os.ReadDir(r.Directory)
	if err != nil {
		return fmt.Errorf("rebuild segment list: %w", err)
	}
	derived := map[string]bool{}
	for _, n := range r.artifactNames() {
		derived[n] = true
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || derived[n] || !strings.HasPrefix(n, r.Basename) {
			continue
		}
		if !segmentExts[strings.ToLower(filepath.Ext(n))] {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) == 0 {
		r.log.Error("no segments found while rebuilding segment list")
		r.SegmentsRaw = []string{}
		return ErrNoSegments
	}
	r.log.Info("rebuilt segment list", slog.Int("segments", len(names)))
	r.SegmentsRaw = names
	return nil
}
