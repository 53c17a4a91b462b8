package vod

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// TwitchVodAge is how long the platform keeps archives.
const TwitchVodAge = 14 * 24 * time.Hour

// VerifyKind names a bulk verification pass.
type VerifyKind string

const (
	VerifyDeleted VerifyKind = "check_deleted_vods"
	VerifyMuted   VerifyKind = "check_muted_vods"
)

// VerifyReport summarizes one bulk pass.
type VerifyReport struct {
	Kind    VerifyKind `json:"kind"`
	Checked int        `json:"checked"`
	Skipped int        `json:"skipped"`
	Failed  int        `json:"failed"`
	// Flagged lists basenames found deleted (or muted, for VerifyMuted).
	Flagged []string `json:"flagged"`
}

// VerifyJob walks a storage root and verifies every description found there.
type VerifyJob struct {
	Registry *Registry
	Verifier *Verifier
	Root     string
	// Exclude holds directories under Root that never contain descriptions (cache).
	Exclude     []string
	Concurrency int
	Logger      *slog.Logger
}

func (j *VerifyJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("component", "vod_verify_job"))
	}
	return slog.Default().With(slog.String("component", "vod_verify_job"))
}

// descriptions lists every .json file below Root outside the excluded directories.
func (j *VerifyJob) descriptions() ([]string, error) {
	excluded := make(map[string]bool, len(j.Exclude))
	for _, e := range j.Exclude {
		excluded[filepath.Clean(e)] = true
	}
	var files []string
	err := filepath.WalkDir(j.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if excluded[filepath.Clean(path)] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Run loads every description and runs the kind's check with saving enabled. Individual
// failures are counted, not returned.
func (j *VerifyJob) Run(ctx context.Context, kind VerifyKind) (*VerifyReport, error) {
	log := j.logger().With(slog.String("kind", string(kind)))
	files, err := j.descriptions()
	if err != nil {
		return nil, err
	}
	report := &VerifyReport{Kind: kind, Flagged: []string{}}
	var mu sync.Mutex
	count := func(f func()) {
		mu.Lock()
		f()
		mu.Unlock()
	}

	limit := j.Concurrency
	if limit <= 0 {
		limit = 2
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := j.Registry.Load(gctx, file)
			if err != nil {
				log.Debug("skipping unloadable description", slog.String("file", file), slog.Any("err", err))
				count(func() { report.Skipped++ })
				return nil
			}
			rec.Lock()
			defer rec.Unlock()
			flagged, checked, err := j.check(gctx, rec, kind)
			count(func() {
				switch {
				case err != nil && !errors.Is(err, ErrDeleted):
					report.Failed++
				case !checked:
					report.Skipped++
				default:
					report.Checked++
				}
				if flagged {
					report.Flagged = append(report.Flagged, rec.Basename)
				}
			})
			if err != nil && !errors.Is(err, ErrDeleted) {
				log.Warn("verification failed", slog.String("vod", rec.Basename), slog.Any("err", err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	log.Info("verification pass complete",
		slog.Int("checked", report.Checked), slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed), slog.Int("flagged", len(report.Flagged)))
	return report, nil
}

// check runs one record's verification. It reports whether the record was flagged and
// whether it was actually checked.
func (j *VerifyJob) check(ctx context.Context, rec *Record, kind VerifyKind) (bool, bool, error) {
	switch kind {
	case VerifyMuted:
		if rec.TwitchVODID == "" || rec.ExistStatus == ExistNotExists || rec.ExistStatus == ExistNeverExisted {
			return false, false, nil
		}
		st, err := j.Verifier.CheckMuted(ctx, rec, true)
		if errors.Is(err, ErrDeleted) {
			return false, true, err
		}
		return st == MuteMuted, err == nil, err
	default:
		if !rec.IsFinalized {
			return false, false, nil
		}
		if rec.ExistStatus == ExistNotExists && !rec.StartedAt.IsZero() && timeNow().Sub(rec.StartedAt) > TwitchVodAge {
			return false, false, nil
		}
		exists, resolved, err := j.Verifier.checkValid(ctx, rec, true)
		switch {
		case err != nil:
			return false, false, err
		case !resolved && rec.TwitchVODID != "":
			return false, false, fmt.Errorf("%w: lookup of %s failed", ErrUnresolvable, rec.TwitchVODID)
		}
		return !exists && rec.TwitchVODID != "", resolved, nil
	}
}

// StartVerificationJob runs both verification passes immediately and then every interval
// until ctx is canceled.
func StartVerificationJob(ctx context.Context, job *VerifyJob, interval time.Duration) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	log := job.logger()
	log.Info("verification job starting", slog.Duration("interval", interval))
	runAll := func() {
		for _, kind := range []VerifyKind{VerifyDeleted, VerifyMuted} {
			if _, err := job.Run(ctx, kind); err != nil && ctx.Err() == nil {
				log.Warn("verification pass", slog.String("kind", string(kind)), slog.Any("err", err))
			}
		}
	}
	runAll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("verification job stopped")
			return
		case <-ticker.C:
			runAll()
		}
	}
}
