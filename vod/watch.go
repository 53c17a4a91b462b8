package vod

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher evicts resident records whose description was changed or removed by another
// writer, so the next Load re-parses the file instead of serving stale state.
type Watcher struct {
	Registry *Registry
	Root     string
	Debounce time.Duration
	Logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]bool
}

// Run watches Root and its subdirectories until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	log := w.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "vod_watch"))

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
	}()
	err = filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.Root, err)
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	log.Info("watching descriptions", slog.String("root", w.Root))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := fw.Add(event.Name); err != nil {
						log.Warn("failed to watch new directory", slog.String("dir", event.Name), slog.Any("err", err))
					}
					continue
				}
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			w.mu.Lock()
			if w.pending == nil {
				w.pending = make(map[string]bool)
			}
			w.pending[event.Name] = true
			w.mu.Unlock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() { w.flush(log) })
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("fsnotify watcher error", slog.Any("err", err))
		}
	}
}

func (w *Watcher) flush(log *slog.Logger) {
	w.mu.Lock()
	paths := w.pending
	w.pending = nil
	w.mu.Unlock()
	for path := range paths {
		if w.Stale(path) {
			w.Registry.Remove(basenameOf(path))
			log.Info("evicted externally modified vod", slog.String("file", path))
		}
	}
}

// Stale reports whether the resident record for path no longer matches the file.
func (w *Watcher) Stale(path string) bool {
	rec := w.Registry.Get(basenameOf(path))
	if rec == nil || filepath.Clean(rec.Filename) != filepath.Clean(path) {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	return sha256.Sum256(data) != rec.ContentHash()
}
