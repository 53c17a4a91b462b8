package vod

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/onnwee/vod-tender/archive/telemetry"
)

// downloadSemaphore limits concurrent platform downloads process-wide.
// It is sized once, from SetMaxConcurrentDownloads or MAX_CONCURRENT_DOWNLOADS (default 1).
var (
	downloadSemaphore     chan struct{}
	downloadSemaphoreOnce sync.Once
)

func initDownloadSemaphore(n int) {
	downloadSemaphoreOnce.Do(func() {
		if n <= 0 {
			n = 1
			if s := os.Getenv("MAX_CONCURRENT_DOWNLOADS"); s != "" {
				if v, err := strconv.Atoi(s); err == nil && v > 0 {
					n = v
				}
			}
		}
		downloadSemaphore = make(chan struct{}, n)
		slog.Info("download concurrency limit initialized", slog.Int("max_concurrent", n))
	})
}

// SetMaxConcurrentDownloads sizes the download semaphore. Only the first call (or first
// download) has any effect.
func SetMaxConcurrentDownloads(n int) { initDownloadSemaphore(n) }

// acquireDownloadSlot blocks until a download slot is available or ctx is canceled.
func acquireDownloadSlot(ctx context.Context) bool {
	initDownloadSemaphore(0)
	select {
	case downloadSemaphore <- struct{}{}:
		telemetry.SetActiveDownloads(len(downloadSemaphore))
		return true
	case <-ctx.Done():
		return false
	}
}

func releaseDownloadSlot() {
	initDownloadSemaphore(0)
	select {
	case <-downloadSemaphore:
		telemetry.SetActiveDownloads(len(downloadSemaphore))
	default:
		slog.Warn("download slot release called without corresponding acquire")
	}
}

// GetActiveDownloads returns the current number of active downloads.
func GetActiveDownloads() int {
	initDownloadSemaphore(0)
	return len(downloadSemaphore)
}

// GetMaxConcurrentDownloads returns the configured maximum concurrent downloads.
func GetMaxConcurrentDownloads() int {
	initDownloadSemaphore(0)
	return cap(downloadSemaphore)
}

// keyedMutex hands out one lock per key. Entries are dropped when the last holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// cancelRegistry tracks cancel functions of in-flight downloads by video id.
type cancelRegistry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func (c *cancelRegistry) add(id string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancels == nil {
		c.cancels = make(map[string]context.CancelFunc)
	}
	c.cancels[id] = cancel
}

func (c *cancelRegistry) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cancels, id)
}

func (c *cancelRegistry) cancel(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn, ok := c.cancels[id]; ok {
		fn()
		delete(c.cancels, id)
		return true
	}
	return false
}

func (c *cancelRegistry) active(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cancels[id]
	return ok
}
