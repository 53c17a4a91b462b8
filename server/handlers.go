package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/vod-tender/archive/db"
	"github.com/onnwee/vod-tender/archive/vod"
)

// IndexReader is the read side of the Postgres index.
type IndexReader interface {
	Get(ctx context.Context, basename string) (vod.Summary, error)
	List(ctx context.Context, f db.ListFilter) ([]vod.Summary, error)
}

// Pinger reports backing store health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options wires the handlers. Index and DB may be nil when the index is disabled.
type Options struct {
	Registry *vod.Registry
	Job      *vod.VerifyJob
	Root     string
	Index    IndexReader
	DB       Pinger
	Auth     AuthConfig
	// CronPerMinute bounds cron triggers per client IP; zero uses the default.
	CronPerMinute int
	Logger        *slog.Logger
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	registry *vod.Registry
	job      *vod.VerifyJob
	root     string
	index    IndexReader
	db       Pinger
	auth     AuthConfig
	limiter  *ipRateLimiter
	log      *slog.Logger
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(opts Options) *Handlers {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	perMinute := opts.CronPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	return &Handlers{
		registry: opts.Registry,
		job:      opts.Job,
		root:     opts.Root,
		index:    opts.Index,
		db:       opts.DB,
		auth:     opts.Auth,
		limiter:  newIPRateLimiter(perMinute),
		log:      log.With(slog.String("component", "http")),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseIntQuery extracts an int parameter from query string with a default value.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
