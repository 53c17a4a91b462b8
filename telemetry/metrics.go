// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	RecordsLoaded      prometheus.Counter
	Saves              *prometheus.CounterVec // result=ok|error|refused|no_filename
	Verifications      *prometheus.CounterVec // kind=exist|mute, status
	DownloadsStarted   prometheus.Counter
	DownloadsFailed    prometheus.Counter
	DownloadsSucceeded prometheus.Counter
	WebhookDeliveries  *prometheus.CounterVec // result=ok|error

	// Histograms (seconds)
	RemuxDuration prometheus.Observer

	// Gauges
	RegistrySizeGauge    prometheus.Gauge
	ActiveDownloadsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		RecordsLoaded = promauto.NewCounter(prometheus.CounterOpts{Name: "vod_records_loaded_total", Help: "Number of VOD descriptions parsed from disk"})
		Saves = promauto.NewCounterVec(prometheus.CounterOpts{Name: "vod_saves_total", Help: "VOD description saves by result"}, []string{"result"})
		Verifications = promauto.NewCounterVec(prometheus.CounterOpts{Name: "vod_verifications_total", Help: "Remote status checks by kind and resulting status"}, []string{"kind", "status"})
		DownloadsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "vod_downloads_started_total", Help: "Number of VOD downloads started"})
		DownloadsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "vod_downloads_failed_total", Help: "Number of VOD downloads failed"})
		DownloadsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "vod_downloads_succeeded_total", Help: "Number of VOD downloads succeeded"})
		WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{Name: "vod_webhook_deliveries_total", Help: "Webhook deliveries by result"}, []string{"result"})
		RemuxDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "vod_remux_duration_seconds", Help: "Remux duration seconds", Buckets: prometheus.DefBuckets})
		RegistrySizeGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "vod_registry_size", Help: "Number of resident VOD records"})
		ActiveDownloadsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "vod_active_downloads", Help: "Downloads currently holding a slot"})
	})
}

// The helpers below are safe to call before Init; they do nothing then.

func IncRecordsLoaded() {
	if RecordsLoaded != nil {
		RecordsLoaded.Inc()
	}
}

func ObserveSave(result string) {
	if Saves != nil {
		Saves.WithLabelValues(result).Inc()
	}
}

func ObserveVerify(kind, status string) {
	if Verifications != nil {
		Verifications.WithLabelValues(kind, status).Inc()
	}
}

func DownloadStarted() {
	if DownloadsStarted != nil {
		DownloadsStarted.Inc()
	}
}

func DownloadFinished(success bool) {
	if success && DownloadsSucceeded != nil {
		DownloadsSucceeded.Inc()
	}
	if !success && DownloadsFailed != nil {
		DownloadsFailed.Inc()
	}
}

func ObserveWebhook(result string) {
	if WebhookDeliveries != nil {
		WebhookDeliveries.WithLabelValues(result).Inc()
	}
}

// SetRegistrySize records the number of resident records.
func SetRegistrySize(n int) {
	if RegistrySizeGauge != nil {
		RegistrySizeGauge.Set(float64(n))
	}
}

// SetActiveDownloads records the number of downloads holding a slot.
func SetActiveDownloads(n int) {
	if ActiveDownloadsGauge != nil {
		ActiveDownloadsGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
