// Package app assembles the pipeline components from a Config so the service and the
// CLI share one wiring.
package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/onnwee/vod-tender/archive/config"
	"github.com/onnwee/vod-tender/archive/db"
	"github.com/onnwee/vod-tender/archive/twitchapi"
	"github.com/onnwee/vod-tender/archive/vod"
	"github.com/onnwee/vod-tender/archive/webhook"
)

// ErrNoCredentials is returned by platform lookups when TWITCH_CLIENT_ID/SECRET are unset.
var ErrNoCredentials = errors.New("twitch credentials not configured")

// helix is the platform surface the pipeline needs.
type helix interface {
	vod.VideoLookup
	vod.VideoLister
}

type noHelix struct{}

func (noHelix) GetVideo(context.Context, string) (*twitchapi.Video, error) {
	return nil, ErrNoCredentials
}

func (noHelix) GetUserID(context.Context, string) (string, error) { return "", ErrNoCredentials }

func (noHelix) ListVideos(context.Context, string, string, int) ([]twitchapi.VideoMeta, string, error) {
	return nil, "", ErrNoCredentials
}

// App holds the wired components.
type App struct {
	Config     *config.Config
	DB         *sql.DB
	Index      *db.VodIndex
	Registry   *vod.Registry
	Verifier   *vod.Verifier
	Downloader *vod.Downloader
	Matcher    *vod.Matcher
	Job        *vod.VerifyJob
	Events     *webhook.Dispatcher
	Logger     *slog.Logger
}

// New wires every component. database may be nil, which disables the index.
func New(cfg *config.Config, database *sql.DB, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, DB: database, Logger: logger}

	var idx vod.Indexer
	if database != nil {
		a.Index = &db.VodIndex{DB: database}
		idx = a.Index
	}

	runner := vod.ExecRunner{Timeout: cfg.ToolTimeout}
	var platform helix = noHelix{}
	if cfg.ValidateHelixReady() == nil {
		httpClient := &http.Client{Timeout: 15 * time.Second}
		platform = &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{
				ClientID:     cfg.TwitchClientID,
				ClientSecret: cfg.TwitchClientSecret,
				HTTPClient:   httpClient,
			},
			ClientID:   cfg.TwitchClientID,
			HTTPClient: httpClient,
			Limiter:    rate.NewLimiter(rate.Limit(cfg.HelixRatePerSec), int(cfg.HelixRatePerSec)+1),
		}
	} else {
		logger.Warn("twitch credentials missing; platform checks will fail", slog.String("component", "app"))
	}

	a.Registry = vod.NewRegistry(vod.RegistryOptions{
		Prober: vod.MediainfoProber{Bin: cfg.MediainfoPath, Runner: runner},
		Index:  idx,
		Logger: logger,
	})
	a.Verifier = &vod.Verifier{
		Videos:        platform,
		Runner:        runner,
		StreamlinkBin: cfg.StreamlinkPath,
		Method:        vod.MuteMethod(cfg.CheckMuteMethod),
		Logger:        logger,
	}
	a.Events = webhook.New(cfg.WebhookURL, logger)
	vod.SetMaxConcurrentDownloads(cfg.MaxConcurrentDownloads)
	a.Downloader = &vod.Downloader{
		Videos:         platform,
		Runner:         vod.ExecRunner{},
		StreamlinkBin:  cfg.StreamlinkPath,
		FFmpegBin:      cfg.FFmpegPath,
		CacheDir:       cfg.CacheDir,
		SegmentThreads: 4,
		Debug:          cfg.Debug,
		Verbose:        cfg.Verbose,
		Events:         a.Events,
		Logger:         logger,
	}
	a.Matcher = &vod.Matcher{Videos: platform, PageDelay: 250 * time.Millisecond}
	a.Job = &vod.VerifyJob{
		Registry:    a.Registry,
		Verifier:    a.Verifier,
		Root:        cfg.DataDir,
		Exclude:     []string{cfg.CacheDir, cfg.SavedVodsDir},
		Concurrency: cfg.VerifyConcurrency,
		Logger:      logger,
	}
	return a
}
