// Command archive runs the VOD archive service. It:
//   - Loads configuration and initializes structured logging.
//   - Optionally connects to Postgres and migrates the record index.
//   - Watches the storage root so externally edited descriptions are re-read.
//   - Runs the periodic deleted/muted verification passes.
//   - Exposes an HTTP server with /healthz, /metrics, record views and cron triggers.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/vod-tender/archive/app"
	"github.com/onnwee/vod-tender/archive/config"
	"github.com/onnwee/vod-tender/archive/db"
	"github.com/onnwee/vod-tender/archive/server"
	"github.com/onnwee/vod-tender/archive/telemetry"
	"github.com/onnwee/vod-tender/archive/vod"
)

func main() {
	// local dev convenience only; production relies on real env
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdown, err := telemetry.InitTracing("vod-archive", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, dir := range []string{cfg.DataDir, cfg.CacheDir, cfg.SavedVodsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("cannot create storage directory", slog.String("dir", dir), slog.Any("err", err))
			os.Exit(1)
		}
	}

	var database *sql.DB
	if cfg.DBDsn != "" {
		database, err = db.Connect(ctx, cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
	} else {
		slog.Info("DB_DSN not set; record index disabled")
	}

	a := app.New(cfg, database, slog.Default())

	watcher := &vod.Watcher{Registry: a.Registry, Root: cfg.DataDir, Logger: slog.Default()}
	go func() {
		if err := watcher.Run(ctx); err != nil {
			slog.Error("description watcher stopped", slog.Any("err", err))
		}
	}()
	go vod.StartVerificationJob(ctx, a.Job, cfg.VerifyInterval)

	opts := server.Options{
		Registry: a.Registry,
		Job:      a.Job,
		Root:     cfg.DataDir,
		Auth: server.AuthConfig{
			Username: cfg.AdminUsername,
			Password: cfg.AdminPassword,
			Token:    cfg.AdminToken,
		},
	}
	if a.Index != nil {
		opts.Index = a.Index
		opts.DB = database
	}
	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, server.NewMux(server.NewHandlers(opts))); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}

// setupLogging configures the default logger from LOG_LEVEL and LOG_FORMAT.
func setupLogging(cfg *config.Config) {
	lvl := slog.LevelInfo
	unknown := false
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		unknown = true
	}
	if cfg.Debug && lvl > slog.LevelDebug {
		lvl = slog.LevelDebug
	}
	var handler slog.Handler
	switch cfg.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	if unknown {
		slog.Warn("unknown LOG_LEVEL, using info", slog.String("value", cfg.LogLevel))
	}
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", cfg.LogFormat))
}
