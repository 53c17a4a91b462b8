// Command vodctl runs single pipeline operations against a description file.
//
// Usage:
//
//	vodctl <command> [flags] <description.json>
//
// Commands:
//
//	create    write a fresh description shell
//	load      print the record view
//	verify    check that the platform copy still exists
//	mute      check whether the platform copy is muted
//	match     link the record to the platform archive
//	download  fetch the platform copy (-quality)
//	finalize  mark a finished capture as finalized
//	cutlist   write the chapter cut list
//	archive   move the record into SAVED_VODS_DIR
//	delete    remove the record and every associated file
//
// Configuration comes from the same environment variables as the service.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/vod-tender/archive/app"
	"github.com/onnwee/vod-tender/archive/config"
	"github.com/onnwee/vod-tender/archive/db"
	"github.com/onnwee/vod-tender/archive/telemetry"
	"github.com/onnwee/vod-tender/archive/vod"
)

var errUsage = errors.New("usage: vodctl <create|load|verify|mute|match|download|finalize|cutlist|archive|delete> [flags] <description.json>")

func main() {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("invalid config", slog.Any("err", err))
		os.Exit(2)
	}
	telemetry.Init()

	var database *sql.DB
	if cfg.DBDsn != "" {
		if database, err = db.Connect(ctx, cfg.DBDsn); err != nil {
			slog.Warn("index unavailable", slog.Any("err", err))
			database = nil
		} else {
			defer database.Close()
		}
	}

	if err := run(ctx, app.New(cfg, database, slog.Default()), os.Args[1:], os.Stdout); err != nil {
		slog.Error("vodctl failed", slog.Any("err", err))
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	cmd := args[0]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	quality := fs.String("quality", a.Config.VodQuality, "download quality")
	noSave := fs.Bool("dry-run", false, "do not persist check results")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	file := fs.Arg(0)
	save := !*noSave

	var (
		rec *vod.Record
		err error
	)
	if cmd == "create" {
		rec, err = a.Registry.Create(ctx, file)
	} else {
		rec, err = a.Registry.Load(ctx, file)
	}
	if err != nil {
		return err
	}
	rec.Lock()
	defer rec.Unlock()

	var out any
	switch cmd {
	case "load", "create":
		out = rec.APIView()
	case "verify":
		ok, err := a.Verifier.CheckValid(ctx, rec, save)
		if err != nil {
			return err
		}
		out = map[string]any{"exists": ok, "exist_status": rec.ExistStatus.String()}
	case "mute":
		st, err := a.Verifier.CheckMuted(ctx, rec, save)
		if err != nil {
			return err
		}
		out = map[string]any{"mute_status": st.String()}
	case "match":
		ok, err := a.Matcher.MatchProviderVod(ctx, rec, save)
		if err != nil {
			return err
		}
		out = map[string]any{"matched": ok, "twitch_vod_id": rec.TwitchVODID}
	case "download":
		if !vod.ValidQuality(*quality) {
			return fmt.Errorf("%w: unknown quality %q", errUsage, *quality)
		}
		res, err := rec.DownloadVod(ctx, a.Downloader, *quality)
		if err != nil {
			return err
		}
		out = res
	case "finalize":
		if err := rec.Finalize(ctx); err != nil {
			return err
		}
		out = map[string]any{"finalized": rec.IsFinalized, "duration_seconds": rec.DurationSeconds}
	case "cutlist":
		if err := rec.SaveLosslessCut(ctx); err != nil {
			return err
		}
		out = map[string]string{"path": rec.LosslessCutPath()}
	case "archive":
		if err := rec.Archive(a.Config.SavedVodsDir); err != nil {
			return err
		}
		a.Registry.Remove(rec.Basename)
		out = map[string]string{"moved_to": a.Config.SavedVodsDir}
	case "delete":
		if err := rec.Delete(ctx); err != nil {
			return err
		}
		a.Registry.Remove(rec.Basename)
		out = map[string]string{"deleted": rec.Basename}
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
