package vod

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/vod-tender/archive/telemetry"
	"github.com/onnwee/vod-tender/archive/twitchapi"
)

// streamlinkNoVideo is printed by streamlink for unknown ids; its exit status is unreliable.
const streamlinkNoVideo = "error: Unable to find video:"

// Downloader pulls platform VODs with streamlink and remuxes them with ffmpeg.
// Concurrent calls for the same id are serialized; the temp capture in CacheDir is
// shared between attempts and kept on failure or cancellation.
type Downloader struct {
	Videos         VideoLookup
	Runner         Runner
	StreamlinkBin  string
	FFmpegBin      string
	CacheDir       string
	SegmentThreads int
	Debug          bool
	Verbose        bool
	Events         EventDispatcher
	Logger         *slog.Logger

	locks   keyedMutex
	cancels cancelRegistry
}

// DownloadResult reports where the download ended up.
type DownloadResult struct {
	Path    string `json:"path"`
	Success bool   `json:"success"`
}

func (d *Downloader) runner() Runner {
	if d.Runner != nil {
		return d.Runner
	}
	return ExecRunner{}
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

// TempPath is the shared cache location of an in-progress capture for id.
func (d *Downloader) TempPath(id string) string {
	return filepath.Join(d.CacheDir, id+".ts")
}

// Cancel stops an in-flight download of id. The temp file is left for a retry.
func (d *Downloader) Cancel(id string) bool { return d.cancels.cancel(id) }

// Active reports whether a download of id is running.
func (d *Downloader) Active(id string) bool { return d.cancels.active(id) }

// DownloadVideo fetches video id at quality into dest. ErrNoSuchVideo is returned, without
// running any tool, when the platform has no such video. Once the lookup succeeded every
// outcome emits an ActionVideoDownload event; a failed remux is reported only through it,
// with Success false and no file at dest.
func (d *Downloader) DownloadVideo(ctx context.Context, id, quality, dest string) (result DownloadResult, err error) {
	logger := d.Logger
	if logger == nil {
		logger = telemetry.LoggerWithCorr(ctx)
	}
	log := logger.With(slog.String("component", "vod_download"), slog.String("video_id", id))

	ctx, span := telemetry.StartSpan(ctx, "vod", "vod.download", attribute.String("video_id", id), attribute.String("quality", quality))
	defer span.End()

	video, err := d.Videos.GetVideo(ctx, id)
	switch {
	case errors.Is(err, twitchapi.ErrNotFound), err == nil && video == nil:
		log.Error("no video found for id")
		telemetry.RecordError(span, ErrNoSuchVideo)
		return DownloadResult{}, fmt.Errorf("%w: %s", ErrNoSuchVideo, id)
	case err != nil:
		telemetry.RecordError(span, err)
		return DownloadResult{}, fmt.Errorf("video lookup %s: %w", id, err)
	}

	unlock := d.locks.lock(id)
	defer unlock()

	result = DownloadResult{Path: dest}
	defer func() {
		ev := d.Events
		if ev == nil {
			ev = LogDispatcher{}
		}
		ev.Dispatch(context.WithoutCancel(ctx), ActionVideoDownload, DownloadFinished{Success: result.Success, Path: result.Path})
		telemetry.DownloadFinished(result.Success)
	}()

	temp := d.TempPath(id)
	for _, dir := range []string{filepath.Dir(temp), filepath.Dir(dest)} {
		if merr := os.MkdirAll(dir, 0o755); merr != nil {
			return result, fmt.Errorf("create %s: %w", dir, merr)
		}
	}

	if !fileExists(temp) && !fileExists(dest) {
		if cerr := d.capture(ctx, log, id, video.URL, quality, temp); cerr != nil {
			telemetry.RecordError(span, cerr)
			log.Error("capture failed", slog.String("error_class", ClassifyDownloadError(cerr).String()), slog.Any("err", cerr))
			return result, cerr
		}
	} else {
		log.Info("reusing existing capture", slog.Bool("temp", fileExists(temp)), slog.Bool("final", fileExists(dest)))
	}

	if fileExists(dest) {
		result.Success = true
	} else {
		result.Success = d.remux(ctx, log, temp, dest)
	}

	return result, nil
}

func (d *Downloader) capture(ctx context.Context, log *slog.Logger, id, url, quality, temp string) error {
	if url == "" {
		url = "https://www.twitch.tv/videos/" + id
	}
	if quality == "" {
		quality = "best"
	}
	threads := d.SegmentThreads
	if threads <= 0 {
		threads = 10
	}
	args := []string{
		"--ffmpeg-ffmpeg", orDefault(d.FFmpegBin, "ffmpeg"),
		"-o", temp,
		"--hls-segment-threads", strconv.Itoa(threads),
		"--url", url,
		"--default-stream", quality,
	}
	if d.Debug || d.Verbose {
		args = append(args, "--loglevel", "debug")
	} else {
		args = append(args, "--loglevel", "info")
	}

	if !acquireDownloadSlot(ctx) {
		return ctx.Err()
	}
	defer releaseDownloadSlot()

	dlCtx, cancel := context.WithCancel(ctx)
	d.cancels.add(id, cancel)
	defer func() {
		d.cancels.remove(id)
		cancel()
	}()

	log.Info("starting download", slog.String("quality", quality), slog.String("temp", temp))
	telemetry.DownloadStarted()
	start := time.Now()
	stdout, stderr, err := d.runner().Run(dlCtx, orDefault(d.StreamlinkBin, "streamlink"), args...)
	out := string(stdout) + string(stderr)
	log.Info("download finished", slog.Duration("took", time.Since(start)), slog.Any("err", err))

	if strings.Contains(out, streamlinkNoVideo) {
		return fmt.Errorf("%w: %s", ErrNoSuchVideo, id)
	}
	if err != nil {
		if dlCtx.Err() != nil {
			log.Warn("download canceled, keeping temp file", slog.String("temp", temp))
			return fmt.Errorf("download %s: %w", id, dlCtx.Err())
		}
		if errors.Is(err, ErrToolFailure) {
			return err
		}
		return fmt.Errorf("%w: streamlink: %v: %s", ErrToolFailure, err, tail(out, 512))
	}
	if !fileExists(temp) {
		return fmt.Errorf("%w: streamlink produced no file", ErrToolFailure)
	}
	return nil
}

// remux repackages temp into dest through a partial file next to dest that is renamed
// into place only when ffmpeg succeeds. Failures keep temp and are only logged.
func (d *Downloader) remux(ctx context.Context, log *slog.Logger, temp, dest string) bool {
	partial := dest + ".part"
	var stderr []byte
	var err error
	took := telemetry.TimeFunc(telemetry.RemuxDuration, func() {
		_, stderr, err = d.runner().Run(ctx, orDefault(d.FFmpegBin, "ffmpeg"),
			"-y", "-i", temp, "-c", "copy", "-bsf:a", "aac_adtstoasc", "-f", "mp4", partial)
	})
	if err != nil || !fileExists(partial) {
		if rerr := os.Remove(partial); rerr != nil && !os.IsNotExist(rerr) {
			log.Warn("failed to remove partial remux output", slog.String("path", partial), slog.Any("err", rerr))
		}
		log.Error("remux failed, keeping temp file", slog.String("temp", temp), slog.Any("err", err), slog.String("stderr", tail(string(stderr), 512)))
		return false
	}
	if err := os.Rename(partial, dest); err != nil {
		log.Error("failed to move remux output into place", slog.String("path", dest), slog.Any("err", err))
		return false
	}
	if err := os.Remove(temp); err != nil {
		log.Warn("failed to remove temp file", slog.Any("err", err))
	}
	log.Info("remux complete", slog.String("path", dest), slog.Duration("took", took))
	return true
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// DownloadVod fetches the platform copy of r into its _vod.mp4 artifact.
func (r *Record) DownloadVod(ctx context.Context, d *Downloader, quality string) (DownloadResult, error) {
	if r.TwitchVODID == "" {
		return DownloadResult{}, fmt.Errorf("%w: %s has no remote id", ErrUnresolvable, r.Basename)
	}
	r.log.Info("downloading platform copy", slog.String("video_id", r.TwitchVODID), slog.String("quality", quality))
	return d.DownloadVideo(ctx, r.TwitchVODID, quality, r.VodPath())
}
