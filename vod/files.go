package vod

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

// Artifact names derived from the basename.
func (r *Record) DescriptionPath() string { return r.Path(r.Basename + ".json") }
func (r *Record) ChatPath() string { return r.Path(r.Basename + ".chat") }
func (r *Record) VodPath() string { return r.Path(r.Basename + "_vod.mp4") }
func (r *Record) ChatRenderPath() string { return r.Path(r.Basename + "_chat.mp4") }
func (r *Record) ChatMaskPath() string { return r.Path(r.Basename + "_chat_mask.mp4") }
func (r *Record) ChatBurnPath() string { return r.Path(r.Basename + "_burned.mp4") }
func (r *Record) ChatDumpPath() string { return r.Path(r.Basename + ".chatdump") }
func (r *Record) CapturePlaylist() string { return r.Path(r.Basename + ".m3u8") }
func (r *Record) AdBreakPath() string { return r.Path(r.Basename + ".adbreak") }
func (r *Record) ConvertedPath() string { return r.Path(r.Basename + ".mp4") }

func (r *Record) artifactNames() []string {
	b := r.Basename
	return []string{
		b + ".json",
		b + ".chat",
		b + "_vod.mp4",
		b + "-llc-edl.csv",
		b + "_chat.mp4",
		b + "_chat_mask.mp4",
		b + "_burned.mp4",
		b + ".chatdump",
		b + ".chatdump.txt",
		b + ".chatdump.line",
		b + ".adbreak",
		b + ".m3u8",
	}
}

// AssociatedFiles lists the file names (relative to Directory) that belong to the record
// and currently exist. The list is computed on every call.
func (r *Record) AssociatedFiles() []string {
	names := r.artifactNames()
	for _, s := range r.Segments {
		names = append(names, s.Basename)
	}
	for _, s := range r.SegmentsRaw {
		if s != "" {
			names = append(names, filepath.Base(s))
		}
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if fileExists(r.Path(n)) {
			out = append(out, n)
		}
	}
	return out
}

// The predicates below stat the filesystem on every call. Capture the value once if a
// stable answer is needed across several checks.

func (r *Record) IsConverted() bool {
	return r.IsFinalized && len(r.Segments) > 0 && fileExists(r.Segments[0].Filename)
}
func (r *Record) IsChatDownloaded() bool { return fileExists(r.ChatPath()) }
func (r *Record) IsVodDownloaded() bool { return fileExists(r.VodPath()) }
func (r *Record) IsLosslessCutGenerated() bool { return fileExists(r.LosslessCutPath()) }
func (r *Record) IsChatdumpCaptured() bool { return fileExists(r.ChatDumpPath()) }
func (r *Record) IsCapturePaused() bool { return fileExists(r.AdBreakPath()) }
func (r *Record) IsChatRendered() bool { return fileExists(r.ChatRenderPath()) }
func (r *Record) IsChatBurned() bool { return fileExists(r.ChatBurnPath()) }

// Delete removes every associated file and drops the index row. The record stays
// resident; callers remove it from the Registry.
func (r *Record) Delete(ctx context.Context) error {
	if r.Directory == "" {
		return ErrNoDirectory
	}
	r.log.Info("deleting vod files")
	var errs []error
	for _, n := range r.AssociatedFiles() {
		if err := os.Remove(r.Path(n)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if r.index != nil {
		if err := r.index.DeleteRecord(ctx, r.Basename); err != nil {
			r.log.Warn("index delete failed", slog.Any("err", err))
		}
	}
	return errors.Join(errs...)
}

// Move relocates every existing associated file into dir. Directory is not updated;
// reload the record from its new location.
func (r *Record) Move(dir string) error {
	if r.Directory == "" {
		return ErrNoDirectory
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	var errs []error
	for _, n := range r.AssociatedFiles() {
		src, dst := r.Path(n), filepath.Join(dir, n)
		r.log.Debug("moving file", slog.String("from", src), slog.String("to", dst))
		if err := moveFile(src, dst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Archive moves the file set to the saved VODs directory.
func (r *Record) Archive(savedDir string) error {
	if savedDir == "" {
		return ErrNoDirectory
	}
	r.log.Info("archiving vod", slog.String("to", savedDir))
	return r.Move(savedDir)
}

// moveFile renames src to dst, copying across filesystems when rename cannot.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var le *os.LinkError
	if !errors.As(err, &le) || !errors.Is(le.Err, syscall.EXDEV) {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
