package vod

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound means the description file (or the remote video) is absent.
	ErrNotFound = errors.New("vod: not found")
	// ErrEmpty means the description file exists but has zero length.
	ErrEmpty = errors.New("vod: description is empty")
	// ErrMalformed means the description could not be parsed.
	ErrMalformed = errors.New("vod: description is malformed")
	// ErrUnresolvable means a verifier could not determine a status.
	ErrUnresolvable = errors.New("vod: status unresolvable")
	// ErrDeleted means the platform confirmed a previously known remote id no longer resolves.
	ErrDeleted = errors.New("vod: remote video deleted")
	// ErrNoSuchVideo means the platform has no video for the requested id.
	ErrNoSuchVideo = errors.New("vod: no such video")
	// ErrToolFailure wraps failures of external downloader, remuxer or prober binaries.
	ErrToolFailure = errors.New("vod: external tool failed")

	ErrNoFilename        = errors.New("vod: no filename bound")
	ErrNoDirectory       = errors.New("vod: no directory set")
	ErrNoStreamer        = errors.New("vod: no streamer identity resolved")
	ErrNotFinalized      = errors.New("vod: not finalized")
	ErrNoChapters        = errors.New("vod: no chapters")
	ErrNoSegments        = errors.New("vod: no segments")
	ErrAlreadyRegistered = errors.New("vod: basename already registered")
)

// ErrorClass represents whether an error should be retried or not.
type ErrorClass int

const (
	// ErrorClassRetryable indicates the operation should be retried (transient errors).
	ErrorClassRetryable ErrorClass = iota
	// ErrorClassFatal indicates the operation should not be retried (permanent errors).
	ErrorClassFatal
	// ErrorClassUnknown indicates the error type cannot be determined.
	ErrorClassUnknown
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassRetryable:
		return "retryable"
	case ErrorClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifyDownloadError tells the job layer whether a failed download is worth retrying.
//
// Typed errors win over text matching: a missing video or a deleted VOD is fatal,
// cancellation is retryable (temp files are kept for the next attempt). Otherwise the
// message (usually streamlink or ffmpeg output folded into the error) is matched against
// known permanent and transient patterns. Unknown errors are treated as retryable.
func ClassifyDownloadError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}
	switch {
	case errors.Is(err, ErrNoSuchVideo), errors.Is(err, ErrDeleted):
		return ErrorClassFatal
	case errors.Is(err, ErrNotFound):
		return ErrorClassFatal
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassRetryable
	}

	lower := strings.ToLower(err.Error())

	// server errors before the generic "unavailable" check
	for _, p := range []string{"500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable", "gateway timeout"} {
		if strings.Contains(lower, p) {
			return ErrorClassRetryable
		}
	}

	fatal := []string{
		"subscriber-only",
		"only available to subscribers",
		"login required",
		"401",
		"403",
		"unauthorized",
		"unable to find video",
		"404",
		"no playable streams",
		"no longer available",
		"does not exist",
		"executable file not found",
	}
	for _, p := range fatal {
		if strings.Contains(lower, p) {
			return ErrorClassFatal
		}
	}

	return ErrorClassRetryable
}

// IsRetryableError checks if an error should trigger retry logic.
func IsRetryableError(err error) bool {
	return ClassifyDownloadError(err) == ErrorClassRetryable
}

// IsFatalError checks if an error should not be retried.
func IsFatalError(err error) bool {
	return ClassifyDownloadError(err) == ErrorClassFatal
}
