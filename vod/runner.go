package vod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Runner executes an external tool and returns its captured output.
// A non-nil error with non-empty output is normal: several tools print the
// interesting diagnostics and then exit non-zero.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs binaries with os/exec. Timeout bounds each invocation; zero means
// only the caller's context applies.
type ExecRunner struct {
	Timeout time.Duration
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	start := time.Now()
	err := cmd.Run()
	slog.Debug("tool finished", slog.String("component", "tool"), slog.String("bin", name), slog.Duration("took", time.Since(start)), slog.Any("err", err))
	if err != nil {
		if ctx.Err() != nil {
			return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("%s: %w", name, ctx.Err())
		}
		var ee *exec.Error
		if errors.As(err, &ee) {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrToolFailure, name, err)
		}
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}
