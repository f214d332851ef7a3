// Package ffmpeg wraps the external ffmpeg/ffprobe executables behind a
// mockable process-execution interface. Commands are always built as
// argument vectors, never shell strings.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its captured output.
// Cancellation and timeouts are driven by the context.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// Run executes name with args, capturing stdout and stderr. On non-zero
// exit the captured stderr is still returned so callers can surface the
// process diagnostics.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		err = ctx.Err()
	}

	return stdout.Bytes(), stderr.Bytes(), err
}

// Verify checks that the binary at path is present and executable by
// invoking it with -version.
func Verify(ctx context.Context, runner Runner, path string) error {
	out, _, err := runner.Run(ctx, path, "-version")
	if err != nil {
		return fmt.Errorf("%s not found or not executable: %w", path, err)
	}

	if lines := strings.Split(string(out), "\n"); len(lines) > 0 {
		slog.Info("Verified media binary", "path", path, "version", lines[0])
	}
	return nil
}
