package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Local implements Storage on the local filesystem.
type Local struct {
	basePath string
	tempDir  string
}

// NewLocal creates a local storage backend rooted at basePath.
func NewLocal(basePath, tempDir string) *Local {
	return &Local{basePath: basePath, tempDir: tempDir}
}

// Fetch copies a local file into the job's temp directory so the
// pipeline never touches the caller's original.
func (l *Local) Fetch(ctx context.Context, sourceURI, jobID string) (string, error) {
	localPath := strings.TrimPrefix(sourceURI, "file://")

	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("source file not found: %w", err)
	}

	jobDir := filepath.Join(l.tempDir, jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	dest := filepath.Join(jobDir, "source"+filepath.Ext(localPath))
	if err := copyFile(localPath, dest); err != nil {
		return "", fmt.Errorf("failed to copy source file: %w", err)
	}

	slog.Debug("Fetched local source", "jobId", jobID, "source", localPath, "dest", dest)
	return dest, nil
}

// Publish copies localPath to destPath under the base path.
func (l *Local) Publish(ctx context.Context, localPath, destPath string) error {
	fullDest := filepath.Join(l.basePath, destPath)

	if err := os.MkdirAll(filepath.Dir(fullDest), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := copyFile(localPath, fullDest); err != nil {
		return fmt.Errorf("failed to publish file: %w", err)
	}

	slog.Debug("Published file to local storage", "source", localPath, "dest", fullDest)
	return nil
}

// URL returns a file:// URL for the published path.
func (l *Local) URL(destPath string) (string, error) {
	abs, err := filepath.Abs(filepath.Join(l.basePath, destPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Type returns the backend name.
func (l *Local) Type() string { return "local" }

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
