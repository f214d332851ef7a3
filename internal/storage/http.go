package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// HTTP implements source fetching over HTTP/HTTPS. Publishing is not
// supported.
type HTTP struct {
	tempDir string
	client  *http.Client
}

// NewHTTP creates an HTTP download backend.
func NewHTTP(tempDir string) *HTTP {
	return &HTTP{
		tempDir: tempDir,
		client:  &http.Client{},
	}
}

// Fetch downloads sourceURI into the job's temp directory.
func (h *HTTP) Fetch(ctx context.Context, sourceURI, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURI, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", "theconverter/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP request failed with status: %d %s", resp.StatusCode, resp.Status)
	}

	jobDir := filepath.Join(h.tempDir, jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	dest := filepath.Join(jobDir, "source"+path.Ext(sourceURI))
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	slog.Debug("Fetched HTTP source", "jobId", jobID, "url", sourceURI, "dest", dest)
	return dest, nil
}

// Publish is unsupported for HTTP sources.
func (h *HTTP) Publish(ctx context.Context, localPath, destPath string) error {
	return fmt.Errorf("http storage does not support publishing")
}

// URL is unsupported for HTTP sources.
func (h *HTTP) URL(destPath string) (string, error) {
	return "", fmt.Errorf("http storage does not support published URLs")
}

// Type returns the backend name.
func (h *HTTP) Type() string { return "http" }
