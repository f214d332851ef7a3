// Package storage abstracts where conversion sources come from and where
// finished outputs are published.
package storage

import (
	"context"
	"fmt"

	"github.com/JadissEL/Theconverter/internal/config"
)

// Storage moves files between the service and a backend.
type Storage interface {
	// Fetch downloads the file at sourceURI into the job's scoped temp
	// directory and returns the local path.
	Fetch(ctx context.Context, sourceURI, jobID string) (string, error)

	// Publish copies a finished local file to destPath in the backend.
	Publish(ctx context.Context, localPath, destPath string) error

	// URL returns an accessible URL for a published path, if the backend
	// supports it.
	URL(destPath string) (string, error)

	// Type returns the backend name.
	Type() string
}

// New creates the output storage backend selected by configuration.
func New(cfg *config.Config) (Storage, error) {
	switch cfg.Storage.Type {
	case "local":
		return NewLocal(cfg.Storage.Local.Path, cfg.Processing.TempDir), nil
	case "azure-blob":
		return NewAzure(cfg.Storage.AzureBlob, cfg.Processing.TempDir)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// ForSource creates a backend capable of fetching the given source type,
// independent of where outputs are published.
func ForSource(sourceType string, cfg *config.Config) (Storage, error) {
	switch sourceType {
	case "local":
		return NewLocal("", cfg.Processing.TempDir), nil
	case "http", "https":
		return NewHTTP(cfg.Processing.TempDir), nil
	case "azure-blob":
		return NewAzure(cfg.Storage.AzureBlob, cfg.Processing.TempDir)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}
