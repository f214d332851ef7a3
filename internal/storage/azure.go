package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/JadissEL/Theconverter/internal/config"
)

// Azure implements Storage on Azure Blob Storage.
type Azure struct {
	tempDir   string
	container string
	client    *azblob.Client
}

// NewAzure creates an Azure Blob backend from configuration.
func NewAzure(cfg config.AzureBlobStorage, tempDir string) (*Azure, error) {
	if cfg.Account == "" || cfg.AccountKey == "" {
		return nil, fmt.Errorf("azure blob storage requires account and account_key")
	}

	endpointSuffix := cfg.EndpointSuffix
	if endpointSuffix == "" {
		endpointSuffix = "core.windows.net"
	}

	connectionString := fmt.Sprintf(
		"DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=%s",
		cfg.Account, cfg.AccountKey, endpointSuffix,
	)

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &Azure{
		tempDir:   tempDir,
		container: cfg.Container,
		client:    client,
	}, nil
}

// Fetch downloads a blob into the job's temp directory. sourceURI may be
// a full blob URL or a container/blob path.
func (a *Azure) Fetch(ctx context.Context, sourceURI, jobID string) (string, error) {
	container, blobName, err := a.parseBlobURI(sourceURI)
	if err != nil {
		return "", fmt.Errorf("invalid Azure blob URI: %w", err)
	}

	jobDir := filepath.Join(a.tempDir, jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	resp, err := a.client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		return "", fmt.Errorf("failed to download blob: %w", err)
	}
	defer resp.Body.Close()

	dest := filepath.Join(jobDir, "source"+path.Ext(blobName))
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to save blob: %w", err)
	}

	slog.Debug("Fetched Azure blob", "jobId", jobID, "container", container, "blob", blobName)
	return dest, nil
}

// Publish uploads localPath to destPath in the configured container.
func (a *Azure) Publish(ctx context.Context, localPath, destPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file for upload: %w", err)
	}
	defer f.Close()

	if _, err := a.client.UploadFile(ctx, a.container, destPath, f, nil); err != nil {
		return fmt.Errorf("failed to upload blob: %w", err)
	}

	slog.Debug("Published file to Azure blob storage", "container", a.container, "blob", destPath)
	return nil
}

// URL returns the blob URL for a published path.
func (a *Azure) URL(destPath string) (string, error) {
	base := a.client.URL()
	return strings.TrimSuffix(base, "/") + "/" + a.container + "/" + destPath, nil
}

// Type returns the backend name.
func (a *Azure) Type() string { return "azure-blob" }

// parseBlobURI accepts https://account.blob.../container/blob URLs or
// bare container/blob paths.
func (a *Azure) parseBlobURI(sourceURI string) (container, blob string, err error) {
	if strings.HasPrefix(sourceURI, "http://") || strings.HasPrefix(sourceURI, "https://") {
		u, err := url.Parse(sourceURI)
		if err != nil {
			return "", "", err
		}
		parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("blob URL missing container or blob name: %s", sourceURI)
		}
		return parts[0], parts[1], nil
	}

	parts := strings.SplitN(sourceURI, "/", 2)
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return parts[0], parts[1], nil
	}
	if a.container != "" {
		return a.container, sourceURI, nil
	}
	return "", "", fmt.Errorf("cannot resolve container for blob: %s", sourceURI)
}
