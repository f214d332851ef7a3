package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/JadissEL/Theconverter/pkg/models"
)

// HashFile computes the SHA-256 of the file's content, streamed so large
// inputs never load into memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fingerprint derives the deterministic cache key from the input content
// hash and the requested output parameters. Filenames and upload times
// never participate: identical content with identical parameters always
// maps to the same key.
func Fingerprint(contentHash, outputFormat string, quality models.Quality) string {
	h := sha256.Sum256([]byte(contentHash + "|" + outputFormat + "|" + string(quality)))
	return hex.EncodeToString(h[:])
}
