// Package detect classifies arbitrary input files into (type, format,
// confidence, metadata) using a cascade of independent detection methods.
package detect

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/JadissEL/Theconverter/internal/ffmpeg"
	"github.com/JadissEL/Theconverter/pkg/models"
)

// method is one strategy in the detection cascade. A method that cannot
// classify the file returns an empty format with a nil error.
type method interface {
	name() string
	confidence() float64
	attempt(path string) (string, error)
}

// extensionConfidence applies when no content-based method yields a format.
const extensionConfidence = 0.50

// Detector runs the detection cascade. The strategies are fixed and
// ordered; the reported format is the highest-confidence non-empty
// answer, not the first to succeed.
type Detector struct {
	methods []method
	prober  *ffmpeg.Prober
}

// New creates a Detector using prober for the deep metadata stage.
func New(prober *ffmpeg.Prober) *Detector {
	return &Detector{
		methods: []method{
			signatureDetector{},
			mimeDetector{},
		},
		prober: prober,
	}
}

// Detect classifies the file at path. It never fails on unreadable or
// unrecognizable input: such files yield a MediaTypeUnknown result with
// confidence 0.
func (d *Detector) Detect(ctx context.Context, path string) *models.DetectionResult {
	var (
		bestFormat     string
		bestConfidence float64
		bestMethod     string
	)

	for _, m := range d.methods {
		format, err := m.attempt(path)
		if err != nil {
			slog.Debug("Detection method failed", "method", m.name(), "path", path, "error", err)
			continue
		}
		if format == "" {
			continue
		}
		if m.confidence() > bestConfidence {
			bestFormat = format
			bestConfidence = m.confidence()
			bestMethod = m.name()
		}
	}

	// Deep metadata probe. Its metadata is merged into the result even if
	// another method wins the format decision on confidence.
	var (
		detectedType models.MediaType
		metadata     *models.MediaMetadata
	)

	info, err := d.prober.Probe(ctx, path)
	switch {
	case err == nil:
		metadata = info.Metadata()
		detectedType = info.Type()
		if info.Format != "" && d.prober.Confidence() > bestConfidence {
			bestFormat = info.Format
			bestConfidence = d.prober.Confidence()
			bestMethod = "probe"
		}
	case errors.Is(err, models.ErrDetectionTimeout):
		slog.Warn("Metadata probe timed out, degrading to lower-confidence result", "path", path)
	default:
		slog.Debug("Metadata probe failed", "path", path, "error", err)
	}

	// Extension fallback, only when nothing else produced a format.
	if bestFormat == "" {
		if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext != "" {
			if MediaTypeOf(ext) != models.MediaTypeUnknown {
				bestFormat = ext
				bestConfidence = extensionConfidence
				bestMethod = "extension"
			}
		}
	}

	if detectedType == "" || detectedType == models.MediaTypeUnknown {
		detectedType = MediaTypeOf(bestFormat)
	}

	if bestFormat == "" {
		slog.Info("Detection produced no result", "path", path)
		return &models.DetectionResult{
			DetectedType: models.MediaTypeUnknown,
			Confidence:   0,
			Metadata:     metadata,
		}
	}

	slog.Info("Detected media file",
		"path", path,
		"format", bestFormat,
		"type", detectedType,
		"method", bestMethod,
		"confidence", bestConfidence,
	)

	return &models.DetectionResult{
		DetectedType:     detectedType,
		DetectedFormat:   bestFormat,
		Confidence:       bestConfidence,
		Metadata:         metadata,
		SuggestedFormats: SuggestedFormats(detectedType),
	}
}
