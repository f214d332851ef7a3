// Package convert builds and executes external transcoding commands for
// the supported input/output/quality combinations.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/JadissEL/Theconverter/internal/config"
	"github.com/JadissEL/Theconverter/internal/ffmpeg"
	"github.com/JadissEL/Theconverter/internal/segment"
	"github.com/JadissEL/Theconverter/pkg/models"
)

// Converter produces an output file for a ConversionRequest, delegating
// to the segment processor when the input qualifies as large.
type Converter struct {
	cfg      *config.Config
	runner   ffmpeg.Runner
	prober   *ffmpeg.Prober
	segments *segment.Processor
}

// New creates a Converter.
func New(cfg *config.Config, runner ffmpeg.Runner, prober *ffmpeg.Prober) *Converter {
	return &Converter{
		cfg:    cfg,
		runner: runner,
		prober: prober,
		segments: segment.NewProcessor(
			runner,
			cfg.FFmpeg.BinaryPath,
			time.Duration(cfg.Processing.SegmentDurationSeconds)*time.Second,
			cfg.Processing.SegmentConcurrency,
		),
	}
}

// Convert validates req against the format registry, transcodes the
// input into outputPath and validates the result. detection may be nil;
// the input is probed when its duration is needed and unknown.
// The input file is never mutated.
func (c *Converter) Convert(ctx context.Context, req models.ConversionRequest,
	detection *models.DetectionResult, outputPath string, progress segment.ProgressFunc) error {

	if err := c.validateRequest(req, detection); err != nil {
		return err
	}

	info, err := c.inputInfo(ctx, req.InputPath, detection)
	if err != nil {
		return err
	}

	size, err := fileSize(req.InputPath)
	if err != nil {
		return fmt.Errorf("cannot access input file: %w", err)
	}

	timeout := c.timeoutFor(size)
	convCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.IsLarge(info.Duration, size) {
		slog.Info("Input qualifies as large, using segment processor",
			"input", req.InputPath,
			"duration", info.Duration,
			"size", size,
		)
		err = c.segments.Process(convCtx, req.InputPath, outputPath, req.OutputFormat,
			info.Duration, c.segmentConvertFunc(req), progress)
	} else {
		err = c.convertDirect(convCtx, req, outputPath)
		if err == nil && progress != nil {
			progress(1.0)
		}
	}
	if err != nil {
		os.Remove(outputPath)
		return err
	}

	if err := c.validateOutput(ctx, outputPath, info.Duration); err != nil {
		os.Remove(outputPath)
		return err
	}

	return nil
}

// validateRequest checks the output format against the registry and the
// detected input type, before any external process is invoked.
func (c *Converter) validateRequest(req models.ConversionRequest, detection *models.DetectionResult) error {
	if !IsSupported(req.OutputFormat) {
		return &models.UnsupportedFormatError{
			Format: req.OutputFormat,
			Reason: "not in the supported format registry",
		}
	}
	if !req.Quality.Valid() {
		return &models.UnsupportedFormatError{
			Format: req.OutputFormat,
			Reason: fmt.Sprintf("unknown quality level %q", req.Quality),
		}
	}

	if detection != nil && detection.DetectedType != models.MediaTypeUnknown {
		outputType := FormatType(req.OutputFormat)
		if detection.DetectedType != outputType {
			return &models.UnsupportedFormatError{
				Format: req.OutputFormat,
				Reason: fmt.Sprintf("%s input cannot be converted to a %s-only format",
					detection.DetectedType, outputType),
			}
		}
	}

	return nil
}

// inputInfo resolves input duration, reusing detection metadata when the
// deep probe already produced it.
func (c *Converter) inputInfo(ctx context.Context, inputPath string, detection *models.DetectionResult) (*ffmpeg.MediaInfo, error) {
	if detection != nil && detection.Metadata != nil && detection.Metadata.Duration > 0 {
		return &ffmpeg.MediaInfo{Duration: detection.Metadata.Duration}, nil
	}

	info, err := c.prober.Probe(ctx, inputPath)
	if err != nil {
		if errors.Is(err, models.ErrDetectionTimeout) {
			// Proceed without a duration; segmentation and output
			// validation degrade gracefully.
			slog.Warn("Input probe timed out before conversion", "input", inputPath)
			return &ffmpeg.MediaInfo{}, nil
		}
		return nil, &models.ConversionFailedError{
			Err: fmt.Errorf("input probe failed: %w", err),
		}
	}
	return info, nil
}

func (c *Converter) convertDirect(ctx context.Context, req models.ConversionRequest, outputPath string) error {
	args := BuildArgs(req, outputPath, c.cfg.FFmpeg.HardwareAccel)

	slog.Info("Executing conversion",
		"input", req.InputPath,
		"output", outputPath,
		"format", req.OutputFormat,
		"quality", string(req.Quality),
	)

	_, stderr, err := c.runner.Run(ctx, c.cfg.FFmpeg.BinaryPath, args...)
	if err != nil {
		return &models.ConversionFailedError{
			Diagnostic: strings.TrimSpace(string(stderr)),
			Err:        err,
		}
	}
	return nil
}

// segmentConvertFunc adapts the direct conversion path for per-segment
// use, so every segment is encoded with identical target parameters.
// Each segment gets its own size-proportional deadline; a hung segment
// fails alone instead of consuming the whole job budget.
func (c *Converter) segmentConvertFunc(req models.ConversionRequest) segment.ConvertFunc {
	return func(ctx context.Context, inputPath, outputPath string) error {
		segReq := req
		segReq.InputPath = inputPath

		size, err := fileSize(inputPath)
		if err != nil {
			return fmt.Errorf("cannot access segment file: %w", err)
		}
		segCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(size))
		defer cancel()

		return c.convertDirect(segCtx, segReq, outputPath)
	}
}

// validateOutput rejects empty output and output whose duration drifted
// from the input's. A transcoder that silently truncates is caught here
// rather than surfaced as success.
func (c *Converter) validateOutput(ctx context.Context, outputPath string, inputDuration float64) error {
	size, err := fileSize(outputPath)
	if err != nil || size == 0 {
		return &models.ConversionFailedError{
			Err: fmt.Errorf("transcoder produced no output"),
		}
	}

	if inputDuration <= 0 {
		return nil
	}

	info, err := c.prober.Probe(ctx, outputPath)
	if err != nil {
		return &models.ConversionFailedError{
			Err: fmt.Errorf("output probe failed: %w", err),
		}
	}

	tolerance := math.Max(0.5, inputDuration*0.01)
	if math.Abs(info.Duration-inputDuration) > tolerance {
		return &models.ConversionFailedError{
			Err: fmt.Errorf("output duration %.2fs deviates from input %.2fs beyond tolerance %.2fs",
				info.Duration, inputDuration, tolerance),
		}
	}

	return nil
}

// IsLarge applies the configured segmentation thresholds: inputs above
// either bound go through the segment processor.
func (c *Converter) IsLarge(duration float64, size int64) bool {
	return duration > float64(c.cfg.Processing.LargeFileDurationSeconds) ||
		size > int64(c.cfg.Processing.LargeFileSizeMB)*1024*1024
}

// timeoutFor scales the conversion wall-clock bound with input size.
func (c *Converter) timeoutFor(size int64) time.Duration {
	sizeMB := int(size / (1024 * 1024))
	seconds := c.cfg.Processing.TimeoutBaseSeconds + sizeMB*c.cfg.Processing.TimeoutPerMBSeconds
	return time.Duration(seconds) * time.Second
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
