// Package segment converts oversized inputs by splitting them into
// fixed-duration chunks, converting the chunks in parallel, and merging
// the results in index order. Peak disk and memory use stay proportional
// to one segment regardless of total input size.
package segment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JadissEL/Theconverter/internal/ffmpeg"
	"github.com/JadissEL/Theconverter/pkg/models"
)

// State names one phase of a segmented job.
type State string

const (
	StateSplit   State = "split"
	StateConvert State = "convert"
	StateMerge   State = "merge"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Progress weights per phase: split 0-20%, convert 20-90%, merge 90-100%.
const (
	splitWeight   = 0.20
	convertWeight = 0.70
)

// Segment is one time-bounded slice of the input. Segments of a job are
// ordered by Index; the merge step preserves that order exactly.
type Segment struct {
	Index    int
	Start    float64 // seconds from the beginning of the input
	Duration float64 // seconds
	Path     string
}

// ConvertFunc converts a single segment file into outputPath. Supplied by
// the converter so every segment is encoded with the same target
// format/quality parameters.
type ConvertFunc func(ctx context.Context, inputPath, outputPath string) error

// ProgressFunc receives overall job progress in [0,1].
type ProgressFunc func(fraction float64)

// Processor runs the Split -> ConvertSegments -> Merge state machine.
type Processor struct {
	runner          ffmpeg.Runner
	ffmpegBin       string
	segmentDuration time.Duration
	concurrency     int
}

// NewProcessor creates a segment processor. concurrency bounds how many
// segments convert in parallel.
func NewProcessor(runner ffmpeg.Runner, ffmpegBin string, segmentDuration time.Duration, concurrency int) *Processor {
	return &Processor{
		runner:          runner,
		ffmpegBin:       ffmpegBin,
		segmentDuration: segmentDuration,
		concurrency:     concurrency,
	}
}

// Process converts inputPath (with known duration, in seconds) to
// outputPath in outputFormat. Segment temporary files live in a scoped
// directory next to the output and are removed on every exit path.
func (p *Processor) Process(ctx context.Context, inputPath, outputPath, outputFormat string,
	duration float64, convert ConvertFunc, progress ProgressFunc) error {

	if progress == nil {
		progress = func(float64) {}
	}

	workDir, err := os.MkdirTemp(filepath.Dir(outputPath), "segments-")
	if err != nil {
		return fmt.Errorf("failed to create segment directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	state := StateSplit
	defer func() {
		if state != StateDone {
			slog.Error("Segmented job failed", "input", inputPath, "state", string(state))
		}
	}()

	segments, err := p.split(ctx, inputPath, workDir, duration)
	if err != nil {
		state = StateFailed
		return err
	}
	progress(splitWeight)

	state = StateConvert
	converted, err := p.convertSegments(ctx, segments, outputFormat, workDir, convert, progress)
	if err != nil {
		state = StateFailed
		return err
	}

	state = StateMerge
	progress(splitWeight + convertWeight)
	if err := p.merge(ctx, converted, outputPath, workDir); err != nil {
		state = StateFailed
		return err
	}

	state = StateDone
	progress(1.0)
	return nil
}

// split divides the input into fixed-duration segments without
// re-encoding. Each segment keeps its original encoding until the
// convert step.
func (p *Processor) split(ctx context.Context, inputPath, workDir string, duration float64) ([]Segment, error) {
	segmentSeconds := p.segmentDuration.Seconds()
	expected := int(math.Ceil(duration / segmentSeconds))

	slog.Info("Splitting input into segments",
		"input", inputPath,
		"duration", duration,
		"segmentSeconds", segmentSeconds,
		"expectedSegments", expected,
	)

	ext := strings.TrimPrefix(filepath.Ext(inputPath), ".")
	if ext == "" {
		ext = "mp4"
	}
	pattern := filepath.Join(workDir, "segment_%03d."+ext)

	_, stderr, err := p.runner.Run(ctx, p.ffmpegBin,
		"-i", inputPath,
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", int(segmentSeconds)),
		"-c", "copy", // lossless extraction, no re-encode during split
		"-reset_timestamps", "1",
		"-y",
		pattern,
	)
	if err != nil {
		return nil, &models.ConversionFailedError{
			Diagnostic: strings.TrimSpace(string(stderr)),
			Err:        fmt.Errorf("segment split failed: %w", err),
		}
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	var segments []Segment
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "segment_") {
			continue
		}
		segments = append(segments, Segment{Path: filepath.Join(workDir, name)})
	}
	if len(segments) == 0 {
		return nil, &models.ConversionFailedError{
			Err: fmt.Errorf("segment split produced no segments"),
		}
	}

	// The %03d pattern makes lexical order equal index order.
	sort.Slice(segments, func(i, j int) bool { return segments[i].Path < segments[j].Path })
	for i := range segments {
		segments[i].Index = i
		segments[i].Start = float64(i) * segmentSeconds
		segments[i].Duration = math.Min(segmentSeconds, duration-segments[i].Start)
	}

	slog.Info("Split complete", "input", inputPath, "segments", len(segments))
	return segments, nil
}

// convertSegments converts every segment independently, in parallel up to
// the configured concurrency. A single failure fails the job, identifying
// the failing segment index; no partial output is delivered.
func (p *Processor) convertSegments(ctx context.Context, segments []Segment, outputFormat, workDir string,
	convert ConvertFunc, progress ProgressFunc) ([]Segment, error) {

	converted := make([]Segment, len(segments))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, seg := range segments {
		g.Go(func() error {
			outPath := filepath.Join(workDir, fmt.Sprintf("converted_%03d.%s", i, outputFormat))
			if err := convert(gctx, seg.Path, outPath); err != nil {
				return &models.SegmentFailedError{Index: i, Err: err}
			}

			converted[i] = Segment{
				Index:    i,
				Start:    seg.Start,
				Duration: seg.Duration,
				Path:     outPath,
			}

			completed := done.Add(1)
			progress(splitWeight + convertWeight*float64(completed)/float64(len(segments)))

			slog.Debug("Segment converted", "index", i, "completed", completed, "total", len(segments))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return converted, nil
}

// merge concatenates converted segments in index order into one output
// stream without re-encoding.
func (p *Processor) merge(ctx context.Context, segments []Segment, outputPath, workDir string) error {
	listPath := filepath.Join(workDir, "concat_list.txt")

	var list strings.Builder
	for _, seg := range segments {
		abs, err := filepath.Abs(seg.Path)
		if err != nil {
			return fmt.Errorf("failed to resolve segment path: %w", err)
		}
		fmt.Fprintf(&list, "file '%s'\n", abs)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}

	slog.Info("Merging segments", "count", len(segments), "output", outputPath)

	_, stderr, err := p.runner.Run(ctx, p.ffmpegBin,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy", // stream copy; all segments share codec parameters
		"-y",
		outputPath,
	)
	if err != nil {
		return &models.ConversionFailedError{
			Diagnostic: strings.TrimSpace(string(stderr)),
			Err:        fmt.Errorf("segment merge failed: %w", err),
		}
	}

	return nil
}
