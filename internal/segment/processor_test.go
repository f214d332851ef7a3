package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JadissEL/Theconverter/pkg/models"
)

// splitRunner emulates the two ffmpeg invocations a segmented job makes:
// the split call materializes numbered segment files, the concat call
// materializes the merged output.
type splitRunner struct {
	segmentCount int
	splitErr     error
	mergeErr     error

	mu         sync.Mutex
	mergeInput string // contents of the concat list the merge consumed
}

func (r *splitRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if contains(args, "-f", "segment") {
		if r.splitErr != nil {
			return nil, []byte("split boom"), r.splitErr
		}
		pattern := args[len(args)-1]
		for i := 0; i < r.segmentCount; i++ {
			path := fmt.Sprintf(pattern, i)
			if err := os.WriteFile(path, []byte(fmt.Sprintf("segment %d", i)), 0644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	}

	if contains(args, "-f", "concat") {
		if r.mergeErr != nil {
			return nil, []byte("merge boom"), r.mergeErr
		}
		listPath, _ := argAfter(args, "-i")
		list, err := os.ReadFile(listPath)
		if err != nil {
			return nil, nil, err
		}
		r.mu.Lock()
		r.mergeInput = string(list)
		r.mu.Unlock()
		outputPath := args[len(args)-1]
		return nil, nil, os.WriteFile(outputPath, []byte("merged"), 0644)
	}

	return nil, []byte("unexpected invocation"), errors.New("unexpected invocation")
}

func contains(args []string, flag, value string) bool {
	for i, a := range args {
		if a == flag && i+1 < len(args) && args[i+1] == value {
			return true
		}
	}
	return false
}

func argAfter(args []string, flag string) (string, bool) {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

// copyConvert stands in for a real per-segment transcode.
func copyConvert(ctx context.Context, inputPath, outputPath string) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append([]byte("converted "), data...), 0644)
}

func newTestProcessor(runner *splitRunner) *Processor {
	return NewProcessor(runner, "ffmpeg", 60*time.Second, 2)
}

func TestProcess(t *testing.T) {
	runner := &splitRunner{segmentCount: 5}
	p := newTestProcessor(runner)

	output := filepath.Join(t.TempDir(), "out.mp4")

	var mu sync.Mutex
	var fractions []float64
	progress := func(f float64) {
		mu.Lock()
		fractions = append(fractions, f)
		mu.Unlock()
	}

	err := p.Process(context.Background(), "/tmp/input.mp4", output, "mp4", 290.0, copyConvert, progress)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if _, err := os.Stat(output); err != nil {
		t.Fatalf("Expected merged output: %v", err)
	}

	// Merge consumed every converted segment in index order.
	var indices []int
	for _, line := range strings.Split(strings.TrimSpace(runner.mergeInput), "\n") {
		var idx int
		base := filepath.Base(strings.Trim(strings.TrimPrefix(line, "file "), "'"))
		if _, err := fmt.Sscanf(base, "converted_%03d.mp4", &idx); err != nil {
			t.Fatalf("Unexpected concat entry %q: %v", line, err)
		}
		indices = append(indices, idx)
	}
	if len(indices) != 5 {
		t.Fatalf("Expected 5 segments merged, got %d", len(indices))
	}
	for i, idx := range indices {
		if idx != i {
			t.Errorf("Merge order broken at position %d: got segment %d", i, idx)
		}
	}

	if len(fractions) == 0 || fractions[len(fractions)-1] != 1.0 {
		t.Errorf("Expected progress to finish at 1.0, got %v", fractions)
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] < fractions[i-1] {
			t.Errorf("Progress went backwards: %v", fractions)
		}
	}
}

func TestProcessCleansUpWorkDir(t *testing.T) {
	runner := &splitRunner{segmentCount: 3}
	p := newTestProcessor(runner)

	outDir := t.TempDir()
	output := filepath.Join(outDir, "out.mp4")

	if err := p.Process(context.Background(), "/tmp/input.mp4", output, "mp4", 150.0, copyConvert, nil); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			t.Errorf("Segment work directory %s should have been removed", entry.Name())
		}
	}
}

func TestProcessSplitFailure(t *testing.T) {
	runner := &splitRunner{splitErr: errors.New("exit status 1")}
	p := newTestProcessor(runner)

	err := p.Process(context.Background(), "/tmp/input.mp4", filepath.Join(t.TempDir(), "out.mp4"),
		"mp4", 290.0, copyConvert, nil)

	var failed *models.ConversionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Expected ConversionFailedError, got %v", err)
	}
	if failed.Diagnostic != "split boom" {
		t.Errorf("Expected split stderr in diagnostic, got %q", failed.Diagnostic)
	}
}

func TestProcessSegmentFailureIdentifiesIndex(t *testing.T) {
	runner := &splitRunner{segmentCount: 4}
	p := newTestProcessor(runner)

	failingConvert := func(ctx context.Context, inputPath, outputPath string) error {
		if strings.HasSuffix(inputPath, "segment_002.mp4") {
			return errors.New("encoder crashed")
		}
		return copyConvert(ctx, inputPath, outputPath)
	}

	err := p.Process(context.Background(), "/tmp/input.mp4", filepath.Join(t.TempDir(), "out.mp4"),
		"mp4", 220.0, failingConvert, nil)

	var segErr *models.SegmentFailedError
	if !errors.As(err, &segErr) {
		t.Fatalf("Expected SegmentFailedError, got %v", err)
	}
	if segErr.Index != 2 {
		t.Errorf("Expected failing segment index 2, got %d", segErr.Index)
	}
}

func TestProcessMergeFailure(t *testing.T) {
	runner := &splitRunner{segmentCount: 2, mergeErr: errors.New("exit status 1")}
	p := newTestProcessor(runner)

	output := filepath.Join(t.TempDir(), "out.mp4")
	err := p.Process(context.Background(), "/tmp/input.mp4", output, "mp4", 100.0, copyConvert, nil)

	var failed *models.ConversionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Expected ConversionFailedError, got %v", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("Failed merge must not leave an output file")
	}
}

func TestProcessNoSegments(t *testing.T) {
	runner := &splitRunner{segmentCount: 0}
	p := newTestProcessor(runner)

	err := p.Process(context.Background(), "/tmp/input.mp4", filepath.Join(t.TempDir(), "out.mp4"),
		"mp4", 100.0, copyConvert, nil)
	if err == nil {
		t.Fatal("Expected error when split produces no segments")
	}
}

func TestSegmentTiming(t *testing.T) {
	runner := &splitRunner{segmentCount: 3}
	p := newTestProcessor(runner)

	workDir := t.TempDir()
	segments, err := p.split(context.Background(), "/tmp/input.mp4", workDir, 150.0)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}

	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if seg.Index != i {
			t.Errorf("Segment %d has index %d", i, seg.Index)
		}
		if seg.Start != float64(i)*60.0 {
			t.Errorf("Segment %d start = %f, expected %f", i, seg.Start, float64(i)*60.0)
		}
	}
	// The final segment covers only the remainder.
	if last := segments[2]; last.Duration != 30.0 {
		t.Errorf("Expected final segment duration 30, got %f", last.Duration)
	}
}
