package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JadissEL/Theconverter/internal/cache"
	"github.com/JadissEL/Theconverter/internal/config"
	"github.com/JadissEL/Theconverter/internal/convert"
	"github.com/JadissEL/Theconverter/internal/detect"
	"github.com/JadissEL/Theconverter/internal/ffmpeg"
	"github.com/JadissEL/Theconverter/internal/metrics"
	"github.com/JadissEL/Theconverter/pkg/models"
)

// mediaRunner answers ffprobe calls with a fixed audio description and
// materializes an output file for ffmpeg calls. The optional gate makes
// conversions block until released.
type mediaRunner struct {
	mu          sync.Mutex
	ffmpegCalls int
	gate        chan struct{}
}

const probeJSON = `{
	"streams": [{"codec_name": "mp3", "codec_type": "audio", "sample_rate": "44100", "channels": 2}],
	"format": {"format_name": "mp3", "duration": "5.0"}
}`

func (r *mediaRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if name == "ffprobe" {
		return []byte(probeJSON), nil, nil
	}

	r.mu.Lock()
	r.ffmpegCalls++
	r.mu.Unlock()

	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	outputPath := args[len(args)-1]
	return nil, nil, os.WriteFile(outputPath, []byte("converted media"), 0644)
}

func (r *mediaRunner) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ffmpegCalls
}

func newTestPipeline(t *testing.T, runner ffmpeg.Runner, withCache bool) (*Pipeline, *metrics.Metrics) {
	return newTestPipelineConcurrency(t, runner, withCache, 3)
}

func newTestPipelineConcurrency(t *testing.T, runner ffmpeg.Runner, withCache bool, concurrency int) (*Pipeline, *metrics.Metrics) {
	t.Helper()

	cfg := config.Default()
	cfg.Processing.TempDir = t.TempDir()
	cfg.Cache.Dir = t.TempDir()
	cfg.Processing.MaxConcurrentConversions = concurrency

	prober := ffmpeg.NewProber(runner, "ffprobe", time.Second)
	detector := detect.New(prober)
	converter := convert.New(cfg, runner, prober)

	var fileCache *cache.Cache
	if withCache {
		var err error
		fileCache, err = cache.New(cfg.Cache.Dir, 1024*1024, time.Hour)
		require.NoError(t, err)
	}

	m := metrics.New(prometheus.NewRegistry())
	return New(cfg, detector, converter, fileCache, m), m
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.mp3")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestConvertWithoutCache(t *testing.T) {
	runner := &mediaRunner{}
	p, _ := newTestPipeline(t, runner, false)

	result, err := p.Convert(context.Background(), writeInput(t, "audio bytes"), "wav", models.QualityMedium, nil)
	require.NoError(t, err)

	assert.False(t, result.CacheHit)
	assert.Equal(t, "wav", result.Format)
	assert.FileExists(t, result.OutputPath)
	assert.Equal(t, 1, runner.calls())
}

func TestRepeatedConversionHitsCache(t *testing.T) {
	runner := &mediaRunner{}
	p, m := newTestPipeline(t, runner, true)

	input := writeInput(t, "audio bytes")

	first, err := p.Convert(context.Background(), input, "wav", models.QualityMedium, nil)
	require.NoError(t, err)
	defer first.Release()
	assert.False(t, first.CacheHit, "first conversion must not be a cache hit")

	second, err := p.Convert(context.Background(), input, "wav", models.QualityMedium, nil)
	require.NoError(t, err)
	defer second.Release()

	assert.True(t, second.CacheHit)
	assert.Equal(t, first.OutputPath, second.OutputPath)
	assert.Equal(t, 1, runner.calls(), "cached request must not re-invoke the encoder")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMisses))
}

func TestDifferentQualityMissesCache(t *testing.T) {
	runner := &mediaRunner{}
	p, _ := newTestPipeline(t, runner, true)

	input := writeInput(t, "audio bytes")

	first, err := p.Convert(context.Background(), input, "wav", models.QualityLow, nil)
	require.NoError(t, err)
	defer first.Release()

	second, err := p.Convert(context.Background(), input, "wav", models.QualityHigh, nil)
	require.NoError(t, err)
	defer second.Release()

	assert.False(t, second.CacheHit, "different quality is a different fingerprint")
	assert.Equal(t, 2, runner.calls())
}

func TestConcurrentIdenticalRequestsShareOneConversion(t *testing.T) {
	runner := &mediaRunner{}
	p, _ := newTestPipeline(t, runner, true)

	input := writeInput(t, "audio bytes")

	const callers = 4
	results := make([]*models.ConversionResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.Convert(context.Background(), input, "wav", models.QualityMedium, nil)
		}()
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		results[i].Release()
	}

	assert.Equal(t, 1, runner.calls(), "identical concurrent requests must share one conversion")
}

func TestResourceExhaustion(t *testing.T) {
	runner := &mediaRunner{gate: make(chan struct{})}
	p, _ := newTestPipelineConcurrency(t, runner, true, 1)

	// Occupy the single slot with a conversion that blocks on the gate.
	busy := writeInput(t, "first input")
	done := make(chan error, 1)
	go func() {
		result, err := p.Convert(context.Background(), busy, "wav", models.QualityMedium, nil)
		if result != nil && result.Release != nil {
			result.Release()
		}
		done <- err
	}()

	// Wait until the blocking conversion holds the semaphore.
	require.Eventually(t, func() bool { return runner.calls() >= 1 }, time.Second, 5*time.Millisecond)

	other := writeInput(t, "second input")
	_, err := p.Convert(context.Background(), other, "wav", models.QualityMedium, nil)
	assert.True(t, errors.Is(err, models.ErrResourceExhausted))

	close(runner.gate)
	require.NoError(t, <-done)
}

func TestConvertUnsupportedFormat(t *testing.T) {
	runner := &mediaRunner{}
	p, m := newTestPipeline(t, runner, true)

	_, err := p.Convert(context.Background(), writeInput(t, "audio bytes"), "docx", models.QualityMedium, nil)

	var unsupported *models.UnsupportedFormatError
	assert.True(t, errors.As(err, &unsupported))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConversionsTotal.WithLabelValues("failure")))
}

func TestDetectReportsMetrics(t *testing.T) {
	runner := &mediaRunner{}
	p, m := newTestPipeline(t, runner, true)

	result := p.Detect(context.Background(), writeInput(t, "audio bytes"))
	require.NotNil(t, result)
	assert.Equal(t, models.MediaTypeAudio, result.DetectedType)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DetectionsTotal.WithLabelValues("audio")))
}

func TestCacheStatsAndClear(t *testing.T) {
	runner := &mediaRunner{}
	p, _ := newTestPipeline(t, runner, true)

	result, err := p.Convert(context.Background(), writeInput(t, "audio bytes"), "wav", models.QualityMedium, nil)
	require.NoError(t, err)
	result.Release()

	stats := p.CacheStats()
	assert.Equal(t, 1, stats.EntryCount)
	assert.Positive(t, stats.TotalSize)

	cleared := p.CacheClear()
	assert.Equal(t, 1, cleared.ClearedEntries)
	assert.Equal(t, 0, p.CacheStats().EntryCount)
}

func TestNilCacheGuards(t *testing.T) {
	runner := &mediaRunner{}
	p, _ := newTestPipeline(t, runner, false)

	assert.Equal(t, models.CacheStats{}, p.CacheStats())
	assert.Equal(t, models.ClearResult{}, p.CacheClear())
}
