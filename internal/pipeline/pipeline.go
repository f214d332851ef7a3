// Package pipeline is the façade through which orchestration layers
// (HTTP handlers, CLI, batch workers) drive detection and conversion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/JadissEL/Theconverter/internal/cache"
	"github.com/JadissEL/Theconverter/internal/config"
	"github.com/JadissEL/Theconverter/internal/convert"
	"github.com/JadissEL/Theconverter/internal/detect"
	"github.com/JadissEL/Theconverter/internal/metrics"
	"github.com/JadissEL/Theconverter/internal/segment"
	"github.com/JadissEL/Theconverter/pkg/models"
)

// Pipeline wires the detector, converter and cache behind the three
// transport-independent operations: Detect, Convert and the cache
// introspection calls.
type Pipeline struct {
	cfg       *config.Config
	detector  *detect.Detector
	converter *convert.Converter
	cache     *cache.Cache // nil when caching is disabled
	metrics   *metrics.Metrics

	// group guarantees at most one in-flight conversion per fingerprint;
	// sem bounds total concurrent conversions.
	group singleflight.Group
	sem   *semaphore.Weighted
}

// New creates a Pipeline. c may be nil to disable caching; m may be nil
// to disable metrics.
func New(cfg *config.Config, detector *detect.Detector, converter *convert.Converter,
	c *cache.Cache, m *metrics.Metrics) *Pipeline {

	if c != nil && m != nil {
		c.OnEvict = func(entries int, _ int64) {
			m.CacheEvictions.Add(float64(entries))
		}
	}

	return &Pipeline{
		cfg:       cfg,
		detector:  detector,
		converter: converter,
		cache:     c,
		metrics:   m,
		sem:       semaphore.NewWeighted(int64(cfg.Processing.MaxConcurrentConversions)),
	}
}

// Detect classifies the file at path. Detection never fails the upload:
// unreadable or unrecognizable input yields an unknown-type result.
func (p *Pipeline) Detect(ctx context.Context, path string) *models.DetectionResult {
	result := p.detector.Detect(ctx, path)
	if p.metrics != nil {
		p.metrics.DetectionsTotal.WithLabelValues(string(result.DetectedType)).Inc()
	}
	return result
}

// Convert converts the file at path into format at the given quality.
// Identical concurrent requests share a single conversion; repeated
// requests are served from the cache. progress may be nil.
func (p *Pipeline) Convert(ctx context.Context, path, format string, quality models.Quality,
	progress segment.ProgressFunc) (*models.ConversionResult, error) {

	started := time.Now()
	result, err := p.convert(ctx, path, format, quality, progress)

	if p.metrics != nil {
		switch {
		case err == nil && result.CacheHit:
			p.metrics.ConversionsTotal.WithLabelValues("cache_hit").Inc()
		case err == nil:
			p.metrics.ConversionsTotal.WithLabelValues("success").Inc()
			p.metrics.ConversionDuration.Observe(time.Since(started).Seconds())
		default:
			p.metrics.ConversionsTotal.WithLabelValues("failure").Inc()
		}
	}

	return result, err
}

func (p *Pipeline) convert(ctx context.Context, path, format string, quality models.Quality,
	progress segment.ProgressFunc) (*models.ConversionResult, error) {

	detection := p.Detect(ctx, path)

	req := models.ConversionRequest{
		InputPath:    path,
		OutputFormat: format,
		Quality:      quality,
	}

	if p.cache == nil {
		outputPath, err := p.runConversion(ctx, req, detection, progress)
		if err != nil {
			return nil, err
		}
		return p.resultFor(outputPath, format, quality, detection, false, nil)
	}

	contentHash, err := cache.HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint input: %w", err)
	}
	key := cache.Fingerprint(contentHash, format, quality)

	if entry, release, err := p.cache.Lookup(key); entry != nil {
		if p.metrics != nil {
			p.metrics.CacheHits.Inc()
		}
		slog.Info("Cache hit", "key", key, "path", entry.Path)
		return p.cachedResult(entry, release)
	} else if err != nil && !errors.Is(err, models.ErrCacheCorrupted) {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.CacheMisses.Inc()
	}

	// One conversion per fingerprint: concurrent requests for the same
	// key await this flight instead of spawning another transcode.
	_, err, _ = p.group.Do(key, func() (any, error) {
		// An earlier flight may have stored the result between our miss
		// and acquiring leadership.
		if entry, release, _ := p.cache.Lookup(key); entry != nil {
			release()
			return entry, nil
		}

		outputPath, err := p.runConversion(ctx, req, detection, progress)
		if err != nil {
			return nil, err
		}

		entry, err := p.cache.Store(key, outputPath, cache.Entry{
			ContentHash: contentHash,
			Format:      format,
			Quality:     quality,
			Metadata:    detection.Metadata,
		})
		if err != nil {
			os.Remove(outputPath)
			return nil, err
		}
		p.observeCacheSize()
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	entry, release, err := p.cache.Lookup(key)
	if err != nil || entry == nil {
		// Evicted between store and pin; rare enough to surface as a
		// retryable condition rather than loop.
		return nil, models.ErrResourceExhausted
	}

	result, err := p.cachedResult(entry, release)
	if result != nil {
		result.CacheHit = false // this call performed the conversion
	}
	return result, err
}

// runConversion performs one bounded external conversion into a scoped
// output file and returns its path. The caller owns the file.
func (p *Pipeline) runConversion(ctx context.Context, req models.ConversionRequest,
	detection *models.DetectionResult, progress segment.ProgressFunc) (string, error) {

	if !p.sem.TryAcquire(1) {
		return "", models.ErrResourceExhausted
	}
	defer p.sem.Release(1)

	outDir := filepath.Join(p.cfg.Processing.TempDir, "outputs")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.CreateTemp(outDir, "convert-*."+req.OutputFormat)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	outputPath := out.Name()
	out.Close()

	if p.metrics != nil && detection.Metadata != nil {
		if size, serr := fileSize(req.InputPath); serr == nil &&
			p.converter.IsLarge(detection.Metadata.Duration, size) {
			p.metrics.SegmentJobsTotal.Inc()
		}
	}

	if err := p.converter.Convert(ctx, req, detection, outputPath, progress); err != nil {
		os.Remove(outputPath)
		return "", err
	}

	return outputPath, nil
}

func (p *Pipeline) cachedResult(entry *cache.Entry, release func()) (*models.ConversionResult, error) {
	return &models.ConversionResult{
		OutputPath: entry.Path,
		Format:     entry.Format,
		Quality:    entry.Quality,
		Size:       entry.Size,
		Metadata:   entry.Metadata,
		CacheHit:   true,
		Release:    release,
	}, nil
}

func (p *Pipeline) resultFor(outputPath, format string, quality models.Quality,
	detection *models.DetectionResult, hit bool, release func()) (*models.ConversionResult, error) {

	size, err := fileSize(outputPath)
	if err != nil {
		return nil, fmt.Errorf("cannot stat conversion output: %w", err)
	}
	return &models.ConversionResult{
		OutputPath: outputPath,
		Format:     format,
		Quality:    quality,
		Size:       size,
		Metadata:   detection.Metadata,
		CacheHit:   hit,
		Release:    release,
	}, nil
}

// CacheStats reports the current cache contents.
func (p *Pipeline) CacheStats() models.CacheStats {
	if p.cache == nil {
		return models.CacheStats{}
	}
	return p.cache.Stats()
}

// CacheClear empties the cache and reports what was freed.
func (p *Pipeline) CacheClear() models.ClearResult {
	if p.cache == nil {
		return models.ClearResult{}
	}
	result := p.cache.Clear()
	p.observeCacheSize()
	return result
}

func (p *Pipeline) observeCacheSize() {
	if p.metrics == nil || p.cache == nil {
		return
	}
	stats := p.cache.Stats()
	p.metrics.CacheSizeBytes.Set(float64(stats.TotalSize))
	p.metrics.CacheEntries.Set(float64(stats.EntryCount))
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
