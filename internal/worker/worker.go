// Package worker runs batches of conversion jobs through the pipeline
// with a bounded pool.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JadissEL/Theconverter/internal/config"
	"github.com/JadissEL/Theconverter/internal/events"
	"github.com/JadissEL/Theconverter/internal/pipeline"
	"github.com/JadissEL/Theconverter/internal/storage"
	"github.com/JadissEL/Theconverter/pkg/models"
)

// Worker consumes conversion jobs from a queue, fetches their sources,
// converts them and publishes the results.
type Worker struct {
	cfg      *config.Config
	pipe     *pipeline.Pipeline
	output   storage.Storage
	tracker  *events.Tracker
	jobQueue chan *models.ConversionJob
	wg       sync.WaitGroup
}

// New creates a worker pool around the pipeline.
func New(cfg *config.Config, pipe *pipeline.Pipeline, output storage.Storage, tracker *events.Tracker) *Worker {
	return &Worker{
		cfg:      cfg,
		pipe:     pipe,
		output:   output,
		tracker:  tracker,
		jobQueue: make(chan *models.ConversionJob, cfg.Processing.MaxConcurrentConversions*2),
	}
}

// Start runs the pool until ctx is cancelled and all in-flight jobs
// have finished.
func (w *Worker) Start(ctx context.Context) {
	workers := w.cfg.Processing.MaxConcurrentConversions
	slog.Info("Starting worker pool", "workers", workers)

	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.loop(ctx, i)
	}

	<-ctx.Done()
	slog.Info("Stopping worker pool...")
	w.wg.Wait()
	slog.Info("Worker pool stopped")
}

// Submit queues a job. A missing JobID is assigned; a full queue is
// reported as resource exhaustion so callers can back off.
func (w *Worker) Submit(job *models.ConversionJob) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	job.CreatedAt = time.Now()
	job.Status = models.JobStatus{
		State:   models.JobStatePending,
		Message: "Job queued for processing",
	}
	w.tracker.Create(job.JobID)

	select {
	case w.jobQueue <- job:
		slog.Info("Job queued", "jobId", job.JobID, "source", job.SourceURI, "format", job.OutputFormat)
		return nil
	default:
		w.tracker.Remove(job.JobID)
		return models.ErrResourceExhausted
	}
}

// Status returns the tracked status of a job.
func (w *Worker) Status(jobID string) (models.JobStatus, bool) {
	return w.tracker.Status(jobID)
}

func (w *Worker) loop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Worker stopping", "workerId", workerID)
			return
		case job := <-w.jobQueue:
			w.process(ctx, workerID, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, workerID int, job *models.ConversionJob) {
	slog.Info("Processing job",
		"workerId", workerID,
		"jobId", job.JobID,
		"source", job.SourceURI,
		"format", job.OutputFormat,
		"quality", string(job.Quality),
	)

	err := w.execute(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			w.tracker.Update(job.JobID, models.JobStateCancelled, 0, "Job cancelled")
			slog.Info("Job cancelled", "jobId", job.JobID)
		} else {
			w.tracker.Fail(job.JobID, err)
			slog.Error("Job failed", "jobId", job.JobID, "error", err)
		}
		return
	}

	slog.Info("Job completed", "workerId", workerID, "jobId", job.JobID)
}

// execute runs one job end to end. The job's temp directory is removed
// on every exit path.
func (w *Worker) execute(ctx context.Context, job *models.ConversionJob) error {
	jobDir := filepath.Join(w.cfg.Processing.TempDir, job.JobID)
	defer func() {
		if err := os.RemoveAll(jobDir); err != nil {
			slog.Warn("Failed to clean up job temp directory", "jobId", job.JobID, "error", err)
		}
	}()

	w.tracker.Update(job.JobID, models.JobStateValidating, 0.05, "Fetching source")

	source, err := storage.ForSource(job.SourceType, w.cfg)
	if err != nil {
		return err
	}
	inputPath, err := source.Fetch(ctx, job.SourceURI, job.JobID)
	if err != nil {
		return fmt.Errorf("failed to fetch source: %w", err)
	}

	if err := w.validateInput(inputPath); err != nil {
		return err
	}

	w.tracker.Update(job.JobID, models.JobStateConverting, 0.1, "Converting")

	progress := func(fraction float64) {
		// Conversion spans 10-95% of overall job progress.
		w.tracker.Update(job.JobID, models.JobStateConverting, 0.1+0.85*fraction, "Converting")
	}

	result, err := w.pipe.Convert(ctx, inputPath, job.OutputFormat, job.Quality, progress)
	if err != nil {
		return err
	}
	if result.Release != nil {
		defer result.Release()
	} else {
		// Not cache-managed, so the output file is ours to clean up.
		defer os.Remove(result.OutputPath)
	}

	destPath := filepath.Join(job.JobID, "output."+job.OutputFormat)
	if err := w.output.Publish(ctx, result.OutputPath, destPath); err != nil {
		return fmt.Errorf("failed to publish output: %w", err)
	}

	outputURL, err := w.output.URL(destPath)
	if err != nil {
		outputURL = destPath
	}

	w.tracker.SetOutput(job.JobID, outputURL)
	w.tracker.Update(job.JobID, models.JobStateCompleted, 1.0, "Conversion completed")

	slog.Info("Published job output",
		"jobId", job.JobID,
		"output", outputURL,
		"size", result.Size,
		"cacheHit", result.CacheHit,
	)

	return nil
}

func (w *Worker) validateInput(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access source file: %w", err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("source file is empty")
	}

	maxBytes := int64(w.cfg.Processing.MaxFileSizeMB) * 1024 * 1024
	if maxBytes > 0 && fi.Size() > maxBytes {
		return fmt.Errorf("source file size %d exceeds maximum allowed (%dMB)",
			fi.Size(), w.cfg.Processing.MaxFileSizeMB)
	}

	return nil
}
