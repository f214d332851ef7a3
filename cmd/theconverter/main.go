package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JadissEL/Theconverter/internal/cache"
	"github.com/JadissEL/Theconverter/internal/config"
	"github.com/JadissEL/Theconverter/internal/convert"
	"github.com/JadissEL/Theconverter/internal/detect"
	"github.com/JadissEL/Theconverter/internal/events"
	"github.com/JadissEL/Theconverter/internal/ffmpeg"
	"github.com/JadissEL/Theconverter/internal/metrics"
	"github.com/JadissEL/Theconverter/internal/pipeline"
	"github.com/JadissEL/Theconverter/internal/storage"
	"github.com/JadissEL/Theconverter/internal/worker"
	"github.com/JadissEL/Theconverter/pkg/models"
)

const (
	serviceName    = "theconverter"
	serviceVersion = "1.0.0"
)

func main() {
	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting conversion service",
		"service", serviceName,
		"version", serviceVersion,
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set log level from config
	setLogLevel(cfg.Observability.LogLevel)

	slog.Info("Configuration loaded successfully",
		"storage_type", cfg.Storage.Type,
		"max_concurrent_conversions", cfg.Processing.MaxConcurrentConversions,
		"cache_enabled", cfg.Cache.Enabled,
		"server_port", cfg.Server.Port,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Verify the ffmpeg binaries are usable before accepting work
	runner := &ffmpeg.ExecRunner{}
	if err := ffmpeg.Verify(ctx, runner, cfg.FFmpeg.BinaryPath); err != nil {
		slog.Error("ffmpeg is not available", "path", cfg.FFmpeg.BinaryPath, "error", err)
		os.Exit(1)
	}
	if err := ffmpeg.Verify(ctx, runner, cfg.FFmpeg.ProbePath); err != nil {
		slog.Error("ffprobe is not available", "path", cfg.FFmpeg.ProbePath, "error", err)
		os.Exit(1)
	}

	// Initialize components
	prober := ffmpeg.NewProber(runner, cfg.FFmpeg.ProbePath,
		time.Duration(cfg.FFmpeg.ProbeTimeoutSeconds)*time.Second)
	detector := detect.New(prober)
	converter := convert.New(cfg, runner, prober)

	var fileCache *cache.Cache
	if cfg.Cache.Enabled {
		fileCache, err = cache.New(cfg.Cache.Dir,
			int64(cfg.Cache.MaxSizeMB)*1024*1024,
			time.Duration(cfg.Cache.MaxAgeHours)*time.Hour)
		if err != nil {
			slog.Error("Failed to initialize cache", "dir", cfg.Cache.Dir, "error", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	pipe := pipeline.New(cfg, detector, converter, fileCache, m)

	output, err := storage.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "type", cfg.Storage.Type, "error", err)
		os.Exit(1)
	}

	tracker := events.NewTracker()
	pool := worker.New(cfg, pipe, output, tracker)

	// Start HTTP server for the job API
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: setupHTTPRoutes(pool, pipe),
	}

	// Start health check server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HealthCheckPort),
		Handler: setupHealthRoutes(),
	}

	var wg sync.WaitGroup

	// Start main HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("Starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Start health check server
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("Starting health check server", "addr", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health check server error", "error", err)
		}
	}()

	// Start worker pool
	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.Start(ctx)
	}()

	// Start metrics server if enabled
	if cfg.Observability.MetricsPort > 0 {
		metricsServer := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Observability.MetricsPort),
			Handler: setupMetricsRoutes(registry),
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("Starting metrics server", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down service...")

	// Cancel context to stop the worker pool
	cancel()

	// Shutdown HTTP servers gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down HTTP server", "error", err)
	}

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down health server", "error", err)
	}

	// Wait for all goroutines to finish
	wg.Wait()

	slog.Info("Service shutdown complete")
}

// setLogLevel configures the global log level based on config
func setLogLevel(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

type convertRequest struct {
	SourceURI    string `json:"sourceUri"`
	SourceType   string `json:"sourceType"`
	OutputFormat string `json:"outputFormat"`
	Quality      string `json:"quality"`
}

// setupHTTPRoutes creates the main HTTP server routes
func setupHTTPRoutes(pool *worker.Worker, pipe *pipeline.Pipeline) http.Handler {
	mux := http.NewServeMux()

	// Submit a conversion job
	mux.HandleFunc("POST /convert", func(w http.ResponseWriter, r *http.Request) {
		var req convertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.SourceURI == "" || req.OutputFormat == "" {
			http.Error(w, "sourceUri and outputFormat are required", http.StatusBadRequest)
			return
		}

		quality := models.Quality(req.Quality)
		if req.Quality == "" {
			quality = models.QualityMedium
		}
		if !quality.Valid() {
			http.Error(w, "unknown quality level", http.StatusBadRequest)
			return
		}

		sourceType := req.SourceType
		if sourceType == "" {
			sourceType = "local"
		}

		job := &models.ConversionJob{
			SourceURI:    req.SourceURI,
			SourceType:   sourceType,
			OutputFormat: req.OutputFormat,
			Quality:      quality,
		}
		if err := pool.Submit(job); err != nil {
			http.Error(w, "service is at capacity, retry later", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"jobId": job.JobID})
	})

	// Job status
	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		status, ok := pool.Status(r.PathValue("id"))
		if !ok {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})

	// Cache statistics
	mux.HandleFunc("GET /cache/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pipe.CacheStats())
	})

	// Clear the cache
	mux.HandleFunc("POST /cache/clear", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pipe.CacheClear())
	})

	// Status endpoint
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"service":"%s","version":"%s","status":"running"}`, serviceName, serviceVersion)
	})

	return mux
}

// setupHealthRoutes creates health check routes
func setupHealthRoutes() http.Handler {
	mux := http.NewServeMux()

	// Liveness probe
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	// Readiness probe. ffmpeg availability is checked at startup, so a
	// running process is a ready process.
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Ready")
	})

	return mux
}

// setupMetricsRoutes creates metrics endpoint
func setupMetricsRoutes(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}
