package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	FFmpeg        FFmpegConfig        `yaml:"ffmpeg" json:"ffmpeg"`
	Processing    ProcessingConfig    `yaml:"processing" json:"processing"`
	Cache         CacheConfig         `yaml:"cache" json:"cache"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port            int    `yaml:"port" json:"port"`
	Host            string `yaml:"host" json:"host"`
	HealthCheckPort int    `yaml:"health_check_port" json:"health_check_port"`
}

type FFmpegConfig struct {
	BinaryPath          string `yaml:"binary_path" json:"binary_path"`
	ProbePath           string `yaml:"probe_path" json:"probe_path"`
	ProbeTimeoutSeconds int    `yaml:"probe_timeout_seconds" json:"probe_timeout_seconds"`
	HardwareAccel       string `yaml:"hardware_accel" json:"hardware_accel"`
}

type ProcessingConfig struct {
	TempDir                  string `yaml:"temp_dir" json:"temp_dir"`
	MaxConcurrentConversions int    `yaml:"max_concurrent_conversions" json:"max_concurrent_conversions"`
	MaxFileSizeMB            int    `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	// Inputs above either threshold go through the segment processor.
	LargeFileDurationSeconds int `yaml:"large_file_duration_seconds" json:"large_file_duration_seconds"`
	LargeFileSizeMB          int `yaml:"large_file_size_mb" json:"large_file_size_mb"`
	SegmentDurationSeconds   int `yaml:"segment_duration_seconds" json:"segment_duration_seconds"`
	SegmentConcurrency       int `yaml:"segment_concurrency" json:"segment_concurrency"`
	// Conversion wall-clock timeout: base + per-MB, scaled by input size.
	TimeoutBaseSeconds  int `yaml:"timeout_base_seconds" json:"timeout_base_seconds"`
	TimeoutPerMBSeconds int `yaml:"timeout_per_mb_seconds" json:"timeout_per_mb_seconds"`
}

type CacheConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Dir         string `yaml:"dir" json:"dir"`
	MaxSizeMB   int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxAgeHours int    `yaml:"max_age_hours" json:"max_age_hours"`
}

type StorageConfig struct {
	Type      string           `yaml:"type" json:"type"`
	Local     LocalStorage     `yaml:"local" json:"local"`
	AzureBlob AzureBlobStorage `yaml:"azure_blob" json:"azure_blob"`
}

type LocalStorage struct {
	Path string `yaml:"path" json:"path"`
}

type AzureBlobStorage struct {
	Account        string `yaml:"account" json:"account"`
	Container      string `yaml:"container" json:"container"`
	AccountKey     string `yaml:"account_key" json:"account_key"`
	EndpointSuffix string `yaml:"endpoint_suffix" json:"endpoint_suffix"`
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level"`
	MetricsPort int    `yaml:"metrics_port" json:"metrics_port"`
}

// Load loads configuration from environment variables and config.yaml file
func Load() (*Config, error) {
	cfg := Default()

	// Load from config.yaml if present
	if _, err := os.Stat("config.yaml"); err == nil {
		yamlFile, err := os.ReadFile("config.yaml")
		if err != nil {
			return nil, fmt.Errorf("error reading config.yaml: %w", err)
		}

		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config.yaml: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnv(cfg)

	// Validate configuration
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			HealthCheckPort: 8081,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath:          "ffmpeg",
			ProbePath:           "ffprobe",
			ProbeTimeoutSeconds: 30,
		},
		Processing: ProcessingConfig{
			TempDir:                  "/tmp/theconverter",
			MaxConcurrentConversions: 3,
			MaxFileSizeMB:            500,
			LargeFileDurationSeconds: 300,
			LargeFileSizeMB:          50,
			SegmentDurationSeconds:   60,
			SegmentConcurrency:       2,
			TimeoutBaseSeconds:       60,
			TimeoutPerMBSeconds:      2,
		},
		Cache: CacheConfig{
			Enabled:     true,
			Dir:         "/tmp/theconverter_cache",
			MaxSizeMB:   1000,
			MaxAgeHours: 24,
		},
		Storage: StorageConfig{
			Type: "local",
			Local: LocalStorage{
				Path: "/tmp/theconverter_output",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			MetricsPort: 9090,
		},
	}
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) {
	// Server config
	if val := os.Getenv("SERVER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}
	if val := os.Getenv("SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("SERVER_HEALTH_CHECK_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.HealthCheckPort = port
		}
	}

	// FFmpeg config
	if val := os.Getenv("FFMPEG_BINARY_PATH"); val != "" {
		cfg.FFmpeg.BinaryPath = val
	}
	if val := os.Getenv("FFMPEG_PROBE_PATH"); val != "" {
		cfg.FFmpeg.ProbePath = val
	}
	if val := os.Getenv("FFMPEG_PROBE_TIMEOUT_SECONDS"); val != "" {
		if timeout, err := strconv.Atoi(val); err == nil {
			cfg.FFmpeg.ProbeTimeoutSeconds = timeout
		}
	}
	if val := os.Getenv("FFMPEG_HARDWARE_ACCEL"); val != "" {
		cfg.FFmpeg.HardwareAccel = val
	}

	// Processing config
	if val := os.Getenv("PROCESSING_TEMP_DIR"); val != "" {
		cfg.Processing.TempDir = val
	}
	if val := os.Getenv("PROCESSING_MAX_CONCURRENT_CONVERSIONS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Processing.MaxConcurrentConversions = n
		}
	}
	if val := os.Getenv("PROCESSING_MAX_FILE_SIZE_MB"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Processing.MaxFileSizeMB = n
		}
	}
	if val := os.Getenv("PROCESSING_LARGE_FILE_DURATION_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Processing.LargeFileDurationSeconds = n
		}
	}
	if val := os.Getenv("PROCESSING_LARGE_FILE_SIZE_MB"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Processing.LargeFileSizeMB = n
		}
	}
	if val := os.Getenv("PROCESSING_SEGMENT_DURATION_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Processing.SegmentDurationSeconds = n
		}
	}
	if val := os.Getenv("PROCESSING_SEGMENT_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Processing.SegmentConcurrency = n
		}
	}
	if val := os.Getenv("PROCESSING_TIMEOUT_BASE_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Processing.TimeoutBaseSeconds = n
		}
	}
	if val := os.Getenv("PROCESSING_TIMEOUT_PER_MB_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Processing.TimeoutPerMBSeconds = n
		}
	}

	// Cache config
	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		cfg.Cache.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("CACHE_DIR"); val != "" {
		cfg.Cache.Dir = val
	}
	if val := os.Getenv("CACHE_MAX_SIZE_MB"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Cache.MaxSizeMB = n
		}
	}
	if val := os.Getenv("CACHE_MAX_AGE_HOURS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Cache.MaxAgeHours = n
		}
	}

	// Storage config
	if val := os.Getenv("STORAGE_TYPE"); val != "" {
		cfg.Storage.Type = val
	}
	if val := os.Getenv("STORAGE_LOCAL_PATH"); val != "" {
		cfg.Storage.Local.Path = val
	}
	if val := os.Getenv("STORAGE_AZURE_BLOB_ACCOUNT"); val != "" {
		cfg.Storage.AzureBlob.Account = val
	}
	if val := os.Getenv("STORAGE_AZURE_BLOB_CONTAINER"); val != "" {
		cfg.Storage.AzureBlob.Container = val
	}
	if val := os.Getenv("STORAGE_AZURE_BLOB_ACCOUNT_KEY"); val != "" {
		cfg.Storage.AzureBlob.AccountKey = val
	}
	if val := os.Getenv("STORAGE_AZURE_BLOB_ENDPOINT_SUFFIX"); val != "" {
		cfg.Storage.AzureBlob.EndpointSuffix = val
	}

	// Observability config
	if val := os.Getenv("OBSERVABILITY_LOG_LEVEL"); val != "" {
		cfg.Observability.LogLevel = strings.ToLower(val)
	}
	if val := os.Getenv("OBSERVABILITY_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Observability.MetricsPort = port
		}
	}
}

// validate performs basic configuration validation
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Server.HealthCheckPort <= 0 || cfg.Server.HealthCheckPort > 65535 {
		return fmt.Errorf("invalid health check port: %d", cfg.Server.HealthCheckPort)
	}

	if cfg.Processing.MaxConcurrentConversions <= 0 {
		return fmt.Errorf("max concurrent conversions must be positive: %d", cfg.Processing.MaxConcurrentConversions)
	}

	if cfg.Processing.SegmentDurationSeconds <= 0 {
		return fmt.Errorf("segment duration must be positive: %d", cfg.Processing.SegmentDurationSeconds)
	}

	if cfg.Processing.SegmentConcurrency <= 0 {
		return fmt.Errorf("segment concurrency must be positive: %d", cfg.Processing.SegmentConcurrency)
	}

	if cfg.FFmpeg.ProbeTimeoutSeconds <= 0 {
		return fmt.Errorf("probe timeout must be positive: %d", cfg.FFmpeg.ProbeTimeoutSeconds)
	}

	if cfg.Cache.Enabled && cfg.Cache.MaxSizeMB <= 0 {
		return fmt.Errorf("cache max size must be positive: %d", cfg.Cache.MaxSizeMB)
	}

	validStorageTypes := []string{"local", "azure-blob"}
	valid := false
	for _, t := range validStorageTypes {
		if cfg.Storage.Type == t {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid storage type: %s", cfg.Storage.Type)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	valid = false
	for _, l := range validLogLevels {
		if cfg.Observability.LogLevel == l {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log level: %s", cfg.Observability.LogLevel)
	}

	return nil
}
