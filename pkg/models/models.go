package models

import "time"

// MediaType classifies a file as audio, video or unknown.
type MediaType string

const (
	MediaTypeAudio   MediaType = "audio"
	MediaTypeVideo   MediaType = "video"
	MediaTypeUnknown MediaType = "unknown"
)

// Quality is a named bitrate/encoding tier.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityUltra  Quality = "ultra"
)

// Valid reports whether q is one of the known quality tiers.
func (q Quality) Valid() bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh, QualityUltra:
		return true
	}
	return false
}

// MediaMetadata holds stream-level metadata extracted by the deep probe.
type MediaMetadata struct {
	Duration   float64 `json:"duration,omitempty"` // seconds
	Container  string  `json:"container,omitempty"`
	Codec      string  `json:"codec,omitempty"`
	Bitrate    int64   `json:"bitrate,omitempty"` // bits/sec
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
}

// DetectionResult is the immutable outcome of the detection cascade.
// A zero-confidence result with MediaTypeUnknown is valid, not an error.
type DetectionResult struct {
	DetectedType     MediaType      `json:"detectedType"`
	DetectedFormat   string         `json:"detectedFormat"`
	Confidence       float64        `json:"confidence"` // [0,1]
	Metadata         *MediaMetadata `json:"metadata,omitempty"`
	SuggestedFormats []string       `json:"suggestedFormats"`
}

// ConversionRequest describes one requested conversion. InputPath refers
// to a scoped temporary file owned by the caller; the pipeline never
// mutates it.
type ConversionRequest struct {
	InputPath    string  `json:"inputPath"`
	OutputFormat string  `json:"outputFormat"`
	Quality      Quality `json:"quality"`
	// Optional overrides; empty means "use the codec/bitrate tables".
	AudioCodec   string `json:"audioCodec,omitempty"`
	VideoCodec   string `json:"videoCodec,omitempty"`
	AudioBitrate string `json:"audioBitrate,omitempty"`
	VideoBitrate string `json:"videoBitrate,omitempty"`
}

// ConversionResult is returned on successful conversion.
type ConversionResult struct {
	OutputPath string         `json:"outputPath"`
	Format     string         `json:"format"`
	Quality    Quality        `json:"quality"`
	Size       int64          `json:"size"`
	Metadata   *MediaMetadata `json:"metadata,omitempty"`
	CacheHit   bool           `json:"cacheHit"`
	Release    func()         `json:"-"` // unpins a cached output; nil on miss
}

// CacheStats is a snapshot of the conversion cache.
type CacheStats struct {
	EntryCount     int           `json:"entryCount"`
	TotalSize      int64         `json:"totalSize"`
	OldestEntryAge time.Duration `json:"oldestEntryAge"`
	NewestEntryAge time.Duration `json:"newestEntryAge"`
}

// ClearResult reports the effect of clearing the cache.
type ClearResult struct {
	ClearedEntries int   `json:"clearedEntries"`
	FreedBytes     int64 `json:"freedBytes"`
}

// ConversionJob is a unit of work for the batch worker pool.
type ConversionJob struct {
	JobID        string    `json:"jobId"`
	SourceURI    string    `json:"sourceUri"`
	SourceType   string    `json:"sourceType"` // local, http, azure-blob
	OutputFormat string    `json:"outputFormat"`
	Quality      Quality   `json:"quality"`
	CreatedAt    time.Time `json:"createdAt"`
	Status       JobStatus `json:"status"`
}

// JobStatus tracks the lifecycle of a ConversionJob.
type JobStatus struct {
	State       JobState  `json:"state"`
	Message     string    `json:"message,omitempty"`
	Progress    float64   `json:"progress"` // 0.0 to 1.0
	StartedAt   time.Time `json:"startedAt,omitempty"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
	OutputPath  string    `json:"outputPath,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// JobState represents the possible states of a conversion job.
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateValidating JobState = "validating"
	JobStateConverting JobState = "converting"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateCancelled  JobState = "cancelled"
)
