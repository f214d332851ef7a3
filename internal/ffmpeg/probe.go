package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JadissEL/Theconverter/pkg/models"
)

// MediaInfo contains information about a media file as reported by ffprobe.
type MediaInfo struct {
	Duration   float64 `json:"duration"` // seconds
	Format     string  `json:"format"`   // first name of the container format
	Size       int64   `json:"size"`
	Bitrate    int64   `json:"bitrate"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameRate  float64 `json:"frameRate"`
	VideoCodec string  `json:"videoCodec"`
	AudioCodec string  `json:"audioCodec"`
	SampleRate int     `json:"sampleRate"`
	Channels   int     `json:"channels"`
	HasVideo   bool    `json:"hasVideo"`
	HasAudio   bool    `json:"hasAudio"`
}

// Type classifies the probed streams as audio, video or unknown.
func (mi *MediaInfo) Type() models.MediaType {
	switch {
	case mi.HasVideo:
		return models.MediaTypeVideo
	case mi.HasAudio:
		return models.MediaTypeAudio
	default:
		return models.MediaTypeUnknown
	}
}

// Metadata converts the probe result into the detection metadata record.
func (mi *MediaInfo) Metadata() *models.MediaMetadata {
	codec := mi.VideoCodec
	if codec == "" {
		codec = mi.AudioCodec
	}
	return &models.MediaMetadata{
		Duration:   mi.Duration,
		Container:  mi.Format,
		Codec:      codec,
		Bitrate:    mi.Bitrate,
		Width:      mi.Width,
		Height:     mi.Height,
		SampleRate: mi.SampleRate,
		Channels:   mi.Channels,
	}
}

// probeOutput represents the structure of ffprobe JSON output
type probeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Prober extracts container and stream metadata through ffprobe.
type Prober struct {
	runner   Runner
	probeBin string
	timeout  time.Duration
}

// NewProber creates a prober that invokes probeBin with the given
// per-invocation timeout. Some malformed files hang ffprobe, so every
// probe runs under this bound.
func NewProber(runner Runner, probeBin string, timeout time.Duration) *Prober {
	return &Prober{
		runner:   runner,
		probeBin: probeBin,
		timeout:  timeout,
	}
}

// Confidence is the detection confidence the deep probe contributes when
// it produces a format. The probe is the most reliable method but also
// the slowest.
func (p *Prober) Confidence() float64 { return 0.95 }

// Probe runs ffprobe on inputPath and parses the result.
// Returns models.ErrDetectionTimeout if the probe exceeded its bound.
func (p *Prober) Probe(ctx context.Context, inputPath string) (*MediaInfo, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stdout, stderr, err := p.runner.Run(probeCtx, p.probeBin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return nil, models.ErrDetectionTimeout
		}
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(string(stderr)))
	}

	var probe probeOutput
	if err := json.Unmarshal(stdout, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &MediaInfo{}

	if probe.Format.Duration != "" {
		if duration, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			info.Duration = duration
		}
	}
	if probe.Format.Size != "" {
		if size, err := strconv.ParseInt(probe.Format.Size, 10, 64); err == nil {
			info.Size = size
		}
	}
	if probe.Format.BitRate != "" {
		if bitrate, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
			info.Bitrate = bitrate
		}
	}

	// ffprobe reports comma-separated aliases ("mov,mp4,m4a,..."); keep the first.
	if name := probe.Format.FormatName; name != "" {
		info.Format = strings.Split(name, ",")[0]
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.VideoCodec = stream.CodecName
			if stream.RFrameRate != "" {
				if frameRate := parseFrameRate(stream.RFrameRate); frameRate > 0 {
					info.FrameRate = frameRate
				}
			}
		case "audio":
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.AudioCodec = stream.CodecName
			info.Channels = stream.Channels
			if stream.SampleRate != "" {
				if rate, err := strconv.Atoi(stream.SampleRate); err == nil {
					info.SampleRate = rate
				}
			}
		}
	}

	return info, nil
}

// parseFrameRate parses frame rate string like "30/1" or "29.97"
func parseFrameRate(frameRateStr string) float64 {
	if strings.Contains(frameRateStr, "/") {
		parts := strings.Split(frameRateStr, "/")
		if len(parts) == 2 {
			num, err1 := strconv.ParseFloat(parts[0], 64)
			den, err2 := strconv.ParseFloat(parts[1], 64)
			if err1 == nil && err2 == nil && den != 0 {
				return num / den
			}
		}
	} else {
		if rate, err := strconv.ParseFloat(frameRateStr, 64); err == nil {
			return rate
		}
	}
	return 0
}
