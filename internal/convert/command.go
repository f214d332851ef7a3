package convert

import (
	"strconv"

	"github.com/JadissEL/Theconverter/pkg/models"
)

// gifFilter generates a palette pass for acceptable GIF quality.
const gifFilter = "fps=10,scale=480:-1:flags=lanczos,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse"

// BuildArgs builds the ffmpeg argument vector for one conversion. The
// command is always an explicit argument list, never a shell string.
// hwAccel applies only to video outputs, and explicit codec/bitrate
// overrides in req win over the static tables.
func BuildArgs(req models.ConversionRequest, outputPath, hwAccel string) []string {
	args := []string{}

	if hwAccel != "" && !IsAudioFormat(req.OutputFormat) {
		args = append(args, "-hwaccel", hwAccel)
	}

	args = append(args, "-i", req.InputPath, "-y")

	codecs := codecMap[req.OutputFormat]

	if IsAudioFormat(req.OutputFormat) {
		args = append(args, audioArgs(req, codecs)...)
	} else {
		args = append(args, videoArgs(req, codecs)...)
	}

	return append(args, outputPath)
}

func audioArgs(req models.ConversionRequest, codecs codecParams) []string {
	preset := audioPresets[req.Quality]

	codec := codecs.AudioCodec
	if req.AudioCodec != "" {
		codec = req.AudioCodec
	}
	bitrate := preset.Bitrate
	if req.AudioBitrate != "" {
		bitrate = req.AudioBitrate
	}

	args := []string{
		"-codec:a", codec,
		"-b:a", bitrate,
		"-ar", strconv.Itoa(preset.SampleRate),
		"-vn", // drop any video stream
	}

	switch req.OutputFormat {
	case "mp3":
		args = append(args, "-q:a", "2")
	case "flac":
		args = append(args, "-compression_level", "8")
	}

	return args
}

func videoArgs(req models.ConversionRequest, codecs codecParams) []string {
	preset := videoPresets[req.Quality]

	videoCodec := codecs.VideoCodec
	if req.VideoCodec != "" {
		videoCodec = req.VideoCodec
	}

	args := []string{"-codec:v", videoCodec}

	if codecs.AudioCodec != "" || req.AudioCodec != "" {
		audioCodec := codecs.AudioCodec
		if req.AudioCodec != "" {
			audioCodec = req.AudioCodec
		}
		args = append(args, "-codec:a", audioCodec)

		audioBitrate := preset.AudioBitrate
		if req.AudioBitrate != "" {
			audioBitrate = req.AudioBitrate
		}
		args = append(args, "-b:a", audioBitrate)
	}

	videoBitrate := preset.VideoBitrate
	if req.VideoBitrate != "" {
		videoBitrate = req.VideoBitrate
	}
	args = append(args, "-b:v", videoBitrate)

	switch videoCodec {
	case "libx264", "libx265":
		args = append(args,
			"-crf", strconv.Itoa(preset.CRF),
			"-preset", "medium",
			"-pix_fmt", "yuv420p",
		)
	}

	switch req.OutputFormat {
	case "mp4", "mov":
		// Move the moov atom up front for progressive playback.
		args = append(args, "-movflags", "+faststart")
	case "gif":
		args = append(args, "-vf", gifFilter, "-loop", "0")
	}

	return args
}
