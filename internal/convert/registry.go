package convert

import "github.com/JadissEL/Theconverter/pkg/models"

// codecParams is the optimal codec selection for one output format.
type codecParams struct {
	AudioCodec string
	VideoCodec string
}

// codecMap keys every supported output format to its codecs. The audio
// and video registries are disjoint: a format with a VideoCodec is
// video-only, the rest are audio-only.
var codecMap = map[string]codecParams{
	"mp3":  {AudioCodec: "libmp3lame"},
	"aac":  {AudioCodec: "aac"},
	"m4a":  {AudioCodec: "aac"},
	"wav":  {AudioCodec: "pcm_s16le"},
	"flac": {AudioCodec: "flac"},
	"ogg":  {AudioCodec: "libvorbis"},
	"mp4":  {VideoCodec: "libx264", AudioCodec: "aac"},
	"webm": {VideoCodec: "libvpx-vp9", AudioCodec: "libopus"},
	"avi":  {VideoCodec: "mpeg4", AudioCodec: "mp3"},
	"mov":  {VideoCodec: "libx264", AudioCodec: "aac"},
	"mkv":  {VideoCodec: "libx264", AudioCodec: "aac"},
	"gif":  {VideoCodec: "gif"},
}

// audioPreset holds the encoding parameters of one audio quality tier.
type audioPreset struct {
	Bitrate    string
	SampleRate int
}

// videoPreset holds the encoding parameters of one video quality tier.
type videoPreset struct {
	VideoBitrate string
	AudioBitrate string
	CRF          int
}

// Bitrates scale monotonically: low < medium < high < ultra, for both
// audio and video.
var audioPresets = map[models.Quality]audioPreset{
	models.QualityLow:    {Bitrate: "96k", SampleRate: 22050},
	models.QualityMedium: {Bitrate: "128k", SampleRate: 44100},
	models.QualityHigh:   {Bitrate: "192k", SampleRate: 44100},
	models.QualityUltra:  {Bitrate: "320k", SampleRate: 48000},
}

var videoPresets = map[models.Quality]videoPreset{
	models.QualityLow:    {VideoBitrate: "500k", AudioBitrate: "96k", CRF: 28},
	models.QualityMedium: {VideoBitrate: "1000k", AudioBitrate: "128k", CRF: 23},
	models.QualityHigh:   {VideoBitrate: "2500k", AudioBitrate: "192k", CRF: 20},
	models.QualityUltra:  {VideoBitrate: "5000k", AudioBitrate: "320k", CRF: 18},
}

// IsSupported reports whether format is a registered output format.
func IsSupported(format string) bool {
	_, ok := codecMap[format]
	return ok
}

// IsAudioFormat reports whether format is in the audio-only registry.
func IsAudioFormat(format string) bool {
	params, ok := codecMap[format]
	return ok && params.VideoCodec == ""
}

// FormatType returns the media type of a registered output format.
func FormatType(format string) models.MediaType {
	params, ok := codecMap[format]
	switch {
	case !ok:
		return models.MediaTypeUnknown
	case params.VideoCodec == "":
		return models.MediaTypeAudio
	default:
		return models.MediaTypeVideo
	}
}

// SupportedFormats lists registered output formats keyed by media type.
func SupportedFormats() map[string][]string {
	return map[string][]string{
		"audio": {"mp3", "wav", "aac", "flac", "ogg", "m4a"},
		"video": {"mp4", "webm", "avi", "mov", "mkv", "gif"},
	}
}
