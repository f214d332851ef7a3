package detect

import "github.com/JadissEL/Theconverter/pkg/models"

var audioFormats = map[string]bool{
	"mp3": true, "wav": true, "flac": true, "aac": true,
	"ogg": true, "m4a": true, "wma": true, "opus": true,
}

var videoFormats = map[string]bool{
	"mp4": true, "avi": true, "mov": true, "mkv": true,
	"webm": true, "flv": true, "wmv": true, "gif": true,
}

// mimeToFormat maps sniffed MIME types to canonical format identifiers.
var mimeToFormat = map[string]string{
	"audio/mpeg":       "mp3",
	"audio/wav":        "wav",
	"audio/x-wav":      "wav",
	"audio/flac":       "flac",
	"audio/ogg":        "ogg",
	"audio/aac":        "aac",
	"audio/mp4":        "m4a",
	"audio/x-m4a":      "m4a",
	"video/mp4":        "mp4",
	"video/x-msvideo":  "avi",
	"video/quicktime":  "mov",
	"video/x-matroska": "mkv",
	"video/webm":       "webm",
	"video/x-flv":      "flv",
	"image/gif":        "gif",
}

// MediaTypeOf determines whether a canonical format is audio or video.
func MediaTypeOf(format string) models.MediaType {
	switch {
	case audioFormats[format]:
		return models.MediaTypeAudio
	case videoFormats[format]:
		return models.MediaTypeVideo
	default:
		return models.MediaTypeUnknown
	}
}

// SuggestedFormats returns the output formats a detected type can
// reasonably be converted to, in preference order.
func SuggestedFormats(mediaType models.MediaType) []string {
	switch mediaType {
	case models.MediaTypeAudio:
		return []string{"mp3", "wav", "aac", "flac", "ogg", "m4a"}
	case models.MediaTypeVideo:
		return []string{"mp4", "webm", "avi", "mov", "mkv", "gif"}
	default:
		return nil
	}
}
