package convert

import (
	"strconv"
	"strings"
	"testing"

	"github.com/JadissEL/Theconverter/pkg/models"
)

func TestRegistriesAreDisjoint(t *testing.T) {
	for format := range codecMap {
		audio := FormatType(format) == models.MediaTypeAudio
		video := FormatType(format) == models.MediaTypeVideo
		if audio == video {
			t.Errorf("Format %s must be exactly one of audio or video", format)
		}
		if audio != IsAudioFormat(format) {
			t.Errorf("IsAudioFormat(%s) disagrees with FormatType", format)
		}
	}
}

func TestFormatType(t *testing.T) {
	if FormatType("mp3") != models.MediaTypeAudio {
		t.Error("mp3 should be an audio format")
	}
	if FormatType("webm") != models.MediaTypeVideo {
		t.Error("webm should be a video format")
	}
	if FormatType("gif") != models.MediaTypeVideo {
		t.Error("gif is registered as a video format")
	}
	if FormatType("docx") != models.MediaTypeUnknown {
		t.Error("unregistered format should be unknown")
	}
}

func TestIsSupported(t *testing.T) {
	for _, format := range []string{"mp3", "wav", "flac", "ogg", "aac", "m4a", "mp4", "webm", "avi", "mov", "mkv", "gif"} {
		if !IsSupported(format) {
			t.Errorf("Expected %s to be supported", format)
		}
	}
	if IsSupported("xyz") {
		t.Error("xyz should not be supported")
	}
}

func parseBitrate(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(strings.TrimSuffix(s, "k"))
	if err != nil {
		t.Fatalf("Unparseable bitrate %q", s)
	}
	return n
}

func TestQualityTiersScaleMonotonically(t *testing.T) {
	order := []models.Quality{models.QualityLow, models.QualityMedium, models.QualityHigh, models.QualityUltra}

	var prevAudio, prevVideo, prevVideoAudio int
	prevCRF := 100
	for _, q := range order {
		a := audioPresets[q]
		v := videoPresets[q]

		audio := parseBitrate(t, a.Bitrate)
		if audio <= prevAudio {
			t.Errorf("Audio bitrate for %s (%d) does not exceed previous tier (%d)", q, audio, prevAudio)
		}
		prevAudio = audio

		video := parseBitrate(t, v.VideoBitrate)
		if video <= prevVideo {
			t.Errorf("Video bitrate for %s (%d) does not exceed previous tier (%d)", q, video, prevVideo)
		}
		prevVideo = video

		videoAudio := parseBitrate(t, v.AudioBitrate)
		if videoAudio < prevVideoAudio {
			t.Errorf("Video audio bitrate for %s (%d) below previous tier (%d)", q, videoAudio, prevVideoAudio)
		}
		prevVideoAudio = videoAudio

		// Lower CRF means higher quality.
		if v.CRF >= prevCRF {
			t.Errorf("CRF for %s (%d) should decrease as quality rises", q, v.CRF)
		}
		prevCRF = v.CRF
	}
}

func TestEveryFormatHasPresetsForEveryQuality(t *testing.T) {
	for _, q := range []models.Quality{models.QualityLow, models.QualityMedium, models.QualityHigh, models.QualityUltra} {
		if _, ok := audioPresets[q]; !ok {
			t.Errorf("Missing audio preset for quality %s", q)
		}
		if _, ok := videoPresets[q]; !ok {
			t.Errorf("Missing video preset for quality %s", q)
		}
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()
	for _, typ := range []string{"audio", "video"} {
		for _, format := range formats[typ] {
			if !IsSupported(format) {
				t.Errorf("Advertised %s format %s is not in the registry", typ, format)
			}
		}
	}
}
