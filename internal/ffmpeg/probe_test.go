package ffmpeg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JadissEL/Theconverter/pkg/models"
)

// fakeRunner returns canned output instead of executing anything.
type fakeRunner struct {
	stdout []byte
	stderr []byte
	err    error
	delay  time.Duration

	calls [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	return f.stdout, f.stderr, f.err
}

const videoProbeJSON = `{
	"streams": [
		{"codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001"},
		{"codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2}
	],
	"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "120.500000", "size": "10485760", "bit_rate": "696000"}
}`

const audioProbeJSON = `{
	"streams": [
		{"codec_name": "mp3", "codec_type": "audio", "sample_rate": "44100", "channels": 2}
	],
	"format": {"format_name": "mp3", "duration": "180.000000", "size": "4194304", "bit_rate": "186000"}
}`

func TestProbeVideo(t *testing.T) {
	runner := &fakeRunner{stdout: []byte(videoProbeJSON)}
	prober := NewProber(runner, "ffprobe", 30*time.Second)

	info, err := prober.Probe(context.Background(), "/tmp/input.mp4")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	if !info.HasVideo || !info.HasAudio {
		t.Errorf("Expected video and audio streams, got video=%v audio=%v", info.HasVideo, info.HasAudio)
	}
	if info.Type() != models.MediaTypeVideo {
		t.Errorf("Expected video type, got %s", info.Type())
	}
	if info.Format != "mov" {
		t.Errorf("Expected first format alias 'mov', got %s", info.Format)
	}
	if info.Duration != 120.5 {
		t.Errorf("Expected duration 120.5, got %f", info.Duration)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("Expected 1920x1080, got %dx%d", info.Width, info.Height)
	}
	if info.FrameRate < 29.9 || info.FrameRate > 30.0 {
		t.Errorf("Expected frame rate near 29.97, got %f", info.FrameRate)
	}
	if info.VideoCodec != "h264" || info.AudioCodec != "aac" {
		t.Errorf("Unexpected codecs: %s / %s", info.VideoCodec, info.AudioCodec)
	}
	if info.SampleRate != 48000 || info.Channels != 2 {
		t.Errorf("Unexpected audio params: %d Hz, %d channels", info.SampleRate, info.Channels)
	}
}

func TestProbeAudio(t *testing.T) {
	runner := &fakeRunner{stdout: []byte(audioProbeJSON)}
	prober := NewProber(runner, "ffprobe", 30*time.Second)

	info, err := prober.Probe(context.Background(), "/tmp/input.mp3")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	if info.HasVideo {
		t.Error("Audio-only input should not report a video stream")
	}
	if info.Type() != models.MediaTypeAudio {
		t.Errorf("Expected audio type, got %s", info.Type())
	}
	if info.Format != "mp3" {
		t.Errorf("Expected format 'mp3', got %s", info.Format)
	}

	meta := info.Metadata()
	if meta.Codec != "mp3" {
		t.Errorf("Expected metadata codec 'mp3', got %s", meta.Codec)
	}
	if meta.Duration != 180.0 {
		t.Errorf("Expected metadata duration 180, got %f", meta.Duration)
	}
}

func TestProbeTimeout(t *testing.T) {
	runner := &fakeRunner{delay: time.Second}
	prober := NewProber(runner, "ffprobe", 10*time.Millisecond)

	_, err := prober.Probe(context.Background(), "/tmp/hang.mp4")
	if !errors.Is(err, models.ErrDetectionTimeout) {
		t.Errorf("Expected ErrDetectionTimeout, got %v", err)
	}
}

func TestProbeFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1"), stderr: []byte("invalid data found")}
	prober := NewProber(runner, "ffprobe", time.Second)

	_, err := prober.Probe(context.Background(), "/tmp/garbage.bin")
	if err == nil {
		t.Fatal("Expected error for failed probe")
	}
	if errors.Is(err, models.ErrDetectionTimeout) {
		t.Error("Process failure should not be reported as a timeout")
	}
}

func TestProbeMalformedJSON(t *testing.T) {
	runner := &fakeRunner{stdout: []byte("not json")}
	prober := NewProber(runner, "ffprobe", time.Second)

	if _, err := prober.Probe(context.Background(), "/tmp/input.mp4"); err == nil {
		t.Fatal("Expected error for malformed probe output")
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		input     string
		expected  float64
		tolerance float64
	}{
		{"30/1", 30.0, 0.001},
		{"29.97", 29.97, 0.001},
		{"25/1", 25.0, 0.001},
		{"23.976", 23.976, 0.001},
		{"60000/1001", 59.94, 0.01},
		{"30/0", 0.0, 0.001},
		{"", 0.0, 0.001},
		{"invalid", 0.0, 0.001},
	}

	for _, test := range tests {
		result := parseFrameRate(test.input)
		diff := result - test.expected
		if diff < 0 {
			diff = -diff
		}
		if diff > test.tolerance {
			t.Errorf("parseFrameRate(%s) = %f, expected %f", test.input, result, test.expected)
		}
	}
}

func TestVerify(t *testing.T) {
	runner := &fakeRunner{stdout: []byte("ffmpeg version 6.1\n")}
	if err := Verify(context.Background(), runner, "ffmpeg"); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	broken := &fakeRunner{err: errors.New("no such file")}
	if err := Verify(context.Background(), broken, "ffmpeg"); err == nil {
		t.Error("Expected Verify to fail for missing binary")
	}
}
