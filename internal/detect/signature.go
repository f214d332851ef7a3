package detect

import (
	"bytes"
	"io"
	"os"
)

// headerLen bounds how much of the file the signature matcher reads.
const headerLen = 32

// signature pairs a byte prefix with the canonical format it identifies.
type signature struct {
	prefix []byte
	format string
}

// Known magic byte signatures for media containers, checked in order.
var signatures = []signature{
	{[]byte("ID3"), "mp3"},
	{[]byte{0xff, 0xfb}, "mp3"},
	{[]byte{0xff, 0xf3}, "mp3"},
	{[]byte{0xff, 0xf2}, "mp3"},
	{[]byte("fLaC"), "flac"},
	{[]byte("OggS"), "ogg"},
	{[]byte{0x1a, 0x45, 0xdf, 0xa3}, "webm"},
	{[]byte("GIF87a"), "gif"},
	{[]byte("GIF89a"), "gif"},
	{[]byte("FLV"), "flv"},
}

// signatureDetector matches a bounded file prefix against known byte
// signatures. Fast and extension-independent.
type signatureDetector struct{}

func (signatureDetector) name() string { return "signature" }

func (signatureDetector) confidence() float64 { return 0.90 }

func (signatureDetector) attempt(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	header := make([]byte, headerLen)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", err
	}
	header = header[:n]

	for _, sig := range signatures {
		if bytes.HasPrefix(header, sig.prefix) {
			return sig.format, nil
		}
	}

	// RIFF containers share a prefix; the subtype at offset 8 disambiguates.
	if bytes.HasPrefix(header, []byte("RIFF")) && len(header) >= 12 {
		switch string(header[8:12]) {
		case "AVI ":
			return "avi", nil
		default:
			return "wav", nil
		}
	}

	// MP4-family files carry "ftyp" near the start; the exact offset varies
	// with the size prefix, so search the whole header.
	if bytes.Contains(header, []byte("ftyp")) {
		if bytes.Contains(header, []byte("ftypqt")) {
			return "mov", nil
		}
		if bytes.Contains(header, []byte("ftypM4A")) {
			return "m4a", nil
		}
		return "mp4", nil
	}

	return "", nil
}
