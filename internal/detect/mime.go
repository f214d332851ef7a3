package detect

import (
	"github.com/gabriel-vasile/mimetype"
)

// mimeDetector cross-references OS-level content sniffing via the
// mimetype library. Used as corroboration or fallback for the
// signature matcher.
type mimeDetector struct{}

func (mimeDetector) name() string { return "mime" }

func (mimeDetector) confidence() float64 { return 0.80 }

func (mimeDetector) attempt(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}

	// Walk up the type hierarchy so subtypes still map to a known format.
	for mime := mtype; mime != nil; mime = mime.Parent() {
		if format, ok := mimeToFormat[mime.String()]; ok {
			return format, nil
		}
	}

	return "", nil
}
