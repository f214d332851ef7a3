package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDetectionTimeout is returned when the deep metadata probe exceeded
	// its bound. Not fatal; detection degrades to a lower-confidence result.
	ErrDetectionTimeout = errors.New("metadata probe timed out")

	// ErrResourceExhausted is returned when the conversion concurrency
	// ceiling prevents accepting new work. Callers should retry with backoff.
	ErrResourceExhausted = errors.New("conversion capacity exhausted")

	// ErrCacheCorrupted is returned when a stored cache entry's file is
	// missing or unreadable. Treated as a cache miss; the entry is evicted.
	ErrCacheCorrupted = errors.New("cache entry corrupted")
)

// UnsupportedFormatError is returned when the requested output format is
// not in the registry, or the requested output type does not match the
// input type. Never retried.
type UnsupportedFormatError struct {
	Format string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported format %q: %s", e.Format, e.Reason)
	}
	return fmt.Sprintf("unsupported format %q", e.Format)
}

// ConversionFailedError is returned when the external transcoder exited
// non-zero or timed out. Diagnostic holds the captured process output.
type ConversionFailedError struct {
	Diagnostic string
	Err        error
}

func (e *ConversionFailedError) Error() string {
	if e.Diagnostic != "" {
		return fmt.Sprintf("conversion failed: %v: %s", e.Err, e.Diagnostic)
	}
	return fmt.Sprintf("conversion failed: %v", e.Err)
}

func (e *ConversionFailedError) Unwrap() error { return e.Err }

// SegmentFailedError identifies which segment of a segmented job failed.
// The whole job fails; no partial output is delivered.
type SegmentFailedError struct {
	Index int
	Err   error
}

func (e *SegmentFailedError) Error() string {
	return fmt.Sprintf("segment %d failed: %v", e.Index, e.Err)
}

func (e *SegmentFailedError) Unwrap() error { return e.Err }
