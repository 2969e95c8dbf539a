package resolver

import (
	"errors"
	"fmt"
)

// ErrResolutionFailed is wrapped by every resolution failure.
var ErrResolutionFailed = errors.New("resolution failed")

var (
	// ErrNotConfigured means the track's source has no credentials or locator. Not retryable.
	ErrNotConfigured = fmt.Errorf("%w: source not configured", ErrResolutionFailed)
	// ErrNoAudioAvailable means the track exists but exposes no extractable audio. Not retryable.
	ErrNoAudioAvailable = fmt.Errorf("%w: no audio available", ErrResolutionFailed)
	// ErrAllBackendsUnreachable is a transient infrastructure failure. Safe to retry with the same key.
	ErrAllBackendsUnreachable = fmt.Errorf("%w: all backends unreachable", ErrResolutionFailed)
	// ErrUnknownSource means the source tag is not one the resolver knows.
	ErrUnknownSource = fmt.Errorf("%w: unknown source", ErrResolutionFailed)
)

// IsRetryable reports whether err is a transient failure worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAllBackendsUnreachable)
}
