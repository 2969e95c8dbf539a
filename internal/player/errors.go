package player

import (
	"errors"
	"fmt"

	"github.com/desertthunder/openbeats/internal/models"
)

var (
	// ErrPlaybackRejected means the output refused the stream, e.g. an unsupported codec.
	ErrPlaybackRejected = errors.New("playback rejected")
	// ErrNoTrack means there is nothing loaded, or nothing to move to.
	ErrNoTrack = errors.New("no track")
	// ErrSuperseded means a newer Play started before this one finished.
	ErrSuperseded = errors.New("superseded by a newer track")
	// ErrClosed means the session has been closed.
	ErrClosed = errors.New("session closed")
	// ErrDegraded means only an external link is available. Nothing was loaded.
	ErrDegraded = errors.New("only an external link is available")
)

// TrackError is a failure tied to one track.
type TrackError struct {
	Track models.Track
	// Op is the step that failed: resolve, load or start.
	Op  string
	Err error
	// Link is the external page to open when Err is [ErrDegraded].
	Link string
}

func (e *TrackError) Error() string {
	if e.Link != "" {
		return fmt.Sprintf("can't play %s here (%s): %v: %s", e.Track.Label(), e.Op, e.Err, e.Link)
	}
	return fmt.Sprintf("can't play %s (%s): %v", e.Track.Label(), e.Op, e.Err)
}

func (e *TrackError) Unwrap() error { return e.Err }
