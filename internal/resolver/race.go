package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/desertthunder/openbeats/internal/services"
)

// errNoAudioFormats marks a mirror that answered but listed no audio-only stream.
var errNoAudioFormats = errors.New("no audio-only streams")

// attempt is the outcome of asking one backend.
type attempt struct {
	backend Backend
	format  AudioFormat
	err     error
}

// answered reports whether the backend was reachable and spoke about the video.
func (a attempt) answered() bool {
	return errors.Is(a.err, errNoAudioFormats) || errors.Is(a.err, services.ErrNoAudio) || errors.Is(a.err, services.ErrNotFound)
}

// race asks every backend concurrently, each bounded by timeout, and returns the first usable answer.
//
// Once a winner is chosen the shared context is cancelled so sibling requests stop, and their
// results are dropped into the buffered channel without being read. When nobody wins, every
// attempt is returned.
func race(ctx context.Context, backends []Backend, videoID string, timeout time.Duration) (attempt, []attempt, bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan attempt, len(backends))
	for _, b := range backends {
		go func() {
			actx, acancel := context.WithTimeout(ctx, timeout)
			defer acancel()

			formats, err := b.AudioFormats(actx, videoID)
			if err != nil {
				results <- attempt{backend: b, err: err}
				return
			}
			best, ok := BestFormat(formats)
			if !ok {
				results <- attempt{backend: b, err: errNoAudioFormats}
				return
			}
			results <- attempt{backend: b, format: best}
		}()
	}

	failures := make([]attempt, 0, len(backends))
	for range backends {
		select {
		case a := <-results:
			if a.err == nil {
				return a, failures, true
			}
			failures = append(failures, a)
		case <-ctx.Done():
			return attempt{}, failures, false
		}
	}
	return attempt{}, failures, false
}
