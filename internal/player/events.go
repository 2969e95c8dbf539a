package player

import (
	"time"

	"github.com/desertthunder/openbeats/internal/models"
)

// EventKind enumerates session events.
type EventKind int

const (
	EventLoading EventKind = iota
	EventPlaying
	EventPaused
	EventResumed
	EventStopped
	EventSeeked
	EventVolume
	EventFailed
	EventDegraded
)

func (k EventKind) String() string {
	switch k {
	case EventLoading:
		return "loading"
	case EventPlaying:
		return "playing"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventStopped:
		return "stopped"
	case EventSeeked:
		return "seeked"
	case EventVolume:
		return "volume"
	case EventFailed:
		return "failed"
	case EventDegraded:
		return "degraded"
	default:
		return ""
	}
}

// Event is one state change published by a [Session].
type Event struct {
	Kind  EventKind
	Track models.Track
	// Position is set for seek events, Volume for volume events.
	Position time.Duration
	Volume   int
	Err      error
	Link     string
	At       time.Time
}

// emit publishes e without blocking. Callers hold s.mu.
func (s *Session) emit(e Event) {
	if s.closed {
		return
	}
	e.At = time.Now()
	select {
	case s.events <- e:
	default:
	}
}
