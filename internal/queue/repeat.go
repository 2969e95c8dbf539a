package queue

import (
	"fmt"
	"strings"

	"github.com/desertthunder/openbeats/internal/shared"
)

// RepeatMode controls what happens at the ends of the queue.
type RepeatMode int

const (
	// RepeatOff stops after the last entry.
	RepeatOff RepeatMode = iota
	// RepeatAll wraps around at either end.
	RepeatAll
	// RepeatOne keeps returning the current entry.
	RepeatOne
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// Cycle returns the mode after m in the order off, all, one.
func (m RepeatMode) Cycle() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// ParseRepeatMode parses off, all or one.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return RepeatOff, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	default:
		return RepeatOff, fmt.Errorf("%w: repeat mode %q", shared.ErrInvalidArgument, s)
	}
}

func (m RepeatMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *RepeatMode) UnmarshalText(b []byte) error {
	parsed, err := ParseRepeatMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
