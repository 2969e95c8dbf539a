// package models defines the data model for the music player
package models

import (
	"fmt"
	"strings"
)

// Source identifies the catalog a [Track] originates from.
type Source string

const (
	SourceJamendo Source = "jamendo" // licensed-audio catalog
	SourceFMA     Source = "fma"     // archive-hosted catalog (Free Music Archive on archive.org)
	SourceAudius  Source = "audius"  // decentralized catalog
	SourceYouTube Source = "ytmusic" // video-platform catalog, streamed through mirrors
)

// Sources lists every known [Source] in display order.
var Sources = []Source{SourceJamendo, SourceFMA, SourceAudius, SourceYouTube}

// DefaultSearchSources are searched when the caller does not pick any.
var DefaultSearchSources = []Source{SourceJamendo, SourceFMA, SourceAudius}

// ParseSource converts a wire tag into a [Source].
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Sources {
		if src == known {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// ParseSources splits a comma separated list of tags. An empty string yields [DefaultSearchSources].
func ParseSources(s string) ([]Source, error) {
	if strings.TrimSpace(s) == "" {
		return append([]Source(nil), DefaultSearchSources...), nil
	}

	var out []Source
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		src, err := ParseSource(part)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func (s Source) String() string { return string(s) }

// Label returns a human readable catalog name.
func (s Source) Label() string {
	switch s {
	case SourceJamendo:
		return "Jamendo"
	case SourceFMA:
		return "Free Music Archive"
	case SourceAudius:
		return "Audius"
	case SourceYouTube:
		return "YouTube"
	default:
		return string(s)
	}
}

// TrackKey is the identity of a playable entity.
type TrackKey struct {
	Source        Source
	SourceTrackID string
}

func (k TrackKey) String() string {
	return fmt.Sprintf("%s:%s", k.Source, k.SourceTrackID)
}

// Track represents one playable item from any catalog.
//
// Fields are exported for encoding, but a Track should only be built with [NewTrack] so that ID stays derived.
type Track struct {
	ID            string   `json:"id"`
	Source        Source   `json:"source"`
	SourceTrackID string   `json:"sourceTrackId"`
	Title         string   `json:"title"`
	Artists       []string `json:"artists"`
	AlbumTitle    string   `json:"albumTitle,omitempty"`
	DurationSec   int      `json:"durationSec"` // 0 means unknown
	ArtworkURL    string   `json:"artworkUrl,omitempty"`
	License       string   `json:"license,omitempty"`
}

// TrackOpts carries the optional fields of a [Track].
type TrackOpts struct {
	Title       string
	Artists     []string
	AlbumTitle  string
	DurationSec int
	ArtworkURL  string
	License     string
}

// TrackID derives the globally unique id for a source track.
func TrackID(source Source, sourceTrackID string) string {
	return fmt.Sprintf("%s-%s", source, sourceTrackID)
}

// NewTrack builds a [Track], defaulting every optional field at the boundary.
func NewTrack(source Source, sourceTrackID string, opts TrackOpts) Track {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Unknown"
	}

	artists := make([]string, 0, len(opts.Artists))
	for _, a := range opts.Artists {
		if a = strings.TrimSpace(a); a != "" {
			artists = append(artists, a)
		}
	}
	if len(artists) == 0 {
		artists = []string{"Unknown Artist"}
	}

	duration := opts.DurationSec
	if duration < 0 {
		duration = 0
	}

	return Track{
		ID:            TrackID(source, sourceTrackID),
		Source:        source,
		SourceTrackID: sourceTrackID,
		Title:         title,
		Artists:       artists,
		AlbumTitle:    strings.TrimSpace(opts.AlbumTitle),
		DurationSec:   duration,
		ArtworkURL:    strings.TrimSpace(opts.ArtworkURL),
		License:       strings.TrimSpace(opts.License),
	}
}

// Key returns the identity of the track.
func (t Track) Key() TrackKey {
	return TrackKey{Source: t.Source, SourceTrackID: t.SourceTrackID}
}

// Same reports whether both tracks are the same playable entity.
func (t Track) Same(other Track) bool {
	return t.Key() == other.Key()
}

// ArtistLine joins artists for display.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// Label renders "Artists - Title".
func (t Track) Label() string {
	return fmt.Sprintf("%s - %s", t.ArtistLine(), t.Title)
}
