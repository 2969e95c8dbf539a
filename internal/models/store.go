package models

import (
	"errors"
	"time"
)

// Model defines the base contract for persisted entities.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	Validate() error      // Validate checks the model's data
}

// Play is one append-only listening history record.
type Play struct {
	id                string
	track             Track
	durationPlayedSec int
	playedAt          time.Time
}

// NewPlay creates a [Play] for the track with the elapsed listening time.
func NewPlay(track Track, durationPlayedSec int) *Play {
	if durationPlayedSec < 0 {
		durationPlayedSec = 0
	}
	return &Play{track: track, durationPlayedSec: durationPlayedSec, playedAt: time.Now().UTC()}
}

// RestorePlay rebuilds a [Play] read back from storage.
func RestorePlay(id string, track Track, durationPlayedSec int, playedAt time.Time) *Play {
	return &Play{id: id, track: track, durationPlayedSec: durationPlayedSec, playedAt: playedAt}
}

func (p *Play) ID() string             { return p.id }
func (p *Play) SetID(id string)        { p.id = id }
func (p *Play) CreatedAt() time.Time   { return p.playedAt }
func (p *Play) Track() Track           { return p.track }
func (p *Play) DurationPlayedSec() int { return p.durationPlayedSec }

func (p *Play) Validate() error {
	if p.track.Source == "" || p.track.SourceTrackID == "" {
		return errors.New("play requires a track identity")
	}
	return nil
}

// Favorite marks a track as liked.
type Favorite struct {
	id        string
	track     Track
	createdAt time.Time
}

// NewFavorite creates a [Favorite].
func NewFavorite(track Track) *Favorite {
	return &Favorite{track: track, createdAt: time.Now().UTC()}
}

// RestoreFavorite rebuilds a [Favorite] read back from storage.
func RestoreFavorite(id string, track Track, createdAt time.Time) *Favorite {
	return &Favorite{id: id, track: track, createdAt: createdAt}
}

func (f *Favorite) ID() string           { return f.id }
func (f *Favorite) SetID(id string)      { f.id = id }
func (f *Favorite) CreatedAt() time.Time { return f.createdAt }
func (f *Favorite) Track() Track         { return f.track }

func (f *Favorite) Validate() error {
	if f.track.Source == "" || f.track.SourceTrackID == "" {
		return errors.New("favorite requires a track identity")
	}
	return nil
}

// Playlist is a named, ordered collection of tracks.
type Playlist struct {
	id          string
	title       string
	description string
	public      bool
	tracks      []Track
	createdAt   time.Time
	updatedAt   time.Time
}

// NewPlaylist creates an empty [Playlist].
func NewPlaylist(title, description string, public bool) *Playlist {
	now := time.Now().UTC()
	return &Playlist{title: title, description: description, public: public, createdAt: now, updatedAt: now}
}

// RestorePlaylist rebuilds a [Playlist] read back from storage.
func RestorePlaylist(id, title, description string, public bool, createdAt, updatedAt time.Time) *Playlist {
	return &Playlist{id: id, title: title, description: description, public: public, createdAt: createdAt, updatedAt: updatedAt}
}

func (p *Playlist) ID() string           { return p.id }
func (p *Playlist) SetID(id string)      { p.id = id }
func (p *Playlist) Title() string        { return p.title }
func (p *Playlist) Description() string  { return p.description }
func (p *Playlist) Public() bool         { return p.public }
func (p *Playlist) CreatedAt() time.Time { return p.createdAt }
func (p *Playlist) UpdatedAt() time.Time { return p.updatedAt }
func (p *Playlist) Tracks() []Track      { return p.tracks }
func (p *Playlist) SetTracks(t []Track)  { p.tracks = t }

// SetUpdatedAt sets the last modification time.
func (p *Playlist) SetUpdatedAt(t time.Time) { p.updatedAt = t }

func (p *Playlist) Validate() error {
	if p.title == "" {
		return errors.New("playlist title is required")
	}
	return nil
}
