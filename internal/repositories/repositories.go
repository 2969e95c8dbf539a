package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/openbeats/internal/models"
)

// Store groups the repositories over one database.
type Store struct {
	Tracks    *TrackRepository
	History   *HistoryRepository
	Favorites *FavoriteRepository
	Playlists *PlaylistRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		Tracks:    NewTrackRepository(db),
		History:   NewHistoryRepository(db),
		Favorites: NewFavoriteRepository(db),
		Playlists: NewPlaylistRepository(db),
	}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// trackColumns selects a track joined as alias t.
const trackColumns = `t.source, t.source_track_id, t.title, t.artists, t.album_title, t.duration_sec, t.artwork_url, t.license`

// upsertTrack inserts t or refreshes its metadata, keeping the row id stable.
func upsertTrack(ctx context.Context, db execer, t models.Track) error {
	if t.Source == "" || t.SourceTrackID == "" {
		return fmt.Errorf("track requires a source and source id")
	}

	artists, err := json.Marshal(t.Artists)
	if err != nil {
		return fmt.Errorf("failed to encode artists: %w", err)
	}

	query := `
		INSERT INTO tracks (id, source, source_track_id, title, artists, album_title, duration_sec, artwork_url, license)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, source_track_id) DO UPDATE SET
			title = excluded.title,
			artists = excluded.artists,
			album_title = excluded.album_title,
			duration_sec = excluded.duration_sec,
			artwork_url = excluded.artwork_url,
			license = excluded.license,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = db.ExecContext(ctx, query,
		models.TrackID(t.Source, t.SourceTrackID),
		t.Source,
		t.SourceTrackID,
		t.Title,
		string(artists),
		t.AlbumTitle,
		t.DurationSec,
		t.ArtworkURL,
		t.License,
	)
	if err != nil {
		return fmt.Errorf("failed to save track: %w", err)
	}
	return nil
}

// scanTrack reads [trackColumns] followed by extra destinations.
func scanTrack(sc scanner, extra ...any) (models.Track, error) {
	var (
		source    string
		sourceID  string
		title     string
		artists   string
		album     string
		duration  int
		artwork   string
		license   string
		artistSet []string
	)

	dest := append([]any{&source, &sourceID, &title, &artists, &album, &duration, &artwork, &license}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return models.Track{}, err
	}
	if err := json.Unmarshal([]byte(artists), &artistSet); err != nil {
		return models.Track{}, fmt.Errorf("failed to decode artists: %w", err)
	}

	return models.NewTrack(models.Source(source), sourceID, models.TrackOpts{
		Title:       title,
		Artists:     artistSet,
		AlbumTitle:  album,
		DurationSec: duration,
		ArtworkURL:  artwork,
		License:     license,
	}), nil
}

// withTx runs fn in a transaction, committing only when it succeeds.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
