package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/shared"
)

// PlaylistRepository stores playlists and their ordered tracks.
//
// Positions are dense and zero-based; removing a track shifts the ones after it up.
type PlaylistRepository struct {
	db *sql.DB
}

func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts the playlist with a generated id, along with any tracks it already holds.
func (r *PlaylistRepository) Create(ctx context.Context, p *models.Playlist) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO playlists (id, title, description, is_public, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, p.Title(), p.Description(), p.Public(), p.CreatedAt(), p.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert playlist: %w", err)
		}
		return writeTracks(ctx, tx, id, p.Tracks())
	})
	if err != nil {
		return err
	}

	p.SetID(id)
	return nil
}

// Get retrieves a playlist with its tracks.
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*models.Playlist, error) {
	query := `SELECT id, title, description, is_public, created_at, updated_at FROM playlists WHERE id = ?`

	p, err := scanPlaylist(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	tracks, err := r.Tracks(ctx, id)
	if err != nil {
		return nil, err
	}
	p.SetTracks(tracks)
	return p, nil
}

// List returns every playlist with its tracks, most recently updated first.
func (r *PlaylistRepository) List(ctx context.Context) ([]*models.Playlist, error) {
	query := `SELECT id, title, description, is_public, created_at, updated_at FROM playlists ORDER BY updated_at DESC, title ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}

	playlists := []*models.Playlist{}
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, p := range playlists {
		tracks, err := r.Tracks(ctx, p.ID())
		if err != nil {
			return nil, err
		}
		p.SetTracks(tracks)
	}
	return playlists, nil
}

// Update saves title, description and visibility.
func (r *PlaylistRepository) Update(ctx context.Context, p *models.Playlist) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE playlists SET title = ?, description = ?, is_public = ?, updated_at = ? WHERE id = ?`,
		p.Title(), p.Description(), p.Public(), now, p.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	if err := expectRow(result, shared.ErrPlaylistNotFound, p.ID()); err != nil {
		return err
	}

	p.SetUpdatedAt(now)
	return nil
}

// Delete removes a playlist. Its tracks stay in the catalog.
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return expectRow(result, shared.ErrPlaylistNotFound, id)
}

// Tracks returns a playlist's tracks in position order.
func (r *PlaylistRepository) Tracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	query := `
		SELECT ` + trackColumns + `
		FROM playlist_tracks pt
		JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.Track{}
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// AddTrack appends t to the end of the playlist.
func (r *PlaylistRepository) AddTrack(ctx context.Context, playlistID string, t models.Track) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := touch(ctx, tx, playlistID); err != nil {
			return err
		}
		if err := upsertTrack(ctx, tx, t); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO playlist_tracks (playlist_id, track_id, position)
			VALUES (?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM playlist_tracks WHERE playlist_id = ?))`,
			playlistID, models.TrackID(t.Source, t.SourceTrackID), playlistID,
		)
		if err != nil {
			return fmt.Errorf("failed to add playlist track: %w", err)
		}
		return nil
	})
}

// RemoveTrack removes the entry at position and closes the gap.
func (r *PlaylistRepository) RemoveTrack(ctx context.Context, playlistID string, position int) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := touch(ctx, tx, playlistID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM playlist_tracks WHERE playlist_id = ? AND position = ?`, playlistID, position)
		if err != nil {
			return fmt.Errorf("failed to remove playlist track: %w", err)
		}
		if err := expectRow(result, shared.ErrTrackNotFound, fmt.Sprintf("position %d", position)); err != nil {
			return err
		}

		// Two passes keep (playlist_id, position) unique while shifting.
		shifts := []string{
			`UPDATE playlist_tracks SET position = -position WHERE playlist_id = ? AND position > ?`,
			`UPDATE playlist_tracks SET position = -position - 1 WHERE playlist_id = ? AND position < ?`,
		}
		args := [][]any{{playlistID, position}, {playlistID, -position}}
		for i, q := range shifts {
			if _, err := tx.ExecContext(ctx, q, args[i]...); err != nil {
				return fmt.Errorf("failed to reorder playlist tracks: %w", err)
			}
		}
		return nil
	})
}

// touch bumps updated_at and fails when the playlist does not exist.
func touch(ctx context.Context, tx *sql.Tx, playlistID string) error {
	result, err := tx.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE id = ?`, time.Now().UTC(), playlistID)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return expectRow(result, shared.ErrPlaylistNotFound, playlistID)
}

func writeTracks(ctx context.Context, tx *sql.Tx, playlistID string, tracks []models.Track) error {
	for i, t := range tracks {
		if err := upsertTrack(ctx, tx, t); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)`,
			playlistID, models.TrackID(t.Source, t.SourceTrackID), i,
		)
		if err != nil {
			return fmt.Errorf("failed to add playlist track: %w", err)
		}
	}
	return nil
}

func expectRow(result sql.Result, notFound error, ref string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, ref)
	}
	return nil
}

func scanPlaylist(sc scanner) (*models.Playlist, error) {
	var (
		id          string
		title       string
		description string
		public      bool
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := sc.Scan(&id, &title, &description, &public, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	return models.RestorePlaylist(id, title, description, public, createdAt, updatedAt), nil
}
