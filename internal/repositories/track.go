package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/shared"
)

// TrackRepository stores catalog metadata for tracks the client has touched.
type TrackRepository struct {
	db *sql.DB
}

func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Save inserts the track or refreshes its metadata.
func (r *TrackRepository) Save(ctx context.Context, t models.Track) error {
	return upsertTrack(ctx, r.db, t)
}

// Get retrieves a track by its derived id.
func (r *TrackRepository) Get(ctx context.Context, id string) (models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks t WHERE t.id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), id)
}

// GetByKey retrieves a track by its source identity.
func (r *TrackRepository) GetByKey(ctx context.Context, key models.TrackKey) (models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks t WHERE t.source = ? AND t.source_track_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, key.Source, key.SourceTrackID), key.String())
}

// List returns stored tracks ordered by title, optionally for one source.
func (r *TrackRepository) List(ctx context.Context, source models.Source) ([]models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks t`
	args := []any{}

	if source != "" {
		query += " WHERE t.source = ?"
		args = append(args, source)
	}
	query += " ORDER BY t.title COLLATE NOCASE ASC, t.id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.Track{}
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// Delete removes a track along with its plays, favorite and playlist entries.
func (r *TrackRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return nil
}

func (r *TrackRepository) scanOne(row *sql.Row, ref string) (models.Track, error) {
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Track{}, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, ref)
	}
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to scan track: %w", err)
	}
	return t, nil
}
