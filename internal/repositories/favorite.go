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

// FavoriteRepository stores liked tracks. Adding a track twice keeps the first favorite.
type FavoriteRepository struct {
	db *sql.DB
}

func NewFavoriteRepository(db *sql.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add marks t as a favorite and returns the stored record.
func (r *FavoriteRepository) Add(ctx context.Context, t models.Track) (*models.Favorite, error) {
	fav := models.NewFavorite(t)
	if err := fav.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	trackID := models.TrackID(t.Source, t.SourceTrackID)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := upsertTrack(ctx, tx, t); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO favorites (id, track_id, created_at) VALUES (?, ?, ?) ON CONFLICT (track_id) DO NOTHING`,
			shared.GenerateID(), trackID, fav.CreatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert favorite: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, trackID)
}

// Get returns the favorite for a track id.
func (r *FavoriteRepository) Get(ctx context.Context, trackID string) (*models.Favorite, error) {
	query := `
		SELECT ` + trackColumns + `, f.id, f.created_at
		FROM favorites f
		JOIN tracks t ON t.id = f.track_id
		WHERE f.track_id = ?
	`

	var (
		id        string
		createdAt time.Time
	)
	t, err := scanTrack(r.db.QueryRowContext(ctx, query, trackID), &id, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no favorite for %s", shared.ErrTrackNotFound, trackID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan favorite: %w", err)
	}
	return models.RestoreFavorite(id, t, createdAt), nil
}

// IsFavorite reports whether the track id is liked.
func (r *FavoriteRepository) IsFavorite(ctx context.Context, trackID string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM favorites WHERE track_id = ?`, trackID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query favorite: %w", err)
	}
	return n > 0, nil
}

// Remove unlikes a track id.
func (r *FavoriteRepository) Remove(ctx context.Context, trackID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE track_id = ?`, trackID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: no favorite for %s", shared.ErrTrackNotFound, trackID)
	}
	return nil
}

// List returns favorites, most recent first.
func (r *FavoriteRepository) List(ctx context.Context) ([]*models.Favorite, error) {
	query := `
		SELECT ` + trackColumns + `, f.id, f.created_at
		FROM favorites f
		JOIN tracks t ON t.id = f.track_id
		ORDER BY f.created_at DESC, f.rowid DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	favs := []*models.Favorite{}
	for rows.Next() {
		var (
			id        string
			createdAt time.Time
		)
		t, err := scanTrack(rows, &id, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favs = append(favs, models.RestoreFavorite(id, t, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return favs, nil
}
