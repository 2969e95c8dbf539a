package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/shared"
)

// HistoryRepository records what was listened to and for how long.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// RecordPlay ensures the track row exists, then appends a play.
func (r *HistoryRepository) RecordPlay(ctx context.Context, t models.Track, durationPlayedSec int) error {
	_, err := r.Add(ctx, models.NewPlay(t, durationPlayedSec))
	return err
}

// Add persists play, assigning it an id.
func (r *HistoryRepository) Add(ctx context.Context, play *models.Play) (*models.Play, error) {
	if err := play.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	t := play.Track()

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := upsertTrack(ctx, tx, t); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO plays (id, track_id, duration_played_sec, played_at) VALUES (?, ?, ?, ?)`,
			id, models.TrackID(t.Source, t.SourceTrackID), play.DurationPlayedSec(), play.CreatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert play: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	play.SetID(id)
	return play, nil
}

// List returns up to limit plays, newest first. A non-positive limit returns everything.
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]*models.Play, error) {
	query := `
		SELECT ` + trackColumns + `, p.id, p.duration_played_sec, p.played_at
		FROM plays p
		JOIN tracks t ON t.id = p.track_id
		ORDER BY p.played_at DESC, p.rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	plays := []*models.Play{}
	for rows.Next() {
		var (
			id       string
			secs     int
			playedAt time.Time
		)
		t, err := scanTrack(rows, &id, &secs, &playedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		plays = append(plays, models.RestorePlay(id, t, secs, playedAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return plays, nil
}

// TotalListened sums the recorded listening time.
func (r *HistoryRepository) TotalListened(ctx context.Context) (time.Duration, error) {
	var secs sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT SUM(duration_played_sec) FROM plays`).Scan(&secs); err != nil {
		return 0, fmt.Errorf("failed to sum plays: %w", err)
	}
	return time.Duration(secs.Int64) * time.Second, nil
}

// Clear deletes every play and reports how many were removed.
func (r *HistoryRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM plays`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return result.RowsAffected()
}
