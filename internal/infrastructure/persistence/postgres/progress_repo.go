package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/progress"
)

// ProgressRepository mirrors the per-user progress row into the
// user_progress table. One live row per user, replaced on every update.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// Fetch returns the user's record, zero-valued for unknown users.
func (r *ProgressRepository) Fetch(ctx context.Context, userID string) (progress.Record, error) {
	query := `
		SELECT xp_total, streak, last_answered_on
		FROM user_progress
		WHERE user_id = $1
	`

	var (
		rec  progress.Record
		last *time.Time
	)
	err := r.conn.QueryRow(ctx, query, userID).Scan(&rec.XPTotal, &rec.Streak, &last)
	if err != nil {
		if IsNoRows(err) {
			return progress.Record{}, nil
		}
		return progress.Record{}, fmt.Errorf("failed to fetch progress: %w", err)
	}
	if last != nil {
		rec.LastAnsweredOn = *last
	}
	return rec, nil
}

// Upsert replaces the user's live progress row.
func (r *ProgressRepository) Upsert(ctx context.Context, userID string, rec progress.Record) error {
	query := `
		INSERT INTO user_progress (user_id, xp_total, streak, last_answered_on, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			xp_total = EXCLUDED.xp_total,
			streak = EXCLUDED.streak,
			last_answered_on = EXCLUDED.last_answered_on,
			updated_at = NOW()
	`

	var last *time.Time
	if !rec.LastAnsweredOn.IsZero() {
		utc := rec.LastAnsweredOn.UTC()
		last = &utc
	}

	_, err := r.conn.Exec(ctx, query, userID, rec.XPTotal, rec.Streak, last)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}
