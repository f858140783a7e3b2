package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/shared"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/submission"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/timeutil"

	"github.com/jackc/pgx/v5"
)

// SubmissionRepository mirrors the submission ledger into the submissions
// table. Block-aware queries include the legacy rows with a NULL block_index
// by matching their content identifier prefix, the same dual derivation the
// file log applies.
type SubmissionRepository struct {
	conn *Connection
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(conn *Connection) *SubmissionRepository {
	return &SubmissionRepository{conn: conn}
}

const submissionColumns = `
	id, user_id, content_id, answer, feedback, xp_awarded, xp_total,
	streak, created_at, duration_seconds, block_index`

// Append inserts one submission row.
func (r *SubmissionRepository) Append(ctx context.Context, rec submission.Record) error {
	query := `
		INSERT INTO submissions (
			id, user_id, content_id, answer, feedback, xp_awarded, xp_total,
			streak, created_at, duration_seconds, block_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var blockIndex *int
	if rec.BlockIndex >= 0 {
		blockIndex = &rec.BlockIndex
	}

	_, err := r.conn.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.ContentID,
		rec.Answer,
		rec.Feedback,
		rec.XPAwarded,
		rec.XPTotal,
		rec.Streak,
		rec.CreatedAt.UTC(),
		rec.DurationSeconds,
		blockIndex,
	)
	if err != nil {
		// The unique index on (user_id, content_id) is the cross-instance
		// backstop for the duplicate check; its violation is a ledger answer,
		// not a backend failure.
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateSubmission
		}
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// MostRecentBefore returns the newest submission strictly before the given
// calendar date, or nil.
func (r *SubmissionRepository) MostRecentBefore(ctx context.Context, userID string, before time.Time) (*submission.Record, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE user_id = $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.conn.QueryRow(ctx, query, userID, timeutil.DateOnly(before))
	rec, err := scanSubmission(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest submission: %w", err)
	}
	return &rec, nil
}

// InBlock returns every submission a user has in one content block.
func (r *SubmissionRepository) InBlock(ctx context.Context, userID string, blockIndex int) ([]submission.Record, error) {
	// Legacy rows predate the block_index column; for those the block is
	// still derivable from the identifier prefix.
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE user_id = $1
		  AND (block_index = $2
		       OR (block_index IS NULL AND content_id LIKE $3))
		ORDER BY created_at ASC
	`

	rows, err := r.conn.Query(ctx, query, userID, blockIndex, fmt.Sprintf("block-%d-slot-%%", blockIndex+1))
	if err != nil {
		return nil, fmt.Errorf("failed to query block submissions: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// Recent returns up to limit submissions, newest first. limit <= 0 returns
// all.
func (r *SubmissionRepository) Recent(ctx context.Context, userID string, limit int) ([]submission.Record, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent submissions: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

func scanSubmission(row pgx.Row) (submission.Record, error) {
	var (
		rec        submission.Record
		blockIndex *int
	)
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ContentID,
		&rec.Answer,
		&rec.Feedback,
		&rec.XPAwarded,
		&rec.XPTotal,
		&rec.Streak,
		&rec.CreatedAt,
		&rec.DurationSeconds,
		&blockIndex,
	)
	if err != nil {
		return submission.Record{}, err
	}

	rec.BlockIndex = -1
	if blockIndex != nil {
		rec.BlockIndex = *blockIndex
	}
	return rec, nil
}

func scanSubmissions(rows pgx.Rows) ([]submission.Record, error) {
	var records []submission.Record
	for rows.Next() {
		rec, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
