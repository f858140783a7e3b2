// Package submission defines the append-only ledger of evaluated answers.
// Records are created exclusively by the submit-answer flow and are never
// mutated or deleted afterwards.
package submission

import (
	"context"
	"regexp"
	"strconv"
	"time"
)

// AnonymousUser is the sentinel identity for unauthenticated callers.
// Records never carry a null owner.
const AnonymousUser = "anonymous"

// Record is one evaluated answer. XPTotal and Streak are the user's lifetime
// totals as of this submission, snapshotted so history reads do not depend on
// the live progress record.
type Record struct {
	// ID is a random identifier assigned at append time.
	ID string `json:"id"`

	// UserID is the owning user, never empty (see AnonymousUser).
	UserID string `json:"user_id"`

	// ContentID is the answered content item, "block-<n>-slot-<m>".
	ContentID string `json:"content_id"`

	// Answer is the raw answer text, stored verbatim.
	Answer string `json:"answer"`

	// Feedback is the evaluator's feedback text, stored verbatim.
	Feedback string `json:"feedback"`

	// XPAwarded is the XP granted for this submission, after difficulty
	// weighting and any block-completion bonus.
	XPAwarded int `json:"xp_awarded"`

	// XPTotal is the lifetime XP total as of this submission.
	XPTotal int `json:"xp_total"`

	// Streak is the streak value as of this submission.
	Streak int `json:"streak"`

	// CreatedAt is the submission instant in UTC. Sub-second precision is
	// required to order same-day submissions.
	CreatedAt time.Time `json:"created_at"`

	// DurationSeconds is the elapsed authoring time.
	DurationSeconds int `json:"duration_seconds"`

	// BlockIndex is the originating block, persisted redundantly so history
	// queries do not re-derive it from the identifier string. Records written
	// before this field existed carry -1 (see ResolveBlockIndex).
	BlockIndex int `json:"block_index"`
}

// contentIDPattern matches the stable identifier format and captures the
// 1-indexed block number.
var contentIDPattern = regexp.MustCompile(`^block-(\d+)-slot-\d+$`)

// BlockIndexFromContentID parses the zero-based block index out of a content
// identifier. Returns -1 if the identifier does not match the expected form.
func BlockIndexFromContentID(contentID string) int {
	m := contentIDPattern.FindStringSubmatch(contentID)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return -1
	}
	return n - 1
}

// ResolveBlockIndex returns the record's block index, preferring the
// persisted field and falling back to parsing the content identifier for
// records written before the field was introduced. The dual path is kept
// deliberately for backward compatibility with old ledger records.
func (r Record) ResolveBlockIndex() int {
	if r.BlockIndex >= 0 {
		return r.BlockIndex
	}
	return BlockIndexFromContentID(r.ContentID)
}

// Ledger is the append-only submission history for a user.
// The submit-answer flow checks for duplicates before appending; a backing
// store with a uniqueness guarantee may additionally reject a racing
// duplicate with shared.ErrDuplicateSubmission.
type Ledger interface {
	// Append durably writes a record.
	Append(ctx context.Context, rec Record) error

	// MostRecentBefore returns the newest record strictly before the given
	// calendar date, or nil when the user has none.
	MostRecentBefore(ctx context.Context, userID string, before time.Time) (*Record, error)

	// InBlock returns every record the user has in one content block.
	InBlock(ctx context.Context, userID string, blockIndex int) ([]Record, error)

	// Recent returns up to limit records, newest first. limit <= 0 means all.
	Recent(ctx context.Context, userID string, limit int) ([]Record, error)
}
