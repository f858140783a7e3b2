// Package progress holds per-user running totals and the streak and level
// arithmetic. The streak is local to the UTC calendar date of the submission
// instant; reflection views apply caller-local dates separately.
package progress

import (
	"context"
	"time"

	"github.com/MiniPiccino/ThinkDeeperProd/pkg/timeutil"
)

// Record is the single live progress row for a user. It is overwritten, not
// appended, on every update; it is created lazily on first submission.
type Record struct {
	// XPTotal is the lifetime XP across all submissions.
	XPTotal int `json:"xp_total"`

	// Streak is the count of consecutive days with at least one submission.
	// Always >= 1 once any submission exists.
	Streak int `json:"streak"`

	// LastAnsweredOn is the instant of the most recent submission. Zero when
	// the user has never submitted (or when a stored value could not be
	// parsed; an unreadable date degrades to "no prior date", not a crash).
	LastAnsweredOn time.Time `json:"last_answered_on"`
}

// Ledger persists the live progress record per user.
type Ledger interface {
	// Fetch returns the user's record, zero-valued for unknown users.
	Fetch(ctx context.Context, userID string) (Record, error)

	// Update applies an XP delta at the given submission instant, advances
	// the streak, and persists the new state atomically relative to the call.
	Update(ctx context.Context, userID string, xpDelta int, submittedAt time.Time) (Record, error)
}

// AdvanceStreak computes the next streak value from the stored streak, the
// previous last-answered instant, and the new submission instant.
//
// The state machine over the day gap:
//   - no prior date        -> 1 (first-ever submission)
//   - gap == 1             -> previous streak (floored at 1) + 1
//   - gap == 0             -> previous streak, floored at 1; multiple
//     same-day submissions never inflate or reset the streak
//   - gap > 1 or negative  -> 1; the new submission starts a fresh streak
//
// The floor guards against a corrupt stored streak of 0.
func AdvanceStreak(prevStreak int, lastAnsweredOn, submittedAt time.Time) int {
	if lastAnsweredOn.IsZero() {
		return 1
	}
	switch gap := timeutil.DayGap(lastAnsweredOn, submittedAt); gap {
	case 1:
		return max(prevStreak, 1) + 1
	case 0:
		return max(prevStreak, 1)
	default:
		return 1
	}
}

// Apply returns the record after an XP delta at the given instant.
func (r Record) Apply(xpDelta int, submittedAt time.Time) Record {
	return Record{
		XPTotal:        r.XPTotal + xpDelta,
		Streak:         AdvanceStreak(r.Streak, r.LastAnsweredOn, submittedAt),
		LastAnsweredOn: submittedAt,
	}
}
