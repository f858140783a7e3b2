// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/content"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/progress"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/submission"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAILY CONTENT QUERY
// Returns the scheduled prompt for a date together with the user's progress
// snapshot, the state of the prompt's block, and the feedback from the most
// recent earlier submission.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultTimerSeconds is the suggested authoring time when none is configured.
const DefaultTimerSeconds = 300

// GetDailyContentQuery contains the query parameters.
type GetDailyContentQuery struct {
	// UserID is the requesting user. Empty means anonymous.
	UserID string

	// Date is the calendar date to resolve. Zero means now.
	Date time.Time
}

// DailyItem is the content payload of the daily view.
type DailyItem struct {
	ID         string              `json:"id"`
	Prompt     string              `json:"prompt"`
	Theme      string              `json:"theme"`
	BlockIndex int                 `json:"block_index"`
	SlotIndex  int                 `json:"slot_index"`
	ServedOn   string              `json:"served_on"`
	Difficulty progress.Difficulty `json:"difficulty"`
}

// PreviousFeedback is the feedback from the newest submission strictly before
// the requested date.
type PreviousFeedback struct {
	Feedback    string    `json:"feedback"`
	ContentID   string    `json:"content_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// WeekProgress is the completion state of the served item's block.
type WeekProgress struct {
	CompletedDays int  `json:"completed_days"`
	TotalDays     int  `json:"total_days"`
	BadgeEarned   bool `json:"badge_earned"`
}

// DailyContentResult is the full daily view.
type DailyContentResult struct {
	Item             DailyItem           `json:"item"`
	XPTotal          int                 `json:"xp_total"`
	Streak           int                 `json:"streak"`
	Level            progress.LevelStats `json:"level"`
	Week             WeekProgress        `json:"week"`
	PreviousFeedback *PreviousFeedback   `json:"previous_feedback,omitempty"`
	TimerSeconds     int                 `json:"timer_seconds"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetDailyContentHandler handles the GetDailyContentQuery.
type GetDailyContentHandler struct {
	catalog      content.Catalog
	submissions  submission.Ledger
	progress     progress.Ledger
	timerSeconds int
	log          *logger.Logger

	now func() time.Time
}

// NewGetDailyContentHandler creates a new GetDailyContentHandler.
// timerSeconds <= 0 falls back to DefaultTimerSeconds.
func NewGetDailyContentHandler(
	catalog content.Catalog,
	submissions submission.Ledger,
	progressLedger progress.Ledger,
	timerSeconds int,
	log *logger.Logger,
) *GetDailyContentHandler {
	if timerSeconds <= 0 {
		timerSeconds = DefaultTimerSeconds
	}
	if log == nil {
		log = logger.Default()
	}
	return &GetDailyContentHandler{
		catalog:      catalog,
		submissions:  submissions,
		progress:     progressLedger,
		timerSeconds: timerSeconds,
		log:          log.With(logger.Component("get_daily_content")),
		now:          time.Now,
	}
}

// Handle executes the query.
func (h *GetDailyContentHandler) Handle(ctx context.Context, q GetDailyContentQuery) (*DailyContentResult, error) {
	date := q.Date
	if date.IsZero() {
		date = h.now().UTC()
	}

	userID := q.UserID
	if userID == "" {
		userID = submission.AnonymousUser
	}

	item, err := h.catalog.ResolveForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	prog, err := h.progress.Fetch(ctx, userID)
	if err != nil {
		return nil, err
	}

	inBlock, err := h.submissions.InBlock(ctx, userID, item.BlockIndex)
	if err != nil {
		return nil, err
	}
	answered := make(map[string]bool, len(inBlock))
	for _, rec := range inBlock {
		answered[rec.ContentID] = true
	}

	var previous *PreviousFeedback
	if last, err := h.submissions.MostRecentBefore(ctx, userID, date); err != nil {
		return nil, err
	} else if last != nil && last.Feedback != "" {
		previous = &PreviousFeedback{
			Feedback:    last.Feedback,
			ContentID:   last.ContentID,
			SubmittedAt: last.CreatedAt,
		}
	}

	return &DailyContentResult{
		Item: DailyItem{
			ID:         item.ID,
			Prompt:     item.Prompt,
			Theme:      item.Theme,
			BlockIndex: item.BlockIndex,
			SlotIndex:  item.SlotIndex,
			ServedOn:   timeutil.FormatDateStr(item.ServedOn),
			Difficulty: progress.DifficultyForSlot(item.SlotIndex),
		},
		XPTotal:          prog.XPTotal,
		Streak:           prog.Streak,
		Level:            progress.ComputeLevel(prog.XPTotal),
		Week:             WeekProgress{CompletedDays: len(answered), TotalDays: content.BlockLength, BadgeEarned: len(answered) >= content.BlockLength},
		PreviousFeedback: previous,
		TimerSeconds:     h.timerSeconds,
	}, nil
}
