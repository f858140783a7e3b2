package query

import (
	"context"
	"time"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/content"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/plan"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/shared"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/submission"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET REFLECTION OVERVIEW QUERY
// The reflection aggregator: buckets recent submissions by the caller's local
// calendar date and shapes them into today / current week / teaser views.
// ══════════════════════════════════════════════════════════════════════════════

// MaxRecentFetch bounds how much history one overview request reads.
const MaxRecentFetch = 90

// Truncation lengths for answer bodies in the overview payload.
const (
	excerptLimit = 220
	snippetLimit = 140
)

// Placeholders for entries whose content item no longer resolves. A renamed
// or deleted prompt must not fail the whole overview.
const (
	placeholderPrompt = "Daily reflection"
	placeholderTheme  = "Unknown theme"
)

// GetReflectionOverviewQuery contains the query parameters.
type GetReflectionOverviewQuery struct {
	// UserID is the requesting user. Empty means anonymous.
	UserID string

	// TZOffsetMinutes is the caller's timezone offset in minutes west of UTC,
	// as reported by JavaScript's getTimezoneOffset.
	TZOffsetMinutes int
}

// OverviewEntry is one day's reflection in the overview.
type OverviewEntry struct {
	ContentID string `json:"content_id"`
	Prompt    string `json:"prompt"`
	Theme     string `json:"theme"`

	// Date is the caller-local calendar date, "2006-01-02".
	Date string `json:"date"`

	// Answer is the full answer text, verbatim.
	Answer string `json:"answer"`

	// Excerpt is the answer truncated for display.
	Excerpt string `json:"excerpt"`

	Feedback    string    `json:"feedback,omitempty"`
	XPAwarded   int       `json:"xp_awarded"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// WeekDay is one slot of the Monday-to-Sunday week strip.
type WeekDay struct {
	Date    string         `json:"date"`
	Weekday string         `json:"weekday"`
	Entry   *OverviewEntry `json:"entry,omitempty"`
}

// Teaser is a snippet of an older reflection, shown to non-premium users as
// a preview of the locked timeline.
type Teaser struct {
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// ReflectionOverviewResult is the full overview payload.
type ReflectionOverviewResult struct {
	Plan             string         `json:"plan"`
	Today            *OverviewEntry `json:"today,omitempty"`
	TodayLocked      bool           `json:"today_locked"`
	Week             []WeekDay      `json:"week"`
	Teasers          []Teaser       `json:"teasers"`
	TimelineUnlocked bool           `json:"timeline_unlocked"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetReflectionOverviewHandler handles the GetReflectionOverviewQuery.
type GetReflectionOverviewHandler struct {
	catalog     content.Catalog
	submissions submission.Ledger
	plans       plan.Store
	log         *logger.Logger

	now func() time.Time
}

// NewGetReflectionOverviewHandler creates a new GetReflectionOverviewHandler.
func NewGetReflectionOverviewHandler(
	catalog content.Catalog,
	submissions submission.Ledger,
	plans plan.Store,
	log *logger.Logger,
) *GetReflectionOverviewHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetReflectionOverviewHandler{
		catalog:     catalog,
		submissions: submissions,
		plans:       plans,
		log:         log.With(logger.Component("reflection_overview")),
		now:         time.Now,
	}
}

// Handle executes the query.
func (h *GetReflectionOverviewHandler) Handle(ctx context.Context, q GetReflectionOverviewQuery) (*ReflectionOverviewResult, error) {
	userID := q.UserID
	if userID == "" {
		userID = submission.AnonymousUser
	}

	label, err := h.plans.GetPlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	premium := plan.IsPremium(label)

	localToday := timeutil.LocalDate(h.now().UTC(), q.TZOffsetMinutes)
	weekStart := timeutil.StartOfWeek(localToday)

	recent, err := h.submissions.Recent(ctx, userID, MaxRecentFetch)
	if err != nil {
		return nil, err
	}

	// Bucket by local date; recent is newest-first, so the first record seen
	// for a day shadows any earlier same-day submissions.
	buckets := make(map[string]*OverviewEntry, len(recent))
	for i := range recent {
		rec := recent[i]
		day := timeutil.FormatDateStr(timeutil.LocalDate(rec.CreatedAt, q.TZOffsetMinutes))
		if _, seen := buckets[day]; seen {
			continue
		}
		entry, err := h.entryFor(ctx, rec, day)
		if err != nil {
			return nil, err
		}
		buckets[day] = entry
	}

	todayKey := timeutil.FormatDateStr(localToday)
	today := buckets[todayKey]

	week := make([]WeekDay, 0, 7)
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		key := timeutil.FormatDateStr(day)
		week = append(week, WeekDay{
			Date:    key,
			Weekday: day.Weekday().String(),
			Entry:   buckets[key],
		})
	}

	teasers := []Teaser{}
	if !premium {
		for i := range recent {
			if len(teasers) == 2 {
				break
			}
			rec := recent[i]
			if rec.Answer == "" {
				continue
			}
			local := timeutil.LocalDate(rec.CreatedAt, q.TZOffsetMinutes)
			if !local.Before(weekStart) {
				continue
			}
			teasers = append(teasers, Teaser{
				Date:    timeutil.FormatDateStr(local),
				Snippet: truncate(rec.Answer, snippetLimit),
			})
		}
	}

	return &ReflectionOverviewResult{
		Plan:             label,
		Today:            today,
		TodayLocked:      today == nil,
		Week:             week,
		Teasers:          teasers,
		TimelineUnlocked: premium,
	}, nil
}

// entryFor shapes one ledger record into an overview entry, resolving the
// prompt text live from the catalog. A record whose content item no longer
// exists gets placeholder text; other catalog failures propagate.
func (h *GetReflectionOverviewHandler) entryFor(ctx context.Context, rec submission.Record, day string) (*OverviewEntry, error) {
	prompt := placeholderPrompt
	theme := placeholderTheme
	item, err := h.catalog.ResolveByID(ctx, rec.ContentID)
	switch {
	case err == nil:
		prompt = item.Prompt
		theme = item.Theme
	case shared.IsNotFound(err):
		h.log.Debug("overview entry content missing",
			logger.UserID(rec.UserID),
			logger.ContentID(rec.ContentID),
		)
	default:
		return nil, err
	}

	return &OverviewEntry{
		ContentID:   rec.ContentID,
		Prompt:      prompt,
		Theme:       theme,
		Date:        day,
		Answer:      rec.Answer,
		Excerpt:     truncate(rec.Answer, excerptLimit),
		Feedback:    rec.Feedback,
		XPAwarded:   rec.XPAwarded,
		SubmittedAt: rec.CreatedAt,
	}, nil
}

// truncate cuts s at limit runes, appending an ellipsis when anything was cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
