// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/content"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/progress"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/shared"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/submission"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ANSWER COMMAND
// The progress engine: evaluates an answer, awards difficulty-weighted XP,
// advances the streak, detects block completion, and records the submission.
// ══════════════════════════════════════════════════════════════════════════════

// BonusXP is the fixed award for completing the final item of a block.
const BonusXP = 25

// Evaluator assesses an answer and returns feedback plus a raw score in [1,20].
type Evaluator interface {
	Evaluate(ctx context.Context, prompt, answer string, durationSeconds int) (feedback string, score int, err error)
}

// SubmitAnswerCommand contains the data for one answer submission.
type SubmitAnswerCommand struct {
	// ContentID identifies the content item being answered.
	ContentID string

	// UserID is the submitting user. Empty means anonymous.
	UserID string

	// Answer is the raw answer text.
	Answer string

	// DurationSeconds is the elapsed authoring time reported by the caller.
	DurationSeconds int
}

// Validate validates the command.
func (c SubmitAnswerCommand) Validate() error {
	if c.ContentID == "" {
		return shared.WrapError("submission", "SubmitAnswer", shared.ErrValidation,
			"content id is required", shared.ErrEmptyValue)
	}
	if c.Answer == "" {
		return shared.WrapError("submission", "SubmitAnswer", shared.ErrValidation,
			"answer is required", shared.ErrEmptyValue)
	}
	if c.DurationSeconds < 0 {
		return shared.WrapError("submission", "SubmitAnswer", shared.ErrValidation,
			"duration cannot be negative", shared.ErrInvalidInput)
	}
	return nil
}

// BlockProgress describes the state of the item's block after this submission.
type BlockProgress struct {
	// Completed is the number of distinct items answered in the block.
	Completed int `json:"completed"`

	// Total is the block length.
	Total int `json:"total"`

	// BadgeEarned is true only on the submission that completes the block.
	BadgeEarned bool `json:"badge_earned"`

	// BadgeName is the badge display name, set only when BadgeEarned.
	BadgeName string `json:"badge_name,omitempty"`
}

// SubmitAnswerResult is the full outcome returned to the caller.
type SubmitAnswerResult struct {
	// SubmissionID is the identifier of the appended ledger record.
	SubmissionID string `json:"submission_id"`

	// Feedback is the evaluator's written feedback.
	Feedback string `json:"feedback"`

	// XPAwarded is the total award: base plus any completion bonus.
	XPAwarded int `json:"xp_awarded"`

	// BaseXP is the difficulty-adjusted score.
	BaseXP int `json:"base_xp"`

	// BonusXP is the block-completion bonus, zero on all but the final item.
	BonusXP int `json:"bonus_xp"`

	// XPTotal is the new lifetime XP total.
	XPTotal int `json:"xp_total"`

	// Streak is the new consecutive-day streak.
	Streak int `json:"streak"`

	// Difficulty is the tier applied to the raw score.
	Difficulty progress.Difficulty `json:"difficulty"`

	// Block is the block-completion snapshot.
	Block BlockProgress `json:"block"`

	// Level is the level block derived from the new lifetime total.
	Level progress.LevelStats `json:"level"`

	// SubmittedAt is the submission instant in UTC.
	SubmittedAt time.Time `json:"submitted_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAnswerHandler handles the SubmitAnswerCommand.
//
// The duplicate check and the ledger append for the same (user, content item)
// are serialized through an in-process keyed lock, so a double submit cannot
// slip between them within one process. Across processes the race window
// remains and is accepted; deployments needing stricter guarantees must add
// external mutual exclusion on the same key.
type SubmitAnswerHandler struct {
	catalog     content.Catalog
	submissions submission.Ledger
	progress    progress.Ledger
	evaluator   Evaluator
	log         *logger.Logger

	locks keyedLocks

	// now is overridable in tests.
	now func() time.Time
}

// NewSubmitAnswerHandler creates a new SubmitAnswerHandler.
func NewSubmitAnswerHandler(
	catalog content.Catalog,
	submissions submission.Ledger,
	progressLedger progress.Ledger,
	evaluator Evaluator,
	log *logger.Logger,
) *SubmitAnswerHandler {
	if log == nil {
		log = logger.Default()
	}
	return &SubmitAnswerHandler{
		catalog:     catalog,
		submissions: submissions,
		progress:    progressLedger,
		evaluator:   evaluator,
		log:         log.With(logger.Component("submit_answer")),
		now:         time.Now,
	}
}

// Handle executes the submit answer command.
func (h *SubmitAnswerHandler) Handle(ctx context.Context, cmd SubmitAnswerCommand) (*SubmitAnswerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Step 1: resolve the content item. An unknown id writes nothing.
	item, err := h.catalog.ResolveByID(ctx, cmd.ContentID)
	if err != nil {
		return nil, err
	}

	// Step 2: normalize the identity.
	userID := cmd.UserID
	if userID == "" {
		userID = submission.AnonymousUser
	}

	unlock := h.locks.lock(userID + "\x00" + cmd.ContentID)
	defer unlock()

	// Step 3: duplicate check within the item's block.
	inBlock, err := h.submissions.InBlock(ctx, userID, item.BlockIndex)
	if err != nil {
		return nil, err
	}
	answered := make(map[string]bool, len(inBlock))
	for _, rec := range inBlock {
		answered[rec.ContentID] = true
	}
	if answered[cmd.ContentID] {
		return nil, shared.ErrDuplicateSubmission
	}

	// Step 4: external evaluation. A failure here aborts with no writes.
	feedback, rawScore, err := h.evaluator.Evaluate(ctx, item.Prompt, cmd.Answer, cmd.DurationSeconds)
	if err != nil {
		return nil, err
	}

	// Step 5: difficulty weighting.
	difficulty := progress.DifficultyForSlot(item.SlotIndex)
	baseXP := progress.ApplyDifficulty(rawScore, difficulty)

	// Step 6: block completion including this submission.
	completed := len(answered) + 1
	bonus := 0
	badgeEarned := completed == content.BlockLength
	badgeName := ""
	if badgeEarned {
		bonus = BonusXP
		badgeName = progress.BadgeName(item.Theme, item.BlockIndex)
	}
	totalAwarded := baseXP + bonus

	// Steps 7-8: the mutating sequence. A ledger append failure after the
	// progress update leaves totals ahead of history; surfaced, not rolled
	// back.
	submittedAt := h.now().UTC()
	updated, err := h.progress.Update(ctx, userID, totalAwarded, submittedAt)
	if err != nil {
		return nil, err
	}

	rec := submission.Record{
		ID:              uuid.NewString(),
		UserID:          userID,
		ContentID:       cmd.ContentID,
		Answer:          cmd.Answer,
		Feedback:        feedback,
		XPAwarded:       totalAwarded,
		XPTotal:         updated.XPTotal,
		Streak:          updated.Streak,
		CreatedAt:       submittedAt,
		DurationSeconds: cmd.DurationSeconds,
		BlockIndex:      item.BlockIndex,
	}
	if err := h.submissions.Append(ctx, rec); err != nil {
		return nil, err
	}

	h.log.Info("answer submitted",
		logger.UserID(userID),
		logger.ContentID(cmd.ContentID),
		logger.XPAmount(totalAwarded),
		logger.StreakValue(updated.Streak),
		logger.Bool("badge_earned", badgeEarned),
	)

	// Steps 9-10: derive the level block and assemble the result.
	return &SubmitAnswerResult{
		SubmissionID: rec.ID,
		Feedback:     feedback,
		XPAwarded:    totalAwarded,
		BaseXP:       baseXP,
		BonusXP:      bonus,
		XPTotal:      updated.XPTotal,
		Streak:       updated.Streak,
		Difficulty:   difficulty,
		Block: BlockProgress{
			Completed:   completed,
			Total:       content.BlockLength,
			BadgeEarned: badgeEarned,
			BadgeName:   badgeName,
		},
		Level:       progress.ComputeLevel(updated.XPTotal),
		SubmittedAt: submittedAt,
	}, nil
}

// IsDuplicate reports whether the error is a duplicate-submission conflict.
func IsDuplicate(err error) bool {
	return errors.Is(err, shared.ErrAlreadyExists)
}

// keyedLocks serializes critical sections per string key. Entries are tiny
// and bounded by the number of (user, content item) pairs seen by the
// process, so they are never evicted.
type keyedLocks struct {
	locks sync.Map
}

func (k *keyedLocks) lock(key string) (unlock func()) {
	mu, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
