package command

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/content"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/progress"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/shared"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/submission"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeCatalog struct {
	items map[string]content.Item
}

func newFakeCatalog(theme string, blockIndex, count int) *fakeCatalog {
	c := &fakeCatalog{items: make(map[string]content.Item)}
	for slot := 0; slot < count; slot++ {
		id := content.ItemID(blockIndex, slot)
		c.items[id] = content.Item{
			ID:         id,
			Prompt:     fmt.Sprintf("Prompt %d", slot+1),
			Theme:      theme,
			BlockIndex: blockIndex,
			SlotIndex:  slot,
		}
	}
	return c
}

func (c *fakeCatalog) ResolveForDate(_ context.Context, date time.Time) (content.Item, error) {
	for _, item := range c.items {
		item.ServedOn = timeutil.DateOnly(date)
		return item, nil
	}
	return content.Item{}, shared.ErrEmptyCatalog
}

func (c *fakeCatalog) ResolveByID(_ context.Context, id string) (content.Item, error) {
	item, ok := c.items[id]
	if !ok {
		return content.Item{}, shared.ErrContentNotFound
	}
	return item, nil
}

func (c *fakeCatalog) Items(context.Context) ([]content.Item, error) {
	out := make([]content.Item, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	return out, nil
}

type memSubmissions struct {
	records []submission.Record
}

func (m *memSubmissions) Append(_ context.Context, rec submission.Record) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memSubmissions) MostRecentBefore(_ context.Context, userID string, before time.Time) (*submission.Record, error) {
	cutoff := timeutil.DateOnly(before)
	var newest *submission.Record
	for i := range m.records {
		rec := m.records[i]
		if rec.UserID != userID || !rec.CreatedAt.Before(cutoff) {
			continue
		}
		if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
			newest = &rec
		}
	}
	return newest, nil
}

func (m *memSubmissions) InBlock(_ context.Context, userID string, blockIndex int) ([]submission.Record, error) {
	var out []submission.Record
	for _, rec := range m.records {
		if rec.UserID == userID && rec.ResolveBlockIndex() == blockIndex {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memSubmissions) Recent(_ context.Context, userID string, limit int) ([]submission.Record, error) {
	var out []submission.Record
	for _, rec := range m.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memProgress struct {
	records map[string]progress.Record
}

func (m *memProgress) Fetch(_ context.Context, userID string) (progress.Record, error) {
	return m.records[userID], nil
}

func (m *memProgress) Update(_ context.Context, userID string, xpDelta int, submittedAt time.Time) (progress.Record, error) {
	if m.records == nil {
		m.records = make(map[string]progress.Record)
	}
	next := m.records[userID].Apply(xpDelta, submittedAt)
	m.records[userID] = next
	return next, nil
}

type stubEvaluator struct {
	score int
	calls int
}

func (s *stubEvaluator) Evaluate(_ context.Context, _, _ string, _ int) (string, int, error) {
	s.calls++
	return "Keep going.", s.score, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

type engineFixture struct {
	handler     *SubmitAnswerHandler
	submissions *memSubmissions
	progress    *memProgress
	evaluator   *stubEvaluator
}

func newEngine(t *testing.T, score int) *engineFixture {
	t.Helper()
	f := &engineFixture{
		submissions: &memSubmissions{},
		progress:    &memProgress{},
		evaluator:   &stubEvaluator{score: score},
	}
	f.handler = NewSubmitAnswerHandler(
		newFakeCatalog("Foundations — Identity", 0, 7),
		f.submissions,
		f.progress,
		f.evaluator,
		nil,
	)
	f.handler.now = func() time.Time {
		return time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	}
	return f
}

func submitCmd(slot int) SubmitAnswerCommand {
	return SubmitAnswerCommand{
		ContentID:       content.ItemID(0, slot),
		UserID:          "u1",
		Answer:          "a considered answer",
		DurationSeconds: 180,
	}
}

func TestSubmitAnswerAwardsDifficultyWeightedXP(t *testing.T) {
	f := newEngine(t, 10)

	res, err := f.handler.Handle(context.Background(), submitCmd(5))
	require.NoError(t, err)

	// Slot 5 is mastery: round(10 * 1.35) = 14.
	assert.Equal(t, "mastery", res.Difficulty.Label)
	assert.Equal(t, 14, res.BaseXP)
	assert.Equal(t, 0, res.BonusXP)
	assert.Equal(t, 14, res.XPAwarded)
	assert.Equal(t, 14, res.XPTotal)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 1, res.Level.Level)
	assert.Equal(t, "Keep going.", res.Feedback)
	assert.NotEmpty(t, res.SubmissionID)

	require.Len(t, f.submissions.records, 1)
	rec := f.submissions.records[0]
	assert.Equal(t, 14, rec.XPAwarded)
	assert.Equal(t, 14, rec.XPTotal)
	assert.Equal(t, 0, rec.BlockIndex)
}

func TestSubmitAnswerDuplicateConflicts(t *testing.T) {
	f := newEngine(t, 10)
	ctx := context.Background()

	first, err := f.handler.Handle(ctx, submitCmd(0))
	require.NoError(t, err)

	_, err = f.handler.Handle(ctx, submitCmd(0))
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	// The conflict left no partial state and never reached the evaluator.
	assert.Equal(t, 1, f.evaluator.calls)
	assert.Len(t, f.submissions.records, 1)
	prog, err := f.progress.Fetch(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.XPTotal, prog.XPTotal)
}

func TestSubmitAnswerBlockCompletionBonus(t *testing.T) {
	f := newEngine(t, 10)
	ctx := context.Background()

	for slot := 0; slot < 6; slot++ {
		res, err := f.handler.Handle(ctx, submitCmd(slot))
		require.NoError(t, err)
		assert.Equal(t, 0, res.BonusXP, "slot %d", slot)
		assert.False(t, res.Block.BadgeEarned, "slot %d", slot)
		assert.Equal(t, slot+1, res.Block.Completed)
	}

	res, err := f.handler.Handle(ctx, submitCmd(6))
	require.NoError(t, err)
	assert.Equal(t, BonusXP, res.BonusXP)
	assert.True(t, res.Block.BadgeEarned)
	assert.Equal(t, "Identity Insight Badge", res.Block.BadgeName)
	assert.Equal(t, 7, res.Block.Completed)
	assert.Equal(t, 7, res.Block.Total)
}

func TestSubmitAnswerUnknownContent(t *testing.T) {
	f := newEngine(t, 10)

	cmd := submitCmd(0)
	cmd.ContentID = "block-9-slot-9"
	_, err := f.handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
	assert.Zero(t, f.evaluator.calls)
	assert.Empty(t, f.submissions.records)
}

func TestSubmitAnswerAnonymousFallback(t *testing.T) {
	f := newEngine(t, 10)

	cmd := submitCmd(0)
	cmd.UserID = ""
	_, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	require.Len(t, f.submissions.records, 1)
	assert.Equal(t, submission.AnonymousUser, f.submissions.records[0].UserID)
}

func TestSubmitAnswerValidation(t *testing.T) {
	f := newEngine(t, 10)
	ctx := context.Background()

	cmd := submitCmd(0)
	cmd.Answer = ""
	_, err := f.handler.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrValidation)

	cmd = submitCmd(0)
	cmd.DurationSeconds = -1
	_, err = f.handler.Handle(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrValidation)
}
