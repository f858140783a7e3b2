package fallback

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/progress"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/shared"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/submission"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/infrastructure/persistence/file"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
)

var errRemoteDown = errors.New("connection refused")

// flakySubmissionStore fails every call and counts how often it was asked.
type flakySubmissionStore struct {
	calls int
}

func (f *flakySubmissionStore) Append(context.Context, submission.Record) error {
	f.calls++
	return errRemoteDown
}

func (f *flakySubmissionStore) MostRecentBefore(context.Context, string, time.Time) (*submission.Record, error) {
	f.calls++
	return nil, errRemoteDown
}

func (f *flakySubmissionStore) InBlock(context.Context, string, int) ([]submission.Record, error) {
	f.calls++
	return nil, errRemoteDown
}

func (f *flakySubmissionStore) Recent(context.Context, string, int) ([]submission.Record, error) {
	f.calls++
	return nil, errRemoteDown
}

type flakyProgressStore struct {
	calls int
}

func (f *flakyProgressStore) Fetch(context.Context, string) (progress.Record, error) {
	f.calls++
	return progress.Record{}, errRemoteDown
}

func (f *flakyProgressStore) Upsert(context.Context, string, progress.Record) error {
	f.calls++
	return errRemoteDown
}

func newSubmissionLog(t *testing.T) *file.SubmissionLog {
	t.Helper()
	log, err := file.NewSubmissionLog(filepath.Join(t.TempDir(), "submissions.jsonl"), logger.Default())
	require.NoError(t, err)
	return log
}

func newProgressSnapshot(t *testing.T) *file.ProgressSnapshot {
	t.Helper()
	snap, err := file.NewProgressSnapshot(filepath.Join(t.TempDir(), "progress.json"), logger.Default())
	require.NoError(t, err)
	return snap
}

func TestSubmissionLedgerServesCallLocallyAfterRemoteFailure(t *testing.T) {
	remote := &flakySubmissionStore{}
	ledger := NewSubmissionLedger(remote, newSubmissionLog(t), 0, logger.Default())
	ctx := context.Background()

	assert.Equal(t, ModeRemote, ledger.Mode())

	rec := submission.Record{
		ID:         "rec-1",
		UserID:     "u1",
		ContentID:  "block-1-slot-1",
		Answer:     "an answer",
		XPAwarded:  12,
		XPTotal:    12,
		Streak:     1,
		CreatedAt:  time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
		BlockIndex: 0,
	}

	// The failing append must still land in the local log.
	require.NoError(t, ledger.Append(ctx, rec))
	assert.Equal(t, ModeLocalOnly, ledger.Mode())

	got, err := ledger.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rec-1", got[0].ID)

	// The remote store was hit exactly once; after degrading it is never
	// consulted again.
	assert.Equal(t, 1, remote.calls)
}

func TestSubmissionLedgerNilRemoteStartsLocalOnly(t *testing.T) {
	ledger := NewSubmissionLedger(nil, newSubmissionLog(t), 0, logger.Default())
	assert.Equal(t, ModeLocalOnly, ledger.Mode())

	records, err := ledger.Recent(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProgressLedgerDegradesOnceAndKeepsState(t *testing.T) {
	remote := &flakyProgressStore{}
	ledger := NewProgressLedger(remote, newProgressSnapshot(t), 0, logger.Default())
	ctx := context.Background()

	day1 := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	rec, err := ledger.Update(ctx, "u1", 10, day1)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.XPTotal)
	assert.Equal(t, 1, rec.Streak)
	assert.Equal(t, ModeLocalOnly, ledger.Mode())

	// The degraded ledger keeps serving from the local snapshot.
	rec, err = ledger.Update(ctx, "u1", 15, day1.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 25, rec.XPTotal)
	assert.Equal(t, 2, rec.Streak)

	fetched, err := ledger.Fetch(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, rec, fetched)

	assert.Equal(t, 1, remote.calls)
}

func TestProgressLedgerRemoteUpdateFetchesThenUpserts(t *testing.T) {
	remote := &recordingProgressStore{stored: progress.Record{XPTotal: 100, Streak: 3,
		LastAnsweredOn: time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)}}
	ledger := NewProgressLedger(remote, newProgressSnapshot(t), 0, logger.Default())

	rec, err := ledger.Update(context.Background(), "u1", 20,
		time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 120, rec.XPTotal)
	assert.Equal(t, 4, rec.Streak)
	assert.Equal(t, rec, remote.stored)
	assert.Equal(t, ModeRemote, ledger.Mode())
}

// recordingProgressStore is a healthy in-memory remote.
type recordingProgressStore struct {
	stored progress.Record
}

func (r *recordingProgressStore) Fetch(context.Context, string) (progress.Record, error) {
	return r.stored, nil
}

func (r *recordingProgressStore) Upsert(_ context.Context, _ string, rec progress.Record) error {
	r.stored = rec
	return nil
}

// stalledSubmissionStore blocks until the per-attempt context expires.
type stalledSubmissionStore struct {
	calls int
}

func (s *stalledSubmissionStore) Append(ctx context.Context, _ submission.Record) error {
	s.calls++
	<-ctx.Done()
	return ctx.Err()
}

func (s *stalledSubmissionStore) MostRecentBefore(ctx context.Context, _ string, _ time.Time) (*submission.Record, error) {
	s.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stalledSubmissionStore) InBlock(ctx context.Context, _ string, _ int) ([]submission.Record, error) {
	s.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *stalledSubmissionStore) Recent(ctx context.Context, _ string, _ int) ([]submission.Record, error) {
	s.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

type stalledProgressStore struct{}

func (stalledProgressStore) Fetch(ctx context.Context, _ string) (progress.Record, error) {
	<-ctx.Done()
	return progress.Record{}, ctx.Err()
}

func (stalledProgressStore) Upsert(ctx context.Context, _ string, _ progress.Record) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSubmissionLedgerBoundsStalledRemote(t *testing.T) {
	remote := &stalledSubmissionStore{}
	ledger := NewSubmissionLedger(remote, newSubmissionLog(t), 25*time.Millisecond, logger.Default())

	rec := submission.Record{
		ID:        "rec-1",
		UserID:    "u1",
		ContentID: "block-1-slot-1",
		CreatedAt: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
	}

	// The caller's context carries no deadline; the ledger must still time
	// the attempt out, degrade, and serve the call locally.
	start := time.Now()
	require.NoError(t, ledger.Append(context.Background(), rec))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, ModeLocalOnly, ledger.Mode())
	assert.Equal(t, 1, remote.calls)

	got, err := ledger.Recent(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rec-1", got[0].ID)
}

func TestProgressLedgerBoundsStalledRemote(t *testing.T) {
	ledger := NewProgressLedger(stalledProgressStore{}, newProgressSnapshot(t), 25*time.Millisecond, logger.Default())

	start := time.Now()
	rec, err := ledger.Update(context.Background(), "u1", 10,
		time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 10, rec.XPTotal)
	assert.Equal(t, ModeLocalOnly, ledger.Mode())
}

// duplicateRejectingStore mimics the remote unique constraint on
// (user_id, content_id).
type duplicateRejectingStore struct{}

func (duplicateRejectingStore) Append(context.Context, submission.Record) error {
	return shared.ErrDuplicateSubmission
}

func (duplicateRejectingStore) MostRecentBefore(context.Context, string, time.Time) (*submission.Record, error) {
	return nil, nil
}

func (duplicateRejectingStore) InBlock(context.Context, string, int) ([]submission.Record, error) {
	return nil, nil
}

func (duplicateRejectingStore) Recent(context.Context, string, int) ([]submission.Record, error) {
	return nil, nil
}

func TestSubmissionLedgerPropagatesRemoteDuplicate(t *testing.T) {
	local := newSubmissionLog(t)
	ledger := NewSubmissionLedger(duplicateRejectingStore{}, local, 0, logger.Default())

	rec := submission.Record{
		ID:        "rec-1",
		UserID:    "u1",
		ContentID: "block-1-slot-1",
		CreatedAt: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
	}

	err := ledger.Append(context.Background(), rec)
	assert.True(t, shared.IsDuplicate(err))

	// A duplicate rejection is a ledger answer: no degradation, no local write.
	assert.Equal(t, ModeRemote, ledger.Mode())
	locally, err := local.Recent("u1", 0)
	require.NoError(t, err)
	assert.Empty(t, locally)
}
