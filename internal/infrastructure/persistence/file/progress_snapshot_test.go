package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSnapshot(t *testing.T) (*ProgressSnapshot, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "progress.json")
	snap, err := NewProgressSnapshot(path, nil)
	require.NoError(t, err)
	return snap, path
}

func TestProgressSnapshotUnknownUser(t *testing.T) {
	snap, _ := newTestSnapshot(t)

	got, err := snap.Fetch("nobody")
	require.NoError(t, err)
	assert.Zero(t, got.XPTotal)
	assert.Zero(t, got.Streak)
	assert.True(t, got.LastAnsweredOn.IsZero())
}

func TestProgressSnapshotUpdatePersists(t *testing.T) {
	snap, path := newTestSnapshot(t)

	day1 := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	got, err := snap.Update("u1", 14, day1)
	require.NoError(t, err)
	assert.Equal(t, 14, got.XPTotal)
	assert.Equal(t, 1, got.Streak)

	got, err = snap.Update("u1", 10, day2)
	require.NoError(t, err)
	assert.Equal(t, 24, got.XPTotal)
	assert.Equal(t, 2, got.Streak, "next-day submission extends the streak")

	// A fresh store over the same file sees the persisted state.
	reopened, err := NewProgressSnapshot(path, nil)
	require.NoError(t, err)
	got, err = reopened.Fetch("u1")
	require.NoError(t, err)
	assert.Equal(t, 24, got.XPTotal)
	assert.Equal(t, 2, got.Streak)
	assert.Equal(t, day2, got.LastAnsweredOn)
}

func TestProgressSnapshotCorruptDateDegrades(t *testing.T) {
	snap, path := newTestSnapshot(t)

	corrupt := `{"u1":{"xp_total":90,"streak":6,"last_answered_on":"yesterday-ish"}}`
	require.NoError(t, os.WriteFile(path, []byte(corrupt), 0o644))

	got, err := snap.Fetch("u1")
	require.NoError(t, err)
	assert.Equal(t, 90, got.XPTotal)
	assert.Equal(t, 6, got.Streak)
	assert.True(t, got.LastAnsweredOn.IsZero(), "unreadable date reads as no prior date")

	// With no prior date the next submission starts a fresh streak.
	next, err := snap.Update("u1", 10, time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 100, next.XPTotal)
	assert.Equal(t, 1, next.Streak)
}

func TestProgressSnapshotMalformedFileStartsEmpty(t *testing.T) {
	snap, path := newTestSnapshot(t)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	got, err := snap.Fetch("u1")
	require.NoError(t, err)
	assert.Zero(t, got.XPTotal)
}
