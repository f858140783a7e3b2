package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/progress"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/infrastructure/persistence/file"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
)

// RemoteProgressStore is the remote half of the progress ledger.
type RemoteProgressStore interface {
	Fetch(ctx context.Context, userID string) (progress.Record, error)
	Upsert(ctx context.Context, userID string, rec progress.Record) error
}

// ProgressLedger implements progress.Ledger over a remote mirror and the
// local snapshot file.
type ProgressLedger struct {
	remote  RemoteProgressStore
	local   *file.ProgressSnapshot
	timeout time.Duration
	log     *logger.Logger

	mu   sync.RWMutex
	mode Mode
}

var _ progress.Ledger = (*ProgressLedger)(nil)

// NewProgressLedger creates a ledger. A nil remote store starts the ledger in
// local-only mode; timeout <= 0 falls back to DefaultRemoteTimeout.
func NewProgressLedger(remote RemoteProgressStore, local *file.ProgressSnapshot, timeout time.Duration, log *logger.Logger) *ProgressLedger {
	if log == nil {
		log = logger.Default()
	}
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	mode := ModeRemote
	if remote == nil {
		mode = ModeLocalOnly
	}
	return &ProgressLedger{
		remote:  remote,
		local:   local,
		timeout: timeout,
		log:     log.With(logger.Component("progress_ledger")),
		mode:    mode,
	}
}

// Mode returns the current backend mode.
func (l *ProgressLedger) Mode() Mode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mode
}

func (l *ProgressLedger) useRemote() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mode == ModeRemote
}

func (l *ProgressLedger) degrade(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mode == ModeLocalOnly {
		return
	}
	l.mode = ModeLocalOnly
	l.log.Warn("remote store failed, falling back to local store for the process lifetime",
		logger.Operation(op),
		logger.Err(err),
	)
}

// remoteContext bounds one remote attempt with the configured timeout.
func (l *ProgressLedger) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.timeout)
}

// Fetch returns the user's progress record, a zero record when none exists.
func (l *ProgressLedger) Fetch(ctx context.Context, userID string) (progress.Record, error) {
	if l.useRemote() {
		rctx, cancel := l.remoteContext(ctx)
		rec, err := l.remote.Fetch(rctx, userID)
		cancel()
		if err == nil {
			return rec, nil
		}
		l.degrade("Fetch", err)
	}
	return l.local.Fetch(userID)
}

// Update applies an XP delta and the streak transition for submittedAt, then
// persists the new record.
func (l *ProgressLedger) Update(ctx context.Context, userID string, xpDelta int, submittedAt time.Time) (progress.Record, error) {
	if l.useRemote() {
		rctx, cancel := l.remoteContext(ctx)
		rec, err := l.updateRemote(rctx, userID, xpDelta, submittedAt)
		cancel()
		if err == nil {
			return rec, nil
		}
		l.degrade("Update", err)
	}
	return l.local.Update(userID, xpDelta, submittedAt)
}

func (l *ProgressLedger) updateRemote(ctx context.Context, userID string, xpDelta int, submittedAt time.Time) (progress.Record, error) {
	current, err := l.remote.Fetch(ctx, userID)
	if err != nil {
		return progress.Record{}, err
	}
	next := current.Apply(xpDelta, submittedAt)
	if err := l.remote.Upsert(ctx, userID, next); err != nil {
		return progress.Record{}, err
	}
	return next, nil
}
