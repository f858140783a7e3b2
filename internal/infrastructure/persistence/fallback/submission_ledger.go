package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/shared"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/submission"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/infrastructure/persistence/file"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
)

// RemoteSubmissionStore is the remote half of the submission ledger.
type RemoteSubmissionStore interface {
	Append(ctx context.Context, rec submission.Record) error
	MostRecentBefore(ctx context.Context, userID string, before time.Time) (*submission.Record, error)
	InBlock(ctx context.Context, userID string, blockIndex int) ([]submission.Record, error)
	Recent(ctx context.Context, userID string, limit int) ([]submission.Record, error)
}

// DefaultRemoteTimeout bounds one remote attempt when no explicit timeout is
// configured. A stalled remote connection must time out and degrade the
// ledger, never block the request indefinitely.
const DefaultRemoteTimeout = 10 * time.Second

// SubmissionLedger implements submission.Ledger over a remote mirror and the
// local append-only log.
type SubmissionLedger struct {
	remote  RemoteSubmissionStore
	local   *file.SubmissionLog
	timeout time.Duration
	log     *logger.Logger

	mu   sync.RWMutex
	mode Mode
}

var _ submission.Ledger = (*SubmissionLedger)(nil)

// NewSubmissionLedger creates a ledger. A nil remote store starts the ledger
// in local-only mode; timeout <= 0 falls back to DefaultRemoteTimeout.
func NewSubmissionLedger(remote RemoteSubmissionStore, local *file.SubmissionLog, timeout time.Duration, log *logger.Logger) *SubmissionLedger {
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
	return &SubmissionLedger{
		remote:  remote,
		local:   local,
		timeout: timeout,
		log:     log.With(logger.Component("submission_ledger")),
		mode:    mode,
	}
}

// Mode returns the current backend mode.
func (l *SubmissionLedger) Mode() Mode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mode
}

func (l *SubmissionLedger) useRemote() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mode == ModeRemote
}

// degrade performs the one-way transition to local-only. Logged once; later
// calls from racing requests are no-ops.
func (l *SubmissionLedger) degrade(op string, err error) {
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
func (l *SubmissionLedger) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, l.timeout)
}

// Append durably writes a record, mirroring to the remote store while it is
// healthy. A duplicate rejection from the remote unique constraint propagates
// as-is; it is a ledger answer, not a backend failure.
func (l *SubmissionLedger) Append(ctx context.Context, rec submission.Record) error {
	if l.useRemote() {
		rctx, cancel := l.remoteContext(ctx)
		err := l.remote.Append(rctx, rec)
		cancel()
		if err == nil {
			return nil
		}
		if shared.IsDuplicate(err) {
			return err
		}
		l.degrade("Append", err)
	}
	return l.local.Append(rec)
}

// MostRecentBefore returns the newest record strictly before the given
// calendar date, or nil.
func (l *SubmissionLedger) MostRecentBefore(ctx context.Context, userID string, before time.Time) (*submission.Record, error) {
	if l.useRemote() {
		rctx, cancel := l.remoteContext(ctx)
		rec, err := l.remote.MostRecentBefore(rctx, userID, before)
		cancel()
		if err == nil {
			return rec, nil
		}
		l.degrade("MostRecentBefore", err)
	}
	return l.local.MostRecentBefore(userID, before)
}

// InBlock returns every record the user has in one content block.
func (l *SubmissionLedger) InBlock(ctx context.Context, userID string, blockIndex int) ([]submission.Record, error) {
	if l.useRemote() {
		rctx, cancel := l.remoteContext(ctx)
		records, err := l.remote.InBlock(rctx, userID, blockIndex)
		cancel()
		if err == nil {
			return records, nil
		}
		l.degrade("InBlock", err)
	}
	return l.local.InBlock(userID, blockIndex)
}

// Recent returns up to limit records, newest first.
func (l *SubmissionLedger) Recent(ctx context.Context, userID string, limit int) ([]submission.Record, error) {
	if l.useRemote() {
		rctx, cancel := l.remoteContext(ctx)
		records, err := l.remote.Recent(rctx, userID, limit)
		cancel()
		if err == nil {
			return records, nil
		}
		l.degrade("Recent", err)
	}
	return l.local.Recent(userID, limit)
}
