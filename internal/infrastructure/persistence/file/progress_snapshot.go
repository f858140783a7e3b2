package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/progress"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
)

// ProgressSnapshot is a whole-file keyed store for per-user progress totals.
// The file is rewritten in full on every update; there is exactly one live
// row per user.
type ProgressSnapshot struct {
	path string
	log  *logger.Logger
	mu   sync.Mutex
}

// NewProgressSnapshot creates a snapshot store at path.
func NewProgressSnapshot(path string, log *logger.Logger) (*ProgressSnapshot, error) {
	if log == nil {
		log = logger.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("progress snapshot: create data dir: %w", err)
	}
	return &ProgressSnapshot{path: path, log: log}, nil
}

// storedProgress is the on-disk row. LastAnsweredOn stays a string so an
// unreadable value degrades to "no prior date" instead of failing the read.
type storedProgress struct {
	XPTotal        int    `json:"xp_total"`
	Streak         int    `json:"streak"`
	LastAnsweredOn string `json:"last_answered_on,omitempty"`
}

func (s *ProgressSnapshot) toRecord(row storedProgress) progress.Record {
	rec := progress.Record{XPTotal: row.XPTotal, Streak: row.Streak}
	if row.LastAnsweredOn == "" {
		return rec
	}
	last, err := time.Parse(time.RFC3339Nano, row.LastAnsweredOn)
	if err != nil {
		// Recovery path: a corrupt date means the next submission starts a
		// fresh streak rather than crashing the process.
		s.log.Warn("unparsable last_answered_on, treating as no prior date",
			logger.String("value", row.LastAnsweredOn))
		return rec
	}
	rec.LastAnsweredOn = last
	return rec
}

// read loads the whole snapshot. A missing or unreadable file is an empty
// snapshot.
func (s *ProgressSnapshot) read() map[string]storedProgress {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("progress snapshot unreadable, starting empty", logger.Err(err))
		}
		return map[string]storedProgress{}
	}
	data := map[string]storedProgress{}
	if err := json.Unmarshal(raw, &data); err != nil {
		s.log.Warn("progress snapshot malformed, starting empty", logger.Err(err))
		return map[string]storedProgress{}
	}
	return data
}

// write rewrites the snapshot in full. A temp-file rename keeps the update
// atomic relative to concurrent readers of the same path.
func (s *ProgressSnapshot) write(data map[string]storedProgress) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("progress snapshot: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("progress snapshot: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("progress snapshot: replace: %w", err)
	}
	return nil
}

// Fetch returns the user's record, zero-valued for unknown users.
func (s *ProgressSnapshot) Fetch(userID string) (progress.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.read()[userID]
	if !ok {
		return progress.Record{}, nil
	}
	return s.toRecord(row), nil
}

// Update applies an XP delta at the submission instant and persists the new
// state.
func (s *ProgressSnapshot) Update(userID string, xpDelta int, submittedAt time.Time) (progress.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.read()
	current := progress.Record{}
	if row, ok := data[userID]; ok {
		current = s.toRecord(row)
	}

	next := current.Apply(xpDelta, submittedAt.UTC())
	data[userID] = storedProgress{
		XPTotal:        next.XPTotal,
		Streak:         next.Streak,
		LastAnsweredOn: next.LastAnsweredOn.Format(time.RFC3339Nano),
	}
	if err := s.write(data); err != nil {
		return progress.Record{}, err
	}
	return next, nil
}
