// Package file implements the local durable stores: an append-only JSONL
// submission log, a whole-file JSON progress snapshot, and a keyed JSON plan
// store. All three are plain-text, human-inspectable UTF-8 files. They are
// the guaranteed-available half of the dual-backend ledgers.
package file

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/submission"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/timeutil"
)

// maxLineBytes bounds one stored record line during scans.
const maxLineBytes = 8 * 1024 * 1024

// SubmissionLog is an append-only sequential record log. One self-describing
// JSON record per line, newest appended at the end, so the log can be scanned
// without an index. Malformed lines are skipped, never fatal.
type SubmissionLog struct {
	path string
	log  *logger.Logger
	mu   sync.Mutex
}

// NewSubmissionLog creates a log at path, creating parent directories as
// needed.
func NewSubmissionLog(path string, log *logger.Logger) (*SubmissionLog, error) {
	if log == nil {
		log = logger.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("submission log: create data dir: %w", err)
	}
	return &SubmissionLog{path: path, log: log}, nil
}

// lineRecord is the on-disk shape of one record. BlockIndex is a pointer so
// records written before the field existed (no "block_index" key) can be told
// apart from block zero; they resolve through the content identifier instead.
type lineRecord struct {
	ID              string    `json:"id,omitempty"`
	UserID          string    `json:"user_id"`
	ContentID       string    `json:"content_id"`
	Answer          string    `json:"answer"`
	Feedback        string    `json:"feedback"`
	XPAwarded       int       `json:"xp_awarded"`
	XPTotal         int       `json:"xp_total"`
	Streak          int       `json:"streak"`
	CreatedAt       time.Time `json:"created_at"`
	DurationSeconds int       `json:"duration_seconds"`
	BlockIndex      *int      `json:"block_index,omitempty"`
}

func toLine(rec submission.Record) lineRecord {
	line := lineRecord{
		ID:              rec.ID,
		UserID:          rec.UserID,
		ContentID:       rec.ContentID,
		Answer:          rec.Answer,
		Feedback:        rec.Feedback,
		XPAwarded:       rec.XPAwarded,
		XPTotal:         rec.XPTotal,
		Streak:          rec.Streak,
		CreatedAt:       rec.CreatedAt.UTC(),
		DurationSeconds: rec.DurationSeconds,
	}
	if rec.BlockIndex >= 0 {
		idx := rec.BlockIndex
		line.BlockIndex = &idx
	}
	return line
}

func fromLine(line lineRecord) submission.Record {
	rec := submission.Record{
		ID:              line.ID,
		UserID:          line.UserID,
		ContentID:       line.ContentID,
		Answer:          line.Answer,
		Feedback:        line.Feedback,
		XPAwarded:       line.XPAwarded,
		XPTotal:         line.XPTotal,
		Streak:          line.Streak,
		CreatedAt:       line.CreatedAt,
		DurationSeconds: line.DurationSeconds,
		BlockIndex:      -1,
	}
	if line.BlockIndex != nil {
		rec.BlockIndex = *line.BlockIndex
	}
	return rec
}

// Append durably writes one record at the end of the log.
func (s *SubmissionLog) Append(rec submission.Record) error {
	data, err := json.Marshal(toLine(rec))
	if err != nil {
		return fmt.Errorf("submission log: marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("submission log: open for append: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("submission log: write record: %w", err)
	}
	return f.Sync()
}

// scan reads every parseable record for a user, in file (append) order.
// A missing file is an empty history, not an error.
func (s *SubmissionLog) scan(userID string) ([]submission.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("submission log: open for scan: %w", err)
	}
	defer f.Close()

	var records []submission.Record
	scanner := bufio.NewScanner(f)
	// The line cap must exceed the largest representable record: answers are
	// capped at 1 MiB by the request-body limit, and JSON escaping can expand
	// each byte to six. Exceeding the cap would fail the whole scan, not skip
	// one record.
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line lineRecord
		if err := json.Unmarshal(raw, &line); err != nil || line.CreatedAt.IsZero() {
			s.log.Debug("skipping malformed submission record", logger.Err(err))
			continue
		}
		rec := fromLine(line)
		if rec.UserID != userID {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("submission log: scan: %w", err)
	}
	return records, nil
}

// MostRecentBefore returns the newest record strictly before the given
// calendar date, or nil.
func (s *SubmissionLog) MostRecentBefore(userID string, before time.Time) (*submission.Record, error) {
	records, err := s.scan(userID)
	if err != nil {
		return nil, err
	}

	cutoff := timeutil.DateOnly(before)
	var newest *submission.Record
	for i := range records {
		rec := records[i]
		if !timeutil.DateOnly(rec.CreatedAt).Before(cutoff) {
			continue
		}
		if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
			newest = &records[i]
		}
	}
	return newest, nil
}

// InBlock returns every record the user has in one content block, resolving
// the block index through the persisted field or the legacy identifier parse.
func (s *SubmissionLog) InBlock(userID string, blockIndex int) ([]submission.Record, error) {
	records, err := s.scan(userID)
	if err != nil {
		return nil, err
	}

	var matches []submission.Record
	for _, rec := range records {
		if rec.ResolveBlockIndex() == blockIndex {
			matches = append(matches, rec)
		}
	}
	return matches, nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (s *SubmissionLog) Recent(userID string, limit int) ([]submission.Record, error) {
	records, err := s.scan(userID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
