package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/plan"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
)

// PlanStore is a small keyed JSON store for per-user access tiers.
type PlanStore struct {
	path string
	log  *logger.Logger
	mu   sync.Mutex
}

var _ plan.Store = (*PlanStore)(nil)

// NewPlanStore creates a plan store at path.
func NewPlanStore(path string, log *logger.Logger) (*PlanStore, error) {
	if log == nil {
		log = logger.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("plan store: create data dir: %w", err)
	}
	return &PlanStore{path: path, log: log}, nil
}

type storedPlan struct {
	Plan string `json:"plan"`
}

func (s *PlanStore) read() map[string]storedPlan {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("plan store unreadable, starting empty", logger.Err(err))
		}
		return map[string]storedPlan{}
	}
	data := map[string]storedPlan{}
	if err := json.Unmarshal(raw, &data); err != nil {
		s.log.Warn("plan store malformed, starting empty", logger.Err(err))
		return map[string]storedPlan{}
	}
	return data
}

// GetPlan returns the user's plan label, plan.Free for unknown users.
func (s *PlanStore) GetPlan(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return plan.Normalize(s.read()[userID].Plan), nil
}

// SetPlan records the user's plan label.
func (s *PlanStore) SetPlan(_ context.Context, userID, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.read()
	data[userID] = storedPlan{Plan: plan.Normalize(label)}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("plan store: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("plan store: write temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("plan store: replace: %w", err)
	}
	return nil
}
