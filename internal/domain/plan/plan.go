// Package plan defines the per-user access tier used to gate reflection
// history. Plans live in a small keyed store independent of the ledgers.
package plan

import (
	"context"
	"strings"
)

// Plan labels.
const (
	// Free is the default tier for unknown users.
	Free = "free"

	// Premium unlocks the full reflection timeline.
	Premium = "premium"
)

// Normalize lower-cases a plan label, defaulting empty values to Free.
func Normalize(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return Free
	}
	return label
}

// IsPremium reports whether the label grants the unlocked timeline.
func IsPremium(label string) bool {
	return Normalize(label) == Premium
}

// Store is the access-tier lookup.
type Store interface {
	// GetPlan returns the user's plan label, Free for unknown users.
	GetPlan(ctx context.Context, userID string) (string, error)

	// SetPlan records the user's plan label.
	SetPlan(ctx context.Context, userID, label string) error
}
