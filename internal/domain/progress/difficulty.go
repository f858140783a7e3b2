package progress

import "math"

// Difficulty is the per-slot weighting tier. Later slots in a block carry a
// higher multiplier to reward sustained engagement through the week.
type Difficulty struct {
	// Label is the tier name: "primer", "deepening", or "mastery".
	Label string `json:"label"`

	// Multiplier scales the raw evaluator score.
	Multiplier float64 `json:"multiplier"`
}

// DifficultyForSlot maps a zero-based slot index to its tier.
func DifficultyForSlot(slotIndex int) Difficulty {
	switch {
	case slotIndex >= 5:
		return Difficulty{Label: "mastery", Multiplier: 1.35}
	case slotIndex >= 3:
		return Difficulty{Label: "deepening", Multiplier: 1.15}
	default:
		return Difficulty{Label: "primer", Multiplier: 1.0}
	}
}

// ApplyDifficulty scales a raw score by the tier multiplier, rounding to the
// nearest point with a floor of 1.
func ApplyDifficulty(rawScore int, d Difficulty) int {
	scaled := int(math.Round(float64(rawScore) * d.Multiplier))
	if scaled < 1 {
		return 1
	}
	return scaled
}
