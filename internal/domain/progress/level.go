package progress

import "math"

// XPPerLevel is the fixed XP cost of each level.
const XPPerLevel = 120

// LevelStats is the level block derived from a lifetime XP total.
type LevelStats struct {
	// Level is the coarse XP milestone, starting at 1.
	Level int `json:"level"`

	// XPIntoLevel is the XP earned inside the current level.
	XPIntoLevel int `json:"xp_into_level"`

	// XPToNext is the XP remaining until the next level.
	XPToNext int `json:"xp_to_next_level"`

	// NextLevelThreshold is the lifetime XP total at which the next level
	// is reached.
	NextLevelThreshold int `json:"next_level_threshold"`

	// ProgressPercent is the rounded progress through the current level,
	// clamped to [0,100].
	ProgressPercent int `json:"level_progress_percent"`
}

// ComputeLevel derives level statistics from a lifetime XP total.
// Negative totals are treated as zero.
func ComputeLevel(xpTotal int) LevelStats {
	if xpTotal < 0 {
		xpTotal = 0
	}

	level := xpTotal/XPPerLevel + 1
	previousThreshold := (level - 1) * XPPerLevel
	nextThreshold := level * XPPerLevel
	into := xpTotal - previousThreshold

	percent := int(math.Round(float64(into) / float64(XPPerLevel) * 100))
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	return LevelStats{
		Level:              level,
		XPIntoLevel:        into,
		XPToNext:           nextThreshold - xpTotal,
		NextLevelThreshold: nextThreshold,
		ProgressPercent:    percent,
	}
}
