package progress

import (
	"fmt"
	"strings"
)

// badgeSeparator splits a theme label into a block name and a badge topic.
const badgeSeparator = " — "

// BadgeName derives the display name of a block's insight badge from the
// block's theme label. "Foundations — Identity" yields "Identity Insight
// Badge"; a theme without the separator falls back to the 1-indexed block
// number.
func BadgeName(theme string, blockIndex int) string {
	if idx := strings.LastIndex(theme, badgeSeparator); idx >= 0 {
		topic := strings.TrimSpace(theme[idx+len(badgeSeparator):])
		if topic != "" {
			return topic + " Insight Badge"
		}
	}
	return fmt.Sprintf("Block %d Insight Badge", blockIndex+1)
}
