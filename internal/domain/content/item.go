// Package content defines the daily-reflection content catalog: themed blocks
// of prompts, one prompt per calendar day, served cyclically once the bank is
// exhausted.
package content

import (
	"context"
	"fmt"
	"time"
)

// BlockLength is the number of items in a complete block ("week" in
// user-facing copy). Completing all of them earns the block badge.
const BlockLength = 7

// Item is a single reflection prompt. Items are immutable once loaded; the
// ServedOn date is computed per request and never stored.
type Item struct {
	// ID is the stable identifier, derived as "block-<n>-slot-<m>" (1-indexed).
	ID string

	// Prompt is the display text the user answers.
	Prompt string

	// Theme is the block's theme label, e.g. "Foundations — Identity".
	Theme string

	// BlockIndex is the zero-based index of the owning block.
	BlockIndex int

	// SlotIndex is the zero-based position within the block.
	SlotIndex int

	// ServedOn is the calendar date this item is being served for.
	ServedOn time.Time
}

// ItemID derives the stable identifier for a block/slot pair.
func ItemID(blockIndex, slotIndex int) string {
	return fmt.Sprintf("block-%d-slot-%d", blockIndex+1, slotIndex+1)
}

// Catalog resolves calendar dates and identifiers to content items.
type Catalog interface {
	// ResolveForDate returns the item scheduled for the given calendar date.
	ResolveForDate(ctx context.Context, date time.Time) (Item, error)

	// ResolveByID returns the item with the given identifier.
	ResolveByID(ctx context.Context, id string) (Item, error)

	// Items returns every item in the bank, in schedule order.
	Items(ctx context.Context) ([]Item, error)
}
