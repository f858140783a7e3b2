// Package catalog loads the content bank and implements the date-to-content
// schedule. The bank is a YAML file of themed blocks; each prompt occupies one
// day-of-year offset, so a calendar date resolves to exactly one item.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/content"
	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/shared"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BANK FILE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// bankFile is the on-disk shape of the content bank.
type bankFile struct {
	Blocks []bankBlock `yaml:"blocks"`
}

// bankBlock is one themed block of prompts.
type bankBlock struct {
	// Theme is the block label, e.g. "Foundations — Identity".
	Theme string `yaml:"theme"`

	// StartDate optionally pins the block to a calendar date (YYYY-MM-DD).
	// Blocks without one start on the next free offset after the previous
	// block.
	StartDate string `yaml:"start_date"`

	// Prompts are the ordered item texts; each becomes one content item.
	Prompts []string `yaml:"prompts"`
}

// ══════════════════════════════════════════════════════════════════════════════
// FILE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// FileCatalog is a process-lifetime catalog over a YAML bank file. The bank
// is loaded once under a single-initialization guard; a reload requires a
// process restart.
type FileCatalog struct {
	path string
	log  *logger.Logger

	once    sync.Once
	items   []content.Item
	offsets []int // day-of-year offset per item, sorted ascending
	loadErr error
}

var _ content.Catalog = (*FileCatalog)(nil)

// New creates a catalog over the bank file at path.
func New(path string, log *logger.Logger) *FileCatalog {
	if log == nil {
		log = logger.Default()
	}
	return &FileCatalog{path: path, log: log}
}

// load reads and schedules the bank exactly once. Errors are cached: an empty
// or unreadable bank is a fatal configuration error and every resolve repeats
// it until the file is fixed and the process restarted.
func (c *FileCatalog) load() error {
	c.once.Do(func() {
		raw, err := os.ReadFile(c.path)
		if err != nil {
			c.loadErr = shared.WrapError("content", "Load", shared.ErrConfiguration, "read content bank", err)
			return
		}

		var bank bankFile
		if err := yaml.Unmarshal(raw, &bank); err != nil {
			c.loadErr = shared.WrapError("content", "Load", shared.ErrConfiguration, "parse content bank", err)
			return
		}

		items, offsets, err := schedule(bank)
		if err != nil {
			c.loadErr = err
			return
		}
		if len(items) == 0 {
			c.loadErr = shared.ErrEmptyCatalog
			return
		}

		c.items = items
		c.offsets = offsets
		c.log.Info("content bank loaded",
			logger.String("path", c.path),
			logger.Int("blocks", len(bank.Blocks)),
			logger.Int("items", len(items)),
		)
	})
	return c.loadErr
}

// schedule assigns a day-of-year offset to every item. Blocks with an
// explicit start date use that date's ordinal day; the rest continue on the
// next free offset, with a minimum of one day per block.
func schedule(bank bankFile) ([]content.Item, []int, error) {
	var (
		items      []content.Item
		offsets    []int
		nextOffset = 1
	)

	for blockIdx, block := range bank.Blocks {
		start := nextOffset
		if block.StartDate != "" {
			date, err := timeutil.ParseDate(block.StartDate)
			if err != nil {
				return nil, nil, shared.WrapError("content", "Load", shared.ErrConfiguration,
					fmt.Sprintf("block %d has a malformed start_date %q", blockIdx+1, block.StartDate), err)
			}
			start = timeutil.DayOfYear(date)
		}

		for slotIdx, prompt := range block.Prompts {
			items = append(items, content.Item{
				ID:         content.ItemID(blockIdx, slotIdx),
				Prompt:     prompt,
				Theme:      block.Theme,
				BlockIndex: blockIdx,
				SlotIndex:  slotIdx,
			})
			offsets = append(offsets, start+slotIdx)
		}

		consumed := len(block.Prompts)
		if consumed < 1 {
			consumed = 1
		}
		nextOffset = start + consumed
	}

	// Explicit start dates may interleave out of order; the floor search
	// needs the offset sequence sorted.
	sortByOffset(items, offsets)
	return items, offsets, nil
}

func sortByOffset(items []content.Item, offsets []int) {
	type pair struct {
		item   content.Item
		offset int
	}
	pairs := make([]pair, len(items))
	for i := range items {
		pairs[i] = pair{items[i], offsets[i]}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].offset < pairs[j].offset })
	for i := range pairs {
		items[i] = pairs[i].item
		offsets[i] = pairs[i].offset
	}
}

// ResolveForDate returns the item scheduled for the given calendar date.
//
// The target's day-of-year is floored onto the sorted offset sequence. Dates
// before the first offset wrap backward to the last item; dates past the last
// offset wrap forward cyclically, so a finite bank serves an unbounded run of
// days.
func (c *FileCatalog) ResolveForDate(_ context.Context, date time.Time) (content.Item, error) {
	if err := c.load(); err != nil {
		return content.Item{}, err
	}

	doy := timeutil.DayOfYear(date)
	idx := c.indexForDay(doy)

	item := c.items[idx]
	item.ServedOn = timeutil.DateOnly(date)
	return item, nil
}

// indexForDay performs the floor search with both wrap directions. The result
// is always a valid index.
func (c *FileCatalog) indexForDay(doy int) int {
	n := len(c.offsets)
	first, last := c.offsets[0], c.offsets[n-1]

	switch {
	case doy < first:
		// Backward wrap: the year started before the schedule does.
		return n - 1
	case doy > last:
		// Forward wrap: the bank is exhausted, cycle from the top.
		return (doy - first) % n
	}

	// Floor: the greatest offset <= doy.
	idx := sort.SearchInts(c.offsets, doy+1) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// ResolveByID returns the item with the given identifier. A linear scan is
// fine at catalog sizes.
func (c *FileCatalog) ResolveByID(_ context.Context, id string) (content.Item, error) {
	if err := c.load(); err != nil {
		return content.Item{}, err
	}
	for _, item := range c.items {
		if item.ID == id {
			return item, nil
		}
	}
	return content.Item{}, shared.ErrContentNotFound
}

// Items returns every item in the bank, in schedule order.
func (c *FileCatalog) Items(_ context.Context) ([]content.Item, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	out := make([]content.Item, len(c.items))
	copy(out, c.items)
	return out, nil
}
