package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockIndexFromContentID(t *testing.T) {
	tests := []struct {
		contentID string
		want      int
	}{
		{"block-1-slot-1", 0},
		{"block-4-slot-7", 3},
		{"block-12-slot-3", 11},
		{"block-0-slot-1", -1}, // block numbers are 1-indexed
		{"block--slot-1", -1},
		{"block-1-slot-", -1},
		{"week-1-day-1", -1},
		{"", -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BlockIndexFromContentID(tt.contentID), tt.contentID)
	}
}

func TestResolveBlockIndex(t *testing.T) {
	// The persisted field wins when present.
	rec := Record{ContentID: "block-4-slot-1", BlockIndex: 1}
	assert.Equal(t, 1, rec.ResolveBlockIndex())

	// Legacy records carry -1 and fall back to the identifier parse.
	legacy := Record{ContentID: "block-4-slot-1", BlockIndex: -1}
	assert.Equal(t, 3, legacy.ResolveBlockIndex())

	// A legacy record with an unparseable identifier stays unresolvable.
	broken := Record{ContentID: "imported-record", BlockIndex: -1}
	assert.Equal(t, -1, broken.ResolveBlockIndex())
}
