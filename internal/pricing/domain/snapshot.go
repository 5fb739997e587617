package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BasePriceReason is recorded when no rule condition was active.
const BasePriceReason = "base_price"

// DefaultHistorySize is the number of price changes kept per item.
const DefaultHistorySize = 10

// PriceSnapshot is one recorded price change.
type PriceSnapshot struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
	Reason    string          `json:"reason"`
}

// History is a bounded FIFO of price snapshots, oldest first.
// It is not safe for concurrent use.
type History struct {
	limit   int
	entries []PriceSnapshot
}

// NewHistory creates a history holding at most limit entries.
// A non-positive limit falls back to DefaultHistorySize.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit, entries: make([]PriceSnapshot, 0, limit)}
}

// Append records s unless its price equals the most recent entry's price.
// It reports whether the snapshot was appended.
func (h *History) Append(s PriceSnapshot) bool {
	if last, ok := h.Last(); ok && last.Price.Equal(s.Price) {
		return false
	}
	h.entries = append(h.entries, s)
	if len(h.entries) > h.limit {
		// shift instead of reslicing so the backing array does not grow forever
		copy(h.entries, h.entries[len(h.entries)-h.limit:])
		h.entries = h.entries[:h.limit]
	}
	return true
}

// Last returns the most recent snapshot.
func (h *History) Last() (PriceSnapshot, bool) {
	if len(h.entries) == 0 {
		return PriceSnapshot{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Entries returns a copy of the recorded snapshots, oldest first.
func (h *History) Entries() []PriceSnapshot {
	out := make([]PriceSnapshot, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of recorded snapshots.
func (h *History) Len() int {
	return len(h.entries)
}
