package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/domain"
)

// HistoryMirror keeps a copy of each item's price history in a Redis list so
// a restarted process, or another replica, can show it immediately.
type HistoryMirror struct {
	cache *Cache
	limit int
}

// NewHistoryMirror creates a mirror keeping at most limit entries per item
func NewHistoryMirror(cache *Cache, limit int) *HistoryMirror {
	if limit <= 0 {
		limit = domain.DefaultHistorySize
	}
	return &HistoryMirror{cache: cache, limit: limit}
}

// HistoryKey is the Redis list holding an item's snapshots, oldest first
func HistoryKey(itemID string) string {
	return fmt.Sprintf("pricing:history:%s", itemID)
}

// Append pushes a snapshot and trims the list to the configured limit
func (m *HistoryMirror) Append(ctx context.Context, itemID string, s domain.PriceSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := HistoryKey(itemID)
	pipe := m.cache.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-m.limit), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror snapshot: %w", err)
	}
	return nil
}

// Load returns the mirrored snapshots of an item, oldest first
func (m *HistoryMirror) Load(ctx context.Context, itemID string) ([]domain.PriceSnapshot, error) {
	raw, err := m.cache.client.LRange(ctx, HistoryKey(itemID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	out := make([]domain.PriceSnapshot, 0, len(raw))
	for _, item := range raw {
		var s domain.PriceSnapshot
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Clear removes the mirrored history of an item
func (m *HistoryMirror) Clear(ctx context.Context, itemID string) error {
	return m.cache.Delete(ctx, HistoryKey(itemID))
}
