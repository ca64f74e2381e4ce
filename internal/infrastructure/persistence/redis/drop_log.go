package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pykids/progress-hub/internal/domain/progress"
)

// dropLogMaxEntries caps the journal so a misbehaving remote cannot
// grow it without bound.
const dropLogMaxEntries = 100

// DropLogStore implements progress.DropLog on a capped Redis list.
// Newest entries sit at the head (LPUSH + LTRIM).
type DropLogStore struct {
	cache  *Cache
	userID string
}

// NewDropLogStore creates a drop journal bound to one learner.
func NewDropLogStore(cache *Cache, userID string) *DropLogStore {
	return &DropLogStore{
		cache:  cache,
		userID: userID,
	}
}

// Record adds a dropped update to the journal.
func (s *DropLogStore) Record(ctx context.Context, dropped progress.DroppedUpdate) error {
	key := DroppedKey(s.userID)

	if err := s.cache.LPush(ctx, key, dropped); err != nil {
		return fmt.Errorf("record dropped update: %w", err)
	}
	if err := s.cache.LTrim(ctx, key, 0, dropLogMaxEntries-1); err != nil {
		return fmt.Errorf("trim drop log: %w", err)
	}
	return s.cache.Expire(ctx, key, TTLDropLog)
}

// Recent returns up to limit most recent drops, newest first.
func (s *DropLogStore) Recent(ctx context.Context, limit int) ([]progress.DroppedUpdate, error) {
	if limit <= 0 || limit > dropLogMaxEntries {
		limit = dropLogMaxEntries
	}

	raw, err := s.cache.LRange(ctx, DroppedKey(s.userID), 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("read drop log: %w", err)
	}

	entries := make([]progress.DroppedUpdate, 0, len(raw))
	for _, entry := range raw {
		var d progress.DroppedUpdate
		if err := json.Unmarshal([]byte(entry), &d); err != nil {
			continue
		}
		entries = append(entries, d)
	}

	return entries, nil
}
