package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/pykids/progress-hub/internal/domain/progress"
)

// SyncStatusStore implements progress.StatusStore on a single JSON key.
//
// The snapshot is written on every status transition and read once at
// engine startup, so a restarted agent can report when it last synced
// before its first drain completes.
type SyncStatusStore struct {
	cache  *Cache
	userID string
}

// NewSyncStatusStore creates a status store for one learner.
func NewSyncStatusStore(cache *Cache, userID string) *SyncStatusStore {
	return &SyncStatusStore{cache: cache, userID: userID}
}

// Save overwrites the persisted snapshot.
func (s *SyncStatusStore) Save(ctx context.Context, st progress.SyncStatus) error {
	if err := s.cache.Set(ctx, StatusKey(s.userID), st, TTLSyncStatus); err != nil {
		return fmt.Errorf("save sync status: %w", err)
	}
	return nil
}

// Load returns the last persisted snapshot, nil when none exists.
func (s *SyncStatusStore) Load(ctx context.Context) (*progress.SyncStatus, error) {
	var st progress.SyncStatus
	if err := s.cache.Get(ctx, StatusKey(s.userID), &st); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load sync status: %w", err)
	}
	return &st, nil
}
