package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SyncMarkerStore implements progress.SyncMarker with a single
// SET NX EX key holding the instance ID of the draining process.
//
// The marker self-expires: if the holder crashes mid-drain, siblings
// are unblocked after TTL without any cleanup protocol.
type SyncMarkerStore struct {
	cache      *Cache
	userID     string
	instanceID string
	ttl        time.Duration
}

// NewSyncMarkerStore creates a marker store for one learner and process.
func NewSyncMarkerStore(cache *Cache, userID, instanceID string, ttl time.Duration) *SyncMarkerStore {
	if ttl <= 0 {
		ttl = TTLSyncMarker
	}
	return &SyncMarkerStore{
		cache:      cache,
		userID:     userID,
		instanceID: instanceID,
		ttl:        ttl,
	}
}

// Acquire tries to place the marker for this process.
// Returns false when another process already holds it.
func (s *SyncMarkerStore) Acquire(ctx context.Context) (bool, error) {
	ok, err := s.cache.SetNXString(ctx, MarkerKey(s.userID), s.instanceID, s.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire sync marker: %w", err)
	}
	return ok, nil
}

// Refresh extends the marker TTL during a long drain.
// Only meaningful while this process holds the marker.
func (s *SyncMarkerStore) Refresh(ctx context.Context) error {
	holder, err := s.Holder(ctx)
	if err != nil {
		return err
	}
	if holder != s.instanceID {
		return nil
	}
	return s.cache.Expire(ctx, MarkerKey(s.userID), s.ttl)
}

// Release removes the marker if this process holds it.
// A marker placed by a sibling is left alone.
func (s *SyncMarkerStore) Release(ctx context.Context) error {
	holder, err := s.Holder(ctx)
	if err != nil {
		return err
	}
	if holder != s.instanceID {
		return nil
	}
	return s.cache.Delete(ctx, MarkerKey(s.userID))
}

// Holder returns the instance ID currently holding the marker.
// Empty string means no marker is set.
func (s *SyncMarkerStore) Holder(ctx context.Context) (string, error) {
	val, err := s.cache.GetString(ctx, MarkerKey(s.userID))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return "", nil
		}
		return "", fmt.Errorf("read sync marker: %w", err)
	}
	return val, nil
}
