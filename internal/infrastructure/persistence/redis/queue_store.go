package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pykids/progress-hub/internal/domain/progress"
)

// PendingQueueStore implements progress.QueueStore on a Redis list.
//
// Layout per learner:
//
//	queue:{userID} - list of JSON-encoded PendingUpdate, oldest first
//	seq:{userID}   - monotonic sequence counter (INCR)
//
// The TTL on both keys is refreshed on every write, so only a queue
// abandoned for TTLPendingQueue disappears.
type PendingQueueStore struct {
	cache  *Cache
	userID string
}

// NewPendingQueueStore creates a queue store bound to one learner.
func NewPendingQueueStore(cache *Cache, userID string) *PendingQueueStore {
	return &PendingQueueStore{
		cache:  cache,
		userID: userID,
	}
}

// Enqueue appends an item to the end of the queue.
func (s *PendingQueueStore) Enqueue(ctx context.Context, item progress.PendingUpdate) error {
	key := QueueKey(s.userID)
	if err := s.cache.RPush(ctx, key, item); err != nil {
		return fmt.Errorf("enqueue pending update: %w", err)
	}
	return s.cache.Expire(ctx, key, TTLPendingQueue)
}

// Snapshot returns a copy of the whole queue, oldest first.
func (s *PendingQueueStore) Snapshot(ctx context.Context) ([]progress.PendingUpdate, error) {
	raw, err := s.cache.LRange(ctx, QueueKey(s.userID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read pending queue: %w", err)
	}

	items := make([]progress.PendingUpdate, 0, len(raw))
	for _, entry := range raw {
		var item progress.PendingUpdate
		if err := json.Unmarshal([]byte(entry), &item); err != nil {
			// A corrupt entry must not wedge the whole queue
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// Replace atomically rewrites the queue with the given items.
// DEL and RPUSH run in one transaction so a concurrent Snapshot never
// observes a half-written queue.
func (s *PendingQueueStore) Replace(ctx context.Context, items []progress.PendingUpdate) error {
	key := QueueKey(s.userID)

	serialized := make([]interface{}, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		serialized = append(serialized, data)
	}

	pipe := s.cache.Client().TxPipeline()
	pipe.Del(ctx, key)
	if len(serialized) > 0 {
		pipe.RPush(ctx, key, serialized...)
		pipe.Expire(ctx, key, TTLPendingQueue)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace pending queue: %w", err)
	}
	return nil
}

// Len returns the number of queued items.
func (s *PendingQueueStore) Len(ctx context.Context) (int, error) {
	n, err := s.cache.LLen(ctx, QueueKey(s.userID))
	if err != nil {
		return 0, fmt.Errorf("pending queue length: %w", err)
	}
	return int(n), nil
}

// Clear removes all queued items. The sequence counter is kept so
// ordering stays monotonic across clears.
func (s *PendingQueueStore) Clear(ctx context.Context) error {
	return s.cache.Delete(ctx, QueueKey(s.userID))
}

// NextSeq returns the next monotonic sequence number.
func (s *PendingQueueStore) NextSeq(ctx context.Context) (uint64, error) {
	key := SeqKey(s.userID)
	n, err := s.cache.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("next queue seq: %w", err)
	}
	_ = s.cache.Expire(ctx, key, TTLPendingQueue)
	return uint64(n), nil
}
