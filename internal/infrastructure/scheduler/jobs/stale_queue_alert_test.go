package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pykids/progress-hub/internal/domain/curriculum"
	"github.com/pykids/progress-hub/internal/domain/progress"
	"github.com/pykids/progress-hub/internal/infrastructure/persistence/memory"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

// brokenQueue fails every read, simulating an unreadable queue file.
type brokenQueue struct{}

func (brokenQueue) Enqueue(context.Context, progress.PendingUpdate) error { return nil }
func (brokenQueue) Snapshot(context.Context) ([]progress.PendingUpdate, error) {
	return nil, errors.New("queue file corrupt")
}
func (brokenQueue) Replace(context.Context, []progress.PendingUpdate) error { return nil }
func (brokenQueue) Len(context.Context) (int, error)                        { return 0, nil }
func (brokenQueue) Clear(context.Context) error                             { return nil }
func (brokenQueue) NextSeq(context.Context) (uint64, error)                 { return 1, nil }

func enqueueAged(t *testing.T, store *memory.QueueStore, topicID string, age time.Duration) {
	t.Helper()
	u, err := progress.NewUpdate("user-1", "variables", topicID, true, 10, curriculum.TypeLesson)
	require.NoError(t, err)
	item := progress.PendingUpdate{
		ID:         fmt.Sprintf("item-%s", topicID),
		Update:     u,
		EnqueuedAt: time.Now().Add(-age),
	}
	require.NoError(t, store.Enqueue(context.Background(), item))
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestStaleQueueAlert_EmptyQueueIsQuiet(t *testing.T) {
	store := memory.NewQueueStore()
	job := NewStaleQueueAlertJob(store, discardLogger(), DefaultStaleQueueAlertConfig())

	require.NoError(t, job.Run(context.Background()))

	stats := job.lastCheckStats.Load().(*StaleCheckStats)
	assert.Equal(t, 0, stats.QueueLen)
	assert.False(t, stats.Alerted)
	assert.Equal(t, int64(0), job.Alerts())
}

func TestStaleQueueAlert_FreshQueueIsQuiet(t *testing.T) {
	store := memory.NewQueueStore()
	enqueueAged(t, store, "lesson_1", 30*time.Second)

	job := NewStaleQueueAlertJob(store, discardLogger(), DefaultStaleQueueAlertConfig())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, int64(0), job.Alerts())
}

func TestStaleQueueAlert_FiresPastThreshold(t *testing.T) {
	store := memory.NewQueueStore()
	enqueueAged(t, store, "lesson_1", 45*time.Minute)
	enqueueAged(t, store, "lesson_2", time.Minute)

	cfg := DefaultStaleQueueAlertConfig()
	cfg.Threshold = 10 * time.Minute
	job := NewStaleQueueAlertJob(store, discardLogger(), cfg)

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, int64(1), job.Alerts())
	stats := job.lastCheckStats.Load().(*StaleCheckStats)
	assert.True(t, stats.Alerted)
	assert.Equal(t, 2, stats.QueueLen)
	assert.GreaterOrEqual(t, stats.OldestAge, 45*time.Minute)
}

func TestStaleQueueAlert_SnapshotFailurePropagates(t *testing.T) {
	job := NewStaleQueueAlertJob(brokenQueue{}, discardLogger(), DefaultStaleQueueAlertConfig())

	err := job.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot pending queue")
}

func TestStaleQueueAlert_DescriptionCapsListedItems(t *testing.T) {
	cfg := DefaultStaleQueueAlertConfig()
	cfg.Threshold = 10 * time.Minute
	cfg.MaxListed = 2
	job := NewStaleQueueAlertJob(memory.NewQueueStore(), discardLogger(), cfg)

	now := time.Now()
	var items []progress.PendingUpdate
	for i := 0; i < 5; i++ {
		u, err := progress.NewUpdate("user-1", "loops", fmt.Sprintf("lesson_%d", i), true, 0, curriculum.TypeLesson)
		require.NoError(t, err)
		items = append(items, progress.PendingUpdate{
			Update:     u,
			RetryCount: i,
			EnqueuedAt: now.Add(-time.Hour),
		})
	}

	described := job.describeStale(items, now)

	require.Len(t, described, 2)
	assert.Contains(t, described[0], "loops/lesson_0")
	assert.Contains(t, described[0], "retries=0")
}
