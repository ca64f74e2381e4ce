package eventhandler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pykids/progress-hub/internal/application/session"
	"github.com/pykids/progress-hub/internal/domain/progress"
	"github.com/pykids/progress-hub/internal/domain/shared"
)

func TestOnSyncStateChanged_MirrorsIntoSession(t *testing.T) {
	store := session.NewStore()
	h := NewOnSyncStateChangedHandler(store, discardLogger())

	syncedAt := time.Now().UTC()
	err := h.Handle(shared.NewSyncStateChangedEvent(
		"user-1", "error_backoff", true, 4, &syncedAt, "server 500",
	))
	require.NoError(t, err)

	got := store.SyncStatus()
	assert.Equal(t, progress.StateErrorBackoff, got.State)
	assert.True(t, got.IsOnline)
	assert.False(t, got.IsSyncing)
	assert.Equal(t, 4, got.PendingCount)
	require.NotNil(t, got.LastSyncTime)
	assert.Equal(t, "server 500", got.LastError)
}

func TestOnSyncStateChanged_SyncingFlagDerivedFromState(t *testing.T) {
	store := session.NewStore()
	h := NewOnSyncStateChangedHandler(store, discardLogger())

	require.NoError(t, h.Handle(shared.NewSyncStateChangedEvent(
		"user-1", "syncing", true, 2, nil, "",
	)))

	assert.True(t, store.SyncStatus().IsSyncing)
}

func TestOnSyncStateChanged_IgnoresForeignEventTypes(t *testing.T) {
	store := session.NewStore()
	h := NewOnSyncStateChangedHandler(store, discardLogger())

	require.NoError(t, h.Handle(shared.NewAvatarChangedEvent("user-1", "robot")))

	// Хранилище не тронуто.
	assert.Equal(t, progress.SyncStatus{}, store.SyncStatus())
}

func TestOnUpdateDropped_CountsLosses(t *testing.T) {
	h := NewOnUpdateDroppedHandler(discardLogger())

	require.NoError(t, h.Handle(shared.NewUpdateDroppedEvent(
		"user-1", "upd-1", "variables", "lesson_1", 5, "server rejected",
	)))
	require.NoError(t, h.Handle(shared.NewUpdateDroppedEvent(
		"user-1", "upd-2", "variables", "quiz", 5, "server rejected",
	)))

	assert.Equal(t, int64(2), h.DroppedTotal())
}
