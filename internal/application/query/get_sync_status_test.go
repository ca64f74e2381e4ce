package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pykids/progress-hub/internal/domain/progress"
)

type fakeStatusSource struct {
	status  progress.SyncStatus
	live    int
	liveErr error
}

func (f *fakeStatusSource) Status() progress.SyncStatus { return f.status }

func (f *fakeStatusSource) PendingCount(context.Context) (int, error) {
	return f.live, f.liveErr
}

type fakeDropLog struct {
	drops []progress.DroppedUpdate
	err   error
}

func (f *fakeDropLog) Record(_ context.Context, d progress.DroppedUpdate) error {
	f.drops = append(f.drops, d)
	return nil
}

func (f *fakeDropLog) Recent(_ context.Context, limit int) ([]progress.DroppedUpdate, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.drops) {
		limit = len(f.drops)
	}
	return f.drops[:limit], nil
}

func TestGetSyncStatus_CachedByDefault(t *testing.T) {
	source := &fakeStatusSource{
		status: progress.NewSyncStatus(true, false, 2, nil, ""),
		live:   5,
	}
	h := NewGetSyncStatusHandler(source, nil, discardLogger())

	dto, err := h.Handle(context.Background(), GetSyncStatusQuery{})
	require.NoError(t, err)

	assert.Equal(t, 2, dto.Status.PendingCount)
	assert.Empty(t, dto.RecentDrops)
}

func TestGetSyncStatus_LiveCountOverridesCached(t *testing.T) {
	source := &fakeStatusSource{
		status: progress.NewSyncStatus(true, false, 2, nil, ""),
		live:   5,
	}
	h := NewGetSyncStatusHandler(source, nil, discardLogger())

	dto, err := h.Handle(context.Background(), GetSyncStatusQuery{LiveCount: true})
	require.NoError(t, err)
	assert.Equal(t, 5, dto.Status.PendingCount)
}

func TestGetSyncStatus_LiveCountFailureFallsBackToCached(t *testing.T) {
	source := &fakeStatusSource{
		status:  progress.NewSyncStatus(false, false, 3, nil, "remote down"),
		liveErr: errors.New("queue store timeout"),
	}
	h := NewGetSyncStatusHandler(source, nil, discardLogger())

	dto, err := h.Handle(context.Background(), GetSyncStatusQuery{LiveCount: true})
	require.NoError(t, err)
	assert.Equal(t, 3, dto.Status.PendingCount)
	assert.Equal(t, progress.StateOffline, dto.Status.State)
}

func TestGetSyncStatus_IncludesRecentDrops(t *testing.T) {
	dropLog := &fakeDropLog{}
	require.NoError(t, dropLog.Record(context.Background(), progress.DroppedUpdate{
		Update:     progress.Update{UserID: "user-1", ModuleID: "variables", TopicID: "lesson_1"},
		RetryCount: 5,
		Reason:     "server rejected payload",
		DroppedAt:  time.Now().UTC(),
	}))

	source := &fakeStatusSource{status: progress.NewSyncStatus(true, false, 0, nil, "")}
	h := NewGetSyncStatusHandler(source, dropLog, discardLogger())

	dto, err := h.Handle(context.Background(), GetSyncStatusQuery{IncludeDrops: true})
	require.NoError(t, err)

	require.Len(t, dto.RecentDrops, 1)
	assert.Equal(t, 5, dto.RecentDrops[0].RetryCount)
	assert.Equal(t, "server rejected payload", dto.RecentDrops[0].Reason)
}

func TestGetSyncStatus_NormalizesDropLimit(t *testing.T) {
	q := GetSyncStatusQuery{DropLimit: -1}
	require.NoError(t, q.Validate())
	assert.Equal(t, 10, q.DropLimit)

	q = GetSyncStatusQuery{DropLimit: 500}
	require.NoError(t, q.Validate())
	assert.Equal(t, 100, q.DropLimit)
}
