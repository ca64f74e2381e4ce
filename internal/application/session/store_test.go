package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pykids/progress-hub/internal/domain/curriculum"
	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/progress"
)

func testProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.New("user-1", "kid@example.com", "robot")
	require.NoError(t, err)
	return p
}

func testUpdate(t *testing.T) progress.Update {
	t.Helper()
	u, err := progress.NewUpdate("user-1", "variables", "lesson_1", true, 10, curriculum.TypeLesson)
	require.NoError(t, err)
	return u
}

func TestStore_EmptyBeforeFirstLoad(t *testing.T) {
	s := NewStore()

	snap := s.Snapshot()
	assert.Nil(t, snap.Profile)
	assert.False(t, snap.Loading)
	assert.False(t, s.HasProfile())
}

func TestStore_ReplaceKeepsStoreIsolated(t *testing.T) {
	s := NewStore()
	original := testProfile(t)

	s.Replace(original)

	// Мутация исходного объекта не должна трогать хранилище.
	original.SelectedAvatar = "alien"
	assert.Equal(t, "robot", s.Profile().SelectedAvatar)

	// Мутация полученного снапшота тоже.
	snap := s.Snapshot()
	require.NotNil(t, snap.Profile)
	snap.Profile.Progress.Set("variables", "lesson_1", progress.Record{Completed: true})
	assert.Equal(t, 0, s.Profile().Progress.Len())
}

func TestStore_ReplaceNilClearsProfile(t *testing.T) {
	s := NewStore()
	s.Replace(testProfile(t))
	require.True(t, s.HasProfile())

	s.Replace(nil)
	assert.False(t, s.HasProfile())
	assert.Nil(t, s.Profile())
}

func TestStore_ApplyUpdateRequiresLoadedProfile(t *testing.T) {
	s := NewStore()

	_, err := s.ApplyUpdate(testUpdate(t), time.Now())
	assert.ErrorIs(t, err, ErrNoProfile)
}

func TestStore_ApplyUpdateMutatesAndRecomputes(t *testing.T) {
	s := NewStore()
	s.Replace(testProfile(t))

	isNew, err := s.ApplyUpdate(testUpdate(t), time.Now())
	require.NoError(t, err)
	assert.True(t, isNew)

	p := s.Profile()
	assert.True(t, p.Progress.IsCompleted("variables", "lesson_1"))
	assert.Equal(t, 1, p.CompletedLessons)
	assert.Equal(t, 10, p.TotalScore)
	require.NotNil(t, p.LastActiveLesson)
	assert.Equal(t, "lesson_1", p.LastActiveLesson.TopicID)
}

func TestStore_SetAvatar(t *testing.T) {
	s := NewStore()

	assert.ErrorIs(t, s.SetAvatar("alien"), ErrNoProfile)

	s.Replace(testProfile(t))
	assert.ErrorIs(t, s.SetAvatar("  "), profile.ErrAvatarRequired)

	require.NoError(t, s.SetAvatar("alien"))
	assert.Equal(t, "alien", s.Profile().SelectedAvatar)
}

func TestStore_SubscribeReplaysAndNotifies(t *testing.T) {
	s := NewStore()

	var got []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		got = append(got, snap)
	})

	// Немедленный повтор текущего состояния.
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Profile)

	s.Replace(testProfile(t))
	require.Len(t, got, 2)
	require.NotNil(t, got[1].Profile)
	assert.Equal(t, "user-1", got[1].Profile.ID)

	unsubscribe()
	s.SetLoading(true)
	assert.Len(t, got, 2)
}

func TestStore_SetLoadingSkipsNoopChange(t *testing.T) {
	s := NewStore()

	calls := 0
	s.Subscribe(func(Snapshot) { calls++ })
	require.Equal(t, 1, calls)

	s.SetLoading(true)
	assert.Equal(t, 2, calls)

	// Повторная установка того же значения не будит подписчиков.
	s.SetLoading(true)
	assert.Equal(t, 2, calls)
}

func TestStore_SetSyncStatusVisibleInSnapshot(t *testing.T) {
	s := NewStore()

	st := progress.NewSyncStatus(false, false, 3, nil, "remote unreachable")
	s.SetSyncStatus(st)

	snap := s.Snapshot()
	assert.Equal(t, progress.StateOffline, snap.Sync.State)
	assert.Equal(t, 3, snap.Sync.PendingCount)
	assert.Equal(t, st, s.SyncStatus())
}
