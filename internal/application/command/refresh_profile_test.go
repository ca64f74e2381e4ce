package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pykids/progress-hub/internal/application/session"
	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/shared"
)

type fakeRemoteClient struct {
	mu          sync.Mutex
	stored      *profile.Profile
	getErr      error
	getCalls    int
	ensureCalls int
}

func (f *fakeRemoteClient) GetProfile(_ context.Context, userID string) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.stored == nil {
		return nil, profile.ErrProfileNotFound
	}
	return f.stored.Clone(), nil
}

func (f *fakeRemoteClient) EnsureProfile(_ context.Context, userID, email, avatar string) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	if f.stored != nil {
		return f.stored.Clone(), nil
	}
	p, err := profile.New(userID, email, avatar)
	if err != nil {
		return nil, err
	}
	f.stored = p
	return p.Clone(), nil
}

type fakeProfileCache struct {
	mu          sync.Mutex
	byID        map[string]*profile.Profile
	invalidated []string
}

func newFakeProfileCache() *fakeProfileCache {
	return &fakeProfileCache{byID: make(map[string]*profile.Profile)}
}

func (f *fakeProfileCache) Get(_ context.Context, id string) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (f *fakeProfileCache) Set(_ context.Context, p *profile.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[p.ID] = p.Clone()
	return nil
}

func (f *fakeProfileCache) Invalidate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	f.invalidated = append(f.invalidated, id)
	return nil
}

func refreshCommand() RefreshProfileCommand {
	return RefreshProfileCommand{
		UserID: "user-1",
		Email:  "kid@example.com",
		Avatar: "robot",
	}
}

func TestRefreshProfile_ValidatesCommand(t *testing.T) {
	h := NewRefreshProfileHandler(session.NewStore(), &fakeRemoteClient{}, nil, nil, discardLogger())

	_, err := h.Handle(context.Background(), RefreshProfileCommand{UserID: "  "})
	assert.Error(t, err)
}

func TestRefreshProfile_ServesLoadedStoreWithoutNetwork(t *testing.T) {
	store := loadedStore(t)
	client := &fakeRemoteClient{}
	h := NewRefreshProfileHandler(store, client, nil, nil, discardLogger())

	result, err := h.Handle(context.Background(), refreshCommand())
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	assert.Equal(t, "user-1", result.Profile.ID)
	assert.Equal(t, 0, client.getCalls)
	assert.Equal(t, 0, client.ensureCalls)
}

func TestRefreshProfile_FallsBackToCache(t *testing.T) {
	cache := newFakeProfileCache()
	cached, err := profile.New("user-1", "kid@example.com", "alien")
	require.NoError(t, err)
	require.NoError(t, cache.Set(context.Background(), cached))

	store := session.NewStore()
	client := &fakeRemoteClient{}
	bus := &captureBus{}
	h := NewRefreshProfileHandler(store, client, cache, bus, discardLogger())

	result, err := h.Handle(context.Background(), refreshCommand())
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	assert.Equal(t, "alien", result.Profile.SelectedAvatar)
	assert.True(t, store.HasProfile())
	assert.Equal(t, 0, client.getCalls)
	assert.Equal(t, 1, bus.count(shared.EventProfileRefreshed))
}

func TestRefreshProfile_FetchesRemoteWhenLocalEmpty(t *testing.T) {
	remote, err := profile.New("user-1", "kid@example.com", "robot")
	require.NoError(t, err)
	client := &fakeRemoteClient{stored: remote}
	cache := newFakeProfileCache()
	store := session.NewStore()
	h := NewRefreshProfileHandler(store, client, cache, nil, discardLogger())

	result, err := h.Handle(context.Background(), refreshCommand())
	require.NoError(t, err)

	assert.False(t, result.FromCache)
	assert.False(t, result.Created)
	assert.True(t, store.HasProfile())

	// Загруженный профиль попал в кеш.
	fromCache, err := cache.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, fromCache)
}

func TestRefreshProfile_ProvisionsMissingRemoteProfile(t *testing.T) {
	client := &fakeRemoteClient{}
	bus := &captureBus{}
	store := session.NewStore()
	h := NewRefreshProfileHandler(store, client, nil, bus, discardLogger())

	result, err := h.Handle(context.Background(), refreshCommand())
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, 1, client.ensureCalls)
	assert.Equal(t, 1, bus.count(shared.EventProfileCreated))
	assert.Equal(t, 1, bus.count(shared.EventProfileRefreshed))
	assert.True(t, store.HasProfile())
}

func TestRefreshProfile_ForceRemoteReplacesWholesale(t *testing.T) {
	// Локально есть устаревший снапшот с прогрессом.
	store := loadedStore(t)
	stale := store.Profile()
	require.NotNil(t, stale)

	remote, err := profile.New("user-1", "kid@example.com", "dino")
	require.NoError(t, err)
	client := &fakeRemoteClient{stored: remote}
	h := NewRefreshProfileHandler(store, client, nil, nil, discardLogger())

	cmd := refreshCommand()
	cmd.ForceRemote = true
	result, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.False(t, result.FromCache)
	assert.Equal(t, 1, client.getCalls)

	// Снапшот заменён целиком, в том числе поля, отличавшиеся локально.
	assert.Equal(t, "dino", store.Profile().SelectedAvatar)
}

func TestRefreshProfile_RemoteFailureLeavesStoreUntouched(t *testing.T) {
	store := session.NewStore()
	client := &fakeRemoteClient{getErr: errors.New("connection refused")}
	h := NewRefreshProfileHandler(store, client, nil, nil, discardLogger())

	_, err := h.Handle(context.Background(), refreshCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, store.HasProfile())
	assert.False(t, store.Snapshot().Loading)
}
