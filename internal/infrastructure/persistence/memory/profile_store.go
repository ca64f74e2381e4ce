package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/progress"
)

// ProfileStore implements profile.Repository with a mutex-guarded map.
// It mirrors the Postgres repository's semantics: Replace stamps its
// own UpdatedAt, List pages in id order, and every returned profile is
// a deep copy so callers can mutate freely.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*profile.Profile
}

// NewProfileStore creates an empty in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*profile.Profile),
	}
}

// Create stores a new profile.
func (s *ProfileStore) Create(_ context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; ok {
		return profile.ErrProfileAlreadyExists
	}
	s.profiles[p.ID] = p.Clone()
	return nil
}

// GetByID returns a copy of the stored profile.
func (s *ProfileStore) GetByID(_ context.Context, id string) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return p.Clone(), nil
}

// UpdateAvatar changes the avatar of an existing profile.
func (s *ProfileStore) UpdateAvatar(_ context.Context, id, avatar string) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	if err := p.ChangeAvatar(avatar); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// ApplyUpdate merges one progress update into the stored profile.
// The store lock plays the role of the row lock: concurrent updates to
// the same profile serialize here.
func (s *ProfileStore) ApplyUpdate(_ context.Context, id string, u progress.Update) (*profile.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, false, profile.ErrProfileNotFound
	}

	isNew, err := p.ApplyUpdate(u, time.Now().UTC())
	if err != nil {
		return nil, false, err
	}
	return p.Clone(), isNew, nil
}

// Replace overwrites the whole stored profile, keeping the original
// CreatedAt and stamping UpdatedAt like the SQL implementation does.
func (s *ProfileStore) Replace(_ context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.profiles[p.ID]
	if !ok {
		return profile.ErrProfileNotFound
	}

	stored := p.Clone()
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	s.profiles[p.ID] = stored
	return nil
}

// Exists checks whether a profile is stored.
func (s *ProfileStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.profiles[id]
	return ok, nil
}

// Count returns the number of stored profiles.
func (s *ProfileStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles), nil
}

// List returns a page of profiles in id order.
func (s *ProfileStore) List(_ context.Context, offset, limit int) ([]*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}

	out := make([]*profile.Profile, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, s.profiles[id].Clone())
	}
	return out, nil
}
