package redis

import (
	"context"
	"time"

	"github.com/pykids/progress-hub/internal/domain/profile"
)

// ProfileCache implements profile.Cache using the generic Redis Cache.
// Entries expire after the configured TTL; a stale profile is refetched
// from the remote store, never served forever.
type ProfileCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewProfileCache creates a new ProfileCache. A non-positive ttl falls
// back to TTLProfileCache.
func NewProfileCache(cache *Cache, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = TTLProfileCache
	}
	return &ProfileCache{
		cache: cache,
		ttl:   ttl,
	}
}

// Get gets a profile from cache.
// Returns ErrCacheMiss when the profile is not cached.
func (p *ProfileCache) Get(ctx context.Context, id string) (*profile.Profile, error) {
	var pr profile.Profile
	if err := p.cache.Get(ctx, ProfileKey(id), &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// Set stores a profile in cache.
func (p *ProfileCache) Set(ctx context.Context, pr *profile.Profile) error {
	if pr == nil {
		return nil
	}
	return p.cache.Set(ctx, ProfileKey(pr.ID), pr, p.ttl)
}

// Invalidate removes a profile from cache.
func (p *ProfileCache) Invalidate(ctx context.Context, id string) error {
	return p.cache.Delete(ctx, ProfileKey(id))
}

// InvalidateAll clears every cached profile.
func (p *ProfileCache) InvalidateAll(ctx context.Context) error {
	return p.cache.DeleteByPattern(ctx, PrefixProfile+"*")
}
