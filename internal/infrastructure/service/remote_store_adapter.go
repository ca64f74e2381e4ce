package service

import (
	"context"
	"errors"
	"time"

	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/progress"
	"github.com/pykids/progress-hub/internal/infrastructure/external/profileapi"
)

// RemoteStoreAdapter adapts profileapi.Client to the sync engine's
// RemoteStore port. It owns the read-merge-write composition: fetch the
// remote profile, fold the update in locally, recompute aggregates by
// full rescan, write the whole document back.
//
// Same-key conflicts between processes resolve last-write-wins; the
// fresh fetch right before the write keeps disjoint keys intact.
type RemoteStoreAdapter struct {
	client *profileapi.Client

	// Identity used to recreate the profile if the remote store lost it.
	email  string
	avatar string
}

// ErrClientNotConfigured is returned when the adapter has no client.
// Unlike read-side adapters, the write path must not pretend success.
var ErrClientNotConfigured = errors.New("profile api client is not configured")

func NewRemoteStoreAdapter(client *profileapi.Client, email, avatar string) *RemoteStoreAdapter {
	return &RemoteStoreAdapter{
		client: client,
		email:  email,
		avatar: avatar,
	}
}

// Push merges one update into the remote profile. A missing remote
// profile is recreated first, so progress earned before the first
// successful sync is never stranded.
func (a *RemoteStoreAdapter) Push(ctx context.Context, u progress.Update) error {
	if a.client == nil {
		return ErrClientNotConfigured
	}

	p, err := a.client.GetProfile(ctx, u.UserID)
	if errors.Is(err, profile.ErrProfileNotFound) {
		p, err = a.client.EnsureProfile(ctx, u.UserID, a.email, a.avatar)
	}
	if err != nil {
		return err
	}

	if _, err := p.ApplyUpdate(u, time.Now().UTC()); err != nil {
		return err
	}

	if _, err := a.client.ReplaceProfile(ctx, p); err != nil {
		return err
	}

	return nil
}

// Healthy probes the remote store. Used by the connectivity probe job
// to feed the engine's online flag.
func (a *RemoteStoreAdapter) Healthy(ctx context.Context) bool {
	if a.client == nil {
		return false
	}
	return a.client.IsHealthy(ctx)
}
