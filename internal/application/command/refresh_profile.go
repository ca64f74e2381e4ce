package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pykids/progress-hub/internal/application/session"
	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH PROFILE COMMAND
// Loads the profile into the local session store. This is the entry point
// of every agent run: nothing else works until a profile is loaded.
//
// Resolution order without ForceRemote: session store, then cache, then
// the remote store. ForceRemote skips both local layers and replaces the
// session snapshot wholesale with the authoritative remote state. There
// is no field-level merge on refresh: the remote store already performed
// the merge during sync, a second local merge would only hide drift.
// ══════════════════════════════════════════════════════════════════════════════

// RefreshProfileCommand contains the data needed to load or refresh a profile.
type RefreshProfileCommand struct {
	// UserID is the learner whose profile to load.
	UserID string

	// Email is used when the remote store has no profile yet and one
	// must be created.
	Email string

	// Avatar is the initial avatar for a newly created profile.
	Avatar string

	// ForceRemote bypasses the session store and the cache.
	ForceRemote bool

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c RefreshProfileCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("refresh_profile: user_id is required")
	}
	return nil
}

// RefreshProfileResult contains the result of the refresh.
type RefreshProfileResult struct {
	// Profile is a copy of the loaded profile.
	Profile *profile.Profile

	// FromCache reports that no remote round trip happened.
	FromCache bool

	// Created reports that the remote store had no profile and a fresh
	// one was provisioned.
	Created bool

	// Events holds the domain events produced by the command.
	Events []shared.Event
}

// RemoteProfileClient is the subset of the remote store client used by
// profile commands.
type RemoteProfileClient interface {
	// GetProfile fetches the profile, profile.ErrProfileNotFound when absent.
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)

	// EnsureProfile fetches the profile, creating it first when absent.
	EnsureProfile(ctx context.Context, userID, email, avatar string) (*profile.Profile, error)
}

// RefreshProfileHandler handles profile loading and refreshing.
type RefreshProfileHandler struct {
	store  *session.Store
	client RemoteProfileClient
	cache  profile.Cache

	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewRefreshProfileHandler creates a new refresh profile handler.
func NewRefreshProfileHandler(
	store *session.Store,
	client RemoteProfileClient,
	cache profile.Cache,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *RefreshProfileHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &RefreshProfileHandler{
		store:          store,
		client:         client,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         logger.With("command", "refresh_profile"),
	}
}

// Handle executes the refresh profile command.
func (h *RefreshProfileHandler) Handle(
	ctx context.Context,
	cmd RefreshProfileCommand,
) (*RefreshProfileResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if !cmd.ForceRemote {
		if result := h.fromLocal(ctx, cmd); result != nil {
			return result, nil
		}
	}

	h.store.SetLoading(true)
	defer h.store.SetLoading(false)

	loaded, created, err := h.fromRemote(ctx, cmd)
	if err != nil {
		h.logger.Error("remote refresh failed",
			"user_id", cmd.UserID,
			"force_remote", cmd.ForceRemote,
			"error", err,
		)
		return nil, err
	}

	// Wholesale replacement: remote state is authoritative after a refresh.
	h.store.Replace(loaded)
	h.cacheSet(ctx, loaded)

	result := &RefreshProfileResult{
		Profile: loaded.Clone(),
		Created: created,
	}

	if created {
		result.Events = append(result.Events, shared.NewProfileCreatedEvent(
			loaded.ID, loaded.Email, loaded.SelectedAvatar,
		))
	}
	result.Events = append(result.Events, shared.NewProfileRefreshedEvent(
		loaded.ID, cmd.ForceRemote, false,
	))
	h.publishEvents(result.Events)

	h.logger.Info("profile refreshed from remote",
		"user_id", loaded.ID,
		"created", created,
		"completed_lessons", loaded.CompletedLessons,
		"completed_quizzes", loaded.CompletedQuizzes,
	)

	return result, nil
}

// fromLocal serves the refresh from the session store or the cache.
// Returns nil when both are empty and the remote store must be asked.
func (h *RefreshProfileHandler) fromLocal(
	ctx context.Context,
	cmd RefreshProfileCommand,
) *RefreshProfileResult {
	if p := h.store.Profile(); p != nil {
		return &RefreshProfileResult{Profile: p, FromCache: true}
	}

	if h.cache == nil {
		return nil
	}

	cached, err := h.cache.Get(ctx, cmd.UserID)
	if err != nil || cached == nil {
		return nil
	}

	h.store.Replace(cached)

	result := &RefreshProfileResult{
		Profile:   cached.Clone(),
		FromCache: true,
		Events: []shared.Event{
			shared.NewProfileRefreshedEvent(cached.ID, false, true),
		},
	}
	h.publishEvents(result.Events)

	h.logger.Debug("profile served from cache", "user_id", cmd.UserID)
	return result
}

// fromRemote fetches the authoritative profile, provisioning it when the
// remote store has none.
func (h *RefreshProfileHandler) fromRemote(
	ctx context.Context,
	cmd RefreshProfileCommand,
) (*profile.Profile, bool, error) {
	p, err := h.client.GetProfile(ctx, cmd.UserID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, profile.ErrProfileNotFound) {
		return nil, false, fmt.Errorf("fetch profile: %w", err)
	}

	p, err = h.client.EnsureProfile(ctx, cmd.UserID, cmd.Email, cmd.Avatar)
	if err != nil {
		return nil, false, fmt.Errorf("provision profile: %w", err)
	}
	return p, true, nil
}

func (h *RefreshProfileHandler) cacheSet(ctx context.Context, p *profile.Profile) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, p); err != nil {
		h.logger.Warn("failed to cache profile", "user_id", p.ID, "error", err)
	}
}

func (h *RefreshProfileHandler) publishEvents(events []shared.Event) {
	if h.eventPublisher == nil {
		return
	}
	for _, event := range events {
		if err := h.eventPublisher.Publish(event); err != nil {
			h.logger.Warn("failed to publish event",
				"event_type", event.EventType(),
				"error", err,
			)
		}
	}
}
