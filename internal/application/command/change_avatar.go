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

// ═══════════════════════════════════════════════════════════════════════════
// CHANGE AVATAR COMMAND
// Меняет аватар ученика локально и на сервере. Аватар - единственное поле
// профиля, которое редактируется напрямую, минуя очередь синхронизации:
// потеря смены аватара при сбое сети безвредна, очередь для него не нужна.
// ═══════════════════════════════════════════════════════════════════════════

// AvatarClient отправляет смену аватара на сервер.
type AvatarClient interface {
	UpdateAvatar(ctx context.Context, userID, email, avatar string) (*profile.Profile, error)
}

// ChangeAvatarCommand содержит данные для смены аватара.
type ChangeAvatarCommand struct {
	// UserID - идентификатор ученика.
	UserID string

	// Avatar - новый аватар.
	Avatar string
}

// Validate проверяет корректность команды.
func (c ChangeAvatarCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("change_avatar: user_id is required")
	}
	if strings.TrimSpace(c.Avatar) == "" {
		return errors.New("change_avatar: avatar is required")
	}
	return nil
}

// ChangeAvatarResult содержит результат смены аватара.
type ChangeAvatarResult struct {
	// Avatar - применённый аватар.
	Avatar string

	// RemoteApplied - сервер подтвердил смену. false означает, что
	// аватар изменён только локально.
	RemoteApplied bool
}

// ChangeAvatarHandler обрабатывает команду смены аватара.
type ChangeAvatarHandler struct {
	store  *session.Store
	client AvatarClient
	cache  profile.Cache

	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewChangeAvatarHandler создаёт обработчик смены аватара.
func NewChangeAvatarHandler(
	store *session.Store,
	client AvatarClient,
	cache profile.Cache,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *ChangeAvatarHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ChangeAvatarHandler{
		store:          store,
		client:         client,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         logger.With("command", "change_avatar"),
	}
}

// Handle выполняет команду смены аватара.
func (h *ChangeAvatarHandler) Handle(
	ctx context.Context,
	cmd ChangeAvatarCommand,
) (*ChangeAvatarResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	avatar := strings.TrimSpace(cmd.Avatar)

	local := h.store.Profile()
	if local == nil {
		return nil, session.ErrNoProfile
	}

	if err := h.store.SetAvatar(avatar); err != nil {
		return nil, fmt.Errorf("set avatar: %w", err)
	}

	result := &ChangeAvatarResult{Avatar: avatar}

	// Серверная часть best effort: при сбое локальная смена остаётся,
	// сервер догонит при следующем merge-write профиля.
	if h.client != nil {
		if _, err := h.client.UpdateAvatar(ctx, cmd.UserID, local.Email, avatar); err != nil {
			h.logger.Warn("remote avatar update failed",
				"user_id", cmd.UserID,
				"error", err,
			)
		} else {
			result.RemoteApplied = true
		}
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, cmd.UserID); err != nil {
			h.logger.Debug("cache invalidation failed", "user_id", cmd.UserID, "error", err)
		}
	}

	if h.eventPublisher != nil {
		if err := h.eventPublisher.Publish(shared.NewAvatarChangedEvent(cmd.UserID, avatar)); err != nil {
			h.logger.Warn("failed to publish event", "error", err)
		}
	}

	h.logger.Info("avatar changed",
		"user_id", cmd.UserID,
		"avatar", avatar,
		"remote_applied", result.RemoteApplied,
	)

	return result, nil
}
