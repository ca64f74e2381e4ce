package eventhandler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pykids/progress-hub/internal/application/command"
	"github.com/pykids/progress-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON REMOTE PULSE HANDLER
// Сводит несколько агентов одного ученика к общему состоянию. Пульс
// приходит от соседнего процесса после каждой постановки в очередь и
// каждой успешной синхронизации; реакция - принудительное обновление
// профиля и слив собственной очереди.
//
// Два фильтра обязательны:
//  1. Собственные пульсы. Локальная шина доставляет процессу его же
//     публикации, без фильтра по instance_id агент зацикливается на
//     самом себе.
//  2. Чужие ученики. Шина Redis общая, пульсы других учеников не
//     касаются этого агента.
//
// Доставка best-effort: пропущенный пульс ничего не ломает, следующий
// пульс или плановый слив довезёт состояние.
// ═══════════════════════════════════════════════════════════════════════════

// ProfileRefresher обновляет локальный снапшот профиля.
type ProfileRefresher interface {
	Handle(ctx context.Context, cmd command.RefreshProfileCommand) (*command.RefreshProfileResult, error)
}

// OnRemotePulseHandler обрабатывает пульсы соседних агентов.
type OnRemotePulseHandler struct {
	instanceID string
	userID     string
	email      string

	refresher ProfileRefresher
	drainer   command.QueueDrainer

	logger *slog.Logger
	config PulseConfig

	mu          sync.Mutex
	lastReacted time.Time
}

// PulseConfig содержит конфигурацию обработчика пульсов.
type PulseConfig struct {
	// RefreshOnPulse - обновлять ли профиль при пульсе.
	RefreshOnPulse bool

	// DrainOnPulse - сливать ли собственную очередь при пульсе.
	DrainOnPulse bool

	// Cooldown - минимальный интервал между реакциями. Гасит шторм
	// пульсов при массовом сливе у соседа.
	Cooldown time.Duration
}

// DefaultPulseConfig возвращает конфигурацию по умолчанию.
func DefaultPulseConfig() PulseConfig {
	return PulseConfig{
		RefreshOnPulse: true,
		DrainOnPulse:   true,
		Cooldown:       2 * time.Second,
	}
}

// NewOnRemotePulseHandler создаёт обработчик пульсов.
func NewOnRemotePulseHandler(
	instanceID string,
	userID string,
	email string,
	refresher ProfileRefresher,
	drainer command.QueueDrainer,
	logger *slog.Logger,
	config PulseConfig,
) *OnRemotePulseHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnRemotePulseHandler{
		instanceID: instanceID,
		userID:     userID,
		email:      email,
		refresher:  refresher,
		drainer:    drainer,
		logger:     logger.With("handler", "on_remote_pulse"),
		config:     config,
	}
}

// Handle обрабатывает пульс. Реализует интерфейс shared.EventHandler.
func (h *OnRemotePulseHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	pulse, ok := event.(shared.RemotePulseEvent)
	if !ok {
		h.logger.Warn("received non-RemotePulseEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	// Фильтр 1: собственный пульс.
	if pulse.InstanceID == h.instanceID {
		h.logger.Debug("own pulse ignored", "reason", pulse.Reason)
		return nil
	}

	// Фильтр 2: пульс другого ученика.
	if h.userID != "" && pulse.UserID != h.userID {
		return nil
	}

	if !h.shouldReact() {
		h.logger.Debug("pulse inside cooldown window, skipped",
			"sibling", pulse.InstanceID,
		)
		return nil
	}

	h.logger.Info("sibling pulse received",
		"sibling", pulse.InstanceID,
		"reason", pulse.Reason,
	)

	if h.config.RefreshOnPulse && h.refresher != nil {
		if err := h.refresh(ctx, pulse); err != nil {
			h.logger.Warn("pulse-driven refresh failed", "error", err)
		}
	}

	if h.config.DrainOnPulse && h.drainer != nil {
		if _, err := h.drainer.ForceSyncNow(ctx); err != nil {
			h.logger.Warn("pulse-driven drain failed", "error", err)
		}
	}

	return nil
}

// shouldReact проверяет окно тишины и отмечает реакцию.
func (h *OnRemotePulseHandler) shouldReact() bool {
	if h.config.Cooldown <= 0 {
		return true
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	if now.Sub(h.lastReacted) < h.config.Cooldown {
		return false
	}
	h.lastReacted = now
	return true
}

// refresh затягивает авторитетное состояние с сервера. Сосед уже слил
// свои обновления, локальный снапшот без обновления остался бы позади.
func (h *OnRemotePulseHandler) refresh(ctx context.Context, pulse shared.RemotePulseEvent) error {
	_, err := h.refresher.Handle(ctx, command.RefreshProfileCommand{
		UserID:      pulse.UserID,
		Email:       h.email,
		ForceRemote: true,
	})
	return err
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnRemotePulseHandler) EventType() shared.EventType {
	return shared.EventRemotePulse
}
