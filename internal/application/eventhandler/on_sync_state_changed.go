// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"log/slog"

	"github.com/pykids/progress-hub/internal/application/session"
	"github.com/pykids/progress-hub/internal/domain/progress"
	"github.com/pykids/progress-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON SYNC STATE CHANGED HANDLER
// Переносит каждое изменение состояния движка синхронизации в хранилище
// сессии. Слой представления читает индикатор из сессии и никогда не
// опрашивает движок напрямую.
// ═══════════════════════════════════════════════════════════════════════════

// OnSyncStateChangedHandler зеркалит состояние синхронизации в сессию.
type OnSyncStateChangedHandler struct {
	store  *session.Store
	logger *slog.Logger
}

// NewOnSyncStateChangedHandler создаёт обработчик изменения состояния.
func NewOnSyncStateChangedHandler(store *session.Store, logger *slog.Logger) *OnSyncStateChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnSyncStateChangedHandler{
		store:  store,
		logger: logger.With("handler", "on_sync_state_changed"),
	}
}

// Handle обрабатывает событие изменения состояния синхронизации.
// Реализует интерфейс shared.EventHandler.
func (h *OnSyncStateChangedHandler) Handle(event shared.Event) error {
	stateEvent, ok := event.(shared.SyncStateChangedEvent)
	if !ok {
		h.logger.Warn("received non-SyncStateChangedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	state := progress.SyncState(stateEvent.State)
	status := progress.SyncStatus{
		State:        state,
		IsOnline:     stateEvent.IsOnline,
		IsSyncing:    state == progress.StateSyncing,
		PendingCount: stateEvent.PendingCount,
		LastSyncTime: stateEvent.LastSyncTime,
		LastError:    stateEvent.LastError,
	}

	h.store.SetSyncStatus(status)

	if state == progress.StateErrorBackoff {
		h.logger.Warn("sync entered error backoff",
			"pending", status.PendingCount,
			"last_error", status.LastError,
		)
	} else {
		h.logger.Debug("sync state mirrored to session",
			"state", status.State,
			"pending", status.PendingCount,
		)
	}

	return nil
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnSyncStateChangedHandler) EventType() shared.EventType {
	return shared.EventSyncStateChanged
}
