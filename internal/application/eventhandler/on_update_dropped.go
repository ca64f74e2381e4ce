package eventhandler

import (
	"log/slog"
	"sync/atomic"

	"github.com/pykids/progress-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON UPDATE DROPPED HANDLER
// Делает потерю данных видимой. Обновление, отброшенное по потолку
// попыток, уже записано движком в журнал потерь; здесь оно громко
// логируется и попадает в счётчик, который выводится в diagnostics.
// ═══════════════════════════════════════════════════════════════════════════

// OnUpdateDroppedHandler сигнализирует об окончательно потерянных обновлениях.
type OnUpdateDroppedHandler struct {
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewOnUpdateDroppedHandler создаёт обработчик потерь.
func NewOnUpdateDroppedHandler(logger *slog.Logger) *OnUpdateDroppedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnUpdateDroppedHandler{
		logger: logger.With("handler", "on_update_dropped"),
	}
}

// Handle обрабатывает событие потери. Реализует интерфейс shared.EventHandler.
func (h *OnUpdateDroppedHandler) Handle(event shared.Event) error {
	drop, ok := event.(shared.UpdateDroppedEvent)
	if !ok {
		h.logger.Warn("received non-UpdateDroppedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	total := h.dropped.Add(1)

	h.logger.Warn("progress update permanently dropped",
		"user_id", drop.UserID,
		"update_id", drop.UpdateID,
		"module_id", drop.ModuleID,
		"topic_id", drop.TopicID,
		"retry_count", drop.RetryCount,
		"last_error", drop.LastError,
		"total_dropped", total,
	)

	return nil
}

// DroppedTotal возвращает количество потерь за время жизни процесса.
func (h *OnUpdateDroppedHandler) DroppedTotal() int64 {
	return h.dropped.Load()
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnUpdateDroppedHandler) EventType() shared.EventType {
	return shared.EventUpdateDropped
}
