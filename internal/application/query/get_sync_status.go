package query

import (
	"context"
	"log/slog"

	"github.com/pykids/progress-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SYNC STATUS QUERY
// Отдаёт состояние синхронизации для индикатора в интерфейсе: офлайн или
// онлайн, сколько обновлений ждёт отправки, когда был последний успешный
// обмен и что именно сломалось в последний раз.
//
// Дополнительно запрос умеет показывать журнал потерь - обновления,
// отброшенные после исчерпания попыток. Индикатор обязан делать потерю
// видимой: тихая потеря данных - худший режим отказа офлайн-клиента.
// ══════════════════════════════════════════════════════════════════════════════

// StatusSource - источник состояния движка синхронизации.
type StatusSource interface {
	// Status возвращает кешированный снимок состояния.
	Status() progress.SyncStatus

	// PendingCount возвращает живую длину очереди из хранилища.
	PendingCount(ctx context.Context) (int, error)
}

// GetSyncStatusQuery содержит параметры запроса состояния синхронизации.
type GetSyncStatusQuery struct {
	// LiveCount - пересчитать длину очереди из хранилища вместо кеша.
	LiveCount bool

	// IncludeDrops - включить последние отброшенные обновления.
	IncludeDrops bool

	// DropLimit - сколько отброшенных обновлений вернуть (по умолчанию 10).
	DropLimit int
}

// Validate нормализует параметры.
func (q *GetSyncStatusQuery) Validate() error {
	if q.DropLimit <= 0 {
		q.DropLimit = 10
	}
	if q.DropLimit > 100 {
		q.DropLimit = 100
	}
	return nil
}

// SyncStatusDTO - состояние синхронизации для слоя представления.
type SyncStatusDTO struct {
	// Status - снимок состояния движка.
	Status progress.SyncStatus `json:"status"`

	// RecentDrops - последние отброшенные обновления, если запрошены.
	RecentDrops []progress.DroppedUpdate `json:"recentDrops,omitempty"`
}

// GetSyncStatusHandler обрабатывает запрос состояния синхронизации.
type GetSyncStatusHandler struct {
	source  StatusSource
	dropLog progress.DropLog
	logger  *slog.Logger
}

// NewGetSyncStatusHandler создаёт обработчик запроса состояния.
// Журнал потерь опционален.
func NewGetSyncStatusHandler(
	source StatusSource,
	dropLog progress.DropLog,
	logger *slog.Logger,
) *GetSyncStatusHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &GetSyncStatusHandler{
		source:  source,
		dropLog: dropLog,
		logger:  logger.With("query", "get_sync_status"),
	}
}

// Handle выполняет запрос состояния синхронизации.
func (h *GetSyncStatusHandler) Handle(ctx context.Context, q GetSyncStatusQuery) (*SyncStatusDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	dto := &SyncStatusDTO{Status: h.source.Status()}

	if q.LiveCount {
		n, err := h.source.PendingCount(ctx)
		if err != nil {
			// Кешированное значение хуже живого, но запрос статуса не
			// должен падать из-за недоступного хранилища очереди.
			h.logger.Warn("live pending count failed, serving cached", "error", err)
		} else {
			dto.Status.PendingCount = n
		}
	}

	if q.IncludeDrops && h.dropLog != nil {
		drops, err := h.dropLog.Recent(ctx, q.DropLimit)
		if err != nil {
			h.logger.Warn("drop log read failed", "error", err)
		} else {
			dto.RecentDrops = drops
		}
	}

	return dto, nil
}
