package progress

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE INTERFACES
// Эти интерфейсы определяют контракт для локального долговременного
// хранилища агента. Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// QueueStore определяет операции над очередью отложенных обновлений
// одного ученика. Очередь переживает перезапуск процесса.
type QueueStore interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Queue Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Enqueue добавляет элемент в конец очереди.
	Enqueue(ctx context.Context, item PendingUpdate) error

	// Snapshot возвращает копию всех элементов очереди.
	Snapshot(ctx context.Context) ([]PendingUpdate, error)

	// Replace атомарно перезаписывает очередь новым содержимым.
	// Вызывается после слива: остаются только неподтверждённые элементы.
	Replace(ctx context.Context, items []PendingUpdate) error

	// Len возвращает количество элементов в очереди.
	Len(ctx context.Context) (int, error)

	// Clear полностью очищает очередь.
	Clear(ctx context.Context) error

	// ─────────────────────────────────────────────────────────────────────────
	// Sequencing
	// ─────────────────────────────────────────────────────────────────────────

	// NextSeq выдаёт следующий монотонный порядковый номер.
	// Номера не переиспользуются и переживают перезапуск.
	NextSeq(ctx context.Context) (uint64, error)
}

// SyncMarker определяет межпроцессную отметку "синхронизация идёт".
// Отметка самоустраняется по TTL: упавший процесс не блокирует
// остальных навсегда.
type SyncMarker interface {
	// Acquire пытается поставить отметку от имени текущего процесса.
	// Возвращает false, если отметку уже держит другой процесс.
	Acquire(ctx context.Context) (bool, error)

	// Refresh продлевает TTL отметки во время долгого слива.
	Refresh(ctx context.Context) error

	// Release снимает отметку, если её держит текущий процесс.
	Release(ctx context.Context) error

	// Holder возвращает идентификатор процесса, держащего отметку.
	// Пустая строка - отметки нет.
	Holder(ctx context.Context) (string, error)
}

// StatusStore сохраняет последний снимок статуса синхронизации.
// Запись best-effort: ошибка записи никогда не мешает движку.
// После перезапуска из снимка восстанавливаются только исторические
// поля (LastSyncTime, LastError); живые поля берутся из очереди.
type StatusStore interface {
	// Save записывает снимок, перезаписывая предыдущий.
	Save(ctx context.Context, st SyncStatus) error

	// Load возвращает последний сохранённый снимок.
	// nil без ошибки - снимка ещё нет.
	Load(ctx context.Context) (*SyncStatus, error)
}

// DropLog хранит недавно отброшенные обновления. Обновление
// отбрасывается навсегда после исчерпания лимита повторов; журнал
// нужен поддержке для ручного восстановления прогресса.
type DropLog interface {
	// Record добавляет отброшенное обновление в журнал.
	Record(ctx context.Context, dropped DroppedUpdate) error

	// Recent возвращает до limit последних отброшенных обновлений,
	// от новых к старым.
	Recent(ctx context.Context, limit int) ([]DroppedUpdate, error)
}

// DroppedUpdate - запись журнала об окончательно отброшенном обновлении.
type DroppedUpdate struct {
	// Update - само потерянное обновление.
	Update Update `json:"update"`

	// RetryCount - сколько попыток было сделано до отбрасывания.
	RetryCount int `json:"retryCount"`

	// Reason - текст последней ошибки.
	Reason string `json:"reason"`

	// DroppedAt - когда обновление было отброшено.
	DroppedAt time.Time `json:"droppedAt"`
}
