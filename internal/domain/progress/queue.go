package progress

import (
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PENDING QUEUE
// Очередь обновлений, не подтверждённых удалённым хранилищем.
// Элементы живут от постановки в очередь до успешной синхронизации
// либо до исчерпания лимита повторов.
// ══════════════════════════════════════════════════════════════════════════════

// Priority - приоритет отложенного обновления при сливе очереди.
type Priority string

const (
	// PriorityHigh - квизы: самый ценный сигнал прогресса уходит первым.
	PriorityHigh Priority = "high"
	// PriorityNormal - обычные уроки.
	PriorityNormal Priority = "normal"
)

// Rank возвращает порядок слива: меньше - раньше.
func (p Priority) Rank() int {
	if p == PriorityHigh {
		return 0
	}
	return 1
}

// String возвращает строковое представление приоритета.
func (p Priority) String() string {
	return string(p)
}

// PriorityForUpdate выбирает приоритет по типу обновления.
func PriorityForUpdate(u Update) Priority {
	if u.IsQuiz() {
		return PriorityHigh
	}
	return PriorityNormal
}

// PendingUpdate - обновление, ожидающее подтверждения удалённым хранилищем.
type PendingUpdate struct {
	// ID - уникальный идентификатор элемента очереди.
	ID string `json:"id"`

	// Update - само обновление прогресса.
	Update Update `json:"update"`

	// RetryCount - количество неудачных попыток отправки.
	RetryCount int `json:"retryCount"`

	// LastAttempt - время последней попытки; нулевое, если попыток не было.
	LastAttempt time.Time `json:"lastAttempt,omitempty"`

	// Priority - приоритет слива.
	Priority Priority `json:"priority"`

	// EnqueuedAt - время постановки в очередь.
	EnqueuedAt time.Time `json:"enqueuedAt"`

	// Seq - монотонный порядковый номер постановки в очередь.
	// Сохраняет исходный порядок обновлений одного ключа.
	Seq uint64 `json:"seq"`
}

// Attempted проверяет, была ли хотя бы одна попытка отправки.
func (p PendingUpdate) Attempted() bool {
	return !p.LastAttempt.IsZero()
}

// SortForDrain упорядочивает очередь для слива: сначала по приоритету,
// внутри приоритета - по исходному порядку постановки. Сортировка
// стабильна, порядок обновлений одного ключа не нарушается.
func SortForDrain(items []PendingUpdate) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority.Rank() != items[j].Priority.Rank() {
			return items[i].Priority.Rank() < items[j].Priority.Rank()
		}
		return items[i].Seq < items[j].Seq
	})
}
