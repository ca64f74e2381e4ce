package progress

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// SYNC STATUS
// Снимок состояния движка синхронизации. Пересчитывается при каждом
// изменении очереди и при каждом сетевом переходе.
// ══════════════════════════════════════════════════════════════════════════════

// SyncState - состояние движка синхронизации.
type SyncState string

const (
	// StateIdle - онлайн, очередь пуста.
	StateIdle SyncState = "idle"
	// StateSyncing - идёт слив очереди.
	StateSyncing SyncState = "syncing"
	// StateOffline - офлайн, очередь накапливается, попыток нет.
	StateOffline SyncState = "offline"
	// StateErrorBackoff - последняя попытка неудачна, ждём следующий триггер.
	StateErrorBackoff SyncState = "error_backoff"
)

// IsValid проверяет, что состояние известно.
func (s SyncState) IsValid() bool {
	switch s {
	case StateIdle, StateSyncing, StateOffline, StateErrorBackoff:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление состояния.
func (s SyncState) String() string {
	return string(s)
}

// SyncStatus - снимок состояния синхронизации для слоя представления.
type SyncStatus struct {
	// State - агрегированное состояние движка.
	State SyncState `json:"state"`

	// IsOnline - удалённое хранилище считается доступным.
	IsOnline bool `json:"isOnline"`

	// IsSyncing - слив очереди выполняется прямо сейчас.
	IsSyncing bool `json:"isSyncing"`

	// PendingCount - размер очереди несинхронизированных обновлений.
	PendingCount int `json:"pendingCount"`

	// LastSyncTime - время последней успешной синхронизации.
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`

	// LastError - текст последней ошибки; пустая строка, если ошибок нет.
	LastError string `json:"lastError,omitempty"`
}

// DeriveState вычисляет агрегированное состояние из компонентов снимка.
func DeriveState(isOnline, isSyncing bool, pendingCount int, lastError string) SyncState {
	switch {
	case !isOnline:
		return StateOffline
	case isSyncing:
		return StateSyncing
	case lastError != "" && pendingCount > 0:
		return StateErrorBackoff
	default:
		return StateIdle
	}
}

// NewSyncStatus собирает снимок, выводя State из компонентов.
func NewSyncStatus(isOnline, isSyncing bool, pendingCount int, lastSyncTime *time.Time, lastError string) SyncStatus {
	return SyncStatus{
		State:        DeriveState(isOnline, isSyncing, pendingCount, lastError),
		IsOnline:     isOnline,
		IsSyncing:    isSyncing,
		PendingCount: pendingCount,
		LastSyncTime: lastSyncTime,
		LastError:    lastError,
	}
}

// FlushReport - итог одного цикла слива очереди.
type FlushReport struct {
	// Synced - количество обновлений, подтверждённых сервером.
	Synced int

	// Failed - количество неудачных попыток; обновления остались в очереди.
	Failed int

	// Dropped - количество обновлений, выброшенных по потолку попыток.
	Dropped int

	// Skipped - количество обновлений, чей интервал между попытками
	// ещё не истёк.
	Skipped int

	// Remaining - длина очереди после цикла.
	Remaining int

	// Duration - длительность цикла.
	Duration time.Duration

	// Reentrant - слив уже шёл в этом или соседнем процессе,
	// вызов не сделал ничего.
	Reentrant bool

	// LastError - текст последней ошибки цикла, если была.
	LastError string
}
