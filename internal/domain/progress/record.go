// Package progress содержит доменную модель прогресса ученика:
// карту прогресса, обновления, очередь несинхронизированных записей
// и аналитику поверх учебной программы.
package progress

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pykids/progress-hub/internal/domain/curriculum"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record - состояние одного учебного элемента для одного ученика.
// Сериализуется как есть: формат совпадает с JSON-профилем удалённого
// хранилища и с локальной очередью.
type Record struct {
	// Completed - элемент пройден.
	Completed bool `json:"completed"`

	// Score - заработанные очки.
	Score int `json:"score"`

	// CompletedAt - момент первого или последнего прохождения.
	// nil, пока элемент не пройден.
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Map - карта прогресса ученика: moduleID -> topicID -> Record.
// Ключ QuizTopicID адресует квиз модуля.
type Map map[string]map[string]Record

// NewMap создаёт пустую карту прогресса.
func NewMap() Map {
	return make(Map)
}

// Get возвращает запись по ключу (moduleID, topicID).
func (m Map) Get(moduleID, topicID string) (Record, bool) {
	topics, ok := m[moduleID]
	if !ok {
		return Record{}, false
	}
	rec, ok := topics[topicID]
	return rec, ok
}

// IsCompleted проверяет, что элемент пройден.
func (m Map) IsCompleted(moduleID, topicID string) bool {
	rec, ok := m.Get(moduleID, topicID)
	return ok && rec.Completed
}

// Set записывает значение по ключу, создавая модуль при необходимости.
func (m Map) Set(moduleID, topicID string, rec Record) {
	topics, ok := m[moduleID]
	if !ok {
		topics = make(map[string]Record)
		m[moduleID] = topics
	}
	topics[topicID] = rec
}

// Len возвращает общее количество записей в карте.
func (m Map) Len() int {
	total := 0
	for _, topics := range m {
		total += len(topics)
	}
	return total
}

// Clone создаёт глубокую копию карты.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for moduleID, topics := range m {
		copied := make(map[string]Record, len(topics))
		for topicID, rec := range topics {
			copied[topicID] = rec
		}
		out[moduleID] = copied
	}
	return out
}

// Apply применяет обновление к карте по правилу last-write-wins и
// возвращает новую запись вместе с признаком первого прохождения.
//
// Правила слияния повторяют контракт удалённого хранилища:
//   - completed перезаписывается значением из обновления;
//   - при прохождении CompletedAt ставится в now, иначе сохраняется прежний;
//   - признак первого прохождения взводится только на переходе
//     "не пройдено -> пройдено", чтобы очки попадали в агрегаты ровно один раз.
func (m Map) Apply(u Update, now time.Time) (Record, bool) {
	prior, _ := m.Get(u.ModuleID, u.TopicID)
	isNewCompletion := u.Completed && !prior.Completed

	rec := Record{
		Completed: u.Completed,
		Score:     u.Score,
	}
	if u.Completed {
		ts := now.UTC()
		rec.CompletedAt = &ts
	} else {
		rec.CompletedAt = prior.CompletedAt
	}

	m.Set(u.ModuleID, u.TopicID, rec)
	return rec, isNewCompletion
}

// ══════════════════════════════════════════════════════════════════════════════
// LAST ACTIVE POINTER
// ══════════════════════════════════════════════════════════════════════════════

// Pointer - указатель на последний открытый элемент программы.
// Хранится в профиле как lastActiveLesson.
type Pointer struct {
	ModuleID string `json:"moduleId"`
	TopicID  string `json:"topicId"`
}

// IsZero проверяет, что указатель пуст.
func (p Pointer) IsZero() bool {
	return p.ModuleID == "" && p.TopicID == ""
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS UPDATE
// ══════════════════════════════════════════════════════════════════════════════

// Update - намерение изменить прогресс одного элемента.
// Создаётся контроллером сессии, потребляется движком синхронизации.
// После создания изменяется только флаг Synced.
type Update struct {
	UserID    string                 `json:"userId"`
	ModuleID  string                 `json:"moduleId"`
	TopicID   string                 `json:"topicId"`
	Completed bool                   `json:"completed"`
	Score     int                    `json:"score"`
	Type      curriculum.ContentType `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Synced    bool                   `json:"synced"`
}

// Key возвращает ключ карты прогресса, который затрагивает обновление.
func (u Update) Key() string {
	return u.ModuleID + "/" + u.TopicID
}

// IsQuiz проверяет, что обновление относится к квизу.
func (u Update) IsQuiz() bool {
	return u.Type == curriculum.TypeQuiz
}

// Validate проверяет обязательные поля обновления.
// Ошибки валидации сообщаются синхронно и никогда не ставятся в очередь.
func (u Update) Validate() error {
	if strings.TrimSpace(u.UserID) == "" {
		return ErrMissingUserID
	}
	if strings.TrimSpace(u.ModuleID) == "" {
		return ErrMissingModuleID
	}
	if strings.TrimSpace(u.TopicID) == "" {
		return ErrMissingTopicID
	}
	if u.Score < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeScore, u.Score)
	}
	if !u.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownContentType, u.Type)
	}
	return nil
}

// NewUpdate создаёт валидированное обновление прогресса.
func NewUpdate(userID, moduleID, topicID string, completed bool, score int, kind curriculum.ContentType) (Update, error) {
	u := Update{
		UserID:    strings.TrimSpace(userID),
		ModuleID:  strings.TrimSpace(moduleID),
		TopicID:   strings.TrimSpace(topicID),
		Completed: completed,
		Score:     score,
		Type:      kind,
		Timestamp: time.Now().UTC(),
		Synced:    false,
	}
	if err := u.Validate(); err != nil {
		return Update{}, err
	}
	return u, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrMissingUserID - не указан идентификатор ученика.
	ErrMissingUserID = errors.New("user id is required")

	// ErrMissingModuleID - не указан идентификатор модуля.
	ErrMissingModuleID = errors.New("module id is required")

	// ErrMissingTopicID - не указан идентификатор темы.
	ErrMissingTopicID = errors.New("topic id is required")

	// ErrNegativeScore - очки не могут быть отрицательными.
	ErrNegativeScore = errors.New("score cannot be negative")

	// ErrUnknownContentType - тип контента должен быть lesson или quiz.
	ErrUnknownContentType = errors.New("content type must be lesson or quiz")

	// ErrEmptyBatch - пакет обновлений пуст.
	ErrEmptyBatch = errors.New("batch must contain at least one update")
)
