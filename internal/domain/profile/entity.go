// Package profile содержит доменную модель профиля ученика:
// запись удалённого хранилища с картой прогресса и агрегатами.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pykids/progress-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Profile - профиль ученика в удалённом хранилище. Агрегаты
// (TotalScore, CompletedLessons, CompletedQuizzes) всегда производны
// от карты прогресса и пересчитываются полным проходом.
type Profile struct {
	// ID - внешний идентификатор ученика, совпадает с uid токена.
	ID string

	// Email - адрес, полученный от провайдера аутентификации.
	Email string

	// SelectedAvatar - выбранный аватар.
	SelectedAvatar string

	// Progress - карта прогресса: moduleID -> topicID -> Record.
	Progress progress.Map

	// TotalScore - сумма очков по пройденным элементам.
	TotalScore int

	// CompletedLessons - количество пройденных уроков.
	CompletedLessons int

	// CompletedQuizzes - количество пройденных квизов.
	CompletedQuizzes int

	// LastActiveLesson - указатель на последний открытый элемент.
	LastActiveLesson *progress.Pointer

	// CreatedAt - время создания профиля.
	CreatedAt time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrMissingID - не указан идентификатор профиля.
	ErrMissingID = errors.New("profile id is required")

	// ErrAvatarRequired - не указан аватар при смене.
	ErrAvatarRequired = errors.New("selectedAvatar is required")

	// ErrProfileNotFound - профиль не найден.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileAlreadyExists - профиль уже существует.
	ErrProfileAlreadyExists = errors.New("profile already exists")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// New создаёт пустой профиль. Аватар может отсутствовать:
// при первом входе фронтенд создаёт профиль до выбора аватара.
func New(id, email, selectedAvatar string) (*Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrMissingID
	}

	now := time.Now().UTC()
	return &Profile{
		ID:             id,
		Email:          strings.TrimSpace(email),
		SelectedAvatar: strings.TrimSpace(selectedAvatar),
		Progress:       progress.NewMap(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// ChangeAvatar меняет аватар профиля.
func (p *Profile) ChangeAvatar(avatar string) error {
	avatar = strings.TrimSpace(avatar)
	if avatar == "" {
		return ErrAvatarRequired
	}
	p.SelectedAvatar = avatar
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyUpdate применяет обновление прогресса к профилю:
// слияние записи по правилу last-write-wins, полный пересчёт агрегатов,
// перенос указателя последней активности на затронутый элемент.
// Возвращает признак первого прохождения элемента.
func (p *Profile) ApplyUpdate(u progress.Update, now time.Time) (bool, error) {
	if err := u.Validate(); err != nil {
		return false, err
	}

	if p.Progress == nil {
		p.Progress = progress.NewMap()
	}
	_, isNewCompletion := p.Progress.Apply(u, now)

	p.RecomputeTotals()
	p.LastActiveLesson = &progress.Pointer{ModuleID: u.ModuleID, TopicID: u.TopicID}
	p.UpdatedAt = now.UTC()

	return isNewCompletion, nil
}

// RecomputeTotals пересчитывает агрегаты полным проходом по карте.
// Инкрементальных обновлений агрегатов в системе нет.
func (p *Profile) RecomputeTotals() {
	totals := progress.ComputeTotals(p.Progress)
	p.CompletedLessons = totals.CompletedLessons
	p.CompletedQuizzes = totals.CompletedQuizzes
	p.TotalScore = totals.TotalScore
}

// TotalsDrift возвращает расхождение хранимых агрегатов с пересчётом.
// Ненулевое расхождение - признак повреждения данных, устраняется
// фоновой сверкой.
func (p *Profile) TotalsDrift() (progress.Totals, bool) {
	actual := progress.ComputeTotals(p.Progress)
	drifted := actual.TotalScore != p.TotalScore ||
		actual.CompletedLessons != p.CompletedLessons ||
		actual.CompletedQuizzes != p.CompletedQuizzes
	return actual, drifted
}

// Clone создаёт глубокую копию профиля.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Progress = p.Progress.Clone()
	if p.LastActiveLesson != nil {
		ptr := *p.LastActiveLesson
		clone.LastActiveLesson = &ptr
	}
	return &clone
}

// String возвращает краткое представление профиля для логирования.
func (p *Profile) String() string {
	return fmt.Sprintf(
		"Profile{ID: %s, Score: %d, Lessons: %d, Quizzes: %d}",
		p.ID, p.TotalScore, p.CompletedLessons, p.CompletedQuizzes,
	)
}
