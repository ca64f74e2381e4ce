// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pykids/progress-hub/internal/application/session"
	"github.com/pykids/progress-hub/internal/domain/curriculum"
	"github.com/pykids/progress-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS OVERVIEW QUERY
// Собирает картину прохождения для дашборда: сводка по программе,
// разбивка по модулям, последний открытый элемент и рекомендация, что
// открыть дальше.
//
// Запрос читает только локальный снапшот сессии. Сетевых обращений нет:
// дашборд обязан открываться мгновенно и в офлайне.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressOverviewQuery содержит параметры запроса сводки прогресса.
type GetProgressOverviewQuery struct {
	// UserID - идентификатор ученика.
	UserID string

	// IncludeModules - включить разбивку по модулям.
	IncludeModules bool

	// IncludeNextContent - включить рекомендацию следующего элемента.
	IncludeNextContent bool

	// IncludeValidation - включить сверку карты прогресса с программой.
	IncludeValidation bool
}

// Validate проверяет корректность параметров.
func (q *GetProgressOverviewQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return errors.New("get_progress_overview: user_id is required")
	}
	return nil
}

// ContentRefDTO - ссылка на элемент программы для слоя представления.
type ContentRefDTO struct {
	// ModuleID - модуль элемента.
	ModuleID string `json:"moduleId"`

	// TopicID - урок или "quiz".
	TopicID string `json:"topicId"`

	// Title - отображаемое название.
	Title string `json:"title"`

	// Type - урок или квиз.
	Type string `json:"type"`

	// ModuleTitle - название модуля.
	ModuleTitle string `json:"moduleTitle"`

	// Route - локатор для перехода к элементу.
	Route string `json:"route"`
}

// ProgressOverviewDTO - сводка прохождения для дашборда.
type ProgressOverviewDTO struct {
	// UserID - идентификатор ученика.
	UserID string `json:"userId"`

	// Email - адрес ученика.
	Email string `json:"email"`

	// SelectedAvatar - выбранный аватар.
	SelectedAvatar string `json:"selectedAvatar"`

	// Summary - сводные счётчики по всей программе.
	Summary progress.Summary `json:"summary"`

	// TotalScore - сумма очков профиля.
	TotalScore int `json:"totalScore"`

	// Modules - разбивка по модулям, если запрошена.
	Modules []progress.ModuleBreakdown `json:"modules,omitempty"`

	// LastActive - последний открытый элемент, если он известен.
	LastActive *progress.ActiveContent `json:"lastActive,omitempty"`

	// NextContent - рекомендуемый следующий элемент, если запрошен.
	NextContent *ContentRefDTO `json:"nextContent,omitempty"`

	// Validation - итог сверки с программой, если запрошена.
	Validation *progress.ValidationResult `json:"validation,omitempty"`

	// Sync - состояние синхронизации на момент запроса.
	Sync progress.SyncStatus `json:"sync"`

	// UpdatedAt - время последнего изменения профиля.
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetProgressOverviewHandler обрабатывает запрос сводки прогресса.
type GetProgressOverviewHandler struct {
	store     *session.Store
	analytics *progress.Analytics
	sequencer *curriculum.Sequencer
	logger    *slog.Logger
}

// NewGetProgressOverviewHandler создаёт обработчик запроса сводки.
func NewGetProgressOverviewHandler(
	store *session.Store,
	analytics *progress.Analytics,
	sequencer *curriculum.Sequencer,
	logger *slog.Logger,
) *GetProgressOverviewHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &GetProgressOverviewHandler{
		store:     store,
		analytics: analytics,
		sequencer: sequencer,
		logger:    logger.With("query", "get_progress_overview"),
	}
}

// Handle выполняет запрос сводки прогресса. Контекст принят для
// единообразия обработчиков; локальное чтение его не использует.
func (h *GetProgressOverviewHandler) Handle(_ context.Context, q GetProgressOverviewQuery) (*ProgressOverviewDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	snap := h.store.Snapshot()
	if snap.Profile == nil {
		return nil, session.ErrNoProfile
	}
	p := snap.Profile

	dto := &ProgressOverviewDTO{
		UserID:         p.ID,
		Email:          p.Email,
		SelectedAvatar: p.SelectedAvatar,
		Summary:        h.analytics.Summary(p.Progress),
		TotalScore:     p.TotalScore,
		LastActive:     h.analytics.LastActiveContent(p.LastActiveLesson),
		Sync:           snap.Sync,
		UpdatedAt:      p.UpdatedAt,
	}

	if q.IncludeModules {
		dto.Modules = h.analytics.ModuleBreakdowns(p.Progress)
	}

	if q.IncludeNextContent {
		if next := h.analytics.NextRecommendedContent(p.Progress, p.LastActiveLesson); next != nil {
			dto.NextContent = h.contentRef(next)
		}
	}

	if q.IncludeValidation {
		v := h.analytics.ValidateProgressData(p.Progress)
		dto.Validation = &v
		if !v.IsValid {
			h.logger.Warn("progress map failed curriculum validation",
				"user_id", p.ID,
				"errors", len(v.Errors),
			)
		}
	}

	return dto, nil
}

func (h *GetProgressOverviewHandler) contentRef(item *curriculum.ContentItem) *ContentRefDTO {
	ref := &ContentRefDTO{
		ModuleID:    item.ModuleID,
		TopicID:     item.TopicID,
		Title:       item.Title,
		Type:        item.Type.String(),
		ModuleTitle: item.ModuleTitle,
	}
	if h.sequencer != nil {
		ref.Route = h.sequencer.RouteFor(item.ModuleID, item.TopicID)
	}
	return ref
}
