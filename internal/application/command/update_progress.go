// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
// They follow the local-first philosophy: mutate locally, sync later.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pykids/progress-hub/internal/application/session"
	"github.com/pykids/progress-hub/internal/domain/curriculum"
	"github.com/pykids/progress-hub/internal/domain/progress"
	"github.com/pykids/progress-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// UPDATE PROGRESS COMMAND
// Записывает прохождение урока или квиза.
//
// Ключевой принцип local-first: локальная мутация применяется синхронно
// и команда завершается успехом независимо от состояния сети. Доставку
// на сервер берёт на себя движок синхронизации - при офлайне обновление
// ложится в очередь и уезжает позже.
//
// Команда ждёт сеть ровно ноль миллисекунд. Единственный способ получить
// ошибку - невалидные данные или сбой локального хранилища очереди.
// ═══════════════════════════════════════════════════════════════════════════

// UpdateProgressCommand содержит данные о прохождении элемента программы.
type UpdateProgressCommand struct {
	// UserID - идентификатор ученика.
	UserID string

	// ModuleID - модуль программы, например "variables".
	ModuleID string

	// TopicID - урок внутри модуля или "quiz" для квиза модуля.
	TopicID string

	// Completed - элемент пройден. false откатывает отметку.
	Completed bool

	// Score - набранные очки. Для квизов процент правильных ответов.
	Score int

	// Type - урок или квиз.
	Type curriculum.ContentType

	// CorrelationID для трассировки между сервисами.
	CorrelationID string
}

// Validate проверяет корректность команды.
func (c UpdateProgressCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("update_progress: user_id is required")
	}
	if strings.TrimSpace(c.ModuleID) == "" {
		return errors.New("update_progress: module_id is required")
	}
	if strings.TrimSpace(c.TopicID) == "" {
		return errors.New("update_progress: topic_id is required")
	}
	if c.Score < 0 {
		return errors.New("update_progress: score cannot be negative")
	}
	if c.Score > 100 {
		return errors.New("update_progress: score cannot exceed 100")
	}
	return nil
}

// UpdateProgressResult содержит результат записи прогресса.
type UpdateProgressResult struct {
	// Update - каноническое обновление, ушедшее в движок.
	Update progress.Update

	// IsNewCompletion - элемент завершён впервые.
	IsNewCompletion bool

	// CourseCompleted - этим обновлением закрыт последний элемент программы.
	CourseCompleted bool

	// CompletionPercentage - процент прохождения после мутации.
	CompletionPercentage int

	// Sync - состояние движка синхронизации после команды.
	Sync progress.SyncStatus

	// Events - доменные события, порождённые командой.
	Events []shared.Event
}

// SyncEngine - подмножество движка синхронизации, нужное командам записи.
type SyncEngine interface {
	// SaveProgress сохраняет обновление: напрямую на сервер или в очередь.
	SaveProgress(ctx context.Context, u progress.Update) error

	// Status возвращает текущее состояние синхронизации.
	Status() progress.SyncStatus
}

// UpdateProgressHandler обрабатывает команду записи прогресса.
type UpdateProgressHandler struct {
	store     *session.Store
	engine    SyncEngine
	analytics *progress.Analytics

	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewUpdateProgressHandler создаёт обработчик команды записи прогресса.
func NewUpdateProgressHandler(
	store *session.Store,
	engine SyncEngine,
	analytics *progress.Analytics,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *UpdateProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &UpdateProgressHandler{
		store:          store,
		engine:         engine,
		analytics:      analytics,
		eventPublisher: eventPublisher,
		logger:         logger.With("command", "update_progress"),
	}
}

// Handle выполняет команду записи прогресса.
func (h *UpdateProgressHandler) Handle(
	ctx context.Context,
	cmd UpdateProgressCommand,
) (*UpdateProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	update, err := progress.NewUpdate(
		cmd.UserID,
		cmd.ModuleID,
		cmd.TopicID,
		cmd.Completed,
		cmd.Score,
		cmd.Type,
	)
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	// Снимок до мутации. Нужен для отката, если локальная очередь
	// откажется принять обновление.
	before := h.store.Profile()
	if before == nil {
		return nil, session.ErrNoProfile
	}

	isNewCompletion, err := h.store.ApplyUpdate(update, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("apply local update: %w", err)
	}

	// Движок либо отправляет сразу, либо кладёт в очередь. Ошибка здесь
	// означает отказ локального хранилища, поэтому локальная мутация
	// откатывается целиком: частично применённое состояние хуже отката.
	if err := h.engine.SaveProgress(ctx, update); err != nil {
		h.store.Replace(before)
		h.logger.Error("save progress failed, local mutation rolled back",
			"module_id", update.ModuleID,
			"topic_id", update.TopicID,
			"error", err,
		)
		return nil, fmt.Errorf("save progress: %w", err)
	}

	result := &UpdateProgressResult{
		Update:          update,
		IsNewCompletion: isNewCompletion,
		Sync:            h.engine.Status(),
	}

	h.collectEvents(cmd, update, isNewCompletion, result)
	h.publishEvents(result.Events)

	h.logger.Info("progress recorded",
		"module_id", update.ModuleID,
		"topic_id", update.TopicID,
		"completed", update.Completed,
		"score", update.Score,
		"new_completion", isNewCompletion,
		"sync_state", result.Sync.State,
	)

	return result, nil
}

// collectEvents собирает доменные события по итогам мутации.
func (h *UpdateProgressHandler) collectEvents(
	cmd UpdateProgressCommand,
	update progress.Update,
	isNewCompletion bool,
	result *UpdateProgressResult,
) {
	progressEvent := shared.NewProgressUpdatedEvent(
		update.UserID,
		update.ModuleID,
		update.TopicID,
		update.Completed,
		update.Score,
		update.Type.String(),
	)
	if cmd.CorrelationID != "" {
		progressEvent.BaseEvent = progressEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, progressEvent)

	if isNewCompletion {
		result.Events = append(result.Events, shared.NewContentCompletedEvent(
			update.UserID,
			update.ModuleID,
			update.TopicID,
			update.Score,
			update.Type.String(),
		))
	}

	if h.analytics == nil {
		return
	}

	snap := h.store.Profile()
	if snap == nil {
		return
	}

	summary := h.analytics.Summary(snap.Progress)
	result.CompletionPercentage = summary.CompletionPercentage

	// Событие о завершении программы уходит ровно один раз: только когда
	// именно это обновление закрыло последний элемент.
	if isNewCompletion && summary.TotalContent > 0 && summary.CompletedContent == summary.TotalContent {
		result.CourseCompleted = true
		result.Events = append(result.Events, shared.NewCourseCompletedEvent(
			update.UserID,
			summary.TotalContent,
			snap.TotalScore,
		))
	}
}

// publishEvents публикует события. Ошибка публикации не валит команду:
// прогресс уже записан, событийная шина вторична.
func (h *UpdateProgressHandler) publishEvents(events []shared.Event) {
	if h.eventPublisher == nil {
		return
	}
	for _, event := range events {
		if err := h.eventPublisher.Publish(event); err != nil {
			h.logger.Warn("failed to publish event",
				"event_type", event.EventType(),
				"error", err,
			)
		}
	}
}
