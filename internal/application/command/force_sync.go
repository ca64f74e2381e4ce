package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/pykids/progress-hub/internal/domain/progress"
)

// ═══════════════════════════════════════════════════════════════════════════
// FORCE SYNC COMMAND
// Немедленный слив очереди по требованию пользователя, кнопка
// "синхронизировать сейчас". Экспоненциальные интервалы между попытками
// при этом не сбрасываются: обновления, чей интервал не истёк,
// пропускаются даже при ручном запуске.
// ═══════════════════════════════════════════════════════════════════════════

// QueueDrainer запускает слив очереди синхронизации.
type QueueDrainer interface {
	// ForceSyncNow сливает очередь и возвращает итог цикла.
	ForceSyncNow(ctx context.Context) (progress.FlushReport, error)

	// Status возвращает состояние после слива.
	Status() progress.SyncStatus
}

// ForceSyncCommand запускает немедленную синхронизацию.
type ForceSyncCommand struct {
	// UserID - идентификатор ученика.
	UserID string
}

// Validate проверяет корректность команды.
func (c ForceSyncCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("force_sync: user_id is required")
	}
	return nil
}

// ForceSyncResult содержит итог принудительной синхронизации.
type ForceSyncResult struct {
	// Report - итог цикла слива.
	Report progress.FlushReport

	// Sync - состояние движка после слива.
	Sync progress.SyncStatus
}

// ForceSyncHandler обрабатывает команду принудительной синхронизации.
type ForceSyncHandler struct {
	drainer QueueDrainer
	logger  *slog.Logger
}

// NewForceSyncHandler создаёт обработчик принудительной синхронизации.
func NewForceSyncHandler(drainer QueueDrainer, logger *slog.Logger) *ForceSyncHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ForceSyncHandler{
		drainer: drainer,
		logger:  logger.With("command", "force_sync"),
	}
}

// Handle выполняет команду принудительной синхронизации.
func (h *ForceSyncHandler) Handle(ctx context.Context, cmd ForceSyncCommand) (*ForceSyncResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	report, err := h.drainer.ForceSyncNow(ctx)
	if err != nil {
		h.logger.Error("force sync failed", "user_id", cmd.UserID, "error", err)
		return nil, err
	}

	h.logger.Info("force sync finished",
		"user_id", cmd.UserID,
		"synced", report.Synced,
		"failed", report.Failed,
		"dropped", report.Dropped,
		"skipped", report.Skipped,
		"remaining", report.Remaining,
		"reentrant", report.Reentrant,
	)

	return &ForceSyncResult{
		Report: report,
		Sync:   h.drainer.Status(),
	}, nil
}
