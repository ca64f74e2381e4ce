package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pykids/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BATCH UPDATE PROGRESS COMMAND
// For applying several progress updates at once, e.g. a quiz summary screen
// that reports the quiz result together with revisited lessons.
//
// Items are independent: a rejected item never blocks the rest. The caller
// gets a per-item error map and decides what to retry.
// ══════════════════════════════════════════════════════════════════════════════

// BatchUpdateProgressCommand contains multiple updates to apply in order.
type BatchUpdateProgressCommand struct {
	Updates       []UpdateProgressCommand
	CorrelationID string
}

// BatchUpdateProgressResult contains results for the whole batch.
type BatchUpdateProgressResult struct {
	TotalCount    int
	AppliedCount  int
	RejectedCount int

	// Results holds results for applied items, in input order.
	Results []*UpdateProgressResult

	// Errors maps "index:moduleID/topicID" to the rejection cause.
	Errors map[string]error
}

// BatchUpdateProgressHandler applies a batch by delegating to the single
// update handler item by item.
type BatchUpdateProgressHandler struct {
	handler *UpdateProgressHandler

	eventPublisher shared.EventPublisher
	logger         *slog.Logger
}

// NewBatchUpdateProgressHandler creates a new batch handler.
func NewBatchUpdateProgressHandler(
	handler *UpdateProgressHandler,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *BatchUpdateProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &BatchUpdateProgressHandler{
		handler:        handler,
		eventPublisher: eventPublisher,
		logger:         logger.With("command", "batch_update_progress"),
	}
}

// Handle executes the batch update command.
func (h *BatchUpdateProgressHandler) Handle(
	ctx context.Context,
	cmd BatchUpdateProgressCommand,
) (*BatchUpdateProgressResult, error) {
	result := &BatchUpdateProgressResult{
		TotalCount: len(cmd.Updates),
		Results:    make([]*UpdateProgressResult, 0, len(cmd.Updates)),
		Errors:     make(map[string]error),
	}

	var userID string
	for i, item := range cmd.Updates {
		if item.CorrelationID == "" {
			item.CorrelationID = cmd.CorrelationID
		}
		if userID == "" {
			userID = item.UserID
		}

		itemResult, err := h.handler.Handle(ctx, item)
		if err != nil {
			result.RejectedCount++
			result.Errors[fmt.Sprintf("%d:%s/%s", i, item.ModuleID, item.TopicID)] = err
			continue
		}

		result.AppliedCount++
		result.Results = append(result.Results, itemResult)
	}

	h.logger.Info("batch applied",
		"total", result.TotalCount,
		"applied", result.AppliedCount,
		"rejected", result.RejectedCount,
	)

	if h.eventPublisher != nil && result.TotalCount > 0 {
		event := shared.NewProgressBatchAppliedEvent(userID, result.AppliedCount, result.RejectedCount)
		if err := h.eventPublisher.Publish(event); err != nil {
			h.logger.Warn("failed to publish batch event", "error", err)
		}
	}

	return result, nil
}
