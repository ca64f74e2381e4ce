// Package jobs contains implementations of scheduled jobs for the progress hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/progress"
	"github.com/pykids/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTEGRITY SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// IntegritySweepJob walks every stored profile and verifies that the
// persisted aggregates match a full recount of the progress map. The
// write path recomputes aggregates on every update, so drift can only
// come from data corruption or a historical bug. The sweep repairs what
// it finds and reports the drift count, because a quietly self-healing
// store hides bugs that must be fixed at the source.
type IntegritySweepJob struct {
	// Dependencies
	profileRepo    profile.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	// Configuration
	config IntegritySweepConfig

	// State (for metrics)
	lastSweepStats atomic.Value // *SweepStats
}

// CorrectionRecorder is implemented by repositories that keep a
// per-field audit trail of sweep corrections. The sweep uses it when
// available and stays silent when the store has no audit table.
type CorrectionRecorder interface {
	RecordCorrection(ctx context.Context, userID, field string, stored, computed int64) error
}

// IntegritySweepConfig contains configuration for the sweep job.
type IntegritySweepConfig struct {
	// PageSize is the number of profiles fetched per repository page.
	PageSize int

	// DryRun reports drift without writing repairs.
	DryRun bool

	// Timeout is the maximum duration for the entire sweep.
	Timeout time.Duration
}

// DefaultIntegritySweepConfig returns sensible defaults.
func DefaultIntegritySweepConfig() IntegritySweepConfig {
	return IntegritySweepConfig{
		PageSize: 100,
		DryRun:   false,
		Timeout:  10 * time.Minute,
	}
}

// SweepStats contains statistics from a sweep run.
type SweepStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Scanned     int
	Drifted     int
	Repaired    int
	Failed      int
	Errors      []SweepError
}

// SweepError represents a profile the sweep could not repair.
type SweepError struct {
	UserID     string
	Error      error
	OccurredAt time.Time
}

// NewIntegritySweepJob creates a new integrity sweep job.
func NewIntegritySweepJob(
	profileRepo profile.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config IntegritySweepConfig,
) *IntegritySweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}

	return &IntegritySweepJob{
		profileRepo:    profileRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
		config:         config,
	}
}

// Name returns the job name.
func (j *IntegritySweepJob) Name() string {
	return "integrity_sweep"
}

// Description returns a human-readable description.
func (j *IntegritySweepJob) Description() string {
	return "Recounts stored profile aggregates and repairs drift"
}

// Run executes one full sweep.
func (j *IntegritySweepJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &SweepStats{
		StartedAt: startedAt,
		Errors:    make([]SweepError, 0),
	}

	j.logger.Info("starting integrity sweep", "dry_run", j.config.DryRun)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	offset := 0
	for {
		page, err := j.profileRepo.List(ctx, offset, j.config.PageSize)
		if err != nil {
			j.finalize(stats)
			return fmt.Errorf("list profiles at offset %d: %w", offset, err)
		}

		for _, p := range page {
			stats.Scanned++
			j.sweepProfile(ctx, p, stats)
		}

		if len(page) < j.config.PageSize {
			break
		}
		offset += len(page)
	}

	j.finalize(stats)
	j.emitSweepDoneEvent(stats)

	j.logger.Info("integrity sweep completed",
		"duration", stats.Duration.String(),
		"scanned", stats.Scanned,
		"drifted", stats.Drifted,
		"repaired", stats.Repaired,
		"failed", stats.Failed,
	)

	if stats.Failed > 0 {
		return fmt.Errorf("integrity sweep could not repair %d of %d drifted profiles",
			stats.Failed, stats.Drifted)
	}

	return nil
}

// sweepProfile checks one profile and repairs it when drifted.
func (j *IntegritySweepJob) sweepProfile(ctx context.Context, p *profile.Profile, stats *SweepStats) {
	actual, drifted := p.TotalsDrift()
	if !drifted {
		return
	}

	stored := progress.Totals{
		TotalScore:       p.TotalScore,
		CompletedLessons: p.CompletedLessons,
		CompletedQuizzes: p.CompletedQuizzes,
	}

	stats.Drifted++
	j.logger.Warn("profile aggregates drifted",
		"user_id", p.ID,
		"stored_score", stored.TotalScore,
		"actual_score", actual.TotalScore,
		"stored_lessons", stored.CompletedLessons,
		"actual_lessons", actual.CompletedLessons,
		"stored_quizzes", stored.CompletedQuizzes,
		"actual_quizzes", actual.CompletedQuizzes,
	)

	if j.config.DryRun {
		return
	}

	p.RecomputeTotals()
	if err := j.profileRepo.Replace(ctx, p); err != nil {
		stats.Failed++
		stats.Errors = append(stats.Errors, SweepError{
			UserID:     p.ID,
			Error:      err,
			OccurredAt: time.Now(),
		})
		j.logger.Error("failed to repair drifted profile",
			"user_id", p.ID,
			"error", err,
		)
		return
	}

	stats.Repaired++
	j.recordCorrections(ctx, p.ID, stored, actual)
}

// recordCorrections writes one audit row per repaired field, best effort.
func (j *IntegritySweepJob) recordCorrections(ctx context.Context, userID string, stored, actual progress.Totals) {
	recorder, ok := j.profileRepo.(CorrectionRecorder)
	if !ok {
		return
	}

	corrections := []struct {
		field            string
		stored, computed int64
	}{
		{"total_score", int64(stored.TotalScore), int64(actual.TotalScore)},
		{"completed_lessons", int64(stored.CompletedLessons), int64(actual.CompletedLessons)},
		{"completed_quizzes", int64(stored.CompletedQuizzes), int64(actual.CompletedQuizzes)},
	}

	for _, c := range corrections {
		if c.stored == c.computed {
			continue
		}
		if err := recorder.RecordCorrection(ctx, userID, c.field, c.stored, c.computed); err != nil {
			j.logger.Warn("failed to record sweep correction",
				"user_id", userID,
				"field", c.field,
				"error", err,
			)
		}
	}
}

// finalize closes out the stats and stores them for metrics readers.
func (j *IntegritySweepJob) finalize(stats *SweepStats) {
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastSweepStats.Store(stats)
}

// emitSweepDoneEvent publishes the sweep summary, best effort.
func (j *IntegritySweepJob) emitSweepDoneEvent(stats *SweepStats) {
	if j.eventPublisher == nil {
		return
	}
	event := shared.NewIntegritySweepDoneEvent(stats.Scanned, stats.Drifted, stats.Repaired, stats.Duration)
	if err := j.eventPublisher.Publish(event); err != nil {
		j.logger.Warn("failed to publish sweep event", "error", err)
	}
}

// LastSweepStats returns statistics from the last sweep run.
func (j *IntegritySweepJob) LastSweepStats() *SweepStats {
	stats := j.lastSweepStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*SweepStats)
}
