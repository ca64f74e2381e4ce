// Package jobs contains implementations of scheduled jobs for the progress hub.
// The agent registers the queue flush, the connectivity probe and the stale
// queue alert; the server registers the nightly integrity sweep.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pykids/progress-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// FLUSH PENDING JOB
// ══════════════════════════════════════════════════════════════════════════════

// FlushPendingJob periodically drains the pending update queue.
// This is the heartbeat of the offline-first design: writes land in the
// local queue instantly, and this job is the background current that
// carries them to the remote store whenever the network allows.
//
// The drain itself is owned by the sync engine. The job adds the
// schedule, skip-when-offline short-circuiting and failure escalation
// on top of it.
type FlushPendingJob struct {
	// Dependencies
	flusher QueueFlusher
	logger  *slog.Logger

	// Configuration
	config FlushPendingConfig

	// State (for metrics)
	lastFlushStats      atomic.Value // *FlushStats
	consecutiveFailures atomic.Int64
	offlineSkips        atomic.Int64
}

// QueueFlusher is the slice of the sync engine the flush job drives.
type QueueFlusher interface {
	// Drain pushes the pending queue to the remote store.
	Drain(ctx context.Context) (progress.FlushReport, error)

	// IsOnline reports the engine's current connectivity assumption.
	IsOnline() bool
}

// FlushPendingConfig contains configuration for the flush job.
type FlushPendingConfig struct {
	// SkipWhenOffline short-circuits the run while the engine believes
	// the remote store is unreachable. The drain would no-op anyway;
	// skipping keeps the run history readable.
	SkipWhenOffline bool

	// FailureAlertThreshold is the number of consecutive failed drains
	// after which the job escalates from Warn to Error.
	FailureAlertThreshold int
}

// DefaultFlushPendingConfig returns sensible defaults.
func DefaultFlushPendingConfig() FlushPendingConfig {
	return FlushPendingConfig{
		SkipWhenOffline:       true,
		FailureAlertThreshold: 3,
	}
}

// FlushStats contains statistics from a flush run.
type FlushStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Synced      int
	Failed      int
	Dropped     int
	Skipped     int
	Remaining   int
	Reentrant   bool
	WasOffline  bool
}

// NewFlushPendingJob creates a new flush job.
func NewFlushPendingJob(flusher QueueFlusher, logger *slog.Logger, config FlushPendingConfig) *FlushPendingJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.FailureAlertThreshold <= 0 {
		config.FailureAlertThreshold = 3
	}

	return &FlushPendingJob{
		flusher: flusher,
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *FlushPendingJob) Name() string {
	return "flush_pending"
}

// Description returns a human-readable description.
func (j *FlushPendingJob) Description() string {
	return "Drains the pending progress queue to the remote store"
}

// Run executes one flush cycle.
func (j *FlushPendingJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &FlushStats{StartedAt: startedAt}

	if j.config.SkipWhenOffline && !j.flusher.IsOnline() {
		stats.WasOffline = true
		stats.CompletedAt = time.Now()
		j.lastFlushStats.Store(stats)
		j.offlineSkips.Add(1)
		j.logger.Debug("flush skipped, engine offline",
			"offline_skips", j.offlineSkips.Load(),
		)
		return nil
	}

	report, err := j.flusher.Drain(ctx)

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	stats.Synced = report.Synced
	stats.Failed = report.Failed
	stats.Dropped = report.Dropped
	stats.Skipped = report.Skipped
	stats.Remaining = report.Remaining
	stats.Reentrant = report.Reentrant
	j.lastFlushStats.Store(stats)

	if err != nil {
		failures := j.consecutiveFailures.Add(1)
		if failures >= int64(j.config.FailureAlertThreshold) {
			j.logger.Error("queue flush failing repeatedly",
				"consecutive_failures", failures,
				"remaining", report.Remaining,
				"error", err,
			)
		} else {
			j.logger.Warn("queue flush failed",
				"consecutive_failures", failures,
				"error", err,
			)
		}
		return fmt.Errorf("flush pending queue: %w", err)
	}

	j.consecutiveFailures.Store(0)

	// Routine empty cycles stay at Debug; every 30 seconds at Info would
	// drown the log. Movement in the queue is worth a line.
	if report.Synced > 0 || report.Dropped > 0 || report.Failed > 0 {
		j.logger.Info("flush cycle moved the queue",
			"synced", report.Synced,
			"failed", report.Failed,
			"dropped", report.Dropped,
			"remaining", report.Remaining,
			"duration", report.Duration.String(),
		)
	} else {
		j.logger.Debug("flush cycle idle",
			"remaining", report.Remaining,
			"reentrant", report.Reentrant,
		)
	}

	return nil
}

// LastFlushStats returns statistics from the last flush run.
func (j *FlushPendingJob) LastFlushStats() *FlushStats {
	stats := j.lastFlushStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*FlushStats)
}

// ConsecutiveFailures returns the current failed-run streak.
func (j *FlushPendingJob) ConsecutiveFailures() int64 {
	return j.consecutiveFailures.Load()
}
