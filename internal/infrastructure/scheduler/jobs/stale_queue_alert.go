// Package jobs contains implementations of scheduled jobs for the progress hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pykids/progress-hub/internal/domain/progress"
	"github.com/pykids/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STALE QUEUE ALERT JOB
// ══════════════════════════════════════════════════════════════════════════════

// StaleQueueAlertJob watches the age of the pending queue. A queue that
// keeps its oldest item past the threshold means the flush loop has not
// managed a successful drain for a long stretch: the network is down,
// the remote store rejects the user, or the engine is wedged. The job
// only raises the alarm; fixing the cause is the operator's call.
type StaleQueueAlertJob struct {
	// Dependencies
	queue  progress.QueueStore
	logger *slog.Logger

	// Configuration
	config StaleQueueAlertConfig

	// State (for metrics)
	lastCheckStats atomic.Value // *StaleCheckStats
	alerts         atomic.Int64
}

// StaleQueueAlertConfig contains configuration for the alert job.
type StaleQueueAlertConfig struct {
	// Threshold is the queue age that triggers the alert.
	Threshold time.Duration

	// MaxListed caps how many stale items are named in the alert line.
	MaxListed int
}

// DefaultStaleQueueAlertConfig returns sensible defaults.
func DefaultStaleQueueAlertConfig() StaleQueueAlertConfig {
	return StaleQueueAlertConfig{
		Threshold: 10 * time.Minute,
		MaxListed: 3,
	}
}

// StaleCheckStats contains statistics from a staleness check.
type StaleCheckStats struct {
	CheckedAt time.Time
	QueueLen  int
	OldestAge time.Duration
	Alerted   bool
}

// NewStaleQueueAlertJob creates a new staleness alert job.
func NewStaleQueueAlertJob(queue progress.QueueStore, logger *slog.Logger, config StaleQueueAlertConfig) *StaleQueueAlertJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Threshold <= 0 {
		config.Threshold = 10 * time.Minute
	}
	if config.MaxListed <= 0 {
		config.MaxListed = 3
	}

	return &StaleQueueAlertJob{
		queue:  queue,
		logger: logger,
		config: config,
	}
}

// Name returns the job name.
func (j *StaleQueueAlertJob) Name() string {
	return "stale_queue_alert"
}

// Description returns a human-readable description.
func (j *StaleQueueAlertJob) Description() string {
	return "Warns when pending updates sit in the queue past the staleness threshold"
}

// Run executes one staleness check.
func (j *StaleQueueAlertJob) Run(ctx context.Context) error {
	items, err := j.queue.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot pending queue: %w", err)
	}

	stats := &StaleCheckStats{
		CheckedAt: time.Now(),
		QueueLen:  len(items),
	}
	defer func() { j.lastCheckStats.Store(stats) }()

	if len(items) == 0 {
		j.logger.Debug("pending queue empty")
		return nil
	}

	oldest := items[0]
	for _, item := range items[1:] {
		if item.EnqueuedAt.Before(oldest.EnqueuedAt) {
			oldest = item
		}
	}
	stats.OldestAge = timeutil.Age(oldest.EnqueuedAt)

	if stats.OldestAge < j.config.Threshold {
		j.logger.Debug("pending queue fresh",
			"queue_len", len(items),
			"oldest_age", timeutil.FormatDuration(stats.OldestAge),
		)
		return nil
	}

	stats.Alerted = true
	j.alerts.Add(1)
	j.logger.Warn("pending updates are stale",
		"queue_len", len(items),
		"oldest_age", timeutil.FormatDuration(stats.OldestAge),
		"threshold", timeutil.FormatDuration(j.config.Threshold),
		"stale_items", j.describeStale(items, time.Now()),
		"total_alerts", j.alerts.Load(),
	)

	return nil
}

// describeStale names up to MaxListed stale items for the alert line.
func (j *StaleQueueAlertJob) describeStale(items []progress.PendingUpdate, now time.Time) []string {
	described := make([]string, 0, j.config.MaxListed)
	for _, item := range items {
		if now.Sub(item.EnqueuedAt) < j.config.Threshold {
			continue
		}
		described = append(described, fmt.Sprintf("%s/%s retries=%d age=%s",
			item.Update.ModuleID,
			item.Update.TopicID,
			item.RetryCount,
			timeutil.FormatDuration(now.Sub(item.EnqueuedAt)),
		))
		if len(described) >= j.config.MaxListed {
			break
		}
	}
	return described
}

// Alerts returns how many times the alert has fired since startup.
func (j *StaleQueueAlertJob) Alerts() int64 {
	return j.alerts.Load()
}
