// Package jobs contains implementations of scheduled jobs for the progress hub.
package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTIVITY PROBE JOB
// ══════════════════════════════════════════════════════════════════════════════

// ConnectivityProbeJob checks whether the remote store is reachable and
// flips the sync engine's online flag accordingly. The engine reacts to
// the transition itself: going online triggers a full drain, going
// offline parks the queue.
//
// Recovery is immediate: a single healthy probe flips the engine online,
// because a child waiting for their progress to upload should not wait
// out a damping window. Going offline requires FailureThreshold
// consecutive misses so one dropped packet does not park the queue.
type ConnectivityProbeJob struct {
	// Dependencies
	health RemoteHealth
	sw     OnlineSwitch
	logger *slog.Logger

	// Configuration
	config ConnectivityProbeConfig

	// State (for metrics)
	lastProbeStats      atomic.Value // *ProbeStats
	consecutiveFailures atomic.Int64
	wentOnline          atomic.Int64
	wentOffline         atomic.Int64
}

// RemoteHealth answers whether the remote store responds right now.
type RemoteHealth interface {
	Healthy(ctx context.Context) bool
}

// OnlineSwitch is the slice of the sync engine the probe flips.
type OnlineSwitch interface {
	SetOnline(ctx context.Context, online bool) error
	IsOnline() bool
}

// ConnectivityProbeConfig contains configuration for the probe job.
type ConnectivityProbeConfig struct {
	// FailureThreshold is the number of consecutive failed probes
	// before the engine is flipped offline.
	FailureThreshold int

	// ProbeTimeout bounds a single health check.
	ProbeTimeout time.Duration
}

// DefaultConnectivityProbeConfig returns sensible defaults.
func DefaultConnectivityProbeConfig() ConnectivityProbeConfig {
	return ConnectivityProbeConfig{
		FailureThreshold: 2,
		ProbeTimeout:     5 * time.Second,
	}
}

// ProbeStats contains statistics from a probe run.
type ProbeStats struct {
	ProbedAt            time.Time
	Healthy             bool
	Online              bool
	Flipped             bool
	ConsecutiveFailures int64
}

// NewConnectivityProbeJob creates a new connectivity probe job.
func NewConnectivityProbeJob(health RemoteHealth, sw OnlineSwitch, logger *slog.Logger, config ConnectivityProbeConfig) *ConnectivityProbeJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 2
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}

	return &ConnectivityProbeJob{
		health: health,
		sw:     sw,
		logger: logger,
		config: config,
	}
}

// Name returns the job name.
func (j *ConnectivityProbeJob) Name() string {
	return "connectivity_probe"
}

// Description returns a human-readable description.
func (j *ConnectivityProbeJob) Description() string {
	return "Probes the remote store and flips the sync engine online or offline"
}

// Run executes one probe.
func (j *ConnectivityProbeJob) Run(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, j.config.ProbeTimeout)
	healthy := j.health.Healthy(probeCtx)
	cancel()

	stats := &ProbeStats{
		ProbedAt: time.Now(),
		Healthy:  healthy,
	}

	if healthy {
		j.consecutiveFailures.Store(0)
		if !j.sw.IsOnline() {
			if err := j.sw.SetOnline(ctx, true); err != nil {
				// The flip landed before SetOnline returned the error:
				// a failed post-flip drain reports here and retries on
				// the next flush tick.
				j.logger.Warn("going online succeeded but initial drain failed",
					"error", err,
				)
			}
			j.wentOnline.Add(1)
			stats.Flipped = true
			j.logger.Info("remote store reachable again, engine online",
				"times_online", j.wentOnline.Load(),
			)
		}
	} else {
		failures := j.consecutiveFailures.Add(1)
		stats.ConsecutiveFailures = failures
		if j.sw.IsOnline() && failures >= int64(j.config.FailureThreshold) {
			if err := j.sw.SetOnline(ctx, false); err != nil {
				j.logger.Warn("failed to flip engine offline", "error", err)
			} else {
				j.wentOffline.Add(1)
				stats.Flipped = true
				j.logger.Warn("remote store unreachable, engine offline",
					"consecutive_failures", failures,
					"times_offline", j.wentOffline.Load(),
				)
			}
		} else {
			j.logger.Debug("remote store probe failed",
				"consecutive_failures", failures,
				"threshold", j.config.FailureThreshold,
			)
		}
	}

	stats.Online = j.sw.IsOnline()
	j.lastProbeStats.Store(stats)

	// An unreachable remote is a normal state for this job, not a job
	// failure. The scheduler's error metrics stay reserved for probes
	// that could not run at all.
	return nil
}

// LastProbeStats returns statistics from the last probe.
func (j *ConnectivityProbeJob) LastProbeStats() *ProbeStats {
	stats := j.lastProbeStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*ProbeStats)
}
