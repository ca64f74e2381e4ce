package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

type fakeHealth struct {
	healthy bool
	probes  int
}

func (f *fakeHealth) Healthy(context.Context) bool {
	f.probes++
	return f.healthy
}

type fakeSwitch struct {
	online bool
	flips  []bool
}

func (f *fakeSwitch) SetOnline(_ context.Context, online bool) error {
	f.online = online
	f.flips = append(f.flips, online)
	return nil
}

func (f *fakeSwitch) IsOnline() bool { return f.online }

func probeJob(health *fakeHealth, sw *fakeSwitch, mutate func(*ConnectivityProbeConfig)) *ConnectivityProbeJob {
	cfg := DefaultConnectivityProbeConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return NewConnectivityProbeJob(health, sw, discardLogger(), cfg)
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestConnectivityProbe_OneHealthyProbeGoesOnline(t *testing.T) {
	health := &fakeHealth{healthy: true}
	sw := &fakeSwitch{online: false}
	job := probeJob(health, sw, nil)

	require.NoError(t, job.Run(context.Background()))

	assert.True(t, sw.online)
	assert.Equal(t, []bool{true}, sw.flips)

	stats := job.LastProbeStats()
	require.NotNil(t, stats)
	assert.True(t, stats.Healthy)
	assert.True(t, stats.Flipped)
}

func TestConnectivityProbe_OfflineNeedsConsecutiveFailures(t *testing.T) {
	health := &fakeHealth{healthy: false}
	sw := &fakeSwitch{online: true}
	job := probeJob(health, sw, func(c *ConnectivityProbeConfig) {
		c.FailureThreshold = 2
	})

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, sw.online, "one miss must not park the queue")
	assert.Empty(t, sw.flips)

	require.NoError(t, job.Run(context.Background()))
	assert.False(t, sw.online)
	assert.Equal(t, []bool{false}, sw.flips)
}

func TestConnectivityProbe_HealthyProbeResetsStreak(t *testing.T) {
	health := &fakeHealth{healthy: false}
	sw := &fakeSwitch{online: true}
	job := probeJob(health, sw, func(c *ConnectivityProbeConfig) {
		c.FailureThreshold = 2
	})

	require.NoError(t, job.Run(context.Background()))

	health.healthy = true
	require.NoError(t, job.Run(context.Background()))

	health.healthy = false
	require.NoError(t, job.Run(context.Background()))

	assert.True(t, sw.online, "non-consecutive misses never reach the threshold")
	assert.Empty(t, sw.flips)
}

func TestConnectivityProbe_StableStateMakesNoFlips(t *testing.T) {
	health := &fakeHealth{healthy: true}
	sw := &fakeSwitch{online: true}
	job := probeJob(health, sw, nil)

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, sw.flips)
	assert.Equal(t, 2, health.probes)
}

func TestConnectivityProbe_UnreachableRemoteIsNotAJobError(t *testing.T) {
	health := &fakeHealth{healthy: false}
	sw := &fakeSwitch{online: false}
	job := probeJob(health, sw, nil)

	assert.NoError(t, job.Run(context.Background()))
}
