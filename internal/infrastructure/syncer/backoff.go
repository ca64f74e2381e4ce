package syncer

import (
	"time"

	"github.com/pykids/progress-hub/internal/domain/progress"
)

// BackoffPolicy computes the minimum spacing between attempts for the
// same queue item: base × multiplier^(retryCount-1), capped at Max.
//
// Spacing only. The policy never blocks a drain: an item that is not
// yet due is skipped and waits for the next trigger (the periodic
// timer, an online transition, or a manual force-sync).
type BackoffPolicy struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

// DefaultBackoffPolicy returns the spacing used when config gives none.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:       1 * time.Second,
		Multiplier: 2.0,
		Max:        5 * time.Minute,
	}
}

// Delay returns the minimum spacing required after the given number of
// failed attempts. Zero for an item that has never been attempted.
func (p BackoffPolicy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}

	delay := float64(p.Base)
	for i := 1; i < retryCount; i++ {
		delay *= p.Multiplier
	}

	if delay > float64(p.Max) {
		delay = float64(p.Max)
	}

	return time.Duration(delay)
}

// Due reports whether the item may be attempted at the given moment.
func (p BackoffPolicy) Due(item progress.PendingUpdate, now time.Time) bool {
	if !item.Attempted() {
		return true
	}
	return now.Sub(item.LastAttempt) >= p.Delay(item.RetryCount)
}
