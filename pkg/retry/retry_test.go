package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("profile API timed out")

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_RetriesRetryableUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errFlaky)
		}
		return nil
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttemptsAndUnwraps(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Retryable(errFlaky)
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))

	assert.Equal(t, 3, attempts)
	require.ErrorIs(t, err, errFlaky)
	// The wrapper is stripped once retries are spent
	assert.False(t, IsRetryable(err))
}

func TestDo_PlainErrorStopsImmediately(t *testing.T) {
	plain := errors.New("malformed response body")
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return plain
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	assert.Equal(t, 1, attempts)
	assert.Equal(t, plain, err)
}

func TestDo_PermanentShortCircuits(t *testing.T) {
	notFound := errors.New("profile not found")
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(notFound)
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond),
		// Even an always-retry predicate must not override a permanent error
		WithRetryIf(func(error) bool { return true }))

	assert.Equal(t, 1, attempts)
	require.ErrorIs(t, err, notFound)
	assert.False(t, IsPermanent(err))
}

func TestDo_RetryIfOverridesDefault(t *testing.T) {
	plain := errors.New("connection refused")
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return plain
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0),
		WithRetryIf(func(err error) bool { return true }))

	assert.Equal(t, 3, attempts)
	assert.Equal(t, plain, err)
}

func TestDo_OnRetryObservesEachRetry(t *testing.T) {
	var seen []int
	err := Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errFlaky)
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			seen = append(seen, attempt)
			assert.ErrorIs(t, err, errFlaky)
			assert.Greater(t, delay, time.Duration(0))
		}))

	require.Error(t, err)
	// No callback for the final attempt, nothing follows it
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDo_ContextCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		return nil
	})

	assert.Equal(t, 0, attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return Retryable(errFlaky)
	}, WithMaxAttempts(5), WithInitialDelay(time.Minute))

	assert.Equal(t, 1, attempts)
	// The last operation error wins over the bare context error
	require.ErrorIs(t, err, errFlaky)
}

func TestDoWithData(t *testing.T) {
	attempts := 0
	score, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, Retryable(errFlaky)
		}
		return 87, nil
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 87, score)
}

func TestDoWithData_KeepsLastResultOnFailure(t *testing.T) {
	score, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		return 42, Retryable(errFlaky)
	}, WithMaxAttempts(2), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 42, score)
}

func TestRetryableWrapper(t *testing.T) {
	assert.NoError(t, Retryable(nil))

	wrapped := Retryable(errFlaky)
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, errFlaky)
	assert.Equal(t, errFlaky.Error(), wrapped.Error())
}

func TestPermanentWrapper(t *testing.T) {
	assert.NoError(t, Permanent(nil))

	wrapped := Permanent(errFlaky)
	assert.True(t, IsPermanent(wrapped))
	assert.False(t, IsRetryable(wrapped))
	assert.ErrorIs(t, wrapped, errFlaky)
}

func TestNew_IgnoresInvalidOptions(t *testing.T) {
	r := New(
		WithMaxAttempts(0),
		WithInitialDelay(-time.Second),
		WithMaxDelay(0),
		WithMultiplier(0.5),
		WithJitter(1.5),
	)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.MaxAttempts, r.config.MaxAttempts)
	assert.Equal(t, defaults.InitialDelay, r.config.InitialDelay)
	assert.Equal(t, defaults.MaxDelay, r.config.MaxDelay)
	assert.Equal(t, defaults.Multiplier, r.config.Multiplier)
	assert.Equal(t, defaults.JitterFactor, r.config.JitterFactor)
}

func TestCalculateDelay_ExponentialGrowthWithCap(t *testing.T) {
	r := New(
		WithInitialDelay(100*time.Millisecond),
		WithMultiplier(2.0),
		WithMaxDelay(300*time.Millisecond),
		WithJitter(0),
	)

	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(3))
	assert.Equal(t, 300*time.Millisecond, r.calculateDelay(4))
}

func TestCalculateDelay_JitterStaysInBounds(t *testing.T) {
	r := New(
		WithInitialDelay(100*time.Millisecond),
		WithMultiplier(1.0),
		WithJitter(0.5),
	)

	for i := 0; i < 50; i++ {
		d := r.calculateDelay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestPresetRetriers(t *testing.T) {
	api := ProfileAPIRetrier()
	assert.Equal(t, 3, api.config.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, api.config.InitialDelay)
	assert.Equal(t, 10*time.Second, api.config.MaxDelay)

	db := DatabaseRetrier()
	assert.Equal(t, 3, db.config.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, db.config.InitialDelay)
	assert.Equal(t, time.Second, db.config.MaxDelay)
}
