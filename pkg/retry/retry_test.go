package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(delays *[]time.Duration) Option {
	return WithSleep(func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	for k := 0; k < 3; k++ {
		calls := 0
		var delays []time.Duration
		got, err := Do(context.Background(), DefaultPolicy(), func(context.Context) (string, error) {
			calls++
			if calls <= k {
				return "", errors.New("flaky")
			}
			return "ok", nil
		}, noSleep(&delays))

		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, k+1, calls)
		assert.Len(t, delays, k)
		for _, d := range delays {
			assert.Equal(t, time.Second, d, "delay is constant")
		}
	}
}

func TestDoExhausts(t *testing.T) {
	calls := 0
	var delays []time.Duration
	var retried []int
	boom := errors.New("boom")

	_, err := Do(context.Background(), Policy{MaxAttempts: 3, Delay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, boom
	}, noSleep(&delays), WithOnRetry(func(attempt int, _ error) {
		retried = append(retried, attempt)
	}))

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2)
	assert.Equal(t, []int{1, 2}, retried)

	var exhausted *ExhaustedRetriesError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, boom)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, Policy{MaxAttempts: 5, Delay: time.Hour}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSleepWithContext(t *testing.T) {
	require.NoError(t, sleepWithContext(context.Background(), 0))
	require.NoError(t, sleepWithContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepWithContext(ctx, time.Hour), context.Canceled)
}
