package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDo_SucceedsOnThirdAttempt(t *testing.T) {
	var delays []time.Duration
	cfg := DefaultConfig()
	cfg.Sleep = recordingSleep(&delays)

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	var delays []time.Duration
	cfg := DefaultConfig()
	cfg.Sleep = recordingSleep(&delays)

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return errors.New("persistent")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
	// No sleep after the final attempt.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sleep = func(context.Context, time.Duration) error {
		t.Fatal("should not sleep for a non-retryable error")
		return nil
	}

	attempts := 0
	base := errors.New("fatal")
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return NonRetryable(base)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, base)
	assert.True(t, IsNonRetryable(err))
}

func TestDo_MaxDelayCaps(t *testing.T) {
	var delays []time.Duration
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: time.Second,
		MaxDelay:     1500 * time.Millisecond,
		Multiplier:   2.0,
		Sleep:        recordingSleep(&delays),
	}

	_ = Do(context.Background(), cfg, func() error { return errors.New("x") })
	assert.Equal(t, []time.Duration{time.Second, 1500 * time.Millisecond, 1500 * time.Millisecond}, delays)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.Sleep = func(context.Context, time.Duration) error {
		return nil
	}

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		cancel()
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sleep = func(context.Context, time.Duration) error { return nil }

	attempts := 0
	got, err := DoWithResult(context.Background(), cfg, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("not yet")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, attempts)
}
