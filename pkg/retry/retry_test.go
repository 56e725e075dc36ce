package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(attempts int) *Retrier {
	return New(
		WithMaxAttempts(attempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
		WithJitter(0),
	)
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttemptsAndUnwraps(t *testing.T) {
	sentinel := errors.New("still failing")
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(sentinel)
	})
	assert.Equal(t, 3, calls)
	assert.Equal(t, sentinel, err, "the wrapper comes off after the last attempt")
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	sentinel := errors.New("bad request")
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(sentinel)
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, sentinel, err)
}

func TestDo_PlainErrorIsNotRetried(t *testing.T) {
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("unclassified")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIfOverridesClassification(t *testing.T) {
	sentinel := errors.New("conflict")
	calls := 0
	r := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
		WithRetryIf(func(err error) bool { return errors.Is(err, sentinel) }),
	)
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	})
	assert.Equal(t, 3, calls)
	assert.Equal(t, sentinel, err)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	r := New(
		WithMaxAttempts(10),
		WithInitialDelay(50*time.Millisecond),
		WithJitter(0),
	)
	err := r.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return Retryable(errors.New("transient"))
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "cancellation stops the backoff wait")
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	r := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
		WithOnRetry(func(attempt int, _ error, _ time.Duration) {
			attempts = append(attempts, attempt)
		}),
	)
	_ = r.Do(context.Background(), func(context.Context) error {
		return Retryable(errors.New("transient"))
	})
	assert.Equal(t, []int{1, 2}, attempts, "no callback after the final attempt")
}

func TestDoWithData(t *testing.T) {
	calls := 0
	got, err := DoWithData(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", Retryable(errors.New("transient"))
		}
		return "value", nil
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("base")

	assert.True(t, IsRetryable(Retryable(base)))
	assert.False(t, IsRetryable(base))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.False(t, IsPermanent(Retryable(base)))

	assert.ErrorIs(t, Retryable(base), base)
	assert.ErrorIs(t, Permanent(base), base)

	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))
}

func TestCalculateDelay_CapsAtMax(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(40*time.Millisecond),
		WithMultiplier(2.0),
		WithJitter(0),
	)
	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(3))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(6))
}
