package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fast(opts ...Option) *Retrier {
	base := []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}
	return New(append(base, opts...)...)
}

func TestDo_RetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(3)).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsUnwrappedErrorAfterLastAttempt(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(2)).Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errFlaky)
	})
	assert.Equal(t, 2, calls)
	assert.Same(t, errFlaky, err)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := fast(WithRetryIf(func(error) bool { return true })).Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	})
	assert.Equal(t, 1, calls)
	assert.Same(t, errFlaky, err)
}

func TestDo_PlainErrorNotRetriedByDefault(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDo_OnRetryAndRetryIf(t *testing.T) {
	var attempts []int
	r := fast(
		WithMaxAttempts(3),
		WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) }),
		WithOnRetry(func(attempt int, _ error, _ time.Duration) { attempts = append(attempts, attempt) }),
	)
	_ = r.Do(context.Background(), func(context.Context) error { return errFlaky })
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fast().Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.Equal(t, 0, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	got, err := DoWithData(context.Background(), fast(), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errFlaky)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestDelay_CappedAndGrowing(t *testing.T) {
	r := New(WithInitialDelay(10*time.Millisecond), WithMaxDelay(25*time.Millisecond), WithJitter(0))
	assert.Equal(t, 10*time.Millisecond, r.delay(1))
	assert.Equal(t, 20*time.Millisecond, r.delay(2))
	assert.Equal(t, 25*time.Millisecond, r.delay(3))
}
