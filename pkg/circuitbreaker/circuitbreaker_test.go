package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errDown = errors.New("store down")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func failing(context.Context) error { return errDown }
func passing(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []State
	cb := New("test",
		WithFailureThreshold(2),
		WithOnStateChange(func(_ string, _, to State) { transitions = append(transitions, to) }),
	)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, failing), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, failing), errDown)
	assert.True(t, cb.IsOpen())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
	assert.Equal(t, []State{StateOpen}, transitions)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithTimeout(10*time.Second),
		WithClock(clk.now),
	)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	assert.ErrorIs(t, cb.Execute(ctx, passing), ErrCircuitOpen)

	clk.advance(10 * time.Second)
	assert.NoError(t, cb.Execute(ctx, passing))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(clk.now))
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	clk.advance(time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, failing), errDown)
	assert.True(t, cb.IsOpen())
}

func TestBreaker_IsFailureFilter(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, context.Canceled) }),
	)
	_ = cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Counts().Requests)
}

func TestBreaker_ExecuteWithFallback(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), failing)

	err := cb.ExecuteWithFallback(context.Background(), passing, func(error) error { return nil })
	assert.NoError(t, err)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "test", cb.Name())
}
