package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/planboard/planboard-core/internal/domain/member"
	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/circuitbreaker"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type staticDirectory struct{ dir *member.Directory }

func (s staticDirectory) Snapshot() *member.Directory { return s.dir }

type staticBreaker circuitbreaker.State

func (s staticBreaker) BreakerState() circuitbreaker.State { return circuitbreaker.State(s) }

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("v1").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "v1", status.Version)
}

func TestCompositeHealthChecker_ReportsFailures(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("postgres", PingCheck(pingFunc(func(context.Context) error { return nil })))
	c.AddCheck("redis", PingCheck(pingFunc(func(context.Context) error { return errors.New("connection refused") })))

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.True(t, status.Checks["postgres"].Healthy)
	assert.False(t, status.Checks["redis"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	assert.Contains(t, status.Message, "redis")
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.SetTimeout(10 * time.Millisecond)
	c.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks["slow"].Message, "deadline")
}

func TestDirectoryCheck(t *testing.T) {
	empty := DirectoryCheck(staticDirectory{dir: member.NewDirectory(nil)})
	assert.ErrorIs(t, empty(context.Background()), shared.ErrDirectoryNotReady)

	loaded := DirectoryCheck(staticDirectory{dir: member.NewDirectory([]member.Member{{ID: "u1", Name: "Ann"}})})
	assert.NoError(t, loaded(context.Background()))
}

func TestBreakerCheck(t *testing.T) {
	assert.NoError(t, BreakerCheck(staticBreaker(circuitbreaker.StateClosed))(context.Background()))
	assert.True(t, shared.IsRetryable(BreakerCheck(staticBreaker(circuitbreaker.StateOpen))(context.Background())))
}
