package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planboard/planboard-core/internal/domain/project"
	"github.com/planboard/planboard-core/pkg/logger"
)

func newSessions(source project.TaskSource, limits SessionConfig) (*Sessions, *time.Time) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessions(source, logger.Nop(), AggregatorConfig{Concurrency: 2}, limits)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestSessions_SameKeySharesAggregator(t *testing.T) {
	s, _ := newSessions(newFakeTaskSource(), SessionConfig{})

	assert.Same(t, s.For("a"), s.For("a"))
	assert.NotSame(t, s.For("a"), s.For("b"))
	assert.Equal(t, 2, s.Len())
}

func TestSessions_EmptyKeyIsOneShot(t *testing.T) {
	s, _ := newSessions(newFakeTaskSource(), SessionConfig{})

	assert.NotSame(t, s.For(""), s.For(""))
	assert.Equal(t, 0, s.Len())
}

func TestSessions_TokensAreIndependent(t *testing.T) {
	source := newFakeTaskSource().with("p1", project.StatusCompleted)
	s, _ := newSessions(source, SessionConfig{})

	for i := 0; i < 3; i++ {
		_, err := s.For("a").ComputeAll(context.Background(), []string{"p1"})
		require.NoError(t, err)
	}
	agg, err := s.For("b").ComputeAll(context.Background(), []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), agg.Token)
	assert.Equal(t, uint64(3), s.For("a").Current().Token)
}

func TestSessions_ExpiredSessionsAreForgotten(t *testing.T) {
	s, clock := newSessions(newFakeTaskSource(), SessionConfig{TTL: time.Minute})

	first := s.For("a")
	*clock = clock.Add(2 * time.Minute)

	assert.NotSame(t, first, s.For("a"))
	assert.Equal(t, 1, s.Len())
}

func TestSessions_OldestEvictedWhenFull(t *testing.T) {
	s, clock := newSessions(newFakeTaskSource(), SessionConfig{MaxSessions: 2})

	a := s.For("a")
	*clock = clock.Add(time.Second)
	b := s.For("b")
	*clock = clock.Add(time.Second)
	s.For("c")

	assert.Equal(t, 2, s.Len())
	assert.Same(t, b, s.For("b"))
	assert.NotSame(t, a, s.For("a"))
}
