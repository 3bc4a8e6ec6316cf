package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planboard/planboard-core/internal/domain/project"
	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeTaskSource struct {
	mu      sync.Mutex
	tasks   map[string][]project.Task
	errs    map[string]error
	gates   map[string]chan struct{}
	started map[string]chan struct{}
	calls   map[string]int
}

func newFakeTaskSource() *fakeTaskSource {
	return &fakeTaskSource{
		tasks:   map[string][]project.Task{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		started: map[string]chan struct{}{},
		calls:   map[string]int{},
	}
}

func (f *fakeTaskSource) with(projectID string, statuses ...project.Status) *fakeTaskSource {
	tasks := make([]project.Task, 0, len(statuses))
	for _, s := range statuses {
		tasks = append(tasks, project.Task{ProjectID: projectID, Status: s})
	}
	f.tasks[projectID] = tasks
	return f
}

func (f *fakeTaskSource) failing(projectID string, err error) *fakeTaskSource {
	f.errs[projectID] = err
	return f
}

// block holds TasksByProject for projectID until the returned func is called.
func (f *fakeTaskSource) block(projectID string) (started <-chan struct{}, release func()) {
	gate := make(chan struct{})
	start := make(chan struct{})
	f.gates[projectID] = gate
	f.started[projectID] = start
	return start, func() { close(gate) }
}

func (f *fakeTaskSource) TasksByProject(ctx context.Context, projectID string) ([]project.Task, error) {
	f.mu.Lock()
	f.calls[projectID]++
	gate := f.gates[projectID]
	start := f.started[projectID]
	f.mu.Unlock()

	if gate != nil {
		close(start)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[projectID]; err != nil {
		return nil, err
	}
	return f.tasks[projectID], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.Event(nil), p.events...)
}

func newAggregator(source project.TaskSource, publisher shared.EventPublisher) *ProgressAggregator {
	return NewProgressAggregator(source, publisher, logger.Nop(), AggregatorConfig{Concurrency: 4})
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestComputeAll_ProgressMath(t *testing.T) {
	source := newFakeTaskSource().
		with("p", project.StatusCompleted, project.StatusTodo, project.StatusInProgress, project.StatusReview).
		with("empty")
	agg := newAggregator(source, nil)

	result, err := agg.ComputeAll(context.Background(), []string{"p", "empty"})
	require.NoError(t, err)
	assert.False(t, result.Superseded)

	assert.Equal(t, project.Progress{ProjectID: "p", TotalTasks: 4, CompletedTasks: 1, Percentage: 25}, result.Get("p"))
	assert.Equal(t, project.Progress{ProjectID: "empty"}, result.Get("empty"))
	assert.True(t, result.Has("empty"))
}

func TestComputeAll_Idempotent(t *testing.T) {
	source := newFakeTaskSource().
		with("a", project.StatusCompleted, project.StatusCompleted).
		with("b", project.StatusTodo)
	agg := newAggregator(source, nil)
	ctx := context.Background()

	first, err := agg.ComputeAll(ctx, []string{"a", "b"})
	require.NoError(t, err)
	second, err := agg.ComputeAll(ctx, []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, first.Progress, second.Progress)
	assert.Equal(t, second.Progress, agg.Current().Progress)
	assert.Greater(t, second.Token, first.Token)
}

func TestComputeAll_StaleResultDiscarded(t *testing.T) {
	source := newFakeTaskSource().
		with("a", project.StatusCompleted).
		with("b", project.StatusTodo).
		with("c", project.StatusCompleted, project.StatusTodo)
	started, release := source.block("a")
	pub := &recordingPublisher{}
	agg := newAggregator(source, pub)
	ctx := context.Background()

	type outcome struct {
		agg Aggregate
		err error
	}
	firstDone := make(chan outcome, 1)
	go func() {
		res, err := agg.ComputeAll(ctx, []string{"a", "b"})
		firstDone <- outcome{res, err}
	}()
	<-started

	second, err := agg.ComputeAll(ctx, []string{"c"})
	require.NoError(t, err)
	require.False(t, second.Superseded)

	release()
	first := <-firstDone

	require.NoError(t, first.err)
	assert.True(t, first.agg.Superseded)
	assert.Nil(t, first.agg.Progress)

	current := agg.Current()
	assert.Equal(t, second.Token, current.Token)
	assert.Equal(t, map[string]project.Progress{
		"c": {ProjectID: "c", TotalTasks: 2, CompletedTasks: 1, Percentage: 50},
	}, current.Progress)
	assert.False(t, current.Has("a"))

	events := pub.Events()
	require.Len(t, events, 1)
	published, ok := events[0].(shared.ProgressPublishedEvent)
	require.True(t, ok)
	assert.Equal(t, second.Token, published.Token)
}

func TestComputeAll_EmptySetStillFollowsTokenOrder(t *testing.T) {
	source := newFakeTaskSource().with("a", project.StatusTodo)
	started, release := source.block("a")
	agg := newAggregator(source, nil)
	ctx := context.Background()

	done := make(chan Aggregate, 1)
	go func() {
		res, _ := agg.ComputeAll(ctx, []string{"a"})
		done <- res
	}()
	<-started

	empty, err := agg.ComputeAll(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Progress)
	assert.False(t, empty.Superseded)

	release()
	assert.True(t, (<-done).Superseded)
	assert.Empty(t, agg.Current().Progress)
	assert.Equal(t, empty.Token, agg.Current().Token)
}

func TestComputeAll_PartialFailureOmitsProject(t *testing.T) {
	source := newFakeTaskSource().
		with("ok", project.StatusCompleted).
		failing("broken", errors.New("document not readable"))
	agg := newAggregator(source, nil)

	result, err := agg.ComputeAll(context.Background(), []string{"ok", "broken"})
	require.NoError(t, err)
	assert.True(t, result.Has("ok"))
	assert.False(t, result.Has("broken"))
	assert.Equal(t, []string{"broken"}, result.Failed)
	assert.Equal(t, project.Progress{ProjectID: "broken"}, result.Get("broken"))
}

func TestComputeAll_BatchFailureKeepsPreviousAggregate(t *testing.T) {
	source := newFakeTaskSource().with("a", project.StatusCompleted)
	pub := &recordingPublisher{}
	agg := newAggregator(source, pub)
	ctx := context.Background()

	previous, err := agg.ComputeAll(ctx, []string{"a"})
	require.NoError(t, err)

	offline := errors.New("offline")
	source.failing("a", offline).failing("b", offline)

	result, err := agg.ComputeAll(ctx, []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.ErrorIs(t, err, offline)
	assert.True(t, shared.IsRetryable(err))
	assert.Empty(t, result.Progress)
	assert.Equal(t, []string{"a", "b"}, result.Failed)

	assert.Equal(t, previous.Token, agg.Current().Token)
	assert.Equal(t, previous.Progress, agg.Current().Progress)

	events := pub.Events()
	require.Len(t, events, 2)
	assert.Equal(t, shared.EventProgressFailed, events[1].EventType())
}

func TestComputeAll_DeadlineMapsToTimeout(t *testing.T) {
	source := newFakeTaskSource().with("a")
	_, release := source.block("a")
	defer release()
	agg := newAggregator(source, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := agg.ComputeAll(ctx, []string{"a"})
	assert.ErrorIs(t, err, shared.ErrTimeout)
	assert.True(t, shared.IsRetryable(err))
}

func TestComputeAll_CancelIsNotAFailure(t *testing.T) {
	source := newFakeTaskSource().with("a", project.StatusCompleted).with("b")
	started, release := source.block("b")
	defer release()
	pub := &recordingPublisher{}
	agg := newAggregator(source, pub)

	previous, err := agg.ComputeAll(context.Background(), []string{"a"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	result, err := agg.ComputeAll(ctx, []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrCanceled)
	assert.True(t, shared.IsCanceled(err))
	assert.False(t, shared.IsRetryable(err))
	assert.False(t, result.Superseded)
	assert.Empty(t, result.Progress)

	assert.Equal(t, previous.Token, agg.Current().Token)
	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, shared.EventProgressPublished, events[0].EventType())
}

func TestComputeAll_DeduplicatesIDs(t *testing.T) {
	source := newFakeTaskSource().with("a", project.StatusTodo)
	agg := newAggregator(source, nil)

	result, err := agg.ComputeAll(context.Background(), []string{"a", "", "a"})
	require.NoError(t, err)
	assert.Len(t, result.Progress, 1)
	assert.Equal(t, 1, source.calls["a"])
}

func TestComputeAll_ConcurrentCallsLastIssuedWins(t *testing.T) {
	source := newFakeTaskSource()
	ids := make([]string, 0, 16)
	for i := 0; i < 16; i++ {
		id := string(rune('a' + i))
		source.with(id, project.StatusCompleted)
		ids = append(ids, id)
	}
	agg := newAggregator(source, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = agg.ComputeAll(context.Background(), ids[i:i+1])
		}()
	}
	wg.Wait()

	final, err := agg.ComputeAll(context.Background(), ids[:2])
	require.NoError(t, err)
	assert.Equal(t, final.Token, agg.LatestToken())
	assert.Equal(t, final.Progress, agg.Current().Progress)
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	source := newFakeTaskSource().with("a", project.StatusTodo)
	agg := newAggregator(source, nil)
	_, err := agg.ComputeAll(context.Background(), []string{"a"})
	require.NoError(t, err)

	snapshot := agg.Current()
	delete(snapshot.Progress, "a")
	assert.True(t, agg.Current().Has("a"))
	assert.True(t, NewProgressAggregator(source, nil, nil, AggregatorConfig{}).Current().IsZero())
}
