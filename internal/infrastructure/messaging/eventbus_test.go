package messaging

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/logger"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{Logger: logger.Nop()})
}

func TestInMemoryEventBus_DeliversByType(t *testing.T) {
	bus := syncBus()
	var published, all int

	require.NoError(t, bus.Subscribe(shared.EventProgressPublished, func(shared.Event) error {
		published++
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		all++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewProgressPublishedEvent(1, nil)))
	require.NoError(t, bus.Publish(shared.NewDirectoryRefreshedEvent("fp", 2, "source")))

	assert.Equal(t, 1, published)
	assert.Equal(t, 2, all)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.HandlerExecutions)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := syncBus()
	var reached bool

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("nope") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		reached = true
		return nil
	}))

	assert.NoError(t, bus.Publish(shared.NewProgressFailedEvent(1, []string{"p"}, "offline")))
	assert.True(t, reached)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryEventBus_AsyncCloseWaitsForHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: logger.Nop()})
	var handled atomic.Int32

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(10 * time.Millisecond)
		handled.Add(1)
		return nil
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewProgressPublishedEvent(uint64(i), nil)))
	}

	require.NoError(t, bus.Close())
	assert.Equal(t, int32(5), handled.Load())
	assert.ErrorIs(t, bus.Publish(shared.NewProgressPublishedEvent(9, nil)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventProgressPublished, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := syncBus()
	assert.ErrorIs(t, bus.Subscribe(shared.EventProgressPublished, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}
