package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/logger"
)

func newRedisBus(t *testing.T, mr *miniredis.Miniredis, instance string) *RedisEventBus {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus := NewRedisEventBus(client, syncBus(), RedisEventBusConfig{InstanceID: instance, Logger: logger.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestRedisEventBus_ForwardsToOtherInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	worker := newRedisBus(t, mr, "worker")
	api := newRedisBus(t, mr, "api")

	remote := make(chan shared.Event, 4)
	require.NoError(t, api.Subscribe(shared.EventDirectoryRefreshed, func(e shared.Event) error {
		remote <- e
		return nil
	}))

	var local []shared.Event
	require.NoError(t, worker.SubscribeAll(func(e shared.Event) error {
		local = append(local, e)
		return nil
	}))

	event := shared.NewDirectoryRefreshedEvent("abc", 3, "source")
	require.NoError(t, worker.Publish(event))

	select {
	case got := <-remote:
		re, ok := got.(RemoteEvent)
		require.True(t, ok)
		assert.Equal(t, event.EventID(), re.EventID())
		assert.Equal(t, "worker", re.Origin())
		assert.Equal(t, "abc", re.Payload()["fingerprint"])

		var decoded shared.DirectoryRefreshedEvent
		require.NoError(t, re.DecodeBody(&decoded))
		assert.Equal(t, 3, decoded.MemberCount)
	case <-time.After(2 * time.Second):
		t.Fatal("remote event not delivered")
	}

	// собственное сообщение из Redis не дублируется
	time.Sleep(50 * time.Millisecond)
	require.Len(t, local, 1)
	_, isRemote := local[0].(RemoteEvent)
	assert.False(t, isRemote)
}

func TestRedisEventBus_StartTwice(t *testing.T) {
	mr := miniredis.RunT(t)
	bus := newRedisBus(t, mr, "one")
	assert.ErrorIs(t, bus.Start(context.Background()), ErrAlreadyStarted)
}

func TestRedisEventBus_PublishFailsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	local := syncBus()
	var delivered bool
	require.NoError(t, local.SubscribeAll(func(shared.Event) error {
		delivered = true
		return nil
	}))
	bus := NewRedisEventBus(client, local, RedisEventBusConfig{Logger: logger.Nop(), PublishTimeout: 200 * time.Millisecond})
	assert.NotEmpty(t, bus.InstanceID())

	mr.Close()
	err := bus.Publish(shared.NewProgressPublishedEvent(1, nil))
	assert.Error(t, err)
	assert.True(t, delivered)
}

func TestRemoteEvent_EmptyBody(t *testing.T) {
	var e RemoteEvent
	assert.ErrorIs(t, e.DecodeBody(&struct{}{}), ErrEmptyBody)
}
