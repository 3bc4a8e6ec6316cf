package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS PUB/SUB BRIDGE
// ══════════════════════════════════════════════════════════════════════════════

// DefaultEventChannel is the Redis channel shared by all Planboard processes.
const DefaultEventChannel = "planboard:pubsub:events"

// envelope is the wire format of an event on the Redis channel.
type envelope struct {
	EventID     string                 `json:"event_id"`
	Type        shared.EventType       `json:"type"`
	AggregateID string                 `json:"aggregate_id"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Payload     map[string]interface{} `json:"payload"`
	Body        json.RawMessage        `json:"body,omitempty"`
	InstanceID  string                 `json:"instance_id"`
}

// RemoteEvent is an event received from another process.
type RemoteEvent struct {
	env envelope
}

// EventID implements shared.Event.
func (e RemoteEvent) EventID() string { return e.env.EventID }

// EventType implements shared.Event.
func (e RemoteEvent) EventType() shared.EventType { return e.env.Type }

// OccurredAt implements shared.Event.
func (e RemoteEvent) OccurredAt() time.Time { return e.env.OccurredAt }

// AggregateID implements shared.Event.
func (e RemoteEvent) AggregateID() string { return e.env.AggregateID }

// Payload implements shared.Event.
func (e RemoteEvent) Payload() map[string]interface{} { return e.env.Payload }

// Origin returns the instance ID of the publishing process.
func (e RemoteEvent) Origin() string { return e.env.InstanceID }

// DecodeBody decodes the full event body into dest.
func (e RemoteEvent) DecodeBody(dest any) error {
	if len(e.env.Body) == 0 {
		return ErrEmptyBody
	}
	return json.Unmarshal(e.env.Body, dest)
}

// RedisEventBusConfig configures RedisEventBus.
type RedisEventBusConfig struct {
	// Channel is the pub/sub channel name.
	Channel string

	// InstanceID identifies this process. Generated when empty.
	InstanceID string

	// PublishTimeout bounds a single PUBLISH.
	PublishTimeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// RedisEventBus delivers events to local subscribers and forwards them to
// other processes over Redis Pub/Sub. Events coming back from Redis are
// dispatched to local subscribers as RemoteEvent; the bus skips its own.
type RedisEventBus struct {
	client     *redis.Client
	local      *InMemoryEventBus
	channel    string
	instanceID string
	timeout    time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisEventBus creates a bridge on top of local.
func NewRedisEventBus(client *redis.Client, local *InMemoryEventBus, config RedisEventBusConfig) *RedisEventBus {
	if config.Channel == "" {
		config.Channel = DefaultEventChannel
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 2 * time.Second
	}
	return &RedisEventBus{
		client:     client,
		local:      local,
		channel:    config.Channel,
		instanceID: config.InstanceID,
		timeout:    config.PublishTimeout,
		logger: logger.OrDefault(config.Logger).With(
			logger.Component("redis_event_bus"),
			slog.String("instance_id", config.InstanceID),
		),
	}
}

// InstanceID returns the identifier stamped on outgoing events.
func (b *RedisEventBus) InstanceID() string {
	return b.instanceID
}

// Subscribe implements shared.EventSubscriber.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

// SubscribeAll implements shared.EventSubscriber.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// Publish dispatches locally, then forwards to Redis.
// A Redis failure is returned after local delivery already happened.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if err := b.local.Publish(event); err != nil {
		return err
	}

	data, err := b.encode(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s to redis: %w", event.EventType(), err)
	}
	return nil
}

func (b *RedisEventBus) encode(event shared.Event) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event body: %w", err)
	}
	return json.Marshal(envelope{
		EventID:     event.EventID(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
		Body:        body,
		InstanceID:  b.instanceID,
	})
}

// Start subscribes to the channel and waits for the confirmation.
// Messages are dispatched until ctx is cancelled or Close is called.
func (b *RedisEventBus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		return ErrAlreadyStarted
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	b.pubsub = pubsub
	b.done = make(chan struct{})
	go b.listen(ctx, pubsub.Channel(), b.done)

	b.logger.Info("subscribed to event channel", slog.String("channel", b.channel))
	return nil
}

func (b *RedisEventBus) listen(ctx context.Context, messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			b.dispatch(msg.Payload)
		}
	}
}

func (b *RedisEventBus) dispatch(raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.logger.Warn("dropping malformed event", logger.Err(err))
		return
	}
	if env.InstanceID == b.instanceID {
		return
	}
	if err := b.local.Publish(RemoteEvent{env: env}); err != nil && !errors.Is(err, ErrEventBusClosed) {
		b.logger.Error("dispatch remote event",
			slog.String("event_type", string(env.Type)),
			logger.Err(err),
		)
	}
}

// Close unsubscribes and waits for the listener to exit.
// The local bus is left to its owner.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("redis event bus already started")

	// ErrEmptyBody is returned by DecodeBody when the sender omitted the body.
	ErrEmptyBody = errors.New("remote event has no body")
)

var (
	_ shared.EventBus = (*InMemoryEventBus)(nil)
	_ shared.EventBus = (*RedisEventBus)(nil)
)
