package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Progress events
	EventProgressPublished EventType = "progress.published"
	EventProgressFailed    EventType = "progress.batch_failed"

	// Directory events
	EventDirectoryRefreshed EventType = "directory.refreshed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventID returns the unique identifier of the event.
	EventID() string

	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventID implements Event interface.
func (e BaseEvent) EventID() string {
	return e.ID
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressCounts is the event-level copy of one project's progress figures.
// Kept free of domain package imports so shared stays a leaf.
type ProgressCounts struct {
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	Percentage     int `json:"percentage"`
}

// ProgressPublishedEvent is emitted when an aggregation pass wins the token
// race and its map becomes the current aggregate.
type ProgressPublishedEvent struct {
	BaseEvent
	Token    uint64                    `json:"token"`
	Progress map[string]ProgressCounts `json:"progress"`
}

// Payload implements Event interface.
func (e ProgressPublishedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"token":    e.Token,
		"projects": len(e.Progress),
	}
}

// NewProgressPublishedEvent creates a new ProgressPublishedEvent.
func NewProgressPublishedEvent(token uint64, progress map[string]ProgressCounts) ProgressPublishedEvent {
	return ProgressPublishedEvent{
		BaseEvent: NewBaseEvent(EventProgressPublished, "progress"),
		Token:     token,
		Progress:  progress,
	}
}

// ProgressFailedEvent is emitted when every fetch of a batch failed.
type ProgressFailedEvent struct {
	BaseEvent
	Token      uint64   `json:"token"`
	ProjectIDs []string `json:"project_ids"`
	Reason     string   `json:"reason"`
}

// Payload implements Event interface.
func (e ProgressFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"token":    e.Token,
		"projects": len(e.ProjectIDs),
		"reason":   e.Reason,
	}
}

// NewProgressFailedEvent creates a new ProgressFailedEvent.
func NewProgressFailedEvent(token uint64, projectIDs []string, reason string) ProgressFailedEvent {
	return ProgressFailedEvent{
		BaseEvent:  NewBaseEvent(EventProgressFailed, "progress"),
		Token:      token,
		ProjectIDs: projectIDs,
		Reason:     reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Directory Events
// ═══════════════════════════════════════════════════════════════════════════

// DirectoryRefreshedEvent is emitted when the member roster changed.
type DirectoryRefreshedEvent struct {
	BaseEvent
	Fingerprint string `json:"fingerprint"`
	MemberCount int    `json:"member_count"`
	Source      string `json:"source"`
}

// Payload implements Event interface.
func (e DirectoryRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"fingerprint":  e.Fingerprint,
		"member_count": e.MemberCount,
		"source":       e.Source,
	}
}

// NewDirectoryRefreshedEvent creates a new DirectoryRefreshedEvent.
func NewDirectoryRefreshedEvent(fingerprint string, memberCount int, source string) DirectoryRefreshedEvent {
	return DirectoryRefreshedEvent{
		BaseEvent:   NewBaseEvent(EventDirectoryRefreshed, "directory"),
		Fingerprint: fingerprint,
		MemberCount: memberCount,
		Source:      source,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
