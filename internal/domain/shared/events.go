// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Progress events
	EventProgressUpdated      EventType = "progress.updated"
	EventProgressBatchApplied EventType = "progress.batch_applied"
	EventContentCompleted     EventType = "progress.content_completed"
	EventCourseCompleted      EventType = "progress.course_completed"

	// Sync engine events
	EventSyncStateChanged EventType = "sync.state_changed"
	EventSyncQueueFlushed EventType = "sync.queue_flushed"
	EventUpdateEnqueued   EventType = "sync.update_enqueued"
	EventUpdateDropped    EventType = "sync.update_dropped"
	EventRemotePulse      EventType = "sync.remote_pulse"

	// Profile events
	EventProfileRefreshed EventType = "profile.refreshed"
	EventProfileCreated   EventType = "profile.created"
	EventAvatarChanged    EventType = "profile.avatar_changed"

	// System events
	EventIntegritySweepDone EventType = "system.integrity_sweep_done"
)

// Event is the base interface for all domain events.
type Event interface {
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
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
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
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressUpdatedEvent is emitted when the local progress map is mutated.
type ProgressUpdatedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	ModuleID  string `json:"module_id"`
	TopicID   string `json:"topic_id"`
	Completed bool   `json:"completed"`
	Score     int    `json:"score"`
	Kind      string `json:"kind"` // "lesson" or "quiz"
}

// Payload implements Event interface.
func (e ProgressUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"module_id": e.ModuleID,
		"topic_id":  e.TopicID,
		"completed": e.Completed,
		"score":     e.Score,
		"kind":      e.Kind,
	}
}

// NewProgressUpdatedEvent creates a new ProgressUpdatedEvent.
func NewProgressUpdatedEvent(userID, moduleID, topicID string, completed bool, score int, kind string) ProgressUpdatedEvent {
	return ProgressUpdatedEvent{
		BaseEvent: NewBaseEvent(EventProgressUpdated, userID),
		UserID:    userID,
		ModuleID:  moduleID,
		TopicID:   topicID,
		Completed: completed,
		Score:     score,
		Kind:      kind,
	}
}

// ProgressBatchAppliedEvent is emitted after a batch of updates is applied
// locally. Items that failed validation are counted, not included.
type ProgressBatchAppliedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Applied  int    `json:"applied"`
	Rejected int    `json:"rejected"`
}

// Payload implements Event interface.
func (e ProgressBatchAppliedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"applied":  e.Applied,
		"rejected": e.Rejected,
	}
}

// NewProgressBatchAppliedEvent creates a new ProgressBatchAppliedEvent.
func NewProgressBatchAppliedEvent(userID string, applied, rejected int) ProgressBatchAppliedEvent {
	return ProgressBatchAppliedEvent{
		BaseEvent: NewBaseEvent(EventProgressBatchApplied, userID),
		UserID:    userID,
		Applied:   applied,
		Rejected:  rejected,
	}
}

// ContentCompletedEvent is emitted on an incomplete-to-complete transition.
// Re-completions of the same key do not emit this event again.
type ContentCompletedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	ModuleID string `json:"module_id"`
	TopicID  string `json:"topic_id"`
	Score    int    `json:"score"`
	Kind     string `json:"kind"`
}

// Payload implements Event interface.
func (e ContentCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"module_id": e.ModuleID,
		"topic_id":  e.TopicID,
		"score":     e.Score,
		"kind":      e.Kind,
	}
}

// NewContentCompletedEvent creates a new ContentCompletedEvent.
func NewContentCompletedEvent(userID, moduleID, topicID string, score int, kind string) ContentCompletedEvent {
	return ContentCompletedEvent{
		BaseEvent: NewBaseEvent(EventContentCompleted, userID),
		UserID:    userID,
		ModuleID:  moduleID,
		TopicID:   topicID,
		Score:     score,
		Kind:      kind,
	}
}

// CourseCompletedEvent is emitted when every item in the sequence is complete.
type CourseCompletedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	TotalContent int    `json:"total_content"`
	TotalScore   int    `json:"total_score"`
}

// Payload implements Event interface.
func (e CourseCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"total_content": e.TotalContent,
		"total_score":   e.TotalScore,
	}
}

// NewCourseCompletedEvent creates a new CourseCompletedEvent.
func NewCourseCompletedEvent(userID string, totalContent, totalScore int) CourseCompletedEvent {
	return CourseCompletedEvent{
		BaseEvent:    NewBaseEvent(EventCourseCompleted, userID),
		UserID:       userID,
		TotalContent: totalContent,
		TotalScore:   totalScore,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Sync Engine Events
// ═══════════════════════════════════════════════════════════════════════════

// SyncStateChangedEvent is emitted whenever the engine recomputes its status.
type SyncStateChangedEvent struct {
	BaseEvent
	UserID       string     `json:"user_id"`
	State        string     `json:"state"` // idle, syncing, offline, error_backoff
	IsOnline     bool       `json:"is_online"`
	PendingCount int        `json:"pending_count"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Payload implements Event interface.
func (e SyncStateChangedEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"user_id":       e.UserID,
		"state":         e.State,
		"is_online":     e.IsOnline,
		"pending_count": e.PendingCount,
		"last_error":    e.LastError,
	}
	if e.LastSyncTime != nil {
		p["last_sync_time"] = e.LastSyncTime.Format(time.RFC3339)
	}
	return p
}

// NewSyncStateChangedEvent creates a new SyncStateChangedEvent.
func NewSyncStateChangedEvent(userID, state string, isOnline bool, pendingCount int, lastSyncTime *time.Time, lastError string) SyncStateChangedEvent {
	return SyncStateChangedEvent{
		BaseEvent:    NewBaseEvent(EventSyncStateChanged, userID),
		UserID:       userID,
		State:        state,
		IsOnline:     isOnline,
		PendingCount: pendingCount,
		LastSyncTime: lastSyncTime,
		LastError:    lastError,
	}
}

// SyncQueueFlushedEvent is emitted after a drain cycle completes.
type SyncQueueFlushedEvent struct {
	BaseEvent
	UserID    string        `json:"user_id"`
	Synced    int           `json:"synced"`
	Failed    int           `json:"failed"`
	Dropped   int           `json:"dropped"`
	Remaining int           `json:"remaining"`
	Duration  time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e SyncQueueFlushedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"synced":    e.Synced,
		"failed":    e.Failed,
		"dropped":   e.Dropped,
		"remaining": e.Remaining,
		"duration":  e.Duration.String(),
	}
}

// NewSyncQueueFlushedEvent creates a new SyncQueueFlushedEvent.
func NewSyncQueueFlushedEvent(userID string, synced, failed, dropped, remaining int, duration time.Duration) SyncQueueFlushedEvent {
	return SyncQueueFlushedEvent{
		BaseEvent: NewBaseEvent(EventSyncQueueFlushed, userID),
		UserID:    userID,
		Synced:    synced,
		Failed:    failed,
		Dropped:   dropped,
		Remaining: remaining,
		Duration:  duration,
	}
}

// UpdateEnqueuedEvent is emitted when an update could not be written
// remotely and entered the durable pending queue instead.
type UpdateEnqueuedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	UpdateID     string `json:"update_id"`
	ModuleID     string `json:"module_id"`
	TopicID      string `json:"topic_id"`
	Priority     string `json:"priority"`
	PendingCount int    `json:"pending_count"`
}

// Payload implements Event interface.
func (e UpdateEnqueuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"update_id":     e.UpdateID,
		"module_id":     e.ModuleID,
		"topic_id":      e.TopicID,
		"priority":      e.Priority,
		"pending_count": e.PendingCount,
	}
}

// NewUpdateEnqueuedEvent creates a new UpdateEnqueuedEvent.
func NewUpdateEnqueuedEvent(userID, updateID, moduleID, topicID, priority string, pendingCount int) UpdateEnqueuedEvent {
	return UpdateEnqueuedEvent{
		BaseEvent:    NewBaseEvent(EventUpdateEnqueued, userID),
		UserID:       userID,
		UpdateID:     updateID,
		ModuleID:     moduleID,
		TopicID:      topicID,
		Priority:     priority,
		PendingCount: pendingCount,
	}
}

// UpdateDroppedEvent is emitted when a pending update breaches the retry
// ceiling and is permanently discarded. This is the documented data-loss
// edge case; consumers surface it as a warning, not a failure.
type UpdateDroppedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	UpdateID   string `json:"update_id"`
	ModuleID   string `json:"module_id"`
	TopicID    string `json:"topic_id"`
	RetryCount int    `json:"retry_count"`
	LastError  string `json:"last_error"`
}

// Payload implements Event interface.
func (e UpdateDroppedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"update_id":   e.UpdateID,
		"module_id":   e.ModuleID,
		"topic_id":    e.TopicID,
		"retry_count": e.RetryCount,
		"last_error":  e.LastError,
	}
}

// NewUpdateDroppedEvent creates a new UpdateDroppedEvent.
func NewUpdateDroppedEvent(userID, updateID, moduleID, topicID string, retryCount int, lastError string) UpdateDroppedEvent {
	return UpdateDroppedEvent{
		BaseEvent:  NewBaseEvent(EventUpdateDropped, userID),
		UserID:     userID,
		UpdateID:   updateID,
		ModuleID:   moduleID,
		TopicID:    topicID,
		RetryCount: retryCount,
		LastError:  lastError,
	}
}

// RemotePulseEvent is the cross-process convergence signal. An agent emits it
// after every enqueue and every successful sync; sibling agents for the same
// user react by forcing their own refresh and drain. Delivery is best-effort,
// at-least-once.
type RemotePulseEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	InstanceID string `json:"instance_id"`
	Reason     string `json:"reason"` // "enqueue" or "synced"
}

// Payload implements Event interface.
func (e RemotePulseEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"instance_id": e.InstanceID,
		"reason":      e.Reason,
	}
}

// NewRemotePulseEvent creates a new RemotePulseEvent.
func NewRemotePulseEvent(userID, instanceID, reason string) RemotePulseEvent {
	return RemotePulseEvent{
		BaseEvent:  NewBaseEvent(EventRemotePulse, userID),
		UserID:     userID,
		InstanceID: instanceID,
		Reason:     reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Profile Events
// ═══════════════════════════════════════════════════════════════════════════

// ProfileRefreshedEvent is emitted when the local snapshot is replaced with
// authoritative remote state.
type ProfileRefreshedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	ForceRemote bool   `json:"force_remote"`
	FromCache   bool   `json:"from_cache"`
}

// Payload implements Event interface.
func (e ProfileRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"force_remote": e.ForceRemote,
		"from_cache":   e.FromCache,
	}
}

// NewProfileRefreshedEvent creates a new ProfileRefreshedEvent.
func NewProfileRefreshedEvent(userID string, forceRemote, fromCache bool) ProfileRefreshedEvent {
	return ProfileRefreshedEvent{
		BaseEvent:   NewBaseEvent(EventProfileRefreshed, userID),
		UserID:      userID,
		ForceRemote: forceRemote,
		FromCache:   fromCache,
	}
}

// ProfileCreatedEvent is emitted when the server stores a first-time profile.
type ProfileCreatedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// Payload implements Event interface.
func (e ProfileCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"email":   e.Email,
		"avatar":  e.Avatar,
	}
}

// NewProfileCreatedEvent creates a new ProfileCreatedEvent.
func NewProfileCreatedEvent(userID, email, avatar string) ProfileCreatedEvent {
	return ProfileCreatedEvent{
		BaseEvent: NewBaseEvent(EventProfileCreated, userID),
		UserID:    userID,
		Email:     email,
		Avatar:    avatar,
	}
}

// AvatarChangedEvent is emitted after the remote store confirms a new avatar.
type AvatarChangedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Avatar string `json:"avatar"`
}

// Payload implements Event interface.
func (e AvatarChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"avatar":  e.Avatar,
	}
}

// NewAvatarChangedEvent creates a new AvatarChangedEvent.
func NewAvatarChangedEvent(userID, avatar string) AvatarChangedEvent {
	return AvatarChangedEvent{
		BaseEvent: NewBaseEvent(EventAvatarChanged, userID),
		UserID:    userID,
		Avatar:    avatar,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// IntegritySweepDoneEvent is emitted after the server recomputes stored
// aggregates from the raw progress maps.
type IntegritySweepDoneEvent struct {
	BaseEvent
	Scanned  int           `json:"scanned"`
	Drifted  int           `json:"drifted"`
	Repaired int           `json:"repaired"`
	Duration time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e IntegritySweepDoneEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"scanned":  e.Scanned,
		"drifted":  e.Drifted,
		"repaired": e.Repaired,
		"duration": e.Duration.String(),
	}
}

// NewIntegritySweepDoneEvent creates a new IntegritySweepDoneEvent.
func NewIntegritySweepDoneEvent(scanned, drifted, repaired int, duration time.Duration) IntegritySweepDoneEvent {
	return IntegritySweepDoneEvent{
		BaseEvent: NewBaseEvent(EventIntegritySweepDone, "system"),
		Scanned:   scanned,
		Drifted:   drifted,
		Repaired:  repaired,
		Duration:  duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage. InstanceID names
// the process that published the event so subscribers can skip their
// own publications when the transport echoes them back.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	InstanceID    string          `json:"instance_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
