package persistence

import (
	"context"
	"time"

	"github.com/asaidimu/go-events"
)

// PersistenceEventType defines the event types emitted by the persistence
// layer.
type PersistenceEventType string

const (
	DocumentIngestStart     PersistenceEventType = "document:ingest:start"
	DocumentIngestSuccess   PersistenceEventType = "document:ingest:success"
	DocumentIngestFailed    PersistenceEventType = "document:ingest:failed"
	DocumentDeleteStart     PersistenceEventType = "document:delete:start"
	DocumentDeleteSuccess   PersistenceEventType = "document:delete:success"
	DocumentDeleteFailed    PersistenceEventType = "document:delete:failed"
	CollectionCreateStart   PersistenceEventType = "collection:create:start"
	CollectionCreateSuccess PersistenceEventType = "collection:create:success"
	CollectionCreateFailed  PersistenceEventType = "collection:create:failed"
	CollectionDeleteStart   PersistenceEventType = "collection:delete:start"
	CollectionDeleteSuccess PersistenceEventType = "collection:delete:success"
	CollectionDeleteFailed  PersistenceEventType = "collection:delete:failed"
	IndexRebuildStart       PersistenceEventType = "index:rebuild:start"
	IndexRebuildProgress    PersistenceEventType = "index:rebuild:progress"
	IndexRebuildSuccess     PersistenceEventType = "index:rebuild:success"
	IndexRebuildFailed      PersistenceEventType = "index:rebuild:failed"
	SubscriptionRegister    PersistenceEventType = "subscription:register"
	SubscriptionUnregister  PersistenceEventType = "subscription:unregister"
)

// PersistenceEvent is the payload delivered to event subscribers.
type PersistenceEvent struct {
	Type         PersistenceEventType `json:"type"`
	Timestamp    int64                `json:"timestamp"`
	Operation    string               `json:"operation"`
	CollectionID *string              `json:"collectionId,omitempty"`
	DocumentID   *string              `json:"documentId,omitempty"`
	Input        any                  `json:"input,omitempty"`
	Output       any                  `json:"output,omitempty"`
	Error        *string              `json:"error,omitempty"`
	Duration     *int64               `json:"duration,omitempty"`
}

// EventCallbackFunction receives one persistence event.
type EventCallbackFunction func(ctx context.Context, event PersistenceEvent) error

// RegisterSubscriptionOptions defines options for registering an event
// subscription.
type RegisterSubscriptionOptions struct {
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Callback    EventCallbackFunction
}

// SubscriptionInfo describes one active subscription.
type SubscriptionInfo struct {
	ID          *string              `json:"id,omitempty"`
	Event       PersistenceEventType `json:"event"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Unsubscribe func()               `json:"-"`
}

// emitter wraps the typed event bus with the start/success/failed pattern
// used around every mutating operation.
type emitter struct {
	bus *events.TypedEventBus[PersistenceEvent]
}

func (e *emitter) emit(event PersistenceEvent) {
	if e.bus != nil {
		e.bus.Emit(string(event.Type), event)
	}
}

func (e *emitter) operationEvent(eventType PersistenceEventType, operation string, collectionID, documentID *string, input, output any, err error, startTime time.Time) {
	event := PersistenceEvent{
		Type:         eventType,
		Timestamp:    time.Now().UnixMilli(),
		Operation:    operation,
		CollectionID: collectionID,
		DocumentID:   documentID,
		Input:        input,
		Output:       output,
	}
	if err != nil {
		msg := err.Error()
		event.Error = &msg
	}
	if !startTime.IsZero() {
		duration := time.Since(startTime).Milliseconds()
		event.Duration = &duration
	}
	e.emit(event)
}

// withEvents brackets an operation with start and success/failed events.
func (e *emitter) withEvents(operation string, start, success, failed PersistenceEventType, collectionID *string, input any, fn func() (any, *string, error)) (any, error) {
	startTime := time.Now()
	e.operationEvent(start, operation, collectionID, nil, input, nil, nil, time.Time{})

	result, documentID, err := fn()
	if err != nil {
		e.operationEvent(failed, operation, collectionID, documentID, input, nil, err, startTime)
		return nil, err
	}
	e.operationEvent(success, operation, collectionID, documentID, input, result, nil, startTime)
	return result, nil
}
