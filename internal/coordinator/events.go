package coordinator

import (
	"sync/atomic"
	"time"
)

// EventType identifies a coordinator lifecycle event.
type EventType string

const (
	EventTaskSubmitted    EventType = "task_submitted"
	EventTaskStarted      EventType = "task_started"
	EventTaskSucceeded    EventType = "task_succeeded"
	EventTaskFailed       EventType = "task_failed"
	EventTaskEscalated    EventType = "task_escalated"
	EventTaskCancelled    EventType = "task_cancelled"
	EventApprovalRequired EventType = "approval_required"
	EventApprovalResolved EventType = "approval_resolved"
)

// Event is a telemetry record of something the coordinator did.
type Event struct {
	Type    EventType `json:"type"`
	TaskID  string    `json:"task_id"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// EventEmitter broadcasts coordinator events to a single subscriber.
// Emission never blocks the coordinator: when the subscriber falls
// behind, events are dropped and counted.
type EventEmitter struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewEventEmitter creates an emitter with the given buffer size.
func NewEventEmitter(buffer int) *EventEmitter {
	if buffer <= 0 {
		buffer = 256
	}
	return &EventEmitter{ch: make(chan Event, buffer)}
}

// Emit publishes an event, dropping it if the buffer is full.
func (e *EventEmitter) Emit(eventType EventType, taskID, message string) {
	event := Event{
		Type:    eventType,
		TaskID:  taskID,
		Message: message,
		Time:    time.Now().UTC(),
	}
	select {
	case e.ch <- event:
	default:
		e.dropped.Add(1)
	}
}

// Events returns the subscription channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Dropped returns how many events were discarded because the
// subscriber fell behind.
func (e *EventEmitter) Dropped() uint64 {
	return e.dropped.Load()
}
