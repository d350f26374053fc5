// internal/core/ports/notifier.go
package ports

import (
	"context"
	"time"
)

// Notifier is the port for lifecycle event notifications. It decouples the
// engine from notification mechanisms (Slack, webhooks, logs).
type Notifier interface {
	// Notify sends a notification for an event.
	Notify(ctx context.Context, event Event) error

	// Close releases notifier resources.
	Close() error
}

// Event is one orchestration lifecycle event.
type Event struct {
	Type      EventType
	Timestamp time.Time

	// JobID and Module locate the event. Module is empty for job-level
	// events.
	JobID  string
	Module string

	// Message is a human-readable summary.
	Message string

	// Data carries event-specific payload.
	Data interface{}
}

// EventType enumerates orchestration events.
type EventType string

const (
	EventTypeJobPlanned   EventType = "job.planned"
	EventTypeJobStarted   EventType = "job.started"
	EventTypeJobCompleted EventType = "job.completed"
	EventTypeJobFailed    EventType = "job.failed"
	EventTypeJobPartial   EventType = "job.partially_failed"
	EventTypeJobCanceled  EventType = "job.canceled"

	EventTypeModuleStarted   EventType = "module.started"
	EventTypeModuleStreaming EventType = "module.streaming"
	EventTypeModuleCompleted EventType = "module.completed"
	EventTypeModuleFailed    EventType = "module.failed"
)

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, jobID, module, message string) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		JobID:     jobID,
		Module:    module,
		Message:   message,
	}
}
