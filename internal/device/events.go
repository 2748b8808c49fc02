package device

import (
	"context"
	"time"
)

// EventType names a specification lifecycle change.
type EventType string

// Lifecycle events.
const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event describes one committed specification change.
type Event struct {
	Type          EventType      `json:"type"`
	Token         string         `json:"token"`
	Actor         string         `json:"actor"`
	Force         bool           `json:"force,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Specification *Specification `json:"specification"`
}

// EventPublisher receives lifecycle events after the store write has
// succeeded. Publish failures are logged and never fail the operation.
type EventPublisher interface {
	PublishSpecificationEvent(ctx context.Context, ev Event) error
}

type noopPublisher struct{}

func (noopPublisher) PublishSpecificationEvent(context.Context, Event) error { return nil }

// Operation names reported to observers.
const (
	OpCreate          = "create"
	OpGet             = "get"
	OpUpdate          = "update"
	OpDelete          = "delete"
	OpList            = "list"
	OpAllocateCommand = "allocate_command_id"
	OpCreateCommand   = "create_command"
	OpListCommands    = "list_commands"
)

// Observer is told about every repository operation once it completes.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(op string, err error, elapsed time.Duration)

// ObserveOperation calls f.
func (f ObserverFunc) ObserveOperation(op string, err error, elapsed time.Duration) {
	f(op, err, elapsed)
}

// Observers fans one observation out to several observers.
type Observers []Observer

// ObserveOperation forwards to every observer in order.
func (o Observers) ObserveOperation(op string, err error, elapsed time.Duration) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveOperation(op, err, elapsed)
		}
	}
}
