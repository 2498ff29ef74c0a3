package eventstore

import "time"

// Event represents a domain event of a build-deploy cycle.
type Event interface {
	// ID returns the unique identifier assigned by the store (0 before storage).
	ID() int64
	// RunID returns the cycle identifier this event belongs to.
	RunID() string
	// Project returns the site project name.
	Project() string
	// Type returns the event type name.
	Type() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
	// Payload returns the event data as JSON.
	Payload() []byte
	// Metadata returns optional event metadata.
	Metadata() map[string]string
}

// BaseEvent provides a default implementation of Event.
type BaseEvent struct {
	EventID        int64             `json:"-"`
	EventRunID     string            `json:"-"`
	EventProject   string            `json:"-"`
	EventType      string            `json:"-"`
	EventTimestamp time.Time         `json:"-"`
	EventPayload   []byte            `json:"-"`
	EventMetadata  map[string]string `json:"-"`
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) RunID() string               { return e.EventRunID }
func (e *BaseEvent) Project() string             { return e.EventProject }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }
