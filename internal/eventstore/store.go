package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, event Event) error

	// GetByRunID retrieves all events for a specific run.
	GetByRunID(ctx context.Context, runID string) ([]Event, error)

	// GetRange retrieves events of project (all projects when empty) within a time range.
	GetRange(ctx context.Context, project string, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}

// Sink receives the events of a running cycle. Implementations are best-effort
// observers: their errors are logged by the caller and never fail a cycle.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}
