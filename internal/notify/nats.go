// Package notify publishes run events to NATS subscribers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mscherer/site-builder/internal/eventstore"
	"github.com/mscherer/site-builder/internal/logfields"
)

// RunEvent is the JSON message published for a cycle.
type RunEvent struct {
	RunID     string          `json:"run_id"`
	Project   string          `json:"project"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// publisher is the part of *nats.Conn used to deliver events.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// Notifier publishes StageFailed and Published events on a NATS subject.
type Notifier struct {
	conn    publisher
	subject string
	logger  *slog.Logger
}

// Connect opens a NATS connection to url and returns a Notifier publishing on subject.
func Connect(url, subject string, logger *slog.Logger) (*Notifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("site-builder"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n := newNotifier(conn, subject, logger)
	n.logger.Debug("NATS notifier initialized", "url", url, "subject", subject)
	return n, nil
}

func newNotifier(conn publisher, subject string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{conn: conn, subject: subject, logger: logger}
}

// Emit implements eventstore.Sink. Only failures and completed publishes are
// forwarded; other events are ignored.
func (n *Notifier) Emit(ctx context.Context, event eventstore.Event) error {
	switch event.Type() {
	case eventstore.TypeStageFailed, eventstore.TypePublished:
	default:
		return nil
	}

	data, err := json.Marshal(RunEvent{
		RunID:     event.RunID(),
		Project:   event.Project(),
		Type:      event.Type(),
		Timestamp: event.Timestamp(),
		Data:      json.RawMessage(event.Payload()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}

	n.logger.DebugContext(ctx, "Published run event",
		logfields.RunID(event.RunID()),
		logfields.Project(event.Project()),
		slog.String("type", event.Type()))
	return nil
}

// Close closes the NATS connection.
func (n *Notifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
