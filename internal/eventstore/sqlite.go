package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based event store.
// Use ":memory:" for in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseOpenFailed, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("%w: %w", ErrInitializeSchemaFailed, err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		project TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_run_id ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_project_timestamp ON events(project, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a new event to the store.
func (s *SQLiteStore) Append(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if md := event.Metadata(); md != nil {
		var err error
		metadataJSON, err = json.Marshal(md)
		if err != nil {
			return fmt.Errorf("%w: metadata: %w", ErrMarshalPayloadFailed, err)
		}
	}

	ts := event.Timestamp()
	if ts.IsZero() {
		ts = time.Now()
	}
	payload := event.Payload()
	if payload == nil {
		payload = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (run_id, project, event_type, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?, ?)",
		event.RunID(), event.Project(), event.Type(), ts.UnixMilli(), payload, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEventAppendFailed, err)
	}

	return nil
}

// Emit implements Sink.
func (s *SQLiteStore) Emit(ctx context.Context, event Event) error { return s.Append(ctx, event) }

// GetByRunID retrieves all events for a specific run.
func (s *SQLiteStore) GetByRunID(ctx context.Context, runID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, project, event_type, timestamp, payload, metadata FROM events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEventQueryFailed, err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// GetRange retrieves events within a time range.
func (s *SQLiteStore) GetRange(ctx context.Context, project string, start, end time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, project, event_type, timestamp, payload, metadata FROM events "+
			"WHERE timestamp >= ? AND timestamp <= ? AND (? = '' OR project = ?) ORDER BY id",
		start.UnixMilli(), end.UnixMilli(), project, project,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEventQueryFailed, err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *SQLiteStore) scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e BaseEvent
		var timestampMillis int64
		var metadataJSON []byte

		err := rows.Scan(&e.EventID, &e.EventRunID, &e.EventProject, &e.EventType, &timestampMillis, &e.EventPayload, &metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e.EventTimestamp = time.UnixMilli(timestampMillis)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.EventMetadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
