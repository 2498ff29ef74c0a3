package eventstore

// Sentinel errors for event store operations, matched with errors.Is.

import (
	"github.com/mscherer/site-builder/internal/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.New(errors.CategoryFileSystem, errors.SeverityWarning, "could not open run history database")

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.New(errors.CategoryFileSystem, errors.SeverityWarning, "failed to initialize run history schema")

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = errors.New(errors.CategoryFileSystem, errors.SeverityWarning, "failed to append event to run history")

	// ErrEventQueryFailed indicates querying events failed.
	ErrEventQueryFailed = errors.New(errors.CategoryFileSystem, errors.SeverityWarning, "failed to query run history")

	// ErrMarshalPayloadFailed indicates JSON marshaling of event payload failed.
	ErrMarshalPayloadFailed = errors.New(errors.CategoryInternal, errors.SeverityWarning, "failed to marshal event payload")
)
