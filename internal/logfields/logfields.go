package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyProject    = "project"
	KeyBuilder    = "builder"
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyCommit     = "commit"
	KeySubmodule  = "submodule"
	KeyPath       = "path"
	KeyRemote     = "remote"
	KeyReason     = "reason"
	KeyOutcome    = "outcome"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Project(name string) slog.Attr   { return slog.String(KeyProject, name) }
func Builder(kind string) slog.Attr   { return slog.String(KeyBuilder, kind) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Submodule(p string) slog.Attr    { return slog.String(KeySubmodule, p) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Remote(r string) slog.Attr       { return slog.String(KeyRemote, r) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Commit logs the abbreviated hash.
func Commit(hash string) slog.Attr {
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return slog.String(KeyCommit, hash)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
