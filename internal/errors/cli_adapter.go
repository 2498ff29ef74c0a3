package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Exit codes returned by the CLI.
const (
	ExitOK          = 0
	ExitConfig      = 1 // invalid arguments or configuration
	ExitBenign      = 2 // already running, or checkout missing
	ExitStageFailed = 3 // setup/install/build/deploy failure
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	if _, ok := AsStageFailure(err); ok {
		return ExitStageFailed
	}
	if ce, ok := AsClassified(err); ok {
		return a.exitCodeFromClassified(ce)
	}
	return ExitConfig
}

// exitCodeFromClassified maps ClassifiedError to exit codes.
func (a *CLIErrorAdapter) exitCodeFromClassified(err *ClassifiedError) int {
	switch err.Category {
	case CategoryConcurrency, CategoryEnvironment:
		return ExitBenign
	default:
		return ExitConfig
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	if sf, ok := AsStageFailure(err); ok {
		if a.verbose || sf.Output == "" {
			return sf.Error()
		}
		return fmt.Sprintf("%s\n%s", sf.Error(), sf.Output)
	}
	if ce, ok := AsClassified(err); ok {
		return a.formatClassified(ce)
	}
	return fmt.Sprintf("Error: %v", err)
}

// formatClassified formats a ClassifiedError for display.
func (a *CLIErrorAdapter) formatClassified(err *ClassifiedError) string {
	if a.verbose {
		return err.Error()
	}
	switch err.Category {
	case CategoryConfig:
		if field, ok := err.Context["field"]; ok {
			return fmt.Sprintf("%s: %v", err.Message, field)
		}
		if path, ok := err.Context["path"]; ok {
			return fmt.Sprintf("%s: %v", err.Message, path)
		}
		if kind, ok := err.Context["builder"]; ok {
			return fmt.Sprintf("%s: %v", err.Message, kind)
		}
		return err.Message
	case CategoryConcurrency, CategoryEnvironment:
		return err.Message + ", exiting"
	default:
		return fmt.Sprintf("%s: %s", err.Category, err.Message)
	}
}

// WithOutput sets where user-facing messages are printed (default: stderr).
func (a *CLIErrorAdapter) WithOutput(w io.Writer) *CLIErrorAdapter {
	a.out = w
	return a
}

// Report logs and prints err and returns the exit code for it.
func (a *CLIErrorAdapter) Report(err error) int {
	if err == nil {
		return ExitOK
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	if a.shouldPrint(err) {
		_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	}
	return a.ExitCodeFor(err)
}

// shouldPrint keeps the routine "already running" case quiet unless verbose,
// so a periodic timer does not fill mailboxes.
func (a *CLIErrorAdapter) shouldPrint(err error) bool {
	if a.verbose {
		return true
	}
	return !IsCategory(err, CategoryConcurrency)
}

// shouldLog determines if an error should be logged.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if _, ok := AsStageFailure(err); ok {
		return true
	}
	if ce, ok := AsClassified(err); ok {
		return ce.Category == CategoryInternal ||
			ce.Category == CategoryFileSystem
	}
	return true
}

// logError logs an error with appropriate level and context.
func (a *CLIErrorAdapter) logError(err error) {
	if sf, ok := AsStageFailure(err); ok {
		a.logger.LogAttrs(context.Background(), slog.LevelError, "Stage failed",
			slog.String("stage", string(sf.Stage)))
		return
	}
	if ce, ok := AsClassified(err); ok {
		attrs := []slog.Attr{
			slog.String("category", string(ce.Category)),
		}
		for k, v := range ce.Context {
			attrs = append(attrs, slog.Any(k, v))
		}
		if ce.Cause != nil {
			attrs = append(attrs, slog.String("error", ce.Cause.Error()))
		}
		a.logger.LogAttrs(context.Background(), a.slogLevelFromSeverity(ce.Severity), ce.Message, attrs...)
		return
	}

	a.logger.Error("Unclassified error", "error", err)
}

// slogLevelFromSeverity converts error severity to slog level.
func (a *CLIErrorAdapter) slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityBenign:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
