// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the logger settings.
type Config struct {
	Verbose    bool
	FilePath   string // optional rotated copy of the log
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup builds a text logger writing to w and, when cfg.FilePath is set, to a
// rotated log file. The returned closer releases the file.
func Setup(cfg Config, w io.Writer) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	var closer io.Closer = nopCloser{}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(w, fileWriter)
		closer = fileWriter
	}

	handler := NewContextHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
