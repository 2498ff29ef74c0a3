package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mscherer/site-builder/internal/logfields"
)

const defaultDebounce = 2 * time.Second

// ConfigWatcher monitors the configuration file and triggers debounced reloads.
type ConfigWatcher struct {
	configPath   string
	reload       func(context.Context) error
	watcher      *fsnotify.Watcher
	logger       *slog.Logger
	stopOnce     sync.Once
	stopChan     chan struct{}
	reloadChan   chan struct{}
	debounceTime time.Duration
}

// NewConfigWatcher creates a watcher calling reload after the file at
// configPath is written, created or renamed.
func NewConfigWatcher(configPath string, reload func(context.Context) error, logger *slog.Logger) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ConfigWatcher{
		configPath:   absPath,
		reload:       reload,
		watcher:      watcher,
		logger:       logger,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
		debounceTime: defaultDebounce,
	}, nil
}

// Start begins monitoring. The directory is watched rather than the file so
// editors that replace the file are followed.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}

	cw.logger.Info("Starting configuration watcher", logfields.Path(cw.configPath))

	go cw.watchLoop(ctx)
	go cw.reloadLoop(ctx)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		cw.logger.Info("Stopping configuration watcher")
		close(cw.stopChan)
		err = cw.watcher.Close()
	})
	return err
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}

			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				cw.logger.Debug("Config file change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				cw.triggerReload()
			case event.Has(fsnotify.Remove):
				cw.logger.Warn("Config file removed", logfields.Path(event.Name))
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", logfields.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reloadLoop(ctx context.Context) {
	var reloadTimer *time.Timer
	stopTimer := func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer()
			return
		case <-cw.stopChan:
			stopTimer()
			return
		case <-cw.reloadChan:
			stopTimer()
			reloadTimer = time.AfterFunc(cw.debounceTime, func() {
				if err := cw.reload(ctx); err != nil {
					cw.logger.Error("Failed to reload configuration", logfields.Error(err))
				}
			})
		}
	}
}

func (cw *ConfigWatcher) triggerReload() {
	select {
	case cw.reloadChan <- struct{}{}:
	default:
		// already pending
	}
}
