package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"mcpscout/internal/infra/catalog"
	"mcpscout/internal/infra/telemetry"
)

const defaultReloadDebounce = 200 * time.Millisecond

// ConfigWatcher reports edits to the provider config file.
type ConfigWatcher struct {
	logger   *zap.Logger
	path     string
	debounce time.Duration
}

func NewConfigWatcher(path string, logger *zap.Logger) *ConfigWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigWatcher{
		logger:   logger.Named("config_watcher"),
		path:     catalog.ResolveConfigPath(path),
		debounce: defaultReloadDebounce,
	}
}

func (w *ConfigWatcher) Path() string {
	return w.path
}

// Run calls onChange once per burst of edits until ctx is cancelled.
// The parent directory is watched so that atomic saves are observed.
func (w *ConfigWatcher) Run(ctx context.Context, onChange func(context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			w.logger.Info("config changed",
				telemetry.EventField(telemetry.EventConfigReload),
				zap.String("path", w.path),
			)
			onChange(ctx)
		}
	}
}

func (w *ConfigWatcher) relevant(event fsnotify.Event) bool {
	if event.Name == "" || event.Op == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.path)
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
