package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chessoracle/chessoracle/pkg/logger"
)

// ReloadCallback is called when the configuration file changes
type ReloadCallback func(*Config, error)

// ReloadManager watches the configuration file and notifies callbacks
// after a debounce window, so editors that write in several steps
// trigger a single reload.
type ReloadManager struct {
	configPath     string
	logger         logger.Logger
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	mu             sync.Mutex
	ctx            context.Context
	cancel         context.CancelFunc
	watching       bool
}

// NewReloadManager creates a reload manager for the given config path
func NewReloadManager(configPath string, log logger.Logger) *ReloadManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &ReloadManager{
		configPath:     configPath,
		logger:         log,
		debouncePeriod: 500 * time.Millisecond,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// AddCallback registers a reload callback
func (rm *ReloadManager) AddCallback(cb ReloadCallback) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.callbacks = append(rm.callbacks, cb)
}

// StartWatching begins watching the configuration file
func (rm *ReloadManager) StartWatching() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.watching {
		return fmt.Errorf("already watching configuration file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	rm.watcher = watcher

	// Watch the directory: editors replace files rather than write
	// them in place
	if err := rm.watcher.Add(filepath.Dir(rm.configPath)); err != nil {
		rm.watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	rm.watching = true
	go rm.watchLoop(watcher)

	rm.logger.Debug("Started watching configuration file",
		logger.WithField("path", rm.configPath))
	return nil
}

// StopWatching stops watching the configuration file
func (rm *ReloadManager) StopWatching() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.watching {
		return nil
	}

	rm.cancel()
	if rm.debounceTimer != nil {
		rm.debounceTimer.Stop()
		rm.debounceTimer = nil
	}
	if rm.watcher != nil {
		if err := rm.watcher.Close(); err != nil {
			rm.logger.Warn("Error closing file watcher", logger.WithField("error", err))
		}
		rm.watcher = nil
	}
	rm.watching = false
	return nil
}

// TriggerReload manually reloads the configuration and fires callbacks
func (rm *ReloadManager) TriggerReload() {
	rm.reload()
}

// watchLoop owns its watcher handle: StopWatching nils the struct
// field under the mutex, so the goroutine must not read it.
func (rm *ReloadManager) watchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case <-rm.ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(rm.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			rm.debounce()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			rm.logger.Warn("Configuration watcher error",
				logger.WithField("error", err))
		}
	}
}

func (rm *ReloadManager) debounce() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.debounceTimer != nil {
		rm.debounceTimer.Stop()
	}
	rm.debounceTimer = time.AfterFunc(rm.debouncePeriod, rm.reload)
}

func (rm *ReloadManager) reload() {
	cfg, err := Load(rm.configPath)
	if err != nil {
		rm.logger.Warn("Configuration reload failed",
			logger.WithField("error", err))
	} else {
		rm.logger.Info("Configuration reloaded",
			logger.WithField("path", rm.configPath))
	}

	rm.mu.Lock()
	callbacks := make([]ReloadCallback, len(rm.callbacks))
	copy(callbacks, rm.callbacks)
	rm.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg, err)
	}
}
