// Package process provides process lifecycle and signal handling for
// the server
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chessoracle/chessoracle/pkg/logger"
)

// Manager handles OS signals and ordered shutdown of the server's
// long-lived components (HTTP listener, engine pool, config watcher).
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	heartbeatFunc    func()
	heartbeatEvery   time.Duration
	wg               sync.WaitGroup
	mu               sync.Mutex
	stopChan         chan struct{}
	running          bool
}

// NewManager creates a new process manager
func NewManager(log logger.Logger) *Manager {
	return &Manager{
		logger:         log,
		heartbeatEvery: 30 * time.Second,
	}
}

// RegisterShutdownHandler adds a shutdown handler. Handlers run in
// reverse registration order, so components torn down last were
// started first.
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// SetHeartbeat sets a function invoked periodically while running,
// used to log pool health.
func (m *Manager) SetHeartbeat(fn func(), every time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeatFunc = fn
	if every > 0 {
		m.heartbeatEvery = every
	}
}

// Start begins signal handling. The context bounds the manager's
// lifetime; cancellation triggers the same shutdown path as a signal.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	stop := m.stopChan
	heartbeat := m.heartbeatFunc
	m.mu.Unlock()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)

		select {
		case <-ctx.Done():
			m.handleShutdown()
		case sig := <-sigChan:
			m.logger.Info("Received signal", logger.WithField("signal", sig))
			m.handleShutdown()
		case <-stop:
		}
	}()

	if heartbeat != nil {
		m.startHeartbeat(ctx, stop)
	}
}

// Stop unwinds the manager without running shutdown handlers and waits
// for its goroutines to exit. Must not block when no signal was ever
// delivered and the context is still live. Idempotent.
func (m *Manager) Stop() {
	m.closeStopChan()
	m.wg.Wait()
}

// closeStopChan releases both manager goroutines. Close happens at
// most once per Start.
func (m *Manager) closeStopChan() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	if m.stopChan != nil {
		close(m.stopChan)
		m.stopChan = nil
	}
}

// IsRunning checks if the process manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleShutdown() {
	m.logger.Info("Initiating graceful shutdown...")

	m.mu.Lock()
	handlers := make([]func(), len(m.shutdownHandlers))
	copy(handlers, m.shutdownHandlers)
	m.mu.Unlock()

	m.closeStopChan()

	for i := len(handlers) - 1; i >= 0; i-- {
		handlers[i]()
	}
}

func (m *Manager) startHeartbeat(ctx context.Context, stop <-chan struct{}) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.heartbeatEvery)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.mu.Lock()
				fn := m.heartbeatFunc
				m.mu.Unlock()
				if fn != nil {
					fn()
				}
			}
		}
	}()
}
