package engine

import (
	"context"
	"fmt"
	"sync"
)

// Instance pairs one engine session with its readiness and busy state.
// Readiness is monotonic: the ready channel is closed exactly once,
// after the startup handshake, and is never re-armed for the lifetime
// of the instance. The busy flag is owned by the pool and must only be
// touched under the pool's lock.
type Instance struct {
	id      int
	session Session

	ready     chan struct{}
	readyOnce sync.Once

	busy bool
}

// NewInstance wraps a session in an instance
func NewInstance(id int, session Session) *Instance {
	return &Instance{
		id:      id,
		session: session,
		ready:   make(chan struct{}),
	}
}

// ID returns the instance's position-independent identifier
func (i *Instance) ID() int {
	return i.id
}

// Name returns the instance's log label
func (i *Instance) Name() string {
	return fmt.Sprintf("engine-%d", i.id)
}

// Session returns the underlying engine session
func (i *Instance) Session() Session {
	return i.session
}

// MarkReady records a completed startup handshake
func (i *Instance) MarkReady() {
	i.readyOnce.Do(func() {
		close(i.ready)
	})
}

// Ready returns a channel closed once the handshake has completed
func (i *Instance) Ready() <-chan struct{} {
	return i.ready
}

// AwaitReady blocks until the handshake completes or ctx is done
func (i *Instance) AwaitReady(ctx context.Context) error {
	select {
	case <-i.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsBusy reports the mutual-exclusion flag. Pool-lock guarded.
func (i *Instance) IsBusy() bool {
	return i.busy
}

// SetBusy sets the mutual-exclusion flag. Pool-lock guarded.
func (i *Instance) SetBusy(busy bool) {
	i.busy = busy
}
