// Package pool manages a bounded collection of long-lived engine
// processes: startup handshake, exclusive acquisition, post-request
// reset, and teardown.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chessoracle/chessoracle/pkg/engine"
	"github.com/chessoracle/chessoracle/pkg/logger"
	"github.com/chessoracle/chessoracle/pkg/types"
	"github.com/chessoracle/chessoracle/pkg/uci"
)

// Options configures the pool and the per-engine handshake
type Options struct {
	Size             int
	BinaryPath       string
	Args             []string
	Threads          int
	HashMB           int
	HandshakeTimeout time.Duration
	ResetTimeout     time.Duration

	// SessionFactory overrides process spawning; tests substitute a
	// scripted session here. Defaults to an exec-backed session.
	SessionFactory func(id int) engine.Session
}

func (o *Options) withDefaults(log logger.Logger) {
	if o.Size <= 0 {
		o.Size = 2
	}
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.HashMB <= 0 {
		o.HashMB = 64
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.ResetTimeout <= 0 {
		o.ResetTimeout = 5 * time.Second
	}
	if o.SessionFactory == nil {
		o.SessionFactory = func(id int) engine.Session {
			return engine.NewExecSession(o.BinaryPath, o.Args, log)
		}
	}
}

// Pool owns a fixed-size collection of engine instances plus a
// rotating acquisition cursor. Acquire, Release, Discard and Shutdown
// are the only mutators of the collection; all run under one mutex so
// acquire-and-mark is atomic with respect to other acquirers.
type Pool struct {
	opts   Options
	logger logger.Logger

	mu        sync.Mutex
	instances []*engine.Instance
	cursor    int
	waiters   []chan *engine.Instance
	nextID    int
	started   bool
	closed    bool
}

// New creates an unstarted pool
func New(opts Options, log logger.Logger) *Pool {
	opts.withDefaults(log)
	return &Pool{
		opts:   opts,
		logger: log,
	}
}

// Start spawns the configured number of engine processes in parallel
// and runs the startup handshake on each. An engine that fails to
// spawn or handshake is logged and dropped; the pool degrades below
// its configured size rather than failing. Only a pool with zero live
// engines is an error.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	size := p.opts.Size
	p.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < size; i++ {
		g.Go(func() error {
			inst, err := p.spawn(ctx)
			if err != nil {
				p.logger.Warn("Engine failed to start, pool degrades",
					logger.WithField("error", err))
				return nil
			}
			p.mu.Lock()
			p.instances = append(p.instances, inst)
			p.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.mu.Lock()
	live := len(p.instances)
	p.mu.Unlock()

	if live == 0 {
		return ErrNoEngines
	}
	if live < size {
		p.logger.Warn("Pool running degraded",
			logger.WithField("configured", size),
			logger.WithField("live", live))
	}
	p.logger.Info("Engine pool started",
		logger.WithField("size", live),
		logger.WithField("binary", p.opts.BinaryPath))
	return nil
}

// spawn starts one engine process and drives the handshake: protocol
// init, tuning options, readiness probe.
func (p *Pool) spawn(ctx context.Context) (*engine.Instance, error) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.mu.Unlock()

	session := p.opts.SessionFactory(id)
	if err := session.Start(); err != nil {
		return nil, err
	}
	inst := engine.NewInstance(id, session)

	if err := p.handshake(ctx, inst); err != nil {
		_ = session.Kill()
		return nil, fmt.Errorf("handshake with %s: %w", inst.Name(), err)
	}
	inst.MarkReady()
	p.logger.WithEngine(inst.Name()).Debug("Handshake complete")
	return inst, nil
}

func (p *Pool) handshake(ctx context.Context, inst *engine.Instance) error {
	session := inst.Session()

	if err := session.Send(uci.CmdUCI); err != nil {
		return err
	}
	if err := p.await(ctx, session, isUCIOK); err != nil {
		return err
	}

	options := []string{
		uci.SetOption("Threads", p.opts.Threads),
		uci.SetOption("Hash", p.opts.HashMB),
		uci.SetOption("UCI_LimitStrength", "false"),
		uci.SetOption("MultiPV", 1),
		uci.SetOption("Ponder", "false"),
	}
	for _, cmd := range options {
		if err := session.Send(cmd); err != nil {
			return err
		}
	}

	if err := session.Send(uci.CmdIsReady); err != nil {
		return err
	}
	return p.await(ctx, session, isReadyOK)
}

// await consumes the session's event stream until match succeeds,
// bounded by the handshake timeout.
func (p *Pool) await(ctx context.Context, session engine.Session, match func(uci.Event) bool) error {
	timer := time.NewTimer(p.opts.HandshakeTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				return engine.ErrSessionClosed
			}
			if match(ev) {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("engine unresponsive after %s", p.opts.HandshakeTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isUCIOK(ev uci.Event) bool {
	_, ok := ev.(uci.UCIOKEvent)
	return ok
}

func isReadyOK(ev uci.Event) bool {
	_, ok := ev.(uci.ReadyOKEvent)
	return ok
}

// Acquire returns a free instance, marked busy before the lock is
// released. When every instance is busy it blocks until one frees or
// ctx is cancelled; it never hands the same instance to two callers.
func (p *Pool) Acquire(ctx context.Context) (*engine.Instance, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if len(p.instances) == 0 {
		p.mu.Unlock()
		return nil, ErrNoEngines
	}

	if inst := p.takeFreeLocked(); inst != nil {
		p.mu.Unlock()
		return inst, nil
	}

	// All busy: queue up for a direct handoff from Release
	waiter := make(chan *engine.Instance, 1)
	p.waiters = append(p.waiters, waiter)
	p.mu.Unlock()

	select {
	case inst := <-waiter:
		if inst == nil {
			return nil, ErrPoolClosed
		}
		return inst, nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, w := range p.waiters {
			if w == waiter {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				p.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		p.mu.Unlock()
		// Handoff raced the cancellation; put the instance back
		if inst := <-waiter; inst != nil {
			p.Release(inst)
		}
		return nil, ctx.Err()
	}
}

// takeFreeLocked scans from the rotating cursor and claims the first
// non-busy instance. Caller holds p.mu.
func (p *Pool) takeFreeLocked() *engine.Instance {
	n := len(p.instances)
	for offset := 0; offset < n; offset++ {
		idx := (p.cursor + offset) % n
		inst := p.instances[idx]
		if !inst.IsBusy() {
			inst.SetBusy(true)
			p.cursor = (idx + 1) % n
			return inst
		}
	}
	return nil
}

// Release resets the instance to a clean position state and returns it
// to the pool. If the reset fails the instance is discarded and a
// replacement spawned, so a fault never leaks position state into the
// next request.
func (p *Pool) Release(inst *engine.Instance) {
	if err := p.reset(inst); err != nil {
		p.logger.WithEngine(inst.Name()).Warn("Reset failed, discarding engine",
			logger.WithField("error", err))
		p.Discard(inst)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		inst.SetBusy(false)
		return
	}

	// Hand the instance straight to a blocked acquirer if one is
	// queued; the busy flag never clears in between, so no third
	// party can slip in.
	if len(p.waiters) > 0 {
		waiter := p.waiters[0]
		p.waiters = p.waiters[1:]
		waiter <- inst
		return
	}
	inst.SetBusy(false)
}

// reset sends the new-game and readiness sequence, consuming events
// until the probe answers.
func (p *Pool) reset(inst *engine.Instance) error {
	session := inst.Session()
	if err := session.Send(uci.CmdNewGame); err != nil {
		return err
	}
	if err := session.Send(uci.CmdIsReady); err != nil {
		return err
	}

	timer := time.NewTimer(p.opts.ResetTimeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				return engine.ErrSessionClosed
			}
			if isReadyOK(ev) {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("engine unresponsive after %s", p.opts.ResetTimeout)
		}
	}
}

// Discard removes a misbehaving instance from the pool, kills its
// process, and respawns a replacement in the background. A failed
// respawn leaves the pool degraded, visible through Health.
func (p *Pool) Discard(inst *engine.Instance) {
	_ = inst.Session().Kill()

	p.mu.Lock()
	for i, candidate := range p.instances {
		if candidate == inst {
			p.instances = append(p.instances[:i], p.instances[i+1:]...)
			if p.cursor >= len(p.instances) {
				p.cursor = 0
			}
			break
		}
	}
	closed := p.closed
	p.mu.Unlock()

	p.logger.WithEngine(inst.Name()).Warn("Engine discarded")
	if closed {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.HandshakeTimeout)
		defer cancel()

		replacement, err := p.spawn(ctx)
		if err != nil {
			p.logger.Warn("Failed to respawn engine, pool degrades",
				logger.WithField("error", err))
			return
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			_ = replacement.Session().Kill()
			return
		}
		p.instances = append(p.instances, replacement)
		var waiter chan *engine.Instance
		if len(p.waiters) > 0 {
			waiter = p.waiters[0]
			p.waiters = p.waiters[1:]
			replacement.SetBusy(true)
		}
		p.mu.Unlock()

		p.logger.WithEngine(replacement.Name()).Info("Engine respawned")
		if waiter != nil {
			waiter <- replacement
		}
	}()
}

// Shutdown terminates every engine process and releases blocked
// acquirers. Idempotent.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	instances := p.instances
	p.instances = nil
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, waiter := range waiters {
		waiter <- nil
	}

	g, _ := errgroup.WithContext(ctx)
	for _, inst := range instances {
		g.Go(inst.Session().Close)
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("engine pool shutdown: %w", err)
	}
	p.logger.Info("Engine pool stopped")
	return nil
}

// Health reports the pool's current capacity
func (p *Pool) Health() types.PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	busy := 0
	for _, inst := range p.instances {
		if inst.IsBusy() {
			busy++
		}
	}
	return types.PoolStatus{
		Configured: p.opts.Size,
		Live:       len(p.instances),
		Busy:       busy,
		Degraded:   len(p.instances) < p.opts.Size,
	}
}
