// Package dispatch drives one analysis request end to end: parameter
// clamping, skill resolution, engine acquisition, protocol exchange
// with timeout control, and skill-tier post-processing.
package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/corentings/chess"
	"github.com/google/uuid"

	"github.com/chessoracle/chessoracle/pkg/engine"
	"github.com/chessoracle/chessoracle/pkg/logger"
	"github.com/chessoracle/chessoracle/pkg/skill"
	"github.com/chessoracle/chessoracle/pkg/types"
	"github.com/chessoracle/chessoracle/pkg/uci"
)

// Request parameter bounds
const (
	MaxDepth         = 30
	MaxMultiPV       = 5
	DefaultDepth     = 15
	DefaultMultiPV   = 1
	MaxTimeLimit     = 30 * time.Second
	DefaultStopGrace = 3 * time.Second
)

// Pool is the slice of the engine pool the dispatcher needs
type Pool interface {
	Acquire(ctx context.Context) (*engine.Instance, error)
	Release(inst *engine.Instance)
	Discard(inst *engine.Instance)
}

// Options tunes dispatcher behavior
type Options struct {
	MaxTimeLimit time.Duration
	StopGrace    time.Duration

	// Rand seeds the skill simulation; tests inject a fixed source.
	// Defaults to a time-seeded source.
	Rand *rand.Rand
}

// Dispatcher multiplexes analysis requests across the engine pool
type Dispatcher struct {
	pool   Pool
	opts   Options
	logger logger.Logger

	// rand.Rand is not safe for concurrent use
	randMu sync.Mutex

	// limits are hot-reloadable
	limitsMu     sync.RWMutex
	maxTimeLimit time.Duration
	stopGrace    time.Duration
}

// New creates a dispatcher over the given pool
func New(p Pool, opts Options, log logger.Logger) *Dispatcher {
	if opts.MaxTimeLimit <= 0 {
		opts.MaxTimeLimit = MaxTimeLimit
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Dispatcher{
		pool:         p,
		opts:         opts,
		logger:       log,
		maxTimeLimit: opts.MaxTimeLimit,
		stopGrace:    opts.StopGrace,
	}
}

// SetLimits updates the request-time bounds, used by config hot-reload
func (d *Dispatcher) SetLimits(maxTimeLimit, stopGrace time.Duration) {
	d.limitsMu.Lock()
	defer d.limitsMu.Unlock()
	if maxTimeLimit > 0 {
		d.maxTimeLimit = maxTimeLimit
	}
	if stopGrace > 0 {
		d.stopGrace = stopGrace
	}
}

func (d *Dispatcher) limits() (time.Duration, time.Duration) {
	d.limitsMu.RLock()
	defer d.limitsMu.RUnlock()
	return d.maxTimeLimit, d.stopGrace
}

// Analyze handles one analysis request and returns the wire-shaped
// response.
func (d *Dispatcher) Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResponse, error) {
	if req.FEN == "" {
		return nil, ErrInvalidFEN
	}
	if _, err := chess.FEN(req.FEN); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}

	depth := clamp(req.Depth, 1, MaxDepth)
	if req.Depth == 0 {
		depth = DefaultDepth
	}
	multiPV := clamp(req.MultiPV, 1, MaxMultiPV)
	maxTimeLimit, _ := d.limits()
	timeLimit := req.TimeLimit
	if timeLimit < 0 {
		timeLimit = 0
	}
	if timeLimit > maxTimeLimit {
		timeLimit = maxTimeLimit
	}

	var (
		profile    skill.Profile
		simulation *types.HumanSimulation
	)
	if req.SkillLevel > 0 {
		profile = skill.GetProfile(req.SkillLevel)
		depth = profile.ClampDepth(depth)
		complexity := skill.EstimateComplexity(req.FEN)
		if timeLimit == 0 {
			d.randMu.Lock()
			timeLimit = skill.ThinkingTime(d.opts.Rand, profile, complexity)
			d.randMu.Unlock()
		}
		simulation = &types.HumanSimulation{
			SkillLevel:         req.SkillLevel,
			ThinkingTimeMs:     timeLimit.Milliseconds(),
			PositionComplexity: complexity,
			ErrorRate:          profile.ErrorRate,
		}
	}

	requestID := uuid.New().String()
	log := d.logger
	log.Debug("Dispatching analysis",
		logger.WithField("request_id", requestID),
		logger.WithField("depth", depth),
		logger.WithField("multipv", multiPV),
		logger.WithField("time_limit", timeLimit))

	inst, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if err := inst.AwaitReady(ctx); err != nil {
		d.pool.Release(inst)
		return nil, err
	}

	result, err := d.exchange(ctx, inst, req.FEN, depth, multiPV, timeLimit, simulation != nil, profile)
	if err != nil {
		return nil, err
	}

	resp := result.ToResponse()
	if simulation != nil {
		resp.HumanSimulation = simulation
		d.randMu.Lock()
		degrade := skill.ShouldDegrade(d.opts.Rand, profile)
		var degraded string
		if degrade {
			degraded = skill.DegradedMove(d.opts.Rand, result.Lines, req.SkillLevel, result.BestMove)
		}
		d.randMu.Unlock()

		if degrade && degraded != result.BestMove {
			resp.BestMove.Move = degraded
			resp.BestMove.Ponder = nil
			resp.IsHumanError = true
			log.Debug("Simulated human error",
				logger.WithField("request_id", requestID),
				logger.WithField("best", result.BestMove),
				logger.WithField("played", degraded))
		}
	}
	return resp, nil
}

// exchange owns the instance for the duration of one protocol
// conversation. All commands for this request are sent and all
// responses consumed before the instance is handed back, preserving
// the per-instance serialization invariant.
func (d *Dispatcher) exchange(
	ctx context.Context,
	inst *engine.Instance,
	fen string,
	depth, multiPV int,
	timeLimit time.Duration,
	tuned bool,
	profile skill.Profile,
) (*types.AnalysisResult, error) {
	session := inst.Session()

	var cmds []string
	if tuned {
		cmds = append(cmds,
			uci.SetOption("Skill Level", profile.EngineSkill),
			uci.SetOption("UCI_LimitStrength", "true"),
		)
	}
	cmds = append(cmds, uci.EncodeAnalysisRequest(fen, depth, multiPV, timeLimit)...)

	for _, cmd := range cmds {
		if err := session.Send(cmd); err != nil {
			d.pool.Discard(inst)
			return nil, fmt.Errorf("%w: %v", ErrEngineFault, err)
		}
	}

	collector := uci.NewCollector(depth)
	_, stopGrace := d.limits()

	var limit <-chan time.Time
	if timeLimit > 0 {
		timer := time.NewTimer(timeLimit)
		defer timer.Stop()
		limit = timer.C
	}
	var hardDeadline <-chan time.Time
	var hardTimer *time.Timer
	defer func() {
		if hardTimer != nil {
			hardTimer.Stop()
		}
	}()
	var ctxErr error
	done := ctx.Done()

	stop := func() {
		_ = session.Send(uci.CmdStop)
		hardTimer = time.NewTimer(stopGrace)
		hardDeadline = hardTimer.C
	}

	for {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				d.pool.Discard(inst)
				return nil, fmt.Errorf("%w: %v", ErrEngineFault, engine.ErrSessionClosed)
			}
			if collector.Add(ev) {
				d.pool.Release(inst)
				if ctxErr != nil {
					return nil, ctxErr
				}
				return collector.Result(), nil
			}

		case <-limit:
			limit = nil
			stop()

		case <-done:
			done = nil
			ctxErr = ctx.Err()
			if hardDeadline == nil {
				stop()
			}

		case <-hardDeadline:
			// Liveness fault: the engine never answered the stop.
			// Kill it and restore pool capacity via respawn.
			d.pool.Discard(inst)
			if ctxErr != nil {
				return nil, ctxErr
			}
			return nil, ErrTimeout
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
