package pool

import "errors"

// Sentinel errors for pool operations, checked with errors.Is()
var (
	// ErrPoolClosed indicates the pool has been shut down
	ErrPoolClosed = errors.New("engine pool is closed")

	// ErrNoEngines indicates no engine process survived startup
	ErrNoEngines = errors.New("no engine processes available")

	// ErrAlreadyStarted indicates Start was called twice
	ErrAlreadyStarted = errors.New("engine pool already started")
)
