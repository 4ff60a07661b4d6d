package dispatch

import "errors"

// Sentinel errors for dispatch operations, checked with errors.Is()
var (
	// ErrInvalidFEN indicates a missing or malformed position string;
	// rejected before any engine is acquired
	ErrInvalidFEN = errors.New("invalid or missing FEN")

	// ErrTimeout indicates the engine failed to produce a result even
	// after the cooperative stop and the hard grace deadline
	ErrTimeout = errors.New("analysis timed out")

	// ErrEngineFault indicates the engine process died or broke
	// protocol mid-request
	ErrEngineFault = errors.New("engine fault")
)
