// Package engine wraps one external UCI engine process behind a
// Session abstraction so the pool and dispatcher never touch os/exec
// directly and tests can substitute a scripted session.
package engine

import (
	"errors"

	"github.com/chessoracle/chessoracle/pkg/uci"
)

// Sentinel errors for session operations, checked with errors.Is()
var (
	// ErrSessionClosed indicates the session's process has exited or
	// the session was killed
	ErrSessionClosed = errors.New("engine session closed")

	// ErrAlreadyStarted indicates Start was called twice
	ErrAlreadyStarted = errors.New("engine session already started")

	// ErrNotStarted indicates an operation before Start
	ErrNotStarted = errors.New("engine session not started")
)

// Session is one analysis-engine conversation: start the process, send
// commands, consume the decoded event stream, terminate.
//
// Events is closed when the process exits, normally or otherwise.
// Close attempts a cooperative quit before forcing termination; Kill
// forces immediately.
type Session interface {
	Start() error
	Send(cmd string) error
	Events() <-chan uci.Event
	Close() error
	Kill() error
}
