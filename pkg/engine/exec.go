package engine

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/chessoracle/chessoracle/pkg/logger"
	"github.com/chessoracle/chessoracle/pkg/uci"
)

// quitGrace bounds how long Close waits for the process to honor a
// cooperative quit before forcing termination
const quitGrace = 2 * time.Second

// ExecSession runs an engine binary as a child process. A single
// reader goroutine owns stdout: it feeds raw chunks through the
// incremental protocol parser and publishes events on a buffered
// channel, which is closed when the process output ends.
type ExecSession struct {
	path   string
	args   []string
	logger logger.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	started bool
	closed  bool

	events chan uci.Event
	done   chan struct{}
	exited chan struct{}
}

// NewExecSession creates a session for the given engine binary
func NewExecSession(path string, args []string, log logger.Logger) *ExecSession {
	return &ExecSession{
		path:   path,
		args:   args,
		logger: log,
		events: make(chan uci.Event, 256),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// Start spawns the engine process and begins decoding its output
func (s *ExecSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	cmd := exec.Command(s.path, s.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn engine %s: %w", s.path, err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.started = true

	go s.readLoop(stdout)
	go func() {
		_ = cmd.Wait()
		close(s.exited)
	}()

	return nil
}

// readLoop is the sole consumer of the process's stdout
func (s *ExecSession) readLoop(stdout io.Reader) {
	defer close(s.events)

	parser := uci.NewParser()
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			for _, ev := range parser.Feed(buf[:n]) {
				select {
				case s.events <- ev:
				case <-s.done:
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// Send writes one command line to the engine's input stream
func (s *ExecSession) Send(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	if s.closed {
		return ErrSessionClosed
	}

	if _, err := io.WriteString(s.stdin, cmd+"\n"); err != nil {
		return fmt.Errorf("failed to send %q: %w", cmd, err)
	}
	return nil
}

// Events returns the decoded event stream
func (s *ExecSession) Events() <-chan uci.Event {
	return s.events
}

// Close asks the engine to quit and forces termination if it does not
// exit within the grace period. Safe to call more than once.
func (s *ExecSession) Close() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)

	_, _ = io.WriteString(s.stdin, uci.CmdQuit+"\n")
	_ = s.stdin.Close()
	cmd := s.cmd
	s.mu.Unlock()

	select {
	case <-s.exited:
		return nil
	case <-time.After(quitGrace):
	}

	if s.logger != nil {
		s.logger.Warn("Engine ignored quit, killing process",
			logger.WithField("pid", cmd.Process.Pid))
	}
	return s.terminate(cmd)
}

// Kill terminates the process immediately, without the quit exchange
func (s *ExecSession) Kill() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	alreadyClosed := s.closed
	s.closed = true
	if !alreadyClosed {
		close(s.done)
		_ = s.stdin.Close()
	}
	cmd := s.cmd
	s.mu.Unlock()

	return s.terminate(cmd)
}

// terminate tries SIGTERM first, then SIGKILL
func (s *ExecSession) terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return cmd.Process.Kill()
	}
	select {
	case <-s.exited:
		return nil
	case <-time.After(quitGrace):
		return cmd.Process.Kill()
	}
}

// PID returns the child process id, or 0 before Start
func (s *ExecSession) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}
