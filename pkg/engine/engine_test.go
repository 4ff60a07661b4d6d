package engine_test

import (
	"context"
	"errors"
	"io"
	"runtime"
	"testing"
	"time"

	"github.com/chessoracle/chessoracle/pkg/engine"
	"github.com/chessoracle/chessoracle/pkg/logger"
	"github.com/chessoracle/chessoracle/pkg/uci"
)

func testLogger() logger.Logger {
	return logger.CreateLoggerWithOutput("error", io.Discard)
}

// fakeEngineScript answers the UCI handshake the way a real engine
// would, one line per read, so the session's parser sees realistic
// chunking.
const fakeEngineScript = `
while read line; do
  case "$line" in
    uci)
      echo "id name fakefish"
      echo "uciok"
      ;;
    isready) echo "readyok" ;;
    go*) echo "bestmove e2e4 ponder e7e5" ;;
    quit) exit 0 ;;
  esac
done
`

func newScriptSession(t *testing.T) *engine.ExecSession {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test engine script requires a POSIX shell")
	}
	return engine.NewExecSession("/bin/sh", []string{"-c", fakeEngineScript}, testLogger())
}

func awaitEvent(t *testing.T, events <-chan uci.Event) uci.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event stream closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for engine event")
	}
	return nil
}

func TestExecSessionHandshake(t *testing.T) {
	s := newScriptSession(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	if s.PID() == 0 {
		t.Error("PID = 0 after Start")
	}

	if err := s.Send(uci.CmdUCI); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// id line arrives first and decodes as an unknown event
	for {
		ev := awaitEvent(t, s.Events())
		if _, ok := ev.(uci.UCIOKEvent); ok {
			break
		}
		if _, ok := ev.(uci.UnknownEvent); !ok {
			t.Fatalf("unexpected event before uciok: %#v", ev)
		}
	}

	if err := s.Send(uci.CmdIsReady); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if _, ok := awaitEvent(t, s.Events()).(uci.ReadyOKEvent); !ok {
		t.Fatal("expected readyok")
	}

	if err := s.Send("go depth 5"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	best, ok := awaitEvent(t, s.Events()).(uci.BestMoveEvent)
	if !ok {
		t.Fatal("expected bestmove")
	}
	if best.Move != "e2e4" || best.Ponder != "e7e5" {
		t.Errorf("bestmove = %+v", best)
	}
}

func TestExecSessionCloseEndsEventStream(t *testing.T) {
	s := newScriptSession(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case _, ok := <-s.Events():
		if ok {
			// Drain whatever the engine flushed before quitting
			for range s.Events() {
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event stream never closed after Close")
	}

	if err := s.Send(uci.CmdIsReady); !errors.Is(err, engine.ErrSessionClosed) {
		t.Errorf("Send after Close = %v, want ErrSessionClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestExecSessionKillUnresponsiveProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test engine script requires a POSIX shell")
	}
	// A process that ignores its stdin entirely
	s := engine.NewExecSession("/bin/sh", []string{"-c", "trap '' TERM; sleep 600"}, testLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Kill() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Kill failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Kill never returned")
	}
}

func TestExecSessionLifecycleErrors(t *testing.T) {
	s := engine.NewExecSession("/bin/sh", []string{"-c", "read line"}, testLogger())

	if err := s.Send("uci"); !errors.Is(err, engine.ErrNotStarted) {
		t.Errorf("Send before Start = %v, want ErrNotStarted", err)
	}
	if err := s.Close(); !errors.Is(err, engine.ErrNotStarted) {
		t.Errorf("Close before Start = %v, want ErrNotStarted", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	if err := s.Start(); !errors.Is(err, engine.ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestExecSessionStartFailsForMissingBinary(t *testing.T) {
	s := engine.NewExecSession("/nonexistent/engine-binary", nil, testLogger())
	if err := s.Start(); err == nil {
		t.Fatal("Start succeeded for a missing binary")
	}
}

func TestInstanceReadiness(t *testing.T) {
	inst := engine.NewInstance(3, nil)

	if inst.ID() != 3 {
		t.Errorf("ID = %d", inst.ID())
	}
	if inst.Name() != "engine-3" {
		t.Errorf("Name = %q", inst.Name())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := inst.AwaitReady(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AwaitReady before MarkReady = %v", err)
	}

	inst.MarkReady()
	inst.MarkReady() // idempotent

	if err := inst.AwaitReady(context.Background()); err != nil {
		t.Errorf("AwaitReady after MarkReady = %v", err)
	}
	select {
	case <-inst.Ready():
	default:
		t.Error("Ready channel not closed after MarkReady")
	}
}
