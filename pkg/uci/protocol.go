// Package uci implements the line-oriented text protocol spoken with
// UCI analysis engines: command encoding on the way out, incremental
// event decoding on the way in.
package uci

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chessoracle/chessoracle/pkg/types"
)

// Event is one decoded protocol occurrence
type Event interface {
	event()
}

// InfoEvent carries one parsed "info ... pv ..." analysis line
type InfoEvent struct {
	Line types.AnalysisLine
}

// BestMoveEvent is the terminal event of an analysis exchange
type BestMoveEvent struct {
	Move   string
	Ponder string
}

// ReadyOKEvent signals a completed readiness probe
type ReadyOKEvent struct{}

// UCIOKEvent signals a completed protocol-init handshake
type UCIOKEvent struct{}

// UnknownEvent wraps output the decoder does not understand; callers
// typically skip these
type UnknownEvent struct {
	Raw string
}

func (InfoEvent) event()     {}
func (BestMoveEvent) event() {}
func (ReadyOKEvent) event()  {}
func (UCIOKEvent) event()    {}
func (UnknownEvent) event()  {}

// Handshake commands
const (
	CmdUCI     = "uci"
	CmdIsReady = "isready"
	CmdNewGame = "ucinewgame"
	CmdStop    = "stop"
	CmdQuit    = "quit"
)

// SetOption encodes a setoption command
func SetOption(name string, value interface{}) string {
	return fmt.Sprintf("setoption name %s value %v", name, value)
}

// EncodeAnalysisRequest produces the ordered command sequence driving
// one analysis: position set, multi-line count, then a go command
// bounded by depth and/or movetime.
func EncodeAnalysisRequest(fen string, depth, multiPV int, timeLimit time.Duration) []string {
	cmds := []string{
		"position fen " + fen,
		SetOption("MultiPV", multiPV),
	}

	goCmd := "go"
	if depth > 0 {
		goCmd += " depth " + strconv.Itoa(depth)
	}
	if timeLimit > 0 {
		goCmd += " movetime " + strconv.Itoa(int(timeLimit.Milliseconds()))
	}
	if goCmd == "go" {
		// Unbounded search would never terminate on its own
		goCmd = "go depth 1"
	}

	return append(cmds, goCmd)
}

// ParseLine decodes one complete output line into an event
func ParseLine(line string) Event {
	line = strings.TrimRight(line, "\r")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return UnknownEvent{Raw: line}
	}

	switch fields[0] {
	case "bestmove":
		return parseBestMove(fields)
	case "info":
		if ev, ok := parseInfo(fields); ok {
			return ev
		}
	case "readyok":
		return ReadyOKEvent{}
	case "uciok":
		return UCIOKEvent{}
	}
	return UnknownEvent{Raw: line}
}

func parseBestMove(fields []string) Event {
	ev := BestMoveEvent{}
	if len(fields) > 1 {
		ev.Move = fields[1]
	}
	for i := 2; i+1 < len(fields); i++ {
		if fields[i] == "ponder" {
			ev.Ponder = fields[i+1]
			break
		}
	}
	return ev
}

// parseInfo extracts depth, multipv, score and pv from an info line.
// Lines without a pv (currmove reports, nps-only updates) are not
// analysis lines and are skipped.
func parseInfo(fields []string) (Event, bool) {
	line := types.AnalysisLine{MultiPV: 1}
	var haveScore, havePV bool

	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				line.Depth, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "multipv":
			if i+1 < len(fields) {
				line.MultiPV, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "score":
			if i+2 < len(fields) {
				switch fields[i+1] {
				case "cp":
					line.Score.Type = types.ScoreTypeCentipawn
				case "mate":
					line.Score.Type = types.ScoreTypeMate
				default:
					return nil, false
				}
				line.Score.Value, _ = strconv.Atoi(fields[i+2])
				haveScore = true
				i += 2
			}
		case "pv":
			if i+1 < len(fields) {
				line.PV = append([]string(nil), fields[i+1:]...)
				havePV = true
			}
			i = len(fields)
		}
	}

	if !haveScore || !havePV {
		return nil, false
	}
	return InfoEvent{Line: line}, true
}
