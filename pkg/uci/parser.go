package uci

import "bytes"

// Parser incrementally decodes the engine's output stream. Chunks may
// split a line anywhere; the partial tail is buffered until the next
// newline arrives, so the partial-line state is explicit and testable.
type Parser struct {
	buf []byte
}

// NewParser creates an empty stream parser
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes one chunk of engine output and returns the events for
// every line completed by it, in stream order.
func (p *Parser) Feed(chunk []byte) []Event {
	p.buf = append(p.buf, chunk...)

	var events []Event
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			break
		}
		line := string(p.buf[:idx])
		p.buf = p.buf[idx+1:]
		if line == "" || line == "\r" {
			continue
		}
		events = append(events, ParseLine(line))
	}
	return events
}

// Pending reports whether an incomplete line is buffered
func (p *Parser) Pending() bool {
	return len(p.buf) > 0
}

// Reset discards any buffered partial line
func (p *Parser) Reset() {
	p.buf = nil
}
