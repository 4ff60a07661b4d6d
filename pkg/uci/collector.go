package uci

import (
	"sort"

	"github.com/chessoracle/chessoracle/pkg/types"
)

// Collector folds the event stream of one analysis exchange into an
// AnalysisResult. Later info lines for the same multipv index replace
// earlier ones; the bestmove event finalizes the result.
type Collector struct {
	requestedDepth int
	lines          map[int]types.AnalysisLine
	result         *types.AnalysisResult
}

// NewCollector creates a collector for one request. requestedDepth is
// the fallback reported depth when the engine emitted no info lines.
func NewCollector(requestedDepth int) *Collector {
	return &Collector{
		requestedDepth: requestedDepth,
		lines:          make(map[int]types.AnalysisLine),
	}
}

// Add consumes one event; it returns true once the terminal bestmove
// event has been observed.
func (c *Collector) Add(ev Event) bool {
	if c.result != nil {
		return true
	}

	switch e := ev.(type) {
	case InfoEvent:
		c.lines[e.Line.MultiPV] = e.Line
	case BestMoveEvent:
		c.finalize(e)
		return true
	}
	return false
}

// Done reports whether the terminal event has been seen
func (c *Collector) Done() bool {
	return c.result != nil
}

// Result returns the finalized result, or nil while the exchange is
// still in flight.
func (c *Collector) Result() *types.AnalysisResult {
	return c.result
}

func (c *Collector) finalize(best BestMoveEvent) {
	lines := make([]types.AnalysisLine, 0, len(c.lines))
	for _, line := range c.lines {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].MultiPV < lines[j].MultiPV
	})

	depth := c.requestedDepth
	if primary, ok := c.lines[1]; ok {
		depth = primary.Depth
	}

	c.result = &types.AnalysisResult{
		BestMove: best.Move,
		Ponder:   best.Ponder,
		Lines:    lines,
		Depth:    depth,
	}
}
