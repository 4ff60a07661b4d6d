// Package types defines the shared data model for the analysis server
package types

import (
	"encoding/json"
	"time"
)

// ScoreType distinguishes centipawn evaluations from forced-mate reports
type ScoreType string

const (
	ScoreTypeCentipawn ScoreType = "cp"
	ScoreTypeMate      ScoreType = "mate"
)

// Score is an engine evaluation for one analysis line
type Score struct {
	Type  ScoreType `json:"type"`
	Value int       `json:"value"`
}

// Readable converts the raw score into a single comparable number:
// centipawns become pawns, mate-in-N maps above any centipawn reading
// while preserving ordering (shorter mates score higher).
func (s Score) Readable() float64 {
	if s.Type == ScoreTypeMate {
		v := s.Value
		if v >= 0 {
			return float64(1000-v) / 10
		}
		return -float64(1000+v) / 10
	}
	return float64(s.Value) / 100
}

// AnalysisRequest describes one position-analysis call.
// A zero TimeLimit means no caller-supplied limit; a zero SkillLevel
// disables human-play simulation.
type AnalysisRequest struct {
	FEN        string
	Depth      int
	MultiPV    int
	TimeLimit  time.Duration
	SkillLevel int
}

// AnalysisLine is one candidate line reported by the engine
type AnalysisLine struct {
	Depth   int      `json:"depth"`
	MultiPV int      `json:"multipv"`
	Score   Score    `json:"score"`
	PV      []string `json:"pv"`
}

// AnalysisResult is the terminal outcome of one request
type AnalysisResult struct {
	BestMove string
	Ponder   string
	Lines    []AnalysisLine
	Depth    int
}

// HumanSimulation reports the skill-tier parameters applied to a request
type HumanSimulation struct {
	SkillLevel         int     `json:"skillLevel"`
	ThinkingTimeMs     int64   `json:"thinkingTime"`
	PositionComplexity float64 `json:"positionComplexity"`
	ErrorRate          float64 `json:"errorRate"`
}

// AnalysisResponse is the JSON shape returned to callers
type AnalysisResponse struct {
	BestMove        BestMoveResponse `json:"bestMove"`
	Analysis        []LineResponse   `json:"analysis"`
	Depth           int              `json:"depth"`
	IsHumanError    bool             `json:"isHumanError,omitempty"`
	HumanSimulation *HumanSimulation `json:"humanSimulation,omitempty"`
}

// BestMoveResponse carries the chosen move and the expected reply
type BestMoveResponse struct {
	Move   string  `json:"move"`
	Ponder *string `json:"ponder"`
}

// LineResponse is the wire form of one analysis line
type LineResponse struct {
	Depth   int           `json:"depth"`
	MultiPV int           `json:"multipv"`
	Score   ScoreResponse `json:"score"`
	PV      []string      `json:"pv"`
}

// ScoreResponse is the wire form of a score
type ScoreResponse struct {
	Type     ScoreType `json:"type"`
	Value    int       `json:"value"`
	Readable float64   `json:"readable"`
}

// PoolStatus is the health snapshot exposed by the pool
type PoolStatus struct {
	Configured int  `json:"configured"`
	Live       int  `json:"live"`
	Busy       int  `json:"busy"`
	Degraded   bool `json:"degraded"`
}

// ToResponse converts an AnalysisResult into its wire form
func (r *AnalysisResult) ToResponse() *AnalysisResponse {
	resp := &AnalysisResponse{
		BestMove: BestMoveResponse{Move: r.BestMove},
		Analysis: make([]LineResponse, 0, len(r.Lines)),
		Depth:    r.Depth,
	}
	if r.Ponder != "" {
		ponder := r.Ponder
		resp.BestMove.Ponder = &ponder
	}
	for _, line := range r.Lines {
		resp.Analysis = append(resp.Analysis, LineResponse{
			Depth:   line.Depth,
			MultiPV: line.MultiPV,
			Score: ScoreResponse{
				Type:     line.Score.Type,
				Value:    line.Score.Value,
				Readable: line.Score.Readable(),
			},
			PV: line.PV,
		})
	}
	return resp
}

// MarshalCompact renders the response as single-line JSON, mainly for logs
func (r *AnalysisResponse) MarshalCompact() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
