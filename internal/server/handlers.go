package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chessoracle/chessoracle/pkg/dispatch"
	"github.com/chessoracle/chessoracle/pkg/logger"
	"github.com/chessoracle/chessoracle/pkg/pool"
	"github.com/chessoracle/chessoracle/pkg/reqcontext"
	"github.com/chessoracle/chessoracle/pkg/types"
)

// analyzeRequest is the JSON body of POST /analyze
type analyzeRequest struct {
	FEN         string `json:"fen"`
	Depth       int    `json:"depth"`
	MultiPV     int    `json:"multiPv"`
	TimeLimitMs int    `json:"timeLimit"`
	SkillLevel  int    `json:"skillLevel"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string `json:"status"`
	types.PoolStatus
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := types.AnalysisRequest{
		FEN:        body.FEN,
		Depth:      body.Depth,
		MultiPV:    body.MultiPV,
		TimeLimit:  time.Duration(body.TimeLimitMs) * time.Millisecond,
		SkillLevel: body.SkillLevel,
	}

	resp, err := s.dispatcher.Analyze(r.Context(), req)
	if err != nil {
		s.writeAnalyzeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeAnalyzeError maps dispatcher errors onto status codes without
// leaking internal detail
func (s *Server) writeAnalyzeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dispatch.ErrInvalidFEN):
		writeError(w, http.StatusBadRequest, "invalid or missing fen")
	case errors.Is(err, dispatch.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "analysis timed out")
	case errors.Is(err, pool.ErrPoolClosed), errors.Is(err, pool.ErrNoEngines):
		writeError(w, http.StatusServiceUnavailable, "analysis engine unavailable")
	default:
		s.logger.Error("Analysis failed",
			logger.WithField("request_id", reqcontext.GetRequestID(r.Context())),
			logger.WithField("error", err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := s.health.Health()
	resp := healthResponse{Status: "ok", PoolStatus: status}
	code := http.StatusOK
	if status.Live == 0 {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	} else if status.Degraded {
		resp.Status = "degraded"
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
