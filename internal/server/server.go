// Package server exposes the analysis capability over HTTP. It is
// deliberately thin: decode, dispatch, encode.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chessoracle/chessoracle/pkg/logger"
	"github.com/chessoracle/chessoracle/pkg/reqcontext"
	"github.com/chessoracle/chessoracle/pkg/types"
)

// Dispatcher is the slice of the request dispatcher the server needs
type Dispatcher interface {
	Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResponse, error)
}

// HealthSource reports pool capacity
type HealthSource interface {
	Health() types.PoolStatus
}

// Server is the HTTP front of the analysis service
type Server struct {
	httpServer *http.Server
	dispatcher Dispatcher
	health     HealthSource
	logger     logger.Logger
}

// New creates a server listening on host:port
func New(host string, port int, dispatcher Dispatcher, health HealthSource, log logger.Logger) *Server {
	s := &Server{
		dispatcher: dispatcher,
		health:     health,
		logger:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown; it returns nil on graceful close
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening",
		logger.WithField("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the configured handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// middleware stamps a request id, answers CORS preflight, and logs
// request completion
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		ctx := reqcontext.Enrich(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))

		s.logger.Debug("Request handled",
			logger.WithField("request_id", reqcontext.GetRequestID(ctx)),
			logger.WithField("method", r.Method),
			logger.WithField("path", r.URL.Path),
			logger.WithField("duration_ms", reqcontext.GetDuration(ctx).Milliseconds()))
	})
}
