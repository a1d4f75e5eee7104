// Package server exposes the agent's observability surface over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/abflash-io/abflash/internal/flasher/state"
	"github.com/abflash-io/abflash/internal/pkg/metrics"
	"github.com/abflash-io/abflash/pkg/log"
	"github.com/abflash-io/abflash/pkg/options"
)

// Server serves health, readiness, session state and metrics.
type Server struct {
	opts   *options.HttpOptions
	st     *state.Session
	logger log.Logger
}

// New creates a Server publishing st.
func New(opts *options.HttpOptions, st *state.Session) *Server {
	return &Server{
		opts:   opts,
		st:     st,
		logger: log.WithName("http"),
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.Timeout,
		WriteTimeout: s.opts.Timeout,
	}

	lis, err := net.Listen(s.opts.Network, s.opts.Addr)
	if err != nil {
		return err
	}

	s.logger.Info("HTTP server listening", "addr", s.opts.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReadyz reports ready once the session has left Initializing; a
// session stuck before Ready (failed requirements check) stays not-ready.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.st.Step.Get() == state.StepInitializing {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("initializing"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.st.Snapshot()); err != nil {
		s.logger.Error(err, "Failed to encode session state")
	}
}
