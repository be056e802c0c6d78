package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"dexalerts/internal/monitor"
)

// SnapshotSource exposes the latest published monitor state.
type SnapshotSource interface {
	Snapshot() monitor.Snapshot
}

// Options configure the status server.
type Options struct {
	Addr        string
	CORSOrigins []string
}

// Server serves liveness, readiness and monitor state over HTTP.
type Server struct {
	opts    Options
	source  SnapshotSource
	logger  zerolog.Logger
	started time.Time
}

// NewServer wires a status server around a snapshot source.
func NewServer(opts Options, source SnapshotSource, logger zerolog.Logger) *Server {
	return &Server{
		opts:    opts,
		source:  source,
		logger:  logger.With().Str("component", "status").Logger(),
		started: time.Now().UTC(),
	}
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.getHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.getReady).Methods(http.MethodGet)
	router.HandleFunc("/state", s.getState).Methods(http.MethodGet)

	if len(s.opts.CORSOrigins) == 0 {
		return router
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         3600,
	})
	return c.Handler(router)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("status server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("status server stopped")
	return nil
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// getReady reports ready once a baseline has been anchored.
func (s *Server) getReady(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Snapshot()
	code := http.StatusOK
	if snap.State != monitor.Tracking.String() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"state": snap.State})
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
