// Package control exposes the tracking agent's local control surface:
// status, history, manual test-location, and start/stop.
package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fieldtrack/internal/geoloc"
	"fieldtrack/internal/track"
)

// Server serves the control API for one tracking controller.
type Server struct {
	tracker *track.Controller
	router  *mux.Router
	logger  *slog.Logger
}

func NewServer(tracker *track.Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{tracker: tracker, logger: logger}
	s.router = mux.NewRouter()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/api/start", s.handleStart).Methods(http.MethodPost)
	s.router.HandleFunc("/api/stop", s.handleStop).Methods(http.MethodPost)
	s.router.HandleFunc("/api/test-location", s.handleTestLocation).Methods(http.MethodPost)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves the control API until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv.ListenAndServe()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Status())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Status().History)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Start(r.Context()); err != nil {
		s.logger.Warn("start via control api failed", "error", err)
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": s.tracker.Status()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Stop(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleTestLocation acquires a single fix with the requested strategy
// without touching the tracking session.
func (s *Server) handleTestLocation(w http.ResponseWriter, r *http.Request) {
	strategy := geoloc.Strategy(r.URL.Query().Get("strategy"))
	switch strategy {
	case "":
		strategy = geoloc.StrategyHighAccuracy
	case geoloc.StrategyNetwork, geoloc.StrategyHighAccuracy, geoloc.StrategyUltraAccuracy:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "unknown strategy"})
		return
	}

	sample, tier, err := s.tracker.TestLocation(r.Context(), strategy)
	if err != nil {
		writeJSON(w, statusForKind(geoloc.KindOf(err)), map[string]any{
			"success": false,
			"error":   err.Error(),
			"kind":    geoloc.KindOf(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"strategy": strategy,
		"sample":   sample,
		"tier":     tier,
		"label":    tier.Label(),
	})
}

func statusForKind(kind geoloc.Kind) int {
	switch kind {
	case geoloc.KindPermissionDenied:
		return http.StatusForbidden
	case geoloc.KindTimeout:
		return http.StatusGatewayTimeout
	case geoloc.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
