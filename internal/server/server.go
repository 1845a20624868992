// Package server exposes fleet status and the coordination store over
// HTTP, for operators watching a running fleet.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skein-dev/skein/internal/fleet"
	"github.com/skein-dev/skein/internal/version"
)

// Server is the skein status HTTP server.
type Server struct {
	fleet *fleet.Fleet
}

// New creates a status server over a fleet.
func New(f *fleet.Fleet) *Server {
	return &Server{fleet: f}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version.Get()})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/agents", s.handleAgents)
		r.Get("/memory/search", s.handleMemorySearch)
		r.Get("/memory/stats", s.handleMemoryStats)
	})

	return r
}

// handleStatus returns the aggregate fleet snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.fleet.Status())
}

// handleAgents returns the registered agents' capability summaries.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": s.fleet.Orchestrator().Registry().Capabilities(),
	})
}

// handleMemorySearch runs a regex search over the coordination store.
// The pattern comes from the "pattern" query parameter.
func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		writeError(w, http.StatusBadRequest, "pattern query parameter is required")
		return
	}

	matches, err := s.fleet.Memory().Search(pattern)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pattern": pattern,
		"count":   len(matches),
		"matches": matches,
	})
}

// handleMemoryStats returns coordination store statistics.
func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.fleet.Memory().Stats())
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}
