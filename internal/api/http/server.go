// Package httpapi exposes the read-only diagnostics surface: per-envelope
// tracker snapshots and machine state, by envelope UUID.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	appMonitor "github.com/submission-hub/submission-hub/internal/application/monitor"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	monitorSvc *appMonitor.Service
}

func NewServer(monitorSvc *appMonitor.Service) *Server {
	return &Server{monitorSvc: monitorSvc}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Route("/envelopes/{envelopeUuid}", func(r chi.Router) {
			r.Get("/", s.getEnvelope)
			r.Get("/documents", s.getDocuments)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) getEnvelope(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "envelopeUuid")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid envelopeUuid")
		return
	}
	m, ok := s.monitorSvc.FindMachine(id)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no machine for envelope")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"envelope_uuid": m.EnvelopeUUID,
		"envelope_id":   m.EnvelopeID,
		"state":         m.State(),
	})
}

func (s *Server) getDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "envelopeUuid")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid envelopeUuid")
		return
	}
	snap, ok := s.monitorSvc.TrackerSnapshot(id)
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no machine for envelope")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, key))
}
