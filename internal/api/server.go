// Package api serves conversions over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roboco-io/chaptermd/internal/service"
)

// Server is the HTTP API server for chaptermd.
type Server struct {
	router chi.Router
	svc    *service.Service
	log    *slog.Logger
}

// NewServer creates and configures the HTTP server.
func NewServer(svc *service.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		svc: svc,
		log: log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Get("/api/providers", s.handleProviders)
	r.Post("/api/inspect", s.handleInspect)
	r.Post("/api/convert", s.handleConvert)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type providerStatus struct {
	Name    string `json:"name"`
	Ready   bool   `json:"ready"`
	Default bool   `json:"default"`
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	reg := s.svc.Registry()
	names := reg.List()
	out := make([]providerStatus, 0, len(names))
	for _, name := range names {
		_, err := reg.Resolve(name)
		out = append(out, providerStatus{
			Name:    name,
			Ready:   err == nil,
			Default: name == s.svc.Config().DefaultProvider,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
