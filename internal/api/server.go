// Package api exposes the HTTP surface consumed by the sales dashboard:
// search CRUD with live ingestion progress, the kanban board, contact
// tracking and stats.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/martinbeasnunez/superscrap-sub000/internal/export"
	"github.com/martinbeasnunez/superscrap-sub000/internal/ingest"
	"github.com/martinbeasnunez/superscrap-sub000/internal/store"
)

// Server holds the handler dependencies.
type Server struct {
	store    store.Store
	pipeline *ingest.Pipeline
	exporter *export.Exporter
	progress *progressTracker
	log      *zap.Logger

	// now is swappable for tests of time-derived views.
	now func() time.Time
}

// New builds a Server. pipeline may be nil when the API is serving a
// read-only deployment.
func New(st store.Store, pipeline *ingest.Pipeline) *Server {
	return &Server{
		store:    st,
		pipeline: pipeline,
		exporter: export.New(st),
		progress: newProgressTracker(),
		log:      zap.L().With(zap.String("component", "api")),
		now:      time.Now,
	}
}

// Router assembles the chi routing tree.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/searches", func(r chi.Router) {
			r.Post("/", s.handleCreateSearch)
			r.Get("/", s.handleListSearches)
			r.Route("/{searchID}", func(r chi.Router) {
				r.Get("/", s.handleGetSearch)
				r.Delete("/", s.handleDeleteSearch)
				r.Get("/progress", s.handleProgress)
				r.Get("/businesses", s.handleListSearchBusinesses)
				r.Get("/kanban", s.handleKanban)
				r.Get("/export", s.handleExport)
			})
		})
		r.Route("/businesses/{businessID}", func(r chi.Router) {
			r.Get("/", s.handleGetBusiness)
			r.Patch("/stage", s.handleMoveStage)
			r.Patch("/status", s.handleUpdateLeadStatus)
			r.Post("/contact", s.handleAddContact)
			r.Get("/contact-history", s.handleContactHistory)
		})
		r.Get("/stats", s.handleStats)
		r.Get("/follow-ups", s.handleFollowUps)
		r.Get("/contacted-today", s.handleContactedToday)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// notFoundOr500 maps store.ErrNotFound to 404 and everything else to 500.
func (s *Server) notFoundOr500(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.log.Error(action, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
