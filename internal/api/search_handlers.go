package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/martinbeasnunez/superscrap-sub000/internal/ingest"
	"github.com/martinbeasnunez/superscrap-sub000/internal/kanban"
	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
	"github.com/martinbeasnunez/superscrap-sub000/internal/store"
)

type createSearchRequest struct {
	UserID           string   `json:"user_id"`
	BusinessType     string   `json:"business_type"`
	City             string   `json:"city"`
	RequiredServices []string `json:"required_services"`
	Source           string   `json:"source"`
	Page             int      `json:"page"`
	LoadMore         bool     `json:"load_more"`
	DeepScrape       bool     `json:"deep_scrape"`
}

func (s *Server) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var req createSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BusinessType == "" || req.City == "" {
		writeError(w, http.StatusBadRequest, "business_type and city are required")
		return
	}
	source := model.SourceMaps
	if req.Source == string(model.SourceDirectory) {
		source = model.SourceDirectory
	}

	search := &model.Search{
		UserID:           req.UserID,
		BusinessType:     req.BusinessType,
		City:             req.City,
		RequiredServices: req.RequiredServices,
		Source:           source,
	}
	if err := s.store.CreateSearch(r.Context(), search); err != nil {
		s.notFoundOr500(w, err, "create search")
		return
	}

	if s.pipeline != nil {
		// The run outlives the request; it owns its own context.
		events := s.pipeline.Run(context.Background(), search, ingest.Options{
			Page:       req.Page,
			LoadMore:   req.LoadMore,
			DeepScrape: req.DeepScrape,
		})
		s.progress.put(search.ID, events)
	}

	writeJSON(w, http.StatusAccepted, search)
}

func (s *Server) handleListSearches(w http.ResponseWriter, r *http.Request) {
	filter := store.SearchFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: model.SearchStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	searches, err := s.store.ListSearches(r.Context(), filter)
	if err != nil {
		s.notFoundOr500(w, err, "list searches")
		return
	}
	if searches == nil {
		searches = []model.Search{}
	}
	writeJSON(w, http.StatusOK, searches)
}

func (s *Server) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	search, err := s.store.GetSearch(r.Context(), chi.URLParam(r, "searchID"))
	if err != nil {
		s.notFoundOr500(w, err, "get search")
		return
	}
	writeJSON(w, http.StatusOK, search)
}

func (s *Server) handleDeleteSearch(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "searchID")
	if err := s.store.DeleteSearch(r.Context(), searchID); err != nil {
		s.notFoundOr500(w, err, "delete search")
		return
	}
	s.progress.drop(searchID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSearchBusinesses(w http.ResponseWriter, r *http.Request) {
	filter := store.BusinessFilter{
		SearchID:   chi.URLParam(r, "searchID"),
		LeadStatus: model.LeadStatus(r.URL.Query().Get("lead_status")),
		Limit:      queryInt(r, "limit"),
		Offset:     queryInt(r, "offset"),
	}
	businesses, err := s.store.ListBusinesses(r.Context(), filter)
	if err != nil {
		s.notFoundOr500(w, err, "list businesses")
		return
	}
	if businesses == nil {
		businesses = []*model.Business{}
	}
	writeJSON(w, http.StatusOK, businesses)
}

func (s *Server) handleKanban(w http.ResponseWriter, r *http.Request) {
	businesses, err := s.store.ListBusinesses(r.Context(), store.BusinessFilter{
		SearchID: chi.URLParam(r, "searchID"),
	})
	if err != nil {
		s.notFoundOr500(w, err, "kanban businesses")
		return
	}
	writeJSON(w, http.StatusOK, kanban.Build(businesses, s.now()))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "searchID")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leads-%s.xlsx"`, searchID))
	if err := s.exporter.WriteSearch(r.Context(), searchID, w); err != nil {
		// Headers may be gone already; log and give up on the body.
		s.log.Error("export failed", zap.Error(err))
	}
}

func queryInt(r *http.Request, key string) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
