package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/martinbeasnunez/superscrap-sub000/internal/kanban"
	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
	"github.com/martinbeasnunez/superscrap-sub000/internal/stats"
	"github.com/martinbeasnunez/superscrap-sub000/internal/store"
)

func (s *Server) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBusiness(r.Context(), chi.URLParam(r, "businessID"))
	if err != nil {
		s.notFoundOr500(w, err, "get business")
		return
	}

	analysis, err := s.store.GetAnalysisForBusiness(r.Context(), b.ID)
	if err != nil && !errIsNotFound(err) {
		s.notFoundOr500(w, err, "get analysis")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*model.Business
		Column   kanban.Column          `json:"column"`
		Analysis *model.ServiceAnalysis `json:"analysis,omitempty"`
	}{
		Business: b,
		Column:   kanban.Classify(b, s.now()),
		Analysis: analysis,
	})
}

type moveStageRequest struct {
	Column kanban.Column `json:"column"`
}

// handleMoveStage applies a kanban drag. Moves into the derived follow-up
// columns persist nothing beyond the contactado floor; the response carries
// the re-derived column so the UI reconciles.
func (s *Server) handleMoveStage(w http.ResponseWriter, r *http.Request) {
	var req moveStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !kanban.Valid(req.Column) {
		writeError(w, http.StatusBadRequest, "unknown column")
		return
	}

	b, err := s.store.GetBusiness(r.Context(), chi.URLParam(r, "businessID"))
	if err != nil {
		s.notFoundOr500(w, err, "get business")
		return
	}

	if stage, persist := kanban.StageForMove(b, req.Column); persist {
		if err := s.store.UpdateSalesStage(r.Context(), b.ID, stage); err != nil {
			s.notFoundOr500(w, err, "update sales stage")
			return
		}
		b.SalesStage = stage
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"business": b,
		"column":   kanban.Classify(b, s.now()),
	})
}

type updateLeadStatusRequest struct {
	LeadStatus model.LeadStatus `json:"lead_status"`
}

func (s *Server) handleUpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	var req updateLeadStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.LeadStatus {
	case model.LeadNoContact, model.LeadProspect, model.LeadDiscarded, model.LeadCliente:
	default:
		writeError(w, http.StatusBadRequest, "unknown lead status")
		return
	}

	businessID := chi.URLParam(r, "businessID")
	if err := s.store.UpdateLeadStatus(r.Context(), businessID, req.LeadStatus); err != nil {
		s.notFoundOr500(w, err, "update lead status")
		return
	}

	b, err := s.store.GetBusiness(r.Context(), businessID)
	if err != nil {
		s.notFoundOr500(w, err, "get business")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type addContactRequest struct {
	UserID string              `json:"user_id"`
	Action model.ContactAction `json:"action"`
	Notes  string              `json:"notes"`
}

func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	var req addContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidAction(req.Action) {
		writeError(w, http.StatusBadRequest, "action must be whatsapp, email or call")
		return
	}

	b, err := s.store.AddContactHistory(r.Context(), &model.ContactHistoryEntry{
		BusinessID: chi.URLParam(r, "businessID"),
		UserID:     req.UserID,
		Action:     req.Action,
		Notes:      req.Notes,
	})
	if err != nil {
		s.notFoundOr500(w, err, "add contact")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"business": b,
		"column":   kanban.Classify(b, s.now()),
	})
}

func (s *Server) handleContactHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListContactHistory(r.Context(), chi.URLParam(r, "businessID"))
	if err != nil {
		s.notFoundOr500(w, err, "list contact history")
		return
	}
	if entries == nil {
		entries = []model.ContactHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	businesses, err := s.allBusinesses(r)
	if err != nil {
		s.notFoundOr500(w, err, "stats businesses")
		return
	}
	writeJSON(w, http.StatusOK, stats.Summarize(businesses, s.now()))
}

func (s *Server) handleFollowUps(w http.ResponseWriter, r *http.Request) {
	businesses, err := s.allBusinesses(r)
	if err != nil {
		s.notFoundOr500(w, err, "follow-up businesses")
		return
	}
	minDays := queryInt(r, "days")
	if minDays <= 0 {
		minDays = stats.DefaultFollowUpDays
	}
	items := stats.FollowUps(businesses, s.now(), minDays)
	if items == nil {
		items = []stats.FollowUpItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleContactedToday(w http.ResponseWriter, r *http.Request) {
	businesses, err := s.allBusinesses(r)
	if err != nil {
		s.notFoundOr500(w, err, "contacted-today businesses")
		return
	}
	today := stats.ContactedToday(businesses, s.now())
	if today == nil {
		today = []*model.Business{}
	}
	writeJSON(w, http.StatusOK, today)
}

// allBusinesses loads the population for the aggregate views, optionally
// restricted to one search.
func (s *Server) allBusinesses(r *http.Request) ([]*model.Business, error) {
	return s.store.ListBusinesses(r.Context(), store.BusinessFilter{
		SearchID: r.URL.Query().Get("search_id"),
	})
}

func errIsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
