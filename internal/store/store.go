// Package store persists searches, businesses, analyses and contact history
// behind a backend-neutral interface.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// SearchFilter specifies criteria for listing searches.
type SearchFilter struct {
	UserID string             `json:"user_id,omitempty"`
	Status model.SearchStatus `json:"status,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// BusinessFilter specifies criteria for listing businesses.
type BusinessFilter struct {
	SearchID   string           `json:"search_id,omitempty"`
	LeadStatus model.LeadStatus `json:"lead_status,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Searches
	CreateSearch(ctx context.Context, s *model.Search) error
	GetSearch(ctx context.Context, id string) (*model.Search, error)
	ListSearches(ctx context.Context, filter SearchFilter) ([]model.Search, error)
	UpdateSearchStatus(ctx context.Context, id string, status model.SearchStatus) error
	UpdateSearchTotals(ctx context.Context, id string, total, matching int) error
	// DeleteSearch cascades to the search's businesses, their analyses and
	// their contact history.
	DeleteSearch(ctx context.Context, id string) error
	// SweepStaleSearches marks processing searches older than the cutoff as
	// failed and returns how many were swept.
	SweepStaleSearches(ctx context.Context, olderThan time.Duration) (int, error)

	// Businesses
	CreateBusiness(ctx context.Context, b *model.Business) error
	GetBusiness(ctx context.Context, id string) (*model.Business, error)
	ListBusinesses(ctx context.Context, filter BusinessFilter) ([]*model.Business, error)
	UpdateSalesStage(ctx context.Context, id string, stage model.SalesStage) error
	UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error
	// ExternalIDs returns the set of already-persisted listing identifiers
	// for a search, used for dedupe in load-more mode.
	ExternalIDs(ctx context.Context, searchID string) (map[string]bool, error)

	// Service analyses
	CreateAnalysis(ctx context.Context, a *model.ServiceAnalysis) error
	GetAnalysisForBusiness(ctx context.Context, businessID string) (*model.ServiceAnalysis, error)

	// Contact history. AddContactHistory appends the entry and, in the same
	// transaction, folds the action into the business's contact set and
	// refreshes contacted_at/contacted_by. Returns the updated business.
	AddContactHistory(ctx context.Context, entry *model.ContactHistoryEntry) (*model.Business, error)
	ListContactHistory(ctx context.Context, businessID string) ([]model.ContactHistoryEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
