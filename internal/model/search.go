package model

import "time"

// SearchStatus represents the lifecycle of an ingestion run.
type SearchStatus string

const (
	SearchPending    SearchStatus = "pending"
	SearchProcessing SearchStatus = "processing"
	SearchCompleted  SearchStatus = "completed"
	SearchFailed     SearchStatus = "failed"
)

// SearchSource selects the listing provider for a search.
type SearchSource string

const (
	SourceMaps      SearchSource = "maps"
	SourceDirectory SearchSource = "directory"
)

// Search is a saved query plus the state of its ingestion run.
type Search struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id,omitempty"`
	BusinessType     string       `json:"business_type"`
	City             string       `json:"city"`
	RequiredServices []string     `json:"required_services,omitempty"`
	Source           SearchSource `json:"source"`
	Status           SearchStatus `json:"status"`
	TotalResults     int          `json:"total_results"`
	MatchingResults  int          `json:"matching_results"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// ServiceAnalysis holds the classification outcome for one business within
// a search. Written once at ingestion time, never mutated.
type ServiceAnalysis struct {
	ID                 string    `json:"id"`
	BusinessID         string    `json:"business_id"`
	SearchID           string    `json:"search_id"`
	DetectedServices   []string  `json:"detected_services"`
	Confidence         float64   `json:"confidence"`
	Evidence           string    `json:"evidence,omitempty"`
	MatchesRequirement bool      `json:"matches_requirement"`
	MatchPercentage    float64   `json:"match_percentage"`
	CreatedAt          time.Time `json:"created_at"`
}

// ContactHistoryEntry is one append-only record of a contact action.
type ContactHistoryEntry struct {
	ID         string        `json:"id"`
	BusinessID string        `json:"business_id"`
	UserID     string        `json:"user_id"`
	Action     ContactAction `json:"action"`
	Notes      string        `json:"notes,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
