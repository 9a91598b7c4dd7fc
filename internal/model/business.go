package model

import "time"

// ContactAction is one way a prospect has been reached.
type ContactAction string

const (
	ActionWhatsApp ContactAction = "whatsapp"
	ActionEmail    ContactAction = "email"
	ActionCall     ContactAction = "call"
)

// ValidAction reports whether a is one of the known contact actions.
func ValidAction(a ContactAction) bool {
	switch a {
	case ActionWhatsApp, ActionEmail, ActionCall:
		return true
	}
	return false
}

// LeadStatus is the coarse persisted classification of a prospect.
type LeadStatus string

const (
	LeadNoContact LeadStatus = "no_contact"
	LeadProspect  LeadStatus = "prospect"
	LeadDiscarded LeadStatus = "discarded"
	// LeadCliente appears on businesses marked won through the legacy UI
	// path; the kanban classifier treats it as terminal.
	LeadCliente LeadStatus = "cliente"
)

// NormalizeLeadStatus maps legacy lead status values onto the current
// enumeration. "lead" and "contacted" predate the prospect/no_contact split.
func NormalizeLeadStatus(raw string) LeadStatus {
	switch raw {
	case "lead":
		return LeadProspect
	case "contacted":
		return LeadNoContact
	case "":
		return LeadNoContact
	default:
		return LeadStatus(raw)
	}
}

// SalesStage is the persisted, user-driven pipeline position.
type SalesStage string

const (
	StageNuevo      SalesStage = "nuevo"
	StageContactado SalesStage = "contactado"
	StageInteresado SalesStage = "interesado"
	StageCotizado   SalesStage = "cotizado"
	StageCliente    SalesStage = "cliente"
	StagePerdido    SalesStage = "perdido"
)

// ValidStage reports whether s is a persistable sales stage. The follow-up
// kanban columns are derived views and are deliberately not included.
func ValidStage(s SalesStage) bool {
	switch s {
	case StageNuevo, StageContactado, StageInteresado, StageCotizado, StageCliente, StagePerdido:
		return true
	}
	return false
}

// DecisionMaker is a contact person attached to a business, sourced from
// website scraping or a directory listing.
type DecisionMaker struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Confidence int    `json:"confidence"`
	Source     string `json:"source"`
}

// Business is a prospect found by a search.
type Business struct {
	ID          string  `json:"id"`
	SearchID    string  `json:"search_id"`
	ExternalID  string  `json:"external_id,omitempty"`
	Name        string  `json:"name"`
	Address     string  `json:"address,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Website     string  `json:"website,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Reviews     int     `json:"reviews,omitempty"`
	Description string  `json:"description,omitempty"`

	DecisionMakers []DecisionMaker `json:"decision_makers,omitempty"`

	// ContactActions has set semantics: membership only, order irrelevant.
	ContactActions []ContactAction `json:"contact_actions"`
	LeadStatus     LeadStatus      `json:"lead_status"`
	SalesStage     SalesStage      `json:"sales_stage,omitempty"`
	ContactedAt    *time.Time      `json:"contacted_at,omitempty"`
	ContactedBy    string          `json:"contacted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAction reports whether the action is already in the contact set.
func (b *Business) HasAction(a ContactAction) bool {
	for _, x := range b.ContactActions {
		if x == a {
			return true
		}
	}
	return false
}

// RecordAction adds a to the contact set if absent and refreshes the
// last-contact fields. Returns true when the set grew.
func (b *Business) RecordAction(a ContactAction, by string, at time.Time) bool {
	b.ContactedAt = &at
	b.ContactedBy = by
	if b.HasAction(a) {
		return false
	}
	b.ContactActions = append(b.ContactActions, a)
	return true
}

// Normalize migrates legacy field generations onto the current model. It is
// called once at the storage boundary (on scan), never in consumers: the
// pre-rewrite code repeated this mapping at every call site.
//
// legacyContactStatus is the old singular contact_status column; when the
// action set is empty but the singular field holds a known action, the
// action is lifted into the set.
func (b *Business) Normalize(legacyContactStatus string) {
	b.LeadStatus = NormalizeLeadStatus(string(b.LeadStatus))

	if len(b.ContactActions) == 0 && legacyContactStatus != "" {
		if a := ContactAction(legacyContactStatus); ValidAction(a) {
			b.ContactActions = []ContactAction{a}
		}
	}

	// Invariant: contacted_at/contacted_by are set iff actions exist.
	if len(b.ContactActions) == 0 {
		b.ContactedAt = nil
		b.ContactedBy = ""
	}
}
