// Package kanban derives the display column for each prospect. A Column is
// a projection computed from persisted fields plus the clock; it is a
// distinct type from model.SalesStage so a derived column can never be
// persisted by accident.
package kanban

import (
	"math"
	"time"

	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
)

// Column is one of the eight kanban columns. Only some columns correspond
// to a persistable sales stage; see Virtual.
type Column string

const (
	ColNuevo        Column = "nuevo"
	ColContactado   Column = "contactado"
	ColSeguimiento1 Column = "seguimiento_1"
	ColSeguimiento2 Column = "seguimiento_2"
	ColInteresado   Column = "interesado"
	ColCotizado     Column = "cotizado"
	ColCliente      Column = "cliente"
	ColPerdido      Column = "perdido"
)

// Columns lists the board columns in display order.
func Columns() []Column {
	return []Column{
		ColNuevo, ColContactado, ColSeguimiento1, ColSeguimiento2,
		ColInteresado, ColCotizado, ColCliente, ColPerdido,
	}
}

// Valid reports whether c names a board column.
func Valid(c Column) bool {
	for _, col := range Columns() {
		if col == c {
			return true
		}
	}
	return false
}

// Virtual reports whether c is time-derived only. Virtual columns have no
// corresponding sales stage and dragging a card into one persists nothing.
func Virtual(c Column) bool {
	return c == ColSeguimiento1 || c == ColSeguimiento2
}

// Follow-up day thresholds.
const (
	followUp1Days = 3
	followUp2Days = 6
)

// DaysSinceContact returns floor((now - contactedAt) in whole days), or nil
// when the business was never contacted.
func DaysSinceContact(contactedAt *time.Time, now time.Time) *int {
	if contactedAt == nil {
		return nil
	}
	days := int(math.Floor(now.Sub(*contactedAt).Hours() / 24))
	return &days
}

// Classify places a business into a column. It is a pure function of the
// persisted fields and now; first matching rule wins.
func Classify(b *model.Business, now time.Time) Column {
	days := DaysSinceContact(b.ContactedAt, now)

	switch {
	case b.SalesStage == model.StageCliente || b.LeadStatus == model.LeadCliente:
		return ColCliente
	case b.SalesStage == model.StagePerdido || b.LeadStatus == model.LeadDiscarded:
		return ColPerdido
	case b.SalesStage == model.StageCotizado:
		return ColCotizado
	case b.SalesStage == model.StageInteresado || b.LeadStatus == model.LeadProspect:
		// Interest without follow-up goes stale on the same schedule as
		// plain contact.
		return followUpColumn(days, ColInteresado)
	case len(b.ContactActions) == 0:
		return ColNuevo
	case days != nil:
		return followUpColumn(days, ColContactado)
	default:
		// Contact actions exist but no resolvable last-contact date.
		return ColContactado
	}
}

func followUpColumn(days *int, fresh Column) Column {
	switch {
	case days != nil && *days >= followUp2Days:
		return ColSeguimiento2
	case days != nil && *days >= followUp1Days:
		return ColSeguimiento1
	default:
		return fresh
	}
}

// StageForMove resolves what sales stage, if any, a drag into target should
// persist. Virtual targets persist nothing unless the business has no
// concrete stage yet, in which case contactado is written so the card does
// not re-derive into nuevo.
func StageForMove(b *model.Business, target Column) (model.SalesStage, bool) {
	if Virtual(target) {
		if b.SalesStage == "" || b.SalesStage == model.StageNuevo {
			return model.StageContactado, true
		}
		return b.SalesStage, false
	}
	stage := model.SalesStage(target)
	if !model.ValidStage(stage) {
		return b.SalesStage, false
	}
	return stage, stage != b.SalesStage
}
