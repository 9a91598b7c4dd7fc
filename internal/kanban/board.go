package kanban

import (
	"sort"
	"strings"
	"time"

	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
)

// Card is one business placed on the board, with its derived timing.
type Card struct {
	Business         *model.Business `json:"business"`
	Column           Column          `json:"column"`
	DaysSinceContact *int            `json:"days_since_contact,omitempty"`
}

// BoardColumn is a column plus its sorted cards.
type BoardColumn struct {
	Column Column `json:"column"`
	Count  int    `json:"count"`
	Cards  []Card `json:"cards"`
}

// Board is the full kanban view at a point in time.
type Board struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Columns     []BoardColumn `json:"columns"`
}

// Build classifies every business and assembles the eight columns with
// their presentation sort orders.
func Build(businesses []*model.Business, now time.Time) *Board {
	byColumn := make(map[Column][]Card, 8)
	for _, b := range businesses {
		col := Classify(b, now)
		byColumn[col] = append(byColumn[col], Card{
			Business:         b,
			Column:           col,
			DaysSinceContact: DaysSinceContact(b.ContactedAt, now),
		})
	}

	board := &Board{GeneratedAt: now}
	for _, col := range Columns() {
		cards := byColumn[col]
		sortCards(col, cards)
		board.Columns = append(board.Columns, BoardColumn{
			Column: col,
			Count:  len(cards),
			Cards:  cards,
		})
	}
	return board
}

// sortCards applies the per-column presentation order: entry columns and
// terminal columns by name, overdue columns oldest-first, active deal
// columns freshest-first.
func sortCards(col Column, cards []Card) {
	switch col {
	case ColNuevo, ColCliente, ColPerdido:
		sort.SliceStable(cards, func(i, j int) bool {
			return strings.ToLower(cards[i].Business.Name) < strings.ToLower(cards[j].Business.Name)
		})
	case ColContactado, ColSeguimiento1, ColSeguimiento2:
		sort.SliceStable(cards, func(i, j int) bool {
			return daysOrNeg(cards[i]) > daysOrNeg(cards[j])
		})
	case ColInteresado, ColCotizado:
		sort.SliceStable(cards, func(i, j int) bool {
			di, dj := cards[i].DaysSinceContact, cards[j].DaysSinceContact
			// Never-contacted cards sink to the bottom.
			if (di == nil) != (dj == nil) {
				return dj == nil
			}
			if di == nil {
				return false
			}
			return *di < *dj
		})
	}
}

func daysOrNeg(c Card) int {
	if c.DaysSinceContact == nil {
		return -1
	}
	return *c.DaysSinceContact
}
