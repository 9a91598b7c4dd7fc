// Package export writes a search's businesses and their analyses to a
// spreadsheet the sales team can work through.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/martinbeasnunez/superscrap-sub000/internal/model"
	"github.com/martinbeasnunez/superscrap-sub000/internal/store"
)

var headers = []string{
	"Nombre", "Direccion", "Telefono", "Sitio web", "Rating", "Resenas",
	"Contactos", "Servicios detectados", "Coincidencia", "Confianza",
	"Estado", "Etapa",
}

// Exporter reads a search's rows from the store and renders the workbook.
type Exporter struct {
	store store.Store
}

func New(st store.Store) *Exporter {
	return &Exporter{store: st}
}

// WriteSearch renders one sheet for the given search. Businesses missing an
// analysis row still get exported with the analysis columns blank.
func (e *Exporter) WriteSearch(ctx context.Context, searchID string, w io.Writer) error {
	search, err := e.store.GetSearch(ctx, searchID)
	if err != nil {
		return eris.Wrap(err, "export: load search")
	}
	businesses, err := e.store.ListBusinesses(ctx, store.BusinessFilter{SearchID: searchID})
	if err != nil {
		return eris.Wrap(err, "export: load businesses")
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName(search))
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	headerRow := sheet.AddRow()
	for _, h := range headers {
		headerRow.AddCell().SetString(h)
	}

	for _, b := range businesses {
		analysis, err := e.store.GetAnalysisForBusiness(ctx, b.ID)
		if err != nil && !eris.Is(err, store.ErrNotFound) {
			return eris.Wrapf(err, "export: load analysis for %s", b.ID)
		}
		writeBusinessRow(sheet.AddRow(), b, analysis)
	}

	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func writeBusinessRow(row *xlsx.Row, b *model.Business, a *model.ServiceAnalysis) {
	row.AddCell().SetString(b.Name)
	row.AddCell().SetString(b.Address)
	row.AddCell().SetString(b.Phone)
	row.AddCell().SetString(b.Website)
	row.AddCell().SetFloatWithFormat(b.Rating, "0.0")
	row.AddCell().SetInt(b.Reviews)
	row.AddCell().SetString(formatDecisionMakers(b.DecisionMakers))

	if a != nil {
		row.AddCell().SetString(strings.Join(a.DetectedServices, ", "))
		row.AddCell().SetString(fmt.Sprintf("%.0f%%", a.MatchPercentage*100))
		row.AddCell().SetFloatWithFormat(a.Confidence, "0.00")
	} else {
		row.AddCell().SetString("")
		row.AddCell().SetString("")
		row.AddCell().SetString("")
	}

	row.AddCell().SetString(string(b.LeadStatus))
	row.AddCell().SetString(string(b.SalesStage))
}

func formatDecisionMakers(dms []model.DecisionMaker) string {
	if len(dms) == 0 {
		return ""
	}
	parts := make([]string, 0, len(dms))
	for _, dm := range dms {
		switch {
		case dm.Email != "" && dm.Phone != "":
			parts = append(parts, dm.Email+" / "+dm.Phone)
		case dm.Email != "":
			parts = append(parts, dm.Email)
		case dm.Phone != "":
			parts = append(parts, dm.Phone)
		}
	}
	return strings.Join(parts, "; ")
}

// sheetName bounds the title to the xlsx 31-char sheet name limit.
func sheetName(s *model.Search) string {
	name := fmt.Sprintf("%s %s", s.BusinessType, s.City)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
