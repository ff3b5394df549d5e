package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"payrollaudit/review"
)

// GeneralHeaders are the columns of the findings export.
var GeneralHeaders = []string{
	"RFC",
	"Nombre",
	"Puesto",
	"Ente Origen",
	"Fecha Alta",
	"Fecha Baja",
	"Total Percepciones",
	"Entes Incompatibilidad",
	"Quincenas Cruce",
	"Estatus",
	"Solventacion",
}

// ResolvedHeaders are the columns of the resolved export.
var ResolvedHeaders = []string{"RFC", "Nombre", "Ente Origen", "Estatus", "Motivo de Solventación", "Observación"}

const sheetName = "Resultados"

// WriteFindings writes rows as an xlsx workbook to w.
func WriteFindings(w io.Writer, rows []Row) error {
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = []any{
			r.PersonID,
			r.FullName,
			r.Position,
			r.OriginEntity,
			r.HireDate,
			r.TerminationDate,
			r.Amount,
			r.IncompatibleEntities,
			r.Periods,
			string(r.State),
			r.Resolution,
		}
	}
	return writeSheet(w, GeneralHeaders, data)
}

// WriteResolved writes the resolved detail as an xlsx workbook to w.
func WriteResolved(w io.Writer, rows []ResolvedRow) error {
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = []any{r.PersonID, r.FullName, r.Entities, string(review.StateResolved), r.Reason, r.Observation}
	}
	return writeSheet(w, ResolvedHeaders, data)
}

func writeSheet(w io.Writer, headers []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("report: header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return fmt.Errorf("report: header range: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("report: header style: %w", err)
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len([]rune(h))
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("report: row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("report: write row %d: %w", i+2, err)
		}
		for c, v := range row {
			if c < len(widths) {
				if n := len([]rune(fmt.Sprint(v))); n > widths[c] {
					widths[c] = n
				}
			}
		}
	}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("report: column %d: %w", i+1, err)
		}
		if err := f.SetColWidth(sheetName, col, col, float64(min(width+2, 80))); err != nil {
			return fmt.Errorf("report: column width: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("report: write workbook: %w", err)
	}
	return nil
}

// FileName builds an export name such as SASP_Resultados_Generales_20250301_100000.xlsx.
func FileName(base string, at time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", base, at.Format("20060102_150405"))
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
