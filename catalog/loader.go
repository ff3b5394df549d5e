package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadSpreadsheet reads catalog rows from the active sheet of an xlsx stream.
// The first row holds headers; NUM (or NUMERO), CLAVE, NOMBRE, SIGLAS and
// CLASIFICACION are recognised. Rows without CLAVE or NOMBRE are skipped.
func LoadSpreadsheet(r io.Reader, scope Scope) ([]Entry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("catalog: open spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		return nil, fmt.Errorf("catalog: spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("catalog: read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(h), " ", "_"))
		if _, dup := header[name]; !dup {
			header[name] = i
		}
	}
	cell := func(row []string, names ...string) string {
		for _, n := range names {
			if idx, ok := header[n]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
		}
		return ""
	}

	entries := make([]Entry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		e := Entry{
			Ordinal:        cell(row, "NUM", "NUMERO"),
			Key:            cell(row, "CLAVE"),
			Name:           cell(row, "NOMBRE"),
			ShortCode:      cell(row, "SIGLAS"),
			Classification: cell(row, "CLASIFICACION"),
			Scope:          scope,
			Active:         true,
		}
		if e.Key == "" || e.Name == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
