package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// sheetBook is a workbook opened for reading, whatever its on-disk format.
type sheetBook interface {
	Sheets() []string
	Rows(sheet string) ([][]string, error)
	Close() error
}

// openBook picks the reader by extension: OOXML through excelize, legacy BIFF
// (.xls) through extrame/xls.
func openBook(name string, data []byte) (sheetBook, error) {
	if strings.EqualFold(filepath.Ext(name), ".xls") {
		return openXLS(data)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return xlsxBook{f}, nil
}

type xlsxBook struct{ f *excelize.File }

func (b xlsxBook) Sheets() []string { return b.f.GetSheetList() }

func (b xlsxBook) Rows(sheet string) ([][]string, error) {
	return b.f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

func (b xlsxBook) Close() error { return b.f.Close() }

type xlsBook struct {
	names  []string
	sheets map[string]*xls.WorkSheet
}

func openXLS(data []byte) (book sheetBook, err error) {
	// The BIFF parser panics on some truncated streams.
	defer func() {
		if r := recover(); r != nil {
			book, err = nil, fmt.Errorf("xls: corrupt workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("xls: %w", err)
	}
	if wb == nil {
		return nil, fmt.Errorf("xls: empty workbook")
	}
	b := xlsBook{sheets: make(map[string]*xls.WorkSheet)}
	for i := 0; i < wb.NumSheets(); i++ {
		s := wb.GetSheet(i)
		if s == nil {
			continue
		}
		b.names = append(b.names, s.Name)
		b.sheets[s.Name] = s
	}
	return b, nil
}

func (b xlsBook) Sheets() []string { return b.names }

func (b xlsBook) Rows(sheet string) (rows [][]string, err error) {
	s, ok := b.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("xls: sheet %q not found", sheet)
	}
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("xls: sheet %q: %v", sheet, r)
		}
	}()

	// MaxRow is the last row index; a BIFF sheet may skip empty rows.
	for i := 0; i <= int(s.MaxRow); i++ {
		row := s.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := range cells {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

func (b xlsBook) Close() error { return nil }
