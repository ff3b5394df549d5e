package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"payrollaudit/records"
)

// Column names after header normalisation.
const (
	ColPersonID        = "RFC"
	ColFullName        = "NOMBRE"
	ColPosition        = "PUESTO"
	ColHireDate        = "FECHA_ALTA"
	ColTerminationDate = "FECHA_BAJA"
	ColAmount          = "TOT_PERC"
)

// RequiredColumns must all be present for a sheet to be ingested.
var RequiredColumns = []string{ColPersonID, ColFullName, ColPosition, ColHireDate, ColTerminationDate}

// ErrInvalidPersonID marks a row whose RFC does not normalise to 10-13 characters.
var ErrInvalidPersonID = errors.New("ingest: invalid person id")

// NormalizeHeader uppercases and trims a header cell, joining words with "_".
func NormalizeHeader(h string) string {
	return strings.ToUpper(strings.Join(strings.Fields(h), "_"))
}

var inactiveTokens = map[string]struct{}{
	"":     {},
	"0":    {},
	"0.0":  {},
	"NO":   {},
	"N/A":  {},
	"NA":   {},
	"NONE": {},
}

// IsActiveValue reports whether a period cell marks the period as worked.
func IsActiveValue(raw string) bool {
	_, inactive := inactiveTokens[strings.ToUpper(strings.TrimSpace(raw))]
	return !inactive
}

var nullDateTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"nat":  {},
	"none": {},
	"null": {},
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
}

// fallbackLayouts cover the looser shapes spreadsheets tend to emit.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2/1/2006",
	"2-1-2006",
	"2006.01.02",
	"02.01.2006",
	"02-Jan-2006",
	"2 January 2006",
	"January 2, 2006",
}

// excelEpoch is day zero of the 1900 date system as spreadsheets count it.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const maxExcelSerial = 2958465 // 9999-12-31

// ParseDate accepts a spreadsheet serial number or a textual date and returns
// the calendar date in UTC. Sentinels and unparsable values yield nil.
func ParseDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if _, null := nullDateTokens[strings.ToLower(s)]; null {
		return nil
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial < 1 || serial > maxExcelSerial || math.IsNaN(serial) {
			return nil
		}
		d := excelEpoch.AddDate(0, 0, int(serial))
		return &d
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t)
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t)
		}
	}
	return nil
}

func dateOnly(t time.Time) *time.Time {
	y, m, d := t.Date()
	u := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &u
}

// ParseAmount reads a currency cell, tolerating "$" and thousands separators.
// Blank or unparsable values are zero.
func ParseAmount(raw string) float64 {
	s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Row is one data row keyed by normalised header.
type Row map[string]string

// NewRecord validates a row and converts it into an employment record for
// entityKey. Only the person id is mandatory; every other field degrades to
// its zero value.
func NewRecord(row Row, entityKey string) (records.Record, error) {
	personID, ok := records.NormalizePersonID(row[ColPersonID])
	if !ok {
		return records.Record{}, fmt.Errorf("%w: %q", ErrInvalidPersonID, row[ColPersonID])
	}
	if entityKey == "" {
		return records.Record{}, fmt.Errorf("ingest: missing entity key for %s", personID)
	}

	rec := records.Record{
		PersonID:        personID,
		EntityKey:       entityKey,
		FullName:        strings.TrimSpace(row[ColFullName]),
		Position:        strings.TrimSpace(row[ColPosition]),
		HireDate:        ParseDate(row[ColHireDate]),
		TerminationDate: ParseDate(row[ColTerminationDate]),
		Amount:          ParseAmount(row[ColAmount]),
		PeriodValues:    map[records.Period]string{},
	}

	for col, value := range row {
		p, ok := records.ParsePeriod(col)
		if !ok || !IsActiveValue(value) {
			continue
		}
		rec.Periods = rec.Periods.Add(p)
		rec.PeriodValues[p] = strings.TrimSpace(value)
	}

	return rec, nil
}
