package records

import (
	"fmt"
	"math/bits"
	"regexp"
	"strconv"
)

// PeriodCount is the number of bi-weekly pay periods (quincenas) in a year.
const PeriodCount = 24

// Period is a pay period number in [1, PeriodCount].
type Period int

var periodCodeRE = regexp.MustCompile(`^QNA([1-9]|1[0-9]|2[0-4])$`)

// Code renders the period as its column code, e.g. QNA7.
func (p Period) Code() string {
	return fmt.Sprintf("QNA%d", int(p))
}

// Valid reports whether p is within range.
func (p Period) Valid() bool {
	return p >= 1 && p <= PeriodCount
}

// ParsePeriod parses a column code such as "QNA12". Codes must already be
// uppercase and trimmed.
func ParsePeriod(code string) (Period, bool) {
	m := periodCodeRE.FindStringSubmatch(code)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return Period(n), true
}

// PeriodSet is a set of periods stored as a bitmask (bit p-1 for period p).
type PeriodSet uint32

// NewPeriodSet builds a set from periods, ignoring invalid ones.
func NewPeriodSet(periods ...Period) PeriodSet {
	var s PeriodSet
	for _, p := range periods {
		s = s.Add(p)
	}
	return s
}

func (s PeriodSet) Add(p Period) PeriodSet {
	if !p.Valid() {
		return s
	}
	return s | 1<<uint(p-1)
}

func (s PeriodSet) Has(p Period) bool {
	return p.Valid() && s&(1<<uint(p-1)) != 0
}

func (s PeriodSet) Intersect(o PeriodSet) PeriodSet { return s & o }

func (s PeriodSet) Union(o PeriodSet) PeriodSet { return s | o }

func (s PeriodSet) Empty() bool { return s == 0 }

func (s PeriodSet) Len() int { return bits.OnesCount32(uint32(s)) }

// Full reports whether every period of the year is present.
func (s PeriodSet) Full() bool { return s.Len() == PeriodCount }

// Periods lists the members in ascending order.
func (s PeriodSet) Periods() []Period {
	out := make([]Period, 0, s.Len())
	for p := Period(1); p <= PeriodCount; p++ {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Codes lists the members as column codes in ascending period order.
func (s PeriodSet) Codes() []string {
	periods := s.Periods()
	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = p.Code()
	}
	return out
}
