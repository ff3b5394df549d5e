package catalog

import (
	"sort"
	"strconv"
	"strings"
)

const ordinalDepth = 5

// ordinalParts splits a dotted ordinal such as "1.2.3" into ordinalDepth
// numeric parts. Missing or non-numeric parts count as zero.
func ordinalParts(ordinal string) [ordinalDepth]int {
	var parts [ordinalDepth]int
	for i, p := range strings.Split(strings.TrimSpace(ordinal), ".") {
		if i >= ordinalDepth {
			break
		}
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		parts[i] = n
	}
	return parts
}

// CompareOrdinal orders hierarchical ordinals part by part, so "1.10" sorts
// after "1.9".
func CompareOrdinal(a, b string) int {
	pa, pb := ordinalParts(a), ordinalParts(b)
	for i := 0; i < ordinalDepth; i++ {
		switch {
		case pa[i] < pb[i]:
			return -1
		case pa[i] > pb[i]:
			return 1
		}
	}
	return 0
}

// SortEntries orders entries by ordinal, breaking ties by key.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if c := CompareOrdinal(entries[i].Ordinal, entries[j].Ordinal); c != 0 {
			return c < 0
		}
		return entries[i].Key < entries[j].Key
	})
}
