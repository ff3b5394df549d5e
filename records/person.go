package records

import "strings"

const (
	minPersonIDLen = 10
	maxPersonIDLen = 13
)

// NormalizePersonID uppercases raw and drops every character outside A-Z and
// 0-9. The result is valid when its length is between 10 and 13.
func NormalizePersonID(raw string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if len(id) < minPersonIDLen || len(id) > maxPersonIDLen {
		return "", false
	}
	return id, true
}
