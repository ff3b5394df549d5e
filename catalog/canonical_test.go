package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  segob ", "SEGOB"},
		{"Secretaría de Educación   Pública", "SECRETARIA DE EDUCACION PUBLICA"},
		{"Peñón  Blanco", "PEÑON BLANCO"},
		{"ente_1_2", "ENTE_1_2"},
		{"\tÁÉÍÓÚ\n", "AEIOU"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Canonical(tc.in), "input %q", tc.in)
	}
}

func TestCompareOrdinal(t *testing.T) {
	assert.Equal(t, -1, CompareOrdinal("1.9", "1.10"))
	assert.Equal(t, 1, CompareOrdinal("2", "1.99"))
	assert.Equal(t, 0, CompareOrdinal("1.2", "1.2.0.0.0"))
	assert.Equal(t, 0, CompareOrdinal("1.A", "1"))
	assert.Equal(t, -1, CompareOrdinal("", "0.1"))
}

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		{Ordinal: "1.10", Key: "C"},
		{Ordinal: "1.2", Key: "B"},
		{Ordinal: "1.2", Key: "A"},
		{Ordinal: "1.9", Key: "D"},
	}
	SortEntries(entries)

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"A", "B", "D", "C"}, keys)
}
