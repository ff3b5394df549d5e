package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePersonID(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"AAA010101AAA", "AAA010101AAA", true},
		{" aaa-010101-aaa ", "AAA010101AAA", true},
		{"GODE561231GR8", "GODE561231GR8", true},
		{"ABCDEFGHIJ", "ABCDEFGHIJ", true},
		{"ABCDEFGHI", "", false},
		{"ABCDEFGHIJKLMN", "", false},
		{"", "", false},
		{"Ñ12345678901", "12345678901", true},
	}
	for _, tc := range cases {
		got, ok := NormalizePersonID(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}
