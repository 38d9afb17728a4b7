package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		start string
		end   string
		count *int
	}{
		{"empty", "", "", "", nil},
		{"double dash", "10--20", "10", "20", intPtr(10)},
		{"single dash", "10-20", "10", "20", intPtr(10)},
		{"single page", "42", "42", "", nil},
		{"reversed range", "20--10", "20", "10", nil},
		{"roman numerals", "iv--ix", "iv", "ix", intPtr(5)},
		{"roman uppercase", "IV-IX", "IV", "IX", intPtr(5)},
		{"mixed roman arabic", "iv--20", "iv", "20", nil},
		{"non numeric", "e0271--e0283", "e0271", "e0283", nil},
		{"whitespace", " 5 -- 9 ", "5", "9", intPtr(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePageRange(tt.raw)
			assert.Equal(t, tt.start, got.Start)
			assert.Equal(t, tt.end, got.End)
			if tt.count == nil {
				assert.Nil(t, got.NumberOfPages)
			} else {
				require.NotNil(t, got.NumberOfPages)
				assert.Equal(t, *tt.count, *got.NumberOfPages)
			}
		})
	}
}

func TestRomanToInt(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"i", 1, true},
		{"iv", 4, true},
		{"ix", 9, true},
		{"xiv", 14, true},
		{"XL", 40, true},
		{"mcmxciv", 1994, true},
		{"", 0, false},
		{"abc", 0, false},
		{"12", 0, false},
	}

	for _, tt := range tests {
		got, ok := romanToInt(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.raw)
		}
	}
}
