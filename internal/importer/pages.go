package importer

import (
	"strconv"
	"strings"
)

// pageRange is the parsed form of a source "pages" field. NumberOfPages is
// nil when either end could not be understood numerically.
type pageRange struct {
	Start         string
	End           string
	NumberOfPages *int
}

// parsePageRange splits on "--" then "-". When both ends parse as
// integers the page count is computed; otherwise Roman numerals are tried
// before giving up. Unparsable ranges never fail, the numeric count is
// simply omitted.
func parsePageRange(raw string) pageRange {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return pageRange{}
	}

	var start, end string
	switch {
	case strings.Contains(raw, "--"):
		parts := strings.SplitN(raw, "--", 2)
		start, end = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	case strings.Contains(raw, "-"):
		parts := strings.SplitN(raw, "-", 2)
		start, end = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	default:
		return pageRange{Start: raw}
	}

	pr := pageRange{Start: start, End: end}
	if count, ok := pageCount(start, end); ok {
		pr.NumberOfPages = intPtr(count)
	}
	return pr
}

func pageCount(start, end string) (int, bool) {
	s, sErr := strconv.Atoi(start)
	e, eErr := strconv.Atoi(end)
	if sErr == nil && eErr == nil {
		if e >= s {
			return e - s, true
		}
		return 0, false
	}

	s, sOK := romanToInt(start)
	e, eOK := romanToInt(end)
	if sOK && eOK && e >= s {
		return e - s, true
	}
	return 0, false
}

var romanValues = map[rune]int{
	'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000,
}

// romanToInt parses a Roman numeral (either case) with subtractive
// notation. Returns false on any non-Roman rune or empty input.
func romanToInt(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	total := 0
	prev := 0
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := romanValues[rune(s[i])]
		if !ok {
			return 0, false
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	return total, true
}
