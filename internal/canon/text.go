package canon

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Query normalizes free-text search input: NFC composition, trimmed, single spaces,
// control characters dropped. Korean input pasted from some IMEs arrives decomposed.
func Query(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return collapseSpaces(s)
}

// Region normalizes a region name the same way as Query. "전체" and "" both mean
// "all regions" and come back as "".
func Region(s string) string {
	s = Query(s)
	if s == AllRegions {
		return ""
	}
	return s
}

// AllRegions is the label the backend uses for "no region filter".
const AllRegions = "전체"

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
