package scoring

import (
	"strconv"
	"strings"
)

// floor tokens that mean "front of the house"
var frontRowTokens = map[string]bool{
	"GA":                true,
	"GENERAL ADMISSION": true,
	"PIT":               true,
}

// ParseRow converts a marketplace row label into a 1-based rank.
// Numeric labels parse directly; "A".."Z" map to 1..26; double letters
// continue past 26 ("AA" = 28, "AB" = 29, "BA" = 54). GA/PIT style tokens
// rank 1. Returns -1 when the label is unparseable; callers substitute the
// middle row of the section.
func ParseRow(row string) int {
	row = strings.ToUpper(strings.TrimSpace(row))
	if row == "" {
		return -1
	}

	if frontRowTokens[row] {
		return 1
	}

	if n, err := strconv.Atoi(row); err == nil {
		if n < 1 {
			return -1
		}
		return n
	}

	if len(row) == 1 && row[0] >= 'A' && row[0] <= 'Z' {
		return int(row[0]-'A') + 1
	}

	if len(row) == 2 && isLetter(row[0]) && isLetter(row[1]) {
		return 27 + 26*int(row[0]-'A') + int(row[1]-'A'+1)
	}

	return -1
}

// MiddleRow is the fallback rank for unparseable labels.
func MiddleRow(totalRows int) int {
	if totalRows <= 0 {
		return -1
	}
	return (totalRows + 1) / 2
}

func isLetter(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
