package store

import (
	"fmt"
	"strconv"
	"strings"
)

// CenturyPivot is the last year a two-digit birth year may resolve to.
// Later years lose a century.
const CenturyPivot = 2025

// BirthYearSQL returns a portable expression resolving a MM/DD/YY column to a
// four-digit year.
func BirthYearSQL(column string) string {
	yy := fmt.Sprintf("CAST(split_part(%s, '/', 3) AS INTEGER)", column)
	return fmt.Sprintf("(CASE WHEN %[1]s >= 100 THEN %[1]s WHEN 2000 + %[1]s > %[2]d THEN 1900 + %[1]s ELSE 2000 + %[1]s END)", yy, CenturyPivot)
}

// BirthYear resolves a MM/DD/YY date the same way BirthYearSQL does.
func BirthYear(date string) (int, bool) {
	parts := strings.Split(date, "/")
	if len(parts) != 3 {
		return 0, false
	}
	yy, err := strconv.Atoi(parts[2])
	if err != nil || yy < 0 {
		return 0, false
	}
	switch {
	case yy >= 100:
		return yy, true
	case 2000+yy > CenturyPivot:
		return 1900 + yy, true
	default:
		return 2000 + yy, true
	}
}
