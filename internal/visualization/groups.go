package visualization

import (
	"fmt"
	"strings"
)

// group is an inclusive range. The first group also takes everything below
// it and the last everything above.
type group struct {
	label  string
	lo, hi int
}

var birthYearGroups = []group{
	{label: "1926-1929", lo: 1926, hi: 1929},
	{label: "1930-1939", lo: 1930, hi: 1939},
	{label: "1940-1949", lo: 1940, hi: 1949},
	{label: "1950-1959", lo: 1950, hi: 1959},
	{label: "1960-1969", lo: 1960, hi: 1969},
	{label: "1970-1979", lo: 1970, hi: 1979},
	{label: "1980-1989", lo: 1980, hi: 1989},
	{label: "1990-1999", lo: 1990, hi: 1999},
	{label: "2000+", lo: 2000},
}

var ageGroups = []group{
	{label: "0-9", lo: 0, hi: 9},
	{label: "10-19", lo: 10, hi: 19},
	{label: "20-29", lo: 20, hi: 29},
	{label: "30-39", lo: 30, hi: 39},
	{label: "40-49", lo: 40, hi: 49},
	{label: "50-59", lo: 50, hi: 59},
	{label: "60-69", lo: 60, hi: 69},
	{label: "70-79", lo: 70, hi: 79},
	{label: "80+", lo: 80},
}

// BirthYearGroups lists the pyramid intervals in display order.
func BirthYearGroups() []string {
	return labels(birthYearGroups)
}

// AgeGroups lists the histogram groups in display order.
func AgeGroups() []string {
	return labels(ageGroups)
}

func labels(groups []group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.label
	}
	return out
}

// groupFor mirrors caseSQL for a single value.
func groupFor(v int, groups []group) string {
	for i, g := range groups[:len(groups)-1] {
		if (i == 0 && v <= g.hi) || (v >= g.lo && v <= g.hi) {
			return g.label
		}
	}
	return groups[len(groups)-1].label
}

func caseSQL(expr string, groups []group) string {
	var sb strings.Builder
	sb.WriteString("CASE")
	last := len(groups) - 1
	for i, g := range groups[:last] {
		if i == 0 {
			fmt.Fprintf(&sb, " WHEN %s <= %d THEN '%s'", expr, g.hi, g.label)
			continue
		}
		fmt.Fprintf(&sb, " WHEN %s BETWEEN %d AND %d THEN '%s'", expr, g.lo, g.hi, g.label)
	}
	fmt.Fprintf(&sb, " ELSE '%s' END", groups[last].label)
	return sb.String()
}
