package pipeline

import (
	"regexp"
	"strings"
)

// FallbackQuery is a fixed parameterized query used when SQL generation is
// unavailable or keeps failing.
type FallbackQuery struct {
	Name string
	SQL  string
	Args []any
}

type mention struct {
	terms   []string
	pattern string // LIKE pattern over the lowercased column
}

// Ordered so that more specific names win.
var regionMentions = []mention{
	{terms: []string{"castilla y león", "castilla y leon", "castilla-león"}, pattern: "%castilla y le%"},
	{terms: []string{"castilla-la mancha", "castilla la mancha"}, pattern: "%mancha%"},
	{terms: []string{"país vasco", "pais vasco", "euskadi"}, pattern: "%vasco%"},
	{terms: []string{"cataluña", "cataluna", "catalunya"}, pattern: "%catalu%"},
	{terms: []string{"andalucía", "andalucia"}, pattern: "%andaluc%"},
	{terms: []string{"aragón", "aragon"}, pattern: "%arag%"},
	{terms: []string{"baleares", "balears"}, pattern: "%balear%"},
	{terms: []string{"la rioja", "rioja"}, pattern: "%rioja%"},
	{terms: []string{"madrid"}, pattern: "%madrid%"},
	{terms: []string{"valencia"}, pattern: "%valencia%"},
	{terms: []string{"galicia"}, pattern: "%galicia%"},
	{terms: []string{"navarra"}, pattern: "%navarra%"},
	{terms: []string{"extremadura"}, pattern: "%extremadura%"},
	{terms: []string{"murcia"}, pattern: "%murcia%"},
	{terms: []string{"canarias"}, pattern: "%canarias%"},
	{terms: []string{"asturias"}, pattern: "%asturias%"},
	{terms: []string{"cantabria"}, pattern: "%cantabria%"},
}

var diagnosisMentions = []mention{
	{terms: []string{"depresi"}, pattern: "%depresi%"},
	{terms: []string{"ansiedad"}, pattern: "%ansiedad%"},
	{terms: []string{"bipolar"}, pattern: "%bipolar%"},
	{terms: []string{"esquizofren"}, pattern: "%esquizofren%"},
	{terms: []string{"obsesivo", "compulsivo"}, pattern: "%obsesivo%"},
	{terms: []string{"alimentari", "anorexia", "bulimia"}, pattern: "%aliment%"},
	{terms: []string{"postraum", "estrés"}, pattern: "%postraum%"},
}

var rankingRe = regexp.MustCompile(`(?i)((comunidad|comunidades|regi[oó]n|regiones)\s+(con\s+)?(m[aá]s|mayor)|(m[aá]s|mayor(es)?)\s+(n[uú]mero\s+de\s+)?casos|ranking)`)

var totalsTerms = []string{"total", "cuántos", "cuantos", "cuántas", "cuantas", "estadística", "estadistica", "resumen", "casos"}

const (
	fallbackColumns = `SELECT region, enfermedad, num_casos FROM vista_muy_interesante`

	fallbackRegionDiagnosisSQL = fallbackColumns + ` WHERE LOWER(region) LIKE $1 AND LOWER(enfermedad) LIKE $2 ORDER BY num_casos DESC`
	fallbackRegionSQL          = fallbackColumns + ` WHERE LOWER(region) LIKE $1 ORDER BY num_casos DESC`
	fallbackDiagnosisSQL       = fallbackColumns + ` WHERE LOWER(enfermedad) LIKE $1 ORDER BY num_casos DESC`
	fallbackRankingSQL         = `SELECT region, SUM(num_casos) AS total FROM vista_muy_interesante GROUP BY region ORDER BY total DESC LIMIT 10`
	fallbackTotalsSQL          = `SELECT enfermedad, SUM(num_casos) AS total FROM vista_muy_interesante GROUP BY enfermedad ORDER BY total DESC`
)

// MatchFallback maps a question onto one of the fixed queries.
func MatchFallback(question string) (FallbackQuery, bool) {
	q := strings.ToLower(question)
	region, hasRegion := findMention(q, regionMentions)
	diagnosis, hasDiagnosis := findMention(q, diagnosisMentions)

	switch {
	case hasRegion && hasDiagnosis:
		return FallbackQuery{Name: "region_diagnosis", SQL: fallbackRegionDiagnosisSQL, Args: []any{region, diagnosis}}, true
	case hasRegion:
		return FallbackQuery{Name: "region", SQL: fallbackRegionSQL, Args: []any{region}}, true
	case hasDiagnosis:
		return FallbackQuery{Name: "diagnosis", SQL: fallbackDiagnosisSQL, Args: []any{diagnosis}}, true
	case rankingRe.MatchString(q):
		return FallbackQuery{Name: "ranking", SQL: fallbackRankingSQL}, true
	case containsAny(q, totalsTerms):
		return FallbackQuery{Name: "totals", SQL: fallbackTotalsSQL}, true
	}
	return FallbackQuery{}, false
}

func findMention(q string, mentions []mention) (string, bool) {
	for _, m := range mentions {
		if containsAny(q, m.terms) {
			return m.pattern, true
		}
	}
	return "", false
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
