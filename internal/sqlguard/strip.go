package sqlguard

import (
	"regexp"
	"strings"
)

var (
	fencedBlockRe = regexp.MustCompile("(?is)```[ \\t]*(?:sql)?[ \\t]*\\n?(.*?)```")
	fenceMarkerRe = regexp.MustCompile("(?i)```[ \\t]*(?:sql)?")
)

// StripFences returns the SQL held in an LLM reply. When the reply contains a
// fenced code block its content is used, otherwise stray fence markers are
// removed. Surrounding whitespace and a trailing semicolon are dropped.
func StripFences(reply string) string {
	s := reply
	if m := fencedBlockRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	} else {
		s = fenceMarkerRe.ReplaceAllString(s, "")
	}
	return cleanSQL(s)
}

func cleanSQL(sql string) string {
	sql = strings.TrimSpace(sql)
	for strings.HasSuffix(sql, ";") {
		sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	}
	return sql
}
