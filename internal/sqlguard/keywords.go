package sqlguard

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var keywords = set(
	"SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "IN", "IS", "NULL", "LIKE", "ILIKE",
	"BETWEEN", "GROUP", "BY", "ORDER", "ASC", "DESC", "LIMIT", "OFFSET", "HAVING", "AS",
	"DISTINCT", "ALL", "CASE", "WHEN", "THEN", "ELSE", "END", "JOIN", "INNER", "LEFT",
	"RIGHT", "OUTER", "FULL", "CROSS", "NATURAL", "ON", "USING", "UNION", "INTERSECT",
	"EXCEPT", "TRUE", "FALSE", "NULLS", "FIRST", "LAST", "CAST", "FILTER", "OVER",
	"PARTITION", "ROWS", "RANGE", "UNBOUNDED", "PRECEDING", "FOLLOWING", "CURRENT", "ROW",
	"EXISTS", "ANY", "SOME", "FETCH", "NEXT", "ONLY", "SIMILAR", "ESCAPE", "WITHIN",
	"TEXT", "INTEGER", "INT", "BIGINT", "NUMERIC", "DECIMAL", "FLOAT", "DOUBLE",
	"PRECISION", "REAL", "VARCHAR",
)

var forbiddenKeywords = set(
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE", "GRANT",
	"REVOKE", "MERGE", "UPSERT", "EXEC", "EXECUTE", "CALL", "DO", "COPY", "INTO",
	"ATTACH", "DETACH", "PRAGMA", "INSTALL", "LOAD", "EXPORT", "IMPORT", "SET", "RESET",
	"VACUUM", "ANALYZE", "EXPLAIN", "COMMENT", "LOCK", "BEGIN", "COMMIT", "ROLLBACK",
	"SAVEPOINT", "LISTEN", "NOTIFY", "PREPARE", "DEALLOCATE", "REFRESH", "REINDEX",
	"CLUSTER", "CHECKPOINT", "SECURITY",
)

var allowedFunctions = set(
	"COUNT", "SUM", "AVG", "MIN", "MAX", "ROUND", "UPPER", "LOWER", "TRIM", "LTRIM",
	"RTRIM", "INITCAP", "COALESCE", "NULLIF", "LENGTH", "CONCAT", "ABS", "CEIL", "FLOOR",
	"RANK", "DENSE_RANK", "ROW_NUMBER", "PERCENT_RANK", "NTILE", "SUBSTRING", "REPLACE",
	"POSITION", "GREATEST", "LEAST", "STRING_AGG",
)

var castTypes = set(
	"TEXT", "INTEGER", "INT", "BIGINT", "NUMERIC", "DECIMAL", "FLOAT", "DOUBLE", "REAL",
	"VARCHAR",
)
