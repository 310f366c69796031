package dbutil

import (
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize converts a gendry (mysql flavoured) statement into postgres syntax.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	loc := limitRegex.FindStringIndex(query)
	if loc != nil {
		prefix := query[:loc[0]]
		qCount := strings.Count(prefix, "?")
		if qCount+1 < len(args) {
			args[qCount], args[qCount+1] = args[qCount+1], args[qCount]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

// OnConflictUpdate appends an upsert clause that overwrites cols when the conflict keys already exist.
func OnConflictUpdate(query string, cols []string, keys ...string) string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		if isKey[col] {
			continue
		}
		sets = append(sets, col+" = EXCLUDED."+col)
	}
	target := " ON CONFLICT (" + strings.Join(keys, ", ") + ")"
	if len(sets) == 0 {
		return query + target + " DO NOTHING"
	}
	return query + target + " DO UPDATE SET " + strings.Join(sets, ", ")
}
