// Package sqlref extracts table and column references from raw SQL text.
//
// The extraction is a lexical, best-effort scan built on regular
// expressions. It has no tokenizer and no grammar: nested-function commas
// can mis-split the SELECT list, subquery FROM clauses union into the same
// table set as the outer query, and SELECT * yields no columns. These are
// accepted properties of the heuristic, not bugs; callers must not treat
// empty output as evidence of an invalid query.
package sqlref

import (
	"regexp"
	"sort"
	"strings"
)

// tableRefPattern matches FROM/JOIN followed by a 1-3 part dot-qualified
// identifier, each part optionally backquoted. The trailing part stops at
// the first non-identifier rune, so table aliases are never captured.
// Matching runs against an uppercased copy of the query.
var tableRefPattern = regexp.MustCompile("(?:FROM|JOIN)\\s+(?:`?([A-Z0-9_]+)`?\\.)?(?:`?([A-Z0-9_]+)`?\\.)?`?([A-Z0-9_]+)`?")

// selectListPattern captures the text between the first SELECT and the
// next FROM, across newlines.
var selectListPattern = regexp.MustCompile(`(?s)SELECT\s+(.*?)\s+FROM`)

// identPattern finds the first bare identifier token in a SELECT-list
// fragment. The star in SELECT * never matches and is silently dropped.
var identPattern = regexp.MustCompile("[A-Z0-9_]+")

// columnKeywords are SELECT-list tokens that are never column names.
var columnKeywords = map[string]struct{}{
	"as": {}, "from": {}, "where": {}, "select": {}, "distinct": {},
	"count": {}, "sum": {}, "avg": {}, "max": {}, "min": {},
	"case": {}, "when": {}, "then": {}, "else": {}, "end": {},
}

// Result holds the references extracted from a single query. Tables and
// Columns are deduplicated, lowercased, and sorted; they behave as sets.
type Result struct {
	Tables  []string `json:"tables"`
	Columns []string `json:"columns"`
}

// Extract scans sql for table and column references. It never fails:
// malformed or empty input yields empty or partial sets.
//
// Table names come from every FROM/JOIN clause in the text, joined as
// catalog.schema.table for fully qualified names. Column names come from
// the top-level SELECT list only. A bare name and a qualified name for the
// same table are distinct strings; no qualification is inferred.
func Extract(sql string) Result {
	tables := make(map[string]struct{})
	columns := make(map[string]struct{})

	if sql != "" {
		// Uppercase for matching only; emitted names are lowercased.
		upper := strings.ToUpper(sql)
		extractTables(upper, tables)
		extractColumns(upper, columns)
	}

	return Result{
		Tables:  sortedKeys(tables),
		Columns: sortedKeys(columns),
	}
}

func extractTables(upper string, out map[string]struct{}) {
	for _, m := range tableRefPattern.FindAllStringSubmatch(upper, -1) {
		var parts []string
		for _, p := range m[1:] {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			out[strings.ToLower(strings.Join(parts, "."))] = struct{}{}
		}
	}
}

func extractColumns(upper string, out map[string]struct{}) {
	m := selectListPattern.FindStringSubmatch(upper)
	if m == nil {
		// Not a SELECT...FROM shape; column set stays empty.
		return
	}

	// Simple comma split. Commas inside nested calls mis-split the list;
	// the stray fragments resolve to keywords or duplicates and wash out.
	for _, fragment := range strings.Split(m[1], ",") {
		token := identPattern.FindString(fragment)
		if token == "" {
			continue
		}
		name := strings.ToLower(token)
		if _, skip := columnKeywords[name]; skip {
			continue
		}
		out[name] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
