// Package safety mechanically enforces that generated SQL is read-only,
// single-statement, and free of system-catalog access (spec.md §4.7).
// It has no LLM dependency.
package safety

import (
	"strings"

	"github.com/queryhub/nl2sql/pkg/dbadapter"
)

// Result is the outcome of Validate.
type Result struct {
	OK     bool
	Reason string
}

// Validate checks sql against every rule in spec.md §4.7. dialect is
// currently unused by the rules themselves (all four are
// dialect-independent) but is threaded through for forward compatibility
// with dialect-specific catalog names.
func Validate(sql string, dialect dbadapter.Dialect) Result {
	tokens := tokenize(sql)

	if r := checkSingleStatement(sql, tokens); !r.OK {
		return r
	}
	if r := checkStartsWithSelectOrCTE(tokens); !r.OK {
		return r
	}
	if r := checkNoBlockedKeywords(tokens); !r.OK {
		return r
	}
	if r := checkNoSystemCatalogs(tokens); !r.OK {
		return r
	}
	return Result{OK: true}
}

// checkStartsWithSelectOrCTE enforces rule 1: a single statement
// beginning with SELECT, or WITH leading into a SELECT.
func checkStartsWithSelectOrCTE(tokens []token) Result {
	words := wordTokens(tokens)
	if len(words) == 0 {
		return Result{Reason: "query is empty"}
	}
	switch words[0].text {
	case "SELECT":
		return Result{OK: true}
	case "WITH":
		for _, w := range words[1:] {
			if w.text == "SELECT" {
				return Result{OK: true}
			}
		}
		return Result{Reason: "WITH clause never reaches a SELECT"}
	default:
		return Result{Reason: "query must start with SELECT or WITH, found " + words[0].text}
	}
}

// checkNoBlockedKeywords enforces rule 2.
func checkNoBlockedKeywords(tokens []token) Result {
	for _, t := range tokens {
		if t.kind == tokenWord && isBlockedKeyword(t.text) {
			return Result{Reason: "query contains blocked keyword " + t.text}
		}
	}
	return Result{OK: true}
}

// checkNoSystemCatalogs enforces rule 3. Catalog names are matched
// case-insensitively against both bare words (PG_CATALOG.PG_TABLES
// tokenizes as one dotted word) and quoted identifiers.
func checkNoSystemCatalogs(tokens []token) Result {
	for _, t := range tokens {
		if t.kind != tokenWord && t.kind != tokenIdent {
			continue
		}
		candidate := strings.ToLower(t.text)
		for _, catalog := range systemCatalogs {
			if candidate == catalog || strings.HasPrefix(candidate, catalog+".") {
				return Result{Reason: "query references system catalog " + catalog}
			}
		}
	}
	return Result{OK: true}
}

// checkSingleStatement enforces rule 4: no semicolon followed by
// non-whitespace, non-comment content. A single trailing semicolon
// (optionally followed only by whitespace) is permitted.
func checkSingleStatement(sql string, tokens []token) Result {
	semicolons := 0
	for i, t := range tokens {
		if t.kind == tokenOther && t.text == ";" {
			semicolons++
			if i != len(tokens)-1 {
				return Result{Reason: "query contains multiple statements"}
			}
		}
	}
	if semicolons > 1 {
		return Result{Reason: "query contains multiple statements"}
	}
	return Result{OK: true}
}

func wordTokens(tokens []token) []token {
	out := make([]token, 0, len(tokens))
	for _, t := range tokens {
		if t.kind == tokenWord {
			out = append(out, t)
		}
	}
	return out
}
