package safety

import "strings"

// tokenKind distinguishes the handful of token classes the validator
// cares about; it is not a general SQL tokenizer.
type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenIdent
	tokenOther
)

type token struct {
	kind tokenKind
	text string // upper-cased for tokenWord, verbatim otherwise
}

// tokenize strips string literals (single-quoted, with '' escaping),
// quoted identifiers, and both comment styles, then splits what remains
// into bare words, quoted identifiers (kept for catalog-name checks),
// and everything else. Keyword/catalog matching operates only on the
// tokenWord/tokenIdent stream, so values inside string literals never
// trigger a false positive (spec.md §4.7: "token-aware").
func tokenize(sql string) []token {
	var tokens []token
	runes := []rune(sql)
	i := 0
	n := len(runes)

	for i < n {
		c := runes[i]

		switch {
		case c == '\'':
			i = skipSingleQuoted(runes, i)

		case c == '"' || c == '`':
			start := i + 1
			end := skipDelimited(runes, i, c)
			tokens = append(tokens, token{kind: tokenIdent, text: string(runes[start : end-1])})
			i = end

		case c == '-' && i+1 < n && runes[i+1] == '-':
			i = skipLineComment(runes, i)

		case c == '/' && i+1 < n && runes[i+1] == '*':
			i = skipBlockComment(runes, i)

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			tokens = append(tokens, token{kind: tokenWord, text: strings.ToUpper(word)})

		case c == ';':
			tokens = append(tokens, token{kind: tokenOther, text: ";"})
			i++

		default:
			i++
		}
	}

	return tokens
}

func skipSingleQuoted(runes []rune, i int) int {
	n := len(runes)
	i++ // skip opening quote
	for i < n {
		if runes[i] == '\'' {
			if i+1 < n && runes[i+1] == '\'' {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func skipDelimited(runes []rune, i int, delim rune) int {
	n := len(runes)
	i++
	for i < n && runes[i] != delim {
		i++
	}
	if i < n {
		i++
	}
	return i
}

func skipLineComment(runes []rune, i int) int {
	n := len(runes)
	for i < n && runes[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(runes []rune, i int) int {
	n := len(runes)
	i += 2
	for i+1 < n && !(runes[i] == '*' && runes[i+1] == '/') {
		i++
	}
	if i+1 < n {
		i += 2
	} else {
		i = n
	}
	return i
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '.'
}
