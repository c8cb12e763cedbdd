// Package sql provides SQL validation, statement extraction and parameter binding utilities.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize checks SQL for multiple statements and strips the trailing semicolon.
//
// The validation order is:
// 1. Strip trailing semicolon and whitespace (normalize)
// 2. Check for multiple statements (any remaining semicolons outside literals and comments)
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)

	if sqlQuery == "" {
		return ValidationResult{NormalizedSQL: sqlQuery}
	}

	normalized := stripTrailingSemicolon(sqlQuery)

	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals, quoted identifiers and comments.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	return strings.ContainsRune(MaskLiterals(sqlQuery), ';')
}

// MaskLiterals returns sqlQuery with the contents of string literals, quoted
// identifiers and comments replaced by spaces. The result has the same length
// in bytes, so offsets found in it are valid in the original.
//
// Plain strings follow standard_conforming_strings: a backslash does not escape
// a quote, and a quote written twice stands for one literal quote. In E'...'
// escape strings a backslash also escapes the next byte. Dollar-quoted bodies
// ($$...$$, $tag$...$tag$) end only at the same delimiter.
func MaskLiterals(sqlQuery string) string {
	masked, _ := maskLiterals(sqlQuery)
	return masked
}

// HasUnterminatedLiteral reports whether a string literal, quoted identifier or
// block comment is left open at the end of sqlQuery.
func HasUnterminatedLiteral(sqlQuery string) bool {
	_, terminated := maskLiterals(sqlQuery)
	return !terminated
}

func maskLiterals(sqlQuery string) (string, bool) {
	const (
		stateNormal = iota
		stateSingleQuote
		stateEscapeString
		stateDoubleQuote
		stateDollarQuote
		stateLineComment
		stateBlockComment
	)

	out := []byte(sqlQuery)
	state := stateNormal
	var dollarTag string

	for i := 0; i < len(out); i++ {
		ch := sqlQuery[i]
		var next byte
		if i+1 < len(sqlQuery) {
			next = sqlQuery[i+1]
		}

		switch state {
		case stateNormal:
			switch {
			case ch == '\'' && isEscapePrefix(sqlQuery, i):
				state = stateEscapeString
			case ch == '\'':
				state = stateSingleQuote
			case ch == '"':
				state = stateDoubleQuote
			case ch == '$':
				if tag, ok := dollarQuoteTag(sqlQuery, i); ok {
					dollarTag = tag
					state = stateDollarQuote
					i += len(tag) - 1
				}
			case ch == '-' && next == '-':
				state = stateLineComment
				out[i], out[i+1] = ' ', ' '
				i++
			case ch == '/' && next == '*':
				state = stateBlockComment
				out[i], out[i+1] = ' ', ' '
				i++
			}
		case stateSingleQuote, stateEscapeString:
			if state == stateEscapeString && ch == '\\' {
				out[i] = ' '
				if i+1 < len(out) {
					out[i+1] = ' '
					i++
				}
				continue
			}
			if ch == '\'' {
				if next == '\'' {
					out[i], out[i+1] = ' ', ' '
					i++
					continue
				}
				state = stateNormal
				continue
			}
			out[i] = ' '
		case stateDoubleQuote:
			if ch == '"' {
				if next == '"' {
					out[i], out[i+1] = ' ', ' '
					i++
					continue
				}
				state = stateNormal
				continue
			}
			out[i] = ' '
		case stateDollarQuote:
			if ch == '$' && strings.HasPrefix(sqlQuery[i:], dollarTag) {
				i += len(dollarTag) - 1
				state = stateNormal
				continue
			}
			out[i] = ' '
		case stateLineComment:
			if ch == '\n' {
				state = stateNormal
				continue
			}
			out[i] = ' '
		case stateBlockComment:
			if ch == '*' && next == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				state = stateNormal
				continue
			}
			out[i] = ' '
		}
	}

	terminated := state == stateNormal || state == stateLineComment
	return string(out), terminated
}

// isEscapePrefix reports whether the quote at i opens an E'...' escape string:
// it follows an E or e that does not end a longer identifier.
func isEscapePrefix(sqlQuery string, i int) bool {
	if i == 0 || (sqlQuery[i-1] != 'E' && sqlQuery[i-1] != 'e') {
		return false
	}
	return i == 1 || (!isIdentByte(sqlQuery[i-2]) && sqlQuery[i-2] != '$')
}

// dollarQuoteTag returns the delimiter ($$ or $tag$) starting at i. Positional
// parameters ($1) and dollars inside identifiers do not open a dollar quote.
func dollarQuoteTag(sqlQuery string, i int) (string, bool) {
	if i > 0 && (isIdentByte(sqlQuery[i-1]) || sqlQuery[i-1] == '$') {
		return "", false
	}
	j := i + 1
	for j < len(sqlQuery) && isIdentByte(sqlQuery[j]) {
		j++
	}
	if j >= len(sqlQuery) || sqlQuery[j] != '$' {
		return "", false
	}
	tag := sqlQuery[i+1 : j]
	if tag != "" && tag[0] >= '0' && tag[0] <= '9' {
		return "", false
	}
	return sqlQuery[i : j+1], true
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace after it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")

	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}

	return sqlQuery
}
