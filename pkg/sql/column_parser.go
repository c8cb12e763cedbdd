package sql

import (
	"regexp"
	"strings"
)

// ParsedColumn represents a result column of a SELECT statement.
type ParsedColumn struct {
	Name string // The column name or alias
	Expr string // The full expression (e.g., "COUNT(*)")
}

var (
	aliasPattern    = regexp.MustCompile(`(?is)\s+as\s+("?)([\w]+)("?)\s*$`)
	funcNamePattern = regexp.MustCompile(`^(\w+)\s*\(`)
	nonWordPattern  = regexp.MustCompile(`[^\w]`)
)

// ParseSelectColumns returns the result columns of the outermost SELECT list,
// which is how the filler will see them. Returns nil for non-SELECT statements
// and for SELECT *.
//
// Nesting is tracked, so commas and FROM inside function calls or subqueries
// do not end the list. Names are lowercased as PostgreSQL folds unquoted identifiers.
func ParseSelectColumns(sqlQuery string) []ParsedColumn {
	masked := MaskLiterals(sqlQuery)
	lower := strings.ToLower(masked)

	loc := regexp.MustCompile(`\bselect\b`).FindStringIndex(lower)
	if loc == nil {
		return nil
	}
	start := loc[1]
	if d := regexp.MustCompile(`^\s+distinct\b`).FindStringIndex(lower[start:]); d != nil {
		start += d[1]
	}

	var (
		exprs []string
		depth int
		from  = start
		end   = len(lower)
	)
scan:
	for i := start; i < len(lower); i++ {
		switch lower[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				exprs = append(exprs, sqlQuery[from:i])
				from = i + 1
			}
		default:
			if depth == 0 && isClauseStart(lower, i) {
				end = i
				break scan
			}
		}
	}
	exprs = append(exprs, sqlQuery[from:end])

	if len(exprs) == 1 && strings.TrimSpace(exprs[0]) == "*" {
		return nil
	}

	var result []ParsedColumn
	for _, e := range exprs {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		result = append(result, parseColumnExpression(e))
	}
	return result
}

// isClauseStart reports whether a clause that ends the SELECT list starts at lower[i].
func isClauseStart(lower string, i int) bool {
	if i > 0 && isIdentByte(lower[i-1]) {
		return false
	}
	for _, kw := range []string{"from", "where", "group", "order", "limit", "union", "intersect", "except", "returning"} {
		if strings.HasPrefix(lower[i:], kw) {
			j := i + len(kw)
			if j == len(lower) || !isIdentByte(lower[j]) {
				return true
			}
		}
	}
	return false
}

// parseColumnExpression extracts the output name of one select-list expression.
//   - "name" -> name
//   - "c.name" -> name
//   - "COUNT(*) AS enrolled" -> enrolled
//   - "COUNT(*) enrolled" -> enrolled
//   - "COUNT(*)" -> count
func parseColumnExpression(expr string) ParsedColumn {
	if m := aliasPattern.FindStringSubmatch(expr); m != nil {
		name := m[2]
		if m[1] == "" {
			name = strings.ToLower(name)
		}
		return ParsedColumn{Name: name, Expr: expr}
	}

	if strings.Count(expr, "(") == strings.Count(expr, ")") {
		parts := strings.Fields(expr)
		if len(parts) > 1 {
			last := parts[len(parts)-1]
			if !strings.ContainsAny(last, "()'\"") && nonWordPattern.FindString(last) == "" && !isOperatorKeyword(last) {
				return ParsedColumn{Name: strings.ToLower(last), Expr: expr}
			}
		}
	}

	return ParsedColumn{Name: extractColumnName(expr), Expr: expr}
}

func isOperatorKeyword(word string) bool {
	switch strings.ToLower(word) {
	case "and", "or", "not", "null", "end", "true", "false", "is":
		return true
	default:
		return false
	}
}

// extractColumnName derives the name PostgreSQL gives an unaliased expression.
func extractColumnName(expr string) string {
	expr = strings.TrimSpace(expr)

	if m := funcNamePattern.FindStringSubmatch(expr); m != nil {
		return strings.ToLower(m[1])
	}
	if strings.HasPrefix(strings.ToLower(expr), "case") {
		return "case"
	}
	if dot := strings.LastIndex(expr, "."); dot != -1 {
		expr = expr[dot+1:]
	}

	name := strings.Trim(expr, `"`)
	return strings.ToLower(nonWordPattern.ReplaceAllString(name, ""))
}

// ColumnNames returns just the names of ParseSelectColumns.
func ColumnNames(sqlQuery string) []string {
	cols := ParseSelectColumns(sqlQuery)
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	return names
}
