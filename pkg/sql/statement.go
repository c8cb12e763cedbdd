package sql

import (
	"regexp"
	"strings"
)

// StatementType represents the type of SQL statement.
type StatementType string

const (
	StatementSelect  StatementType = "SELECT"
	StatementInsert  StatementType = "INSERT"
	StatementUpdate  StatementType = "UPDATE"
	StatementDelete  StatementType = "DELETE"
	StatementDDL     StatementType = "DDL"     // CREATE, ALTER, DROP, TRUNCATE, GRANT, REVOKE
	StatementUnknown StatementType = "UNKNOWN" // everything else, including WITH and CALL
)

var (
	// ddlPattern matches schema and privilege mutations anywhere in a statement.
	ddlPattern = regexp.MustCompile(`(?i)\b(DROP|ALTER|CREATE|TRUNCATE|GRANT|REVOKE)\b`)

	// writePattern matches data-modifying keywords anywhere in a statement.
	writePattern = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE)\b`)

	returningPattern = regexp.MustCompile(`(?i)\bRETURNING\b`)

	selectIntoPattern = regexp.MustCompile(`(?i)\bINTO\b`)

	leadingKeywordPattern = regexp.MustCompile(`^\s*\(*\s*([A-Za-z]+)`)
)

// DetectStatementType determines the type of SQL statement based on its first keyword.
// Literals and comments are ignored.
func DetectStatementType(sqlQuery string) StatementType {
	m := leadingKeywordPattern.FindStringSubmatch(MaskLiterals(sqlQuery))
	if m == nil {
		return StatementUnknown
	}

	switch strings.ToUpper(m[1]) {
	case "SELECT":
		return StatementSelect
	case "INSERT":
		return StatementInsert
	case "UPDATE":
		return StatementUpdate
	case "DELETE":
		return StatementDelete
	case "CREATE", "ALTER", "DROP", "TRUNCATE", "GRANT", "REVOKE":
		return StatementDDL
	default:
		return StatementUnknown
	}
}

// IsModifying returns true if the statement type can modify data.
func (t StatementType) IsModifying() bool {
	switch t {
	case StatementInsert, StatementUpdate, StatementDelete:
		return true
	default:
		return false
	}
}

// HasReturning reports whether the statement has a RETURNING clause outside literals.
func HasReturning(sqlQuery string) bool {
	return returningPattern.MatchString(MaskLiterals(sqlQuery))
}
