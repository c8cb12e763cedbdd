package sql

import (
	"fmt"
	"strings"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
)

// Mode is the operating mode a statement is validated for.
type Mode string

const (
	// ModeDataFilling permits a single read-only SELECT.
	ModeDataFilling Mode = "data_filling"
	// ModeAction permits SELECT, INSERT, UPDATE and DELETE.
	ModeAction Mode = "action"
)

// Rejection rules. They are safe to return to callers; the detailed reason is not.
const (
	RuleEmpty               = "empty_statement"
	RuleUnterminatedLiteral = "unterminated_literal"
	RuleDDL                 = "ddl_keyword"
	RuleMultipleStatements  = "multiple_statements"
	RuleNotRead             = "not_read_statement"
	RuleWriteInRead         = "write_keyword_in_read"
	RuleSelectInto          = "select_into"
	RuleDisallowedStatement = "disallowed_statement"
)

// ValidateStatement checks a synthesized statement before execution and returns it
// normalized (trimmed, trailing semicolon removed).
//
// Rules, in order:
//  1. Any DDL keyword is rejected in every mode.
//  2. More than one statement is rejected.
//  3. Data-Filling: the statement must start with SELECT and no INSERT, UPDATE or
//     DELETE may appear anywhere in it.
//  4. Action: the statement must start with SELECT, INSERT, UPDATE or DELETE.
//
// Keywords inside string literals, quoted identifiers and comments are ignored.
// Rejections are *apperrors.QueryRejectedError.
func ValidateStatement(sqlQuery string, mode Mode) (string, error) {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return "", reject(RuleEmpty, "statement is empty")
	}
	if HasUnterminatedLiteral(trimmed) {
		return "", reject(RuleUnterminatedLiteral, "statement ends inside a literal or comment")
	}

	masked := MaskLiterals(trimmed)

	if m := ddlPattern.FindStringIndex(masked); m != nil {
		return "", reject(RuleDDL, fmt.Sprintf("DDL keyword %q at offset %d", strings.ToUpper(masked[m[0]:m[1]]), m[0]))
	}

	result := ValidateAndNormalize(trimmed)
	if result.Error != nil {
		return "", reject(RuleMultipleStatements, result.Error.Error())
	}
	normalized := result.NormalizedSQL
	masked = MaskLiterals(normalized)
	stmtType := DetectStatementType(normalized)

	switch mode {
	case ModeDataFilling:
		if stmtType != StatementSelect {
			return "", reject(RuleNotRead, fmt.Sprintf("statement type %s in data-filling mode", stmtType))
		}
		if m := writePattern.FindStringIndex(masked); m != nil {
			return "", reject(RuleWriteInRead, fmt.Sprintf("write keyword %q at offset %d", strings.ToUpper(masked[m[0]:m[1]]), m[0]))
		}
	case ModeAction:
		if stmtType != StatementSelect && !stmtType.IsModifying() {
			return "", reject(RuleDisallowedStatement, fmt.Sprintf("statement type %s in action mode", stmtType))
		}
	default:
		return "", reject(RuleDisallowedStatement, fmt.Sprintf("unknown mode %q", mode))
	}

	// SELECT ... INTO creates a table.
	if stmtType == StatementSelect && selectIntoPattern.MatchString(masked) {
		return "", reject(RuleSelectInto, "SELECT INTO creates a table")
	}

	return normalized, nil
}

func reject(rule, reason string) error {
	return &apperrors.QueryRejectedError{Rule: rule, Reason: reason}
}
