package sql

import (
	"fmt"
	"regexp"
)

// parameterRegex matches {{parameter_name}} placeholders in SQL templates.
// Parameter names must start with a letter or underscore, followed by any
// number of alphanumeric characters or underscores.
var parameterRegex = regexp.MustCompile(`\{\{([a-zA-Z_]\w*)\}\}`)

// ExtractParameters finds all {{param}} placeholders in SQL and returns
// a deduplicated list of parameter names in order of first appearance.
//
// Example:
//
//	sql := "SELECT * FROM lessons WHERE module_id = {{module_id}} AND topic_id = {{topic_id}}"
//	params := ExtractParameters(sql)
//	// params == []string{"module_id", "topic_id"}
func ExtractParameters(sqlQuery string) []string {
	matches := parameterRegex.FindAllStringSubmatch(sqlQuery, -1)
	seen := make(map[string]bool)
	var params []string

	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			params = append(params, name)
		}
	}

	return params
}

// FindParametersInStringLiterals checks for {{param}} placeholders that appear
// inside SQL string literals (single quotes). PostgreSQL treats $1 inside a
// literal as text, so such placeholders would never be bound.
//
// Example:
//
//	sql := "SELECT 'Hello {{name}}' FROM courses"
//	problems := FindParametersInStringLiterals(sql)
//	// problems == []string{"name"}
func FindParametersInStringLiterals(sqlQuery string) []string {
	var problems []string
	seen := make(map[string]bool)

	masked := MaskLiterals(sqlQuery)
	outside := make(map[int]bool)
	for _, loc := range parameterRegex.FindAllStringIndex(masked, -1) {
		outside[loc[0]] = true
	}

	for _, loc := range parameterRegex.FindAllStringSubmatchIndex(sqlQuery, -1) {
		if outside[loc[0]] {
			continue
		}
		name := sqlQuery[loc[2]:loc[3]]
		if !seen[name] {
			seen[name] = true
			problems = append(problems, name)
		}
	}

	return problems
}

// SubstituteParameters replaces {{param}} placeholders with PostgreSQL positional
// parameters ($1, $2, etc.) and returns the prepared SQL along with the ordered
// parameter names and values for binding.
//
// The same name reuses the same $N. A placeholder whose name is missing from
// values is an error.
//
// Example:
//
//	sql := "SELECT * FROM registrations WHERE learner_id = {{learner_id}} OR company_id = {{learner_id}}"
//	prepared, names, args, err := SubstituteParameters(sql, map[string]any{"learner_id": "u1"})
//	// prepared == "SELECT * FROM registrations WHERE learner_id = $1 OR company_id = $1"
//	// names == []string{"learner_id"}
//	// args == []any{"u1"}
func SubstituteParameters(sqlQuery string, values map[string]any) (string, []string, []any, error) {
	if problems := FindParametersInStringLiterals(sqlQuery); len(problems) > 0 {
		return "", nil, nil, fmt.Errorf("parameter {{%s}} is inside a string literal", problems[0])
	}

	var (
		names          []string
		orderedValues  []any
		missing        string
		paramPositions = make(map[string]int)
	)

	result := parameterRegex.ReplaceAllStringFunc(sqlQuery, func(match string) string {
		name := parameterRegex.FindStringSubmatch(match)[1]

		if pos, exists := paramPositions[name]; exists {
			return fmt.Sprintf("$%d", pos)
		}

		value, supplied := values[name]
		if !supplied {
			if missing == "" {
				missing = name
			}
			return match
		}

		names = append(names, name)
		orderedValues = append(orderedValues, value)
		pos := len(orderedValues)
		paramPositions[name] = pos

		return fmt.Sprintf("$%d", pos)
	})

	if missing != "" {
		return "", nil, nil, fmt.Errorf("%w: {{%s}}", ErrUnboundParameter, missing)
	}

	return result, names, orderedValues, nil
}
