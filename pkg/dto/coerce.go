// Package dto translates peer payload shapes to and from canonical entities.
//
// Peers send loosely shaped JSON. Every helper here is total: a missing,
// null or wrongly typed field yields an empty value, never a panic.
package dto

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/skillforge-io/course-builder/pkg/jsonutil"
	"github.com/skillforge-io/course-builder/pkg/schema"
)

// ToSlice coerces v to a sequence.
// nil, "" and other scalars yield an empty sequence; a bare object yields a
// one-element sequence; a string holding a JSON array is parsed; sequences pass through.
func ToSlice(v any) []any {
	switch val := v.(type) {
	case nil:
		return []any{}
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out
	case map[string]any:
		return []any{val}
	case *jsonutil.Object:
		if val == nil {
			return []any{}
		}
		return []any{val.ToMap()}
	case string:
		trimmed := strings.TrimSpace(val)
		if !strings.HasPrefix(trimmed, "[") {
			return []any{}
		}
		var parsed []any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil || parsed == nil {
			return []any{}
		}
		return parsed
	default:
		return []any{}
	}
}

// ToStringSlice coerces v to a list of distinct non-empty strings in first-seen order.
// Objects are reduced to their identifier or name.
func ToStringSlice(v any) []string {
	items := ToSlice(v)
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))

	for _, item := range items {
		var s string
		if m, ok := item.(map[string]any); ok {
			s = FirstString(m, "skill_id", "id", "name", "skill_name")
		} else {
			s = jsonutil.FlexibleString(item)
		}
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// AsMap returns v as a plain map. JSON object strings are parsed; anything else yields nil.
func AsMap(v any) map[string]any {
	switch val := v.(type) {
	case map[string]any:
		return val
	case *jsonutil.Object:
		return val.ToMap()
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(val), &m); err != nil {
			return nil
		}
		return m
	case []byte:
		var m map[string]any
		if err := json.Unmarshal(val, &m); err != nil {
			return nil
		}
		return m
	default:
		return nil
	}
}

// FirstPresent returns the value of the first key present in raw with a non-empty value.
func FirstPresent(raw map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// FirstString returns the first present value among keys rendered as a string.
func FirstString(raw map[string]any, keys ...string) string {
	v, ok := FirstPresent(raw, keys...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(jsonutil.FlexibleString(v))
}

// FieldString returns the value of a canonical field, trying every alias in precedence order.
func FieldString(raw map[string]any, canonical string) string {
	return FirstString(raw, schema.Aliases(canonical)...)
}

// LearnerID resolves the learner identifier: user_id, then student_id, then learner_id,
// then their camelCase variants.
func LearnerID(raw map[string]any) string {
	return FieldString(raw, "learner_id")
}

// CourseID resolves the course identifier.
func CourseID(raw map[string]any) string {
	return FieldString(raw, "course_id")
}

// Competency resolves the target competency tag.
func Competency(raw map[string]any) string {
	return FieldString(raw, "competency_target")
}

// ToFloat converts numeric JSON values and numeric strings.
func ToFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ToInt converts numeric JSON values to int, truncating fractions.
func ToInt(v any) (int, bool) {
	f, ok := ToFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// ToBool converts booleans and the strings "true"/"false"/"passed"/"failed".
func ToBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "passed", "pass":
			return true, true
		case "false", "no", "failed", "fail":
			return false, true
		}
	}
	return false, false
}
