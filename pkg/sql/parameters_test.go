package sql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractParameters(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "no parameters",
			sql:      "SELECT * FROM courses",
			expected: nil,
		},
		{
			name:     "single parameter",
			sql:      "SELECT * FROM courses WHERE id = {{course_id}}",
			expected: []string{"course_id"},
		},
		{
			name:     "order of first appearance",
			sql:      "SELECT * FROM registrations WHERE learner_id = {{learner_id}} AND course_id = {{course_id}}",
			expected: []string{"learner_id", "course_id"},
		},
		{
			name:     "duplicates are collapsed",
			sql:      "SELECT {{a}}, {{b}}, {{a}}",
			expected: []string{"a", "b"},
		},
		{
			name:     "invalid names are ignored",
			sql:      "SELECT {{1abc}}, {{ok_name}}, {{with-dash}}",
			expected: []string{"ok_name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractParameters(tt.sql))
		})
	}
}

func TestFindParametersInStringLiterals(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "placeholder outside literal",
			sql:      "SELECT * FROM courses WHERE id = {{course_id}}",
			expected: nil,
		},
		{
			name:     "placeholder inside literal",
			sql:      "SELECT * FROM courses WHERE name LIKE '%{{term}}%'",
			expected: []string{"term"},
		},
		{
			name:     "mixed",
			sql:      "SELECT '{{a}}' WHERE id = {{b}}",
			expected: []string{"a"},
		},
		{
			name:     "doubled quote keeps literal open",
			sql:      "SELECT 'it''s {{x}}'",
			expected: []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FindParametersInStringLiterals(tt.sql))
		})
	}
}

func TestSubstituteParameters(t *testing.T) {
	sql := "SELECT * FROM registrations WHERE learner_id = {{learner_id}} AND course_id = {{course_id}} OR created_by = {{learner_id}}"
	values := map[string]any{"learner_id": "u1", "course_id": "c1", "unused": 5}

	prepared, names, args, err := SubstituteParameters(sql, values)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM registrations WHERE learner_id = $1 AND course_id = $2 OR created_by = $1", prepared)
	assert.Equal(t, []string{"learner_id", "course_id"}, names)
	assert.Equal(t, []any{"u1", "c1"}, args)
}

func TestSubstituteParameters_NoPlaceholders(t *testing.T) {
	prepared, names, args, err := SubstituteParameters("SELECT 1", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", prepared)
	assert.Empty(t, names)
	assert.Empty(t, args)
}

func TestSubstituteParameters_MissingValue(t *testing.T) {
	_, _, _, err := SubstituteParameters("SELECT * FROM courses WHERE id = {{course_id}}", map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnboundParameter))
	assert.Contains(t, err.Error(), "course_id")
}

func TestSubstituteParameters_NilValueIsBound(t *testing.T) {
	_, _, args, err := SubstituteParameters("UPDATE lessons SET description = {{description}}", map[string]any{"description": nil})
	require.NoError(t, err)
	assert.Equal(t, []any{nil}, args)
}

func TestSubstituteParameters_InsideLiteral(t *testing.T) {
	_, _, _, err := SubstituteParameters("SELECT 'hello {{name}}'", map[string]any{"name": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "string literal")
}
