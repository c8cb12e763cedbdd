package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStatement(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		expected   string
	}{
		{
			name:       "bare statement",
			completion: "SELECT id FROM courses",
			expected:   "SELECT id FROM courses",
		},
		{
			name:       "fenced block",
			completion: "```sql\nSELECT * FROM courses;\n```",
			expected:   "SELECT * FROM courses;",
		},
		{
			name:       "fenced block with prose around it",
			completion: "Here you go:\n```\nSELECT 1\n```\nLet me know if it works.",
			expected:   "SELECT 1",
		},
		{
			name:       "reasoning block is dropped",
			completion: "<think>I could SELECT from lessons or modules</think>\nSELECT id FROM modules",
			expected:   "SELECT id FROM modules",
		},
		{
			name:       "line-start keyword beats prose",
			completion: "Sure, I will update the row.\nUPDATE courses SET status = 'active' WHERE id = $1",
			expected:   "UPDATE courses SET status = 'active' WHERE id = $1",
		},
		{
			name:       "uppercase keyword inside prose",
			completion: "The query is: SELECT 1",
			expected:   "SELECT 1",
		},
		{
			name:       "lowercase statement",
			completion: "answer:\nselect name from courses",
			expected:   "select name from courses",
		},
		{
			name:       "trailing statements are kept",
			completion: "SELECT 1; DROP TABLE courses",
			expected:   "SELECT 1; DROP TABLE courses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractStatement(tt.completion)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExtractStatement_Errors(t *testing.T) {
	_, err := ExtractStatement("")
	assert.ErrorIs(t, err, ErrEmptyCompletion)

	_, err = ExtractStatement("<think>nothing to do</think>")
	assert.ErrorIs(t, err, ErrEmptyCompletion)

	_, err = ExtractStatement("No query is needed here.")
	assert.ErrorIs(t, err, ErrNoStatement)
}
