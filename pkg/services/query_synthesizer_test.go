package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/jsonutil"
	"github.com/skillforge-io/course-builder/pkg/llm"
	"github.com/skillforge-io/course-builder/pkg/metrics"
)

func mustObject(t *testing.T, s string) *jsonutil.Object {
	t.Helper()
	obj, err := jsonutil.ParseObject([]byte(s))
	require.NoError(t, err)
	return obj
}

func TestQuerySynthesizer_Synthesize(t *testing.T) {
	mock := llm.NewMockLLMClient("```sql\nSELECT COUNT(*)::int AS enrolled FROM registrations WHERE course_id = $1\n```")
	synth := NewQuerySynthesizer(mock, 0, nil, zap.NewNop())

	statement, err := synth.Synthesize(context.Background(),
		map[string]any{"course_id": "c1"}, mustObject(t, `{"enrolled": 0}`), "", false)

	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*)::int AS enrolled FROM registrations WHERE course_id = $1", statement)
	require.Len(t, mock.Temperatures, 1)
	assert.Equal(t, DefaultSynthesisTemperature, mock.Temperatures[0])
	assert.Contains(t, mock.LastPrompt(), `"course_id": "c1"`)
	assert.Contains(t, mock.LastPrompt(), "Template fields to produce: enrolled")
	assert.Contains(t, mock.LastPrompt(), "registrations")
}

func TestQuerySynthesizer_ActionModePrompt(t *testing.T) {
	mock := llm.NewMockLLMClient("INSERT INTO feedback (id, learner_id, course_id, rating) VALUES (gen_random_uuid()::text, $1, $2, $3) RETURNING id")
	synth := NewQuerySynthesizer(mock, 0.3, nil, zap.NewNop())

	statement, err := synth.Synthesize(context.Background(),
		map[string]any{"learner_id": "u1", "course_id": "c1", "rating": 5},
		mustObject(t, `{"id": ""}`), "rate_course", true)

	require.NoError(t, err)
	assert.NotEmpty(t, statement)
	assert.Equal(t, 0.3, mock.Temperatures[0])
	assert.Contains(t, mock.LastPrompt(), `"rate_course"`)
	assert.Contains(t, mock.LastPrompt(), "RETURNING")
}

func TestQuerySynthesizer_Failures(t *testing.T) {
	tests := []struct {
		name     string
		mock     *llm.MockLLMClient
		template *jsonutil.Object
		wantKind apperrors.Kind
	}{
		{
			name: "completion error",
			mock: &llm.MockLLMClient{GenerateResponseFunc: func(context.Context, string, string, float64, bool) (*llm.GenerateResponseResult, error) {
				return nil, errors.New("503 from provider")
			}},
			template: jsonutil.NewObject(),
			wantKind: apperrors.KindSynthesisFailed,
		},
		{
			name:     "empty completion",
			mock:     llm.NewMockLLMClient(""),
			template: jsonutil.NewObject(),
			wantKind: apperrors.KindSynthesisFailed,
		},
		{
			name:     "prose only",
			mock:     llm.NewMockLLMClient("I cannot answer that from this schema."),
			template: jsonutil.NewObject(),
			wantKind: apperrors.KindSynthesisFailed,
		},
		{
			name:     "missing template",
			mock:     llm.NewMockLLMClient("SELECT 1"),
			template: nil,
			wantKind: apperrors.KindInvalidTemplate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			synth := NewQuerySynthesizer(tt.mock, 0, m, zap.NewNop())

			_, err := synth.Synthesize(context.Background(), map[string]any{}, tt.template, "", false)

			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
		})
	}
}

func TestQuerySynthesizer_DoesNotRetry(t *testing.T) {
	mock := llm.NewMockLLMClient("no sql here", "SELECT 1")
	synth := NewQuerySynthesizer(mock, 0, nil, zap.NewNop())

	_, err := synth.Synthesize(context.Background(), nil, mustObject(t, `{"a": 1}`), "", false)

	require.Error(t, err)
	assert.Equal(t, 1, mock.GenerateResponseCalls)
}

func TestTemplateLeafPaths(t *testing.T) {
	tmpl := mustObject(t, `{
		"course": {"name": "", "status": ""},
		"enrolled": 0,
		"lessons": [{"lesson_id": "", "skills": []}],
		"tags": [],
		"meta": {}
	}`)

	assert.Equal(t, []string{
		"course.name",
		"course.status",
		"enrolled",
		"lessons[].lesson_id",
		"lessons[].skills",
		"tags",
		"meta",
	}, TemplateLeafPaths(tmpl))
}

func TestUncoveredTemplateKeys(t *testing.T) {
	tmpl := mustObject(t, `{"enrolled": 0, "courseName": "", "lessons": []}`)

	tests := []struct {
		name      string
		statement string
		want      []string
	}{
		{
			name:      "all covered",
			statement: "SELECT COUNT(*) AS enrolled, c.name AS course_name FROM courses c",
			want:      nil,
		},
		{
			name:      "missing alias",
			statement: "SELECT COUNT(*) FROM registrations",
			want:      []string{"courseName", "enrolled"},
		},
		{
			name:      "not a select",
			statement: "UPDATE courses SET status = 'active'",
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uncoveredTemplateKeys(tmpl, tt.statement))
		})
	}
}
