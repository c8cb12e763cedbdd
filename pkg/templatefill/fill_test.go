package templatefill

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/jsonutil"
)

func mustTemplate(t *testing.T, s string) *jsonutil.Object {
	t.Helper()
	obj, err := jsonutil.ParseObject([]byte(s))
	require.NoError(t, err)
	return obj
}

func render(t *testing.T, obj *jsonutil.Object) string {
	t.Helper()
	out, err := json.Marshal(obj)
	require.NoError(t, err)
	return string(out)
}

// shapeOf describes the key structure of a value: object keys recursively, for
// arrays the shape shared by every item, and "scalar" for everything else.
func shapeOf(t *testing.T, v any) any {
	t.Helper()
	switch val := v.(type) {
	case *jsonutil.Object:
		out := make([]any, 0, val.Len())
		for _, k := range val.Keys() {
			child, _ := val.Get(k)
			out = append(out, []any{k, shapeOf(t, child)})
		}
		return out
	case []any:
		var itemShape any
		for i, item := range val {
			s := shapeOf(t, item)
			if i == 0 {
				itemShape = s
				continue
			}
			assert.Equal(t, itemShape, s, "array items must share one shape")
		}
		return []any{"array", itemShape}
	default:
		return "scalar"
	}
}

func TestFill_EnrolledCount(t *testing.T) {
	tmpl := mustTemplate(t, `{"enrolled": 0}`)

	filled := Fill(tmpl, map[string]any{"enrolled": int64(7)})

	assert.Equal(t, `{"enrolled":7}`, render(t, filled))
	assert.NoError(t, RequireComplete(filled))
}

func TestFill_DoesNotMutateTemplate(t *testing.T) {
	tmpl := mustTemplate(t, `{"course":{"name":null,"lessons":[{"id":null}]}}`)
	before := render(t, tmpl)

	_ = Fill(tmpl, map[string]any{
		"course": map[string]any{
			"name":    "Go",
			"lessons": []any{map[string]any{"id": "l1"}, map[string]any{"id": "l2"}},
		},
	})

	assert.Equal(t, before, render(t, tmpl))
}

func TestFill_CaseVariants(t *testing.T) {
	tests := []struct {
		name     string
		template string
		result   map[string]any
		want     string
	}{
		{
			name:     "exact",
			template: `{"course_id":null}`,
			result:   map[string]any{"course_id": "c1"},
			want:     `{"course_id":"c1"}`,
		},
		{
			name:     "camel template, snake column",
			template: `{"courseId":null,"learnerName":""}`,
			result:   map[string]any{"course_id": "c1", "learner_name": "Ada"},
			want:     `{"courseId":"c1","learnerName":"Ada"}`,
		},
		{
			name:     "snake template, camel column",
			template: `{"course_id":null}`,
			result:   map[string]any{"courseId": "c1"},
			want:     `{"course_id":"c1"}`,
		},
		{
			name:     "unmatched keeps placeholder",
			template: `{"course_id":"pending","total":0}`,
			result:   map[string]any{"other": 1},
			want:     `{"course_id":"pending","total":0}`,
		},
		{
			name:     "null column keeps placeholder",
			template: `{"enrolled":0}`,
			result:   map[string]any{"enrolled": nil},
			want:     `{"enrolled":0}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filled := Fill(mustTemplate(t, tt.template), tt.result)
			assert.Equal(t, tt.want, render(t, filled))
		})
	}
}

func TestFill_NestedObjects(t *testing.T) {
	tmpl := mustTemplate(t, `{"course":{"id":null,"name":null},"status":null}`)

	t.Run("matching nested map", func(t *testing.T) {
		filled := Fill(tmpl, map[string]any{
			"course": map[string]any{"id": "c1", "name": "Go"},
			"status": "active",
		})
		assert.Equal(t, `{"course":{"id":"c1","name":"Go"},"status":"active"}`, render(t, filled))
	})

	t.Run("flat row recurses into same data", func(t *testing.T) {
		filled := Fill(tmpl, map[string]any{"id": "c1", "name": "Go", "status": "draft"})
		assert.Equal(t, `{"course":{"id":"c1","name":"Go"},"status":"draft"}`, render(t, filled))
	})
}

func TestFill_ArrayOfObjects(t *testing.T) {
	tmpl := mustTemplate(t, `{"course_id":null,"lessons":[{"lesson_id":null,"skills":[]}]}`)

	filled := Fill(tmpl, map[string]any{
		"course_id": "c1",
		"lessons": []any{
			map[string]any{"lesson_id": "l1", "skills": []any{"go"}, "extra": true},
			map[string]any{"lessonId": "l2"},
		},
	})

	assert.Equal(t,
		`{"course_id":"c1","lessons":[{"lesson_id":"l1","skills":["go"]},{"lesson_id":"l2","skills":[]}]}`,
		render(t, filled))
}

func TestFill_RowsResult(t *testing.T) {
	tmpl := mustTemplate(t, `{"course_name":null,"lessons":[{"name":null}]}`)

	rows := []map[string]any{
		{"course_name": "Go", "name": "Intro"},
		{"course_name": "Go", "name": "Types"},
	}

	filled := Fill(tmpl, rows)

	assert.Equal(t, `{"course_name":"Go","lessons":[{"name":"Intro"},{"name":"Types"}]}`, render(t, filled))
}

func TestFill_EmptyAndNilResults(t *testing.T) {
	tmpl := mustTemplate(t, `{"a":1,"b":{"c":"x"}}`)

	for name, result := range map[string]any{
		"nil":        nil,
		"empty map":  map[string]any{},
		"empty rows": []any{},
		"scalar":     "OK",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, `{"a":1,"b":{"c":"x"}}`, render(t, Fill(tmpl, result)))
		})
	}
}

func TestFill_ShapePreservation(t *testing.T) {
	templates := []string{
		`{}`,
		`{"enrolled":0}`,
		`{"a":null,"b":{"c":null,"d":{"e":1}},"f":[{"g":null,"h":{"i":null}}],"j":[1,2]}`,
		`{"answer":"","success":false,"failed":[{"learner_id":null,"reason":null}]}`,
		`{"enrolled":0,"skills":["x"],"tags":[]}`,
	}
	results := []any{
		nil,
		map[string]any{},
		map[string]any{"a": 1, "b": "not an object", "f": "scalar", "extra": map[string]any{"z": 1}},
		map[string]any{"f": []any{map[string]any{"g": 1, "zz": 2}, 5}, "c": 3, "i": 4},
		[]any{map[string]any{"g": 1}, map[string]any{"g": 2}},
		map[string]any{"failed": map[string]any{"learner_id": "u1", "unknown": true}},
		map[string]any{"answer": []any{1, 2}, "success": true},
		map[string]any{"enrolled": map[string]any{"count": 3, "extra": true}, "skills": "sql", "tags": []any{map[string]any{"k": 1}}},
		map[string]any{"a": []any{1}, "g": map[string]any{"x": 1}, "j": []any{map[string]any{"y": 2}}, "reason": []any{"r"}},
	}

	for _, ts := range templates {
		for _, r := range results {
			tmpl := mustTemplate(t, ts)
			filled := Fill(tmpl, r)

			require.Equal(t, tmpl.Keys(), filled.Keys())
			// Arrays may change length; their item shape may not.
			wantShape := shapeOf(t, tmpl)
			gotShape := shapeOf(t, filled)
			assertSameObjectShape(t, wantShape, gotShape)
		}
	}
}

func assertSameObjectShape(t *testing.T, want, got any) {
	t.Helper()
	switch w := want.(type) {
	case string:
		assert.Equal(t, w, got, "leaf kind changed")
	case []any:
		g, ok := got.([]any)
		if !assert.True(t, ok, "expected composite shape, got %v", got) {
			return
		}
		if len(w) == 2 && w[0] == "array" {
			if !assert.Equal(t, "array", g[0]) {
				return
			}
			switch {
			case w[1] == nil && g[1] != nil:
				// An empty template array only takes scalars.
				assert.Equal(t, "scalar", g[1])
			case w[1] != nil && g[1] != nil:
				assertSameObjectShape(t, w[1], g[1])
			}
			return
		}
		require.Len(t, g, len(w))
		for i := range w {
			pw := w[i].([]any)
			pg := g[i].([]any)
			assert.Equal(t, pw[0], pg[0])
			assertSameObjectShape(t, pw[1], pg[1])
		}
	}
}

func TestFill_KeepsPlaceholderOnKindMismatch(t *testing.T) {
	tests := []struct {
		name   string
		tmpl   string
		result map[string]any
		want   string
	}{
		{
			name:   "object into scalar and scalar into list",
			tmpl:   `{"enrolled":0,"skills":["x"]}`,
			result: map[string]any{"enrolled": map[string]any{"count": 3, "extra": true}, "skills": "sql"},
			want:   `{"enrolled":0,"skills":["x"]}`,
		},
		{
			name:   "list into scalar",
			tmpl:   `{"answer":""}`,
			result: map[string]any{"answer": []any{1, 2}},
			want:   `{"answer":""}`,
		},
		{
			name:   "objects into empty list",
			tmpl:   `{"skills":[]}`,
			result: map[string]any{"skills": []any{map[string]any{"name": "go"}}},
			want:   `{"skills":[]}`,
		},
		{
			name:   "object into null",
			tmpl:   `{"course":null}`,
			result: map[string]any{"course": map[string]any{"id": "c1"}},
			want:   `{"course":null}`,
		},
		{
			name:   "string list into list",
			tmpl:   `{"skills":[]}`,
			result: map[string]any{"skills": []string{"go", "sql"}},
			want:   `{"skills":["go","sql"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, Fill(mustTemplate(t, tt.tmpl), tt.result)))
		})
	}
}

func TestUnfilledAndRequireComplete(t *testing.T) {
	obj := mustTemplate(t, `{"a":null,"b":{"c":1,"d":null},"e":[{"f":null},{"f":2}],"g":[]}`)

	assert.Equal(t, []string{"a", "b.d", "e[0].f"}, Unfilled(obj))

	err := RequireComplete(obj)
	var incomplete *apperrors.IncompleteFillError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"a", "b.d", "e[0].f"}, incomplete.Paths)

	assert.NoError(t, RequireComplete(mustTemplate(t, `{"a":0,"b":{"c":""}}`)))
}
