package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTables_SevenTablesWithCascadeParents(t *testing.T) {
	names := make([]string, len(Tables))
	for i, tbl := range Tables {
		names[i] = tbl.Name
	}
	assert.Equal(t,
		[]string{"courses", "topics", "modules", "lessons", "feedback", "registrations", "assessments"},
		names)

	lessons, ok := TableByName("lessons")
	assert.True(t, ok)
	assert.Equal(t, []string{"modules", "topics"}, lessons.Parents)

	_, ok = TableByName("users")
	assert.False(t, ok)
}

func TestTable_ForeignKey(t *testing.T) {
	for name, want := range map[string]string{
		"courses": "course_id",
		"topics":  "topic_id",
		"modules": "module_id",
	} {
		tbl, ok := TableByName(name)
		assert.True(t, ok)
		assert.Equal(t, want, tbl.ForeignKey())
	}
}

func TestRender(t *testing.T) {
	out := Render()

	assert.Contains(t, out, "Never invent a table")
	assert.Contains(t, out, "## courses")
	assert.Contains(t, out, "- lessons.module_id -> modules.id (ON DELETE CASCADE)")
	assert.Contains(t, out, "- topics.course_id -> courses.id (ON DELETE CASCADE)")
	assert.NotContains(t, out, "## users")
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user_id", "learner_id"},
		{"student_id", "learner_id"},
		{"studentId", "learner_id"},
		{"learnerId", "learner_id"},
		{"courseId", "course_id"},
		{"competency", "competency_target"},
		{"target_competency", "competency_target"},
		{"trainer_id", "created_by"},
		{"skill", "skills"},
		{"devlabExercises", "devlab_exercises"},
		{"somethingElse", "something_else"},
		{"rating", "rating"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.in))
		})
	}
}

func TestAliases_LearnerPrecedence(t *testing.T) {
	names := Aliases("learner_id")

	assert.Equal(t, []string{"user_id", "student_id", "learner_id", "userId", "studentId", "learnerId"}, names)
}

func TestAliases_CanonicalFirstWhenNotListed(t *testing.T) {
	assert.Equal(t, []string{"course_id", "courseId"}, Aliases("course_id"))
	assert.Equal(t, []string{"unknown_field", "unknownField"}, Aliases("unknown_field"))
}

func TestRenderAliases(t *testing.T) {
	out := RenderAliases()

	assert.Contains(t, out, "- learner_id <- user_id, student_id, userId, studentId, learnerId")
	assert.Contains(t, out, "- course_id <- courseId")
}
