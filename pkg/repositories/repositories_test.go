package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/models"
)

func TestRepositories_RequireScope(t *testing.T) {
	ctx := context.Background()

	_, err := NewCourseRepository().GetByID(ctx, "c1")
	assert.ErrorIs(t, err, database.ErrNoScope)

	err = NewTopicRepository().Create(ctx, &models.Topic{CourseID: "c1"})
	assert.ErrorIs(t, err, database.ErrNoScope)

	_, err = NewLessonRepository().ListByCourse(ctx, "c1")
	assert.ErrorIs(t, err, database.ErrNoScope)

	_, err = NewRegistrationRepository().FindByLearnerCourse(ctx, "u1", "c1")
	assert.ErrorIs(t, err, database.ErrNoScope)
}

func TestCourseRepository_MergeDictionaryRejectsUnknownColumn(t *testing.T) {
	err := NewCourseRepository().MergeDictionary(context.Background(), "c1", models.Dictionary("name = null, x"), "u1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid dictionary")
}

func TestLessonRepository_FindBySkillsEmpty(t *testing.T) {
	matches, err := NewLessonRepository().FindBySkills(context.Background(), nil, "", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
