package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/models"
)

// LessonMatch is a lesson found by skill together with the course it belongs to.
type LessonMatch struct {
	Lesson   *models.Lesson
	CourseID string
}

// LessonRepository provides data access for lessons.
type LessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	ListByModule(ctx context.Context, moduleID string) ([]*models.Lesson, error)
	// ListByCourse returns every lesson of the course in topic, module, lesson order.
	ListByCourse(ctx context.Context, courseID string) ([]*models.Lesson, error)
	// FindBySkills returns lessons teaching any of skills, optionally within one course.
	FindBySkills(ctx context.Context, skills []string, courseID string, limit int) ([]*LessonMatch, error)
}

type lessonRepository struct{}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository() LessonRepository {
	return &lessonRepository{}
}

var _ LessonRepository = (*lessonRepository)(nil)

const lessonColumns = `
	l.id, l.module_id, l.topic_id, l.name, l.description, l.skills, l.trainer_ids,
	l.content_type, l.content_data, l.devlab_exercises, l.created_at, l.updated_at`

func (r *lessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	lesson.CreatedAt = now
	lesson.UpdatedAt = now
	lesson.EnsureSequences()

	_, err = conn.Exec(ctx, `
		INSERT INTO lessons (
			id, module_id, topic_id, name, description, skills, trainer_ids,
			content_type, content_data, devlab_exercises, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		lesson.ID, lesson.ModuleID, lesson.TopicID, lesson.Name, lesson.Description,
		lesson.Skills, lesson.TrainerIDs, lesson.ContentType,
		lesson.ContentData, lesson.DevlabExercises,
		lesson.CreatedAt, lesson.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lesson: %w", err)
	}

	return nil
}

func (r *lessonRepository) ListByModule(ctx context.Context, moduleID string) ([]*models.Lesson, error) {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons l
		WHERE l.module_id = $1
		ORDER BY l.created_at, l.id`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}

	lessons, err := pgx.CollectRows(rows, scanLesson)
	if err != nil {
		return nil, fmt.Errorf("error iterating lessons: %w", err)
	}

	return lessons, nil
}

func (r *lessonRepository) ListByCourse(ctx context.Context, courseID string) ([]*models.Lesson, error) {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons l
		JOIN modules m ON m.id = l.module_id
		JOIN topics t ON t.id = m.topic_id
		WHERE t.course_id = $1
		ORDER BY t.created_at, t.id, m.created_at, m.id, l.created_at, l.id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list course lessons: %w", err)
	}

	lessons, err := pgx.CollectRows(rows, scanLesson)
	if err != nil {
		return nil, fmt.Errorf("error iterating course lessons: %w", err)
	}

	return lessons, nil
}

func (r *lessonRepository) FindBySkills(ctx context.Context, skills []string, courseID string, limit int) ([]*LessonMatch, error) {
	if len(skills) == 0 {
		return []*LessonMatch{}, nil
	}

	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+lessonColumns+`, t.course_id
		FROM lessons l
		JOIN topics t ON t.id = l.topic_id
		WHERE l.skills && $1::text[]
		  AND ($2::text = '' OR t.course_id = $2::text)
		ORDER BY l.created_at, l.id
		LIMIT $3`, skills, courseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find lessons by skills: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*LessonMatch, error) {
		var (
			l        models.Lesson
			courseID string
		)
		if err := row.Scan(lessonFields(&l, &courseID)...); err != nil {
			return nil, err
		}
		l.EnsureSequences()
		return &LessonMatch{Lesson: &l, CourseID: courseID}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error iterating lesson matches: %w", err)
	}

	return matches, nil
}

func scanLesson(row pgx.CollectableRow) (*models.Lesson, error) {
	var l models.Lesson
	if err := row.Scan(lessonFields(&l)...); err != nil {
		return nil, err
	}
	l.EnsureSequences()
	return &l, nil
}

func lessonFields(l *models.Lesson, extra ...any) []any {
	return append([]any{
		&l.ID, &l.ModuleID, &l.TopicID, &l.Name, &l.Description, &l.Skills, &l.TrainerIDs,
		&l.ContentType, &l.ContentData, &l.DevlabExercises, &l.CreatedAt, &l.UpdatedAt,
	}, extra...)
}
