package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/models"
)

// CourseRepository provides data access for courses and their learner dictionaries.
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, courseID string) (*models.Course, error)
	UpdateStatus(ctx context.Context, courseID string, status models.CourseStatus) error

	// MergeDictionary merges fields into one learner's entry of a course dictionary in a
	// single statement. Fields already present are overwritten, others are kept.
	MergeDictionary(ctx context.Context, courseID string, dict models.Dictionary, learnerID string, fields map[string]any) error

	// FindLearnerCourse returns the newest non-archived course assembled for the learner
	// and competency (compared case-insensitively), or nil when there is none.
	FindLearnerCourse(ctx context.Context, learnerID, competency string) (*models.Course, error)

	// StructureCounts returns how many topics, modules and lessons the course has.
	StructureCounts(ctx context.Context, courseID string) (topics, modules, lessons int, err error)
}

type courseRepository struct{}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository() CourseRepository {
	return &courseRepository{}
}

var _ CourseRepository = (*courseRepository)(nil)

const courseColumns = `
	id, name, description, course_type, status, level, duration_hours, created_by,
	learning_path_designation, enrollment_dictionary, feedback_dictionary,
	lesson_completion_dictionary, created_at, updated_at`

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.Status == "" {
		course.Status = models.CourseStatusDraft
	}
	course.CreatedAt = now
	course.UpdatedAt = now

	sql := `
		INSERT INTO courses (` + courseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = conn.Exec(ctx, sql,
		course.ID, course.Name, course.Description, course.CourseType, course.Status,
		course.Level, course.DurationHours, course.CreatedBy,
		course.LearningPath,
		dictionaryOrEmpty(course.EnrollmentDictionary),
		dictionaryOrEmpty(course.FeedbackDictionary),
		dictionaryOrEmpty(course.LessonCompletionDictionary),
		course.CreatedAt, course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}

	return nil
}

func (r *courseRepository) GetByID(ctx context.Context, courseID string) (*models.Course, error) {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	sql := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`

	course, err := scanCourse(conn.QueryRow(ctx, sql, courseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("course %s: %w", courseID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	return course, nil
}

func (r *courseRepository) UpdateStatus(ctx context.Context, courseID string, status models.CourseStatus) error {
	if !models.IsValidCourseStatus(status) {
		return fmt.Errorf("invalid course status %q", status)
	}

	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	tag, err := conn.Exec(ctx, `
		UPDATE courses SET status = $2, updated_at = now()
		WHERE id = $1`, courseID, status)
	if err != nil {
		return fmt.Errorf("failed to update course status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("course %s: %w", courseID, apperrors.ErrNotFound)
	}

	return nil
}

func (r *courseRepository) MergeDictionary(ctx context.Context, courseID string, dict models.Dictionary, learnerID string, fields map[string]any) error {
	// The column name is interpolated, so it must come from the closed set.
	if !models.IsValidDictionary(dict) {
		return fmt.Errorf("invalid dictionary %q", dict)
	}
	if learnerID == "" {
		return apperrors.MissingField("learner_id")
	}

	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode dictionary fields: %w", err)
	}

	col := dict.Column()
	sql := fmt.Sprintf(`
		UPDATE courses
		SET %[1]s = %[1]s || jsonb_build_object($2::text, COALESCE(%[1]s -> $2::text, '{}'::jsonb) || $3::jsonb),
		    updated_at = now()
		WHERE id = $1`, col)

	tag, err := conn.Exec(ctx, sql, courseID, learnerID, string(patch))
	if err != nil {
		return fmt.Errorf("failed to merge %s: %w", col, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("course %s: %w", courseID, apperrors.ErrNotFound)
	}

	return nil
}

func (r *courseRepository) FindLearnerCourse(ctx context.Context, learnerID, competency string) (*models.Course, error) {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	sql := `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE course_type = $1
		  AND enrollment_dictionary ? $2
		  AND lower(COALESCE(learning_path_designation ->> 'target_competency', '')) = lower($3)
		  AND status <> $4
		ORDER BY created_at DESC
		LIMIT 1`

	course, err := scanCourse(conn.QueryRow(ctx, sql,
		models.CourseTypeLearnerSpecific, learnerID, competency, models.CourseStatusArchived))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find learner course: %w", err)
	}

	return course, nil
}

func (r *courseRepository) StructureCounts(ctx context.Context, courseID string) (int, int, int, error) {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return 0, 0, 0, err
	}

	var topics, modules, lessons int
	err = conn.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM topics t WHERE t.course_id = $1),
			(SELECT COUNT(*) FROM modules m JOIN topics t ON t.id = m.topic_id WHERE t.course_id = $1),
			(SELECT COUNT(*) FROM lessons l JOIN topics t ON t.id = l.topic_id WHERE t.course_id = $1)`,
		courseID).Scan(&topics, &modules, &lessons)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count course structure: %w", err)
	}

	return topics, modules, lessons, nil
}

func scanCourse(row pgx.Row) (*models.Course, error) {
	var c models.Course
	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.CourseType, &c.Status, &c.Level,
		&c.DurationHours, &c.CreatedBy, &c.LearningPath,
		&c.EnrollmentDictionary, &c.FeedbackDictionary, &c.LessonCompletionDictionary,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func dictionaryOrEmpty(d models.LearnerDictionary) models.LearnerDictionary {
	if d == nil {
		return models.LearnerDictionary{}
	}
	return d
}
