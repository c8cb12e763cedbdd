package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/models"
)

// AssessmentRepository provides data access for exam results.
type AssessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	// GetLatest returns the learner's most recent result for the course, or nil.
	GetLatest(ctx context.Context, learnerID, courseID string) (*models.Assessment, error)
}

type assessmentRepository struct{}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository() AssessmentRepository {
	return &assessmentRepository{}
}

var _ AssessmentRepository = (*assessmentRepository)(nil)

func (r *assessmentRepository) Create(ctx context.Context, a *models.Assessment) error {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()

	_, err = conn.Exec(ctx, `
		INSERT INTO assessments (
			id, learner_id, course_id, exam_type, passing_grade, final_grade, passed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.LearnerID, a.CourseID, a.ExamType, a.PassingGrade, a.FinalGrade, a.Passed, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}

	return nil
}

func (r *assessmentRepository) GetLatest(ctx context.Context, learnerID, courseID string) (*models.Assessment, error) {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	var (
		a          models.Assessment
		finalGrade *float64
	)
	err = conn.QueryRow(ctx, `
		SELECT id, learner_id, course_id, exam_type, passing_grade::float8, final_grade::float8, passed, created_at
		FROM assessments
		WHERE learner_id = $1 AND course_id = $2
		ORDER BY created_at DESC
		LIMIT 1`, learnerID, courseID).Scan(
		&a.ID, &a.LearnerID, &a.CourseID, &a.ExamType, &a.PassingGrade, &finalGrade, &a.Passed, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	if finalGrade != nil {
		a.FinalGrade = *finalGrade
	}

	return &a, nil
}
