package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/models"
)

// FeedbackRepository provides data access for course feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	// AverageRating returns the mean rating of a course and how many ratings it is based on.
	AverageRating(ctx context.Context, courseID string) (float64, int, error)
}

type feedbackRepository struct{}

// NewFeedbackRepository creates a new FeedbackRepository.
func NewFeedbackRepository() FeedbackRepository {
	return &feedbackRepository{}
}

var _ FeedbackRepository = (*feedbackRepository)(nil)

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.SubmittedAt.IsZero() {
		feedback.SubmittedAt = time.Now().UTC()
	}

	_, err = conn.Exec(ctx, `
		INSERT INTO feedback (id, learner_id, course_id, rating, comment, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		feedback.ID, feedback.LearnerID, feedback.CourseID, feedback.Rating,
		feedback.Comment, feedback.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}

	return nil
}

func (r *feedbackRepository) AverageRating(ctx context.Context, courseID string) (float64, int, error) {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return 0, 0, err
	}

	var (
		avg   float64
		count int
	)
	err = conn.QueryRow(ctx, `
		SELECT COALESCE(AVG(rating), 0)::float8, COUNT(rating)::int
		FROM feedback
		WHERE course_id = $1`, courseID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to average feedback: %w", err)
	}

	return avg, count, nil
}
