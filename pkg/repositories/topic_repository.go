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

// TopicRepository provides data access for course topics.
type TopicRepository interface {
	Create(ctx context.Context, topic *models.Topic) error
	ListByCourse(ctx context.Context, courseID string) ([]*models.Topic, error)
}

type topicRepository struct{}

// NewTopicRepository creates a new TopicRepository.
func NewTopicRepository() TopicRepository {
	return &topicRepository{}
}

var _ TopicRepository = (*topicRepository)(nil)

func (r *topicRepository) Create(ctx context.Context, topic *models.Topic) error {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	topic.CreatedAt = time.Now().UTC()

	_, err = conn.Exec(ctx, `
		INSERT INTO topics (id, course_id, name, description, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		topic.ID, topic.CourseID, topic.Name, topic.Description, topic.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}

	return nil
}

func (r *topicRepository) ListByCourse(ctx context.Context, courseID string) ([]*models.Topic, error) {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT id, course_id, name, description, created_at
		FROM topics
		WHERE course_id = $1
		ORDER BY created_at, id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}

	topics, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Topic, error) {
		var t models.Topic
		err := row.Scan(&t.ID, &t.CourseID, &t.Name, &t.Description, &t.CreatedAt)
		return &t, err
	})
	if err != nil {
		return nil, fmt.Errorf("error iterating topics: %w", err)
	}

	return topics, nil
}
