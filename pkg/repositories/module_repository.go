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

// ModuleRepository provides data access for topic modules.
type ModuleRepository interface {
	Create(ctx context.Context, module *models.Module) error
	ListByTopic(ctx context.Context, topicID string) ([]*models.Module, error)
}

type moduleRepository struct{}

// NewModuleRepository creates a new ModuleRepository.
func NewModuleRepository() ModuleRepository {
	return &moduleRepository{}
}

var _ ModuleRepository = (*moduleRepository)(nil)

func (r *moduleRepository) Create(ctx context.Context, module *models.Module) error {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	module.CreatedAt = time.Now().UTC()

	_, err = conn.Exec(ctx, `
		INSERT INTO modules (id, topic_id, name, description, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		module.ID, module.TopicID, module.Name, module.Description, module.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create module: %w", err)
	}

	return nil
}

func (r *moduleRepository) ListByTopic(ctx context.Context, topicID string) ([]*models.Module, error) {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT id, topic_id, name, description, created_at
		FROM modules
		WHERE topic_id = $1
		ORDER BY created_at, id`, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}

	modules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Module, error) {
		var m models.Module
		err := row.Scan(&m.ID, &m.TopicID, &m.Name, &m.Description, &m.CreatedAt)
		return &m, err
	})
	if err != nil {
		return nil, fmt.Errorf("error iterating modules: %w", err)
	}

	return modules, nil
}
