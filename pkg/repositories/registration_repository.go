package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// RegistrationRepository provides data access for learner registrations.
type RegistrationRepository interface {
	// Create inserts a registration. A learner already registered for the course
	// yields apperrors.ErrConflict.
	Create(ctx context.Context, reg *models.Registration) error
	// FindByLearnerCourse returns the registration or nil when the learner is not registered.
	FindByLearnerCourse(ctx context.Context, learnerID, courseID string) (*models.Registration, error)
	UpdateStatus(ctx context.Context, registrationID string, status models.RegistrationStatus) error
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

type registrationRepository struct{}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository() RegistrationRepository {
	return &registrationRepository{}
}

var _ RegistrationRepository = (*registrationRepository)(nil)

func (r *registrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.Status == "" {
		reg.Status = models.RegistrationStatusInProgress
	}
	reg.RegisteredAt = now
	reg.UpdatedAt = now

	_, err = conn.Exec(ctx, `
		INSERT INTO registrations (
			id, learner_id, course_id, learner_name, company_id, status, registered_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		reg.ID, reg.LearnerID, reg.CourseID, reg.LearnerName, reg.CompanyID,
		reg.Status, reg.RegisteredAt, reg.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("learner %s already registered for course %s: %w", reg.LearnerID, reg.CourseID, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}

	return nil
}

func (r *registrationRepository) FindByLearnerCourse(ctx context.Context, learnerID, courseID string) (*models.Registration, error) {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	var reg models.Registration
	err = conn.QueryRow(ctx, `
		SELECT id, learner_id, course_id, learner_name, company_id, status, registered_at, updated_at
		FROM registrations
		WHERE learner_id = $1 AND course_id = $2`, learnerID, courseID).Scan(
		&reg.ID, &reg.LearnerID, &reg.CourseID, &reg.LearnerName, &reg.CompanyID,
		&reg.Status, &reg.RegisteredAt, &reg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}

	return &reg, nil
}

func (r *registrationRepository) UpdateStatus(ctx context.Context, registrationID string, status models.RegistrationStatus) error {
	if !models.IsValidRegistrationStatus(status) {
		return fmt.Errorf("invalid registration status %q", status)
	}

	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	tag, err := conn.Exec(ctx, `
		UPDATE registrations SET status = $2, updated_at = now()
		WHERE id = $1`, registrationID, status)
	if err != nil {
		return fmt.Errorf("failed to update registration status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registration %s: %w", registrationID, apperrors.ErrNotFound)
	}

	return nil
}

func (r *registrationRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE course_id = $1`, courseID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}

	return count, nil
}
