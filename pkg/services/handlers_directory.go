package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/audit"
	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/dto"
	"github.com/skillforge-io/course-builder/pkg/jsonutil"
	"github.com/skillforge-io/course-builder/pkg/models"
	"github.com/skillforge-io/course-builder/pkg/repositories"
	"github.com/skillforge-io/course-builder/pkg/templatefill"
)

// DirectoryHandlerDeps are the collaborators of the directory handler.
type DirectoryHandlerDeps struct {
	DB            database.Transactor
	Courses       repositories.CourseRepository
	Registrations repositories.RegistrationRepository
	Auditor       *audit.SecurityAuditor
}

type directoryHandler struct {
	deps   DirectoryHandlerDeps
	logger *zap.Logger
}

// NewDirectoryHandler creates the handler for the directory service: batch
// enrollments and course summaries.
func NewDirectoryHandler(deps DirectoryHandlerDeps, logger *zap.Logger) ServiceHandler {
	return &directoryHandler{deps: deps, logger: logger.Named("directory-handler")}
}

var _ ServiceHandler = (*directoryHandler)(nil)

func (h *directoryHandler) Handle(ctx context.Context, req *DispatchRequest) (*jsonutil.Object, error) {
	var (
		result map[string]any
		err    error
	)
	if dto.IsEnrollment(req.Payload) {
		result, err = h.enroll(ctx, req.Payload)
	} else {
		result, err = h.summary(ctx, req.Payload)
	}
	if err != nil {
		return nil, err
	}
	return templatefill.Fill(req.Template, result), nil
}

func (h *directoryHandler) enroll(ctx context.Context, payload map[string]any) (map[string]any, error) {
	er, err := dto.EnrollmentToCanonical(payload)
	if err != nil {
		return nil, err
	}

	enrolled := make([]any, 0, len(er.Learners))
	skipped := make([]any, 0)
	enrolledAt := time.Now().UTC().Format(time.RFC3339)

	err = h.deps.DB.WithTx(ctx, func(ctx context.Context) error {
		if _, err := h.deps.Courses.GetByID(ctx, er.CourseID); err != nil {
			return err
		}

		for _, learner := range er.Learners {
			reg, err := h.deps.Registrations.FindByLearnerCourse(ctx, learner.LearnerID, er.CourseID)
			if err != nil {
				return err
			}

			switch {
			case reg != nil && reg.Status.BlocksReenrollment():
				skipped = append(skipped, learner.LearnerID)
				continue
			case reg != nil:
				err = h.deps.Registrations.UpdateStatus(ctx, reg.ID, models.RegistrationStatusInProgress)
			default:
				err = h.deps.Registrations.Create(ctx, &models.Registration{
					LearnerID:   learner.LearnerID,
					CourseID:    er.CourseID,
					LearnerName: learner.LearnerName,
					CompanyID:   er.CompanyID,
					Status:      models.RegistrationStatusInProgress,
				})
			}
			if err != nil {
				return err
			}

			err = h.deps.Courses.MergeDictionary(ctx, er.CourseID, models.DictionaryEnrollment, learner.LearnerID, map[string]any{
				"enrolled_at": enrolledAt,
				"source":      string(ServiceDirectory),
				"company_id":  er.CompanyID,
				"status":      string(models.RegistrationStatusInProgress),
			})
			if err != nil {
				return err
			}
			enrolled = append(enrolled, learner.LearnerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(enrolled) > 0 {
		h.deps.Auditor.LogSideEffect(ctx, audit.SideEffectDetails{
			Kind:         "enrollment",
			Target:       string(models.DictionaryEnrollment),
			RowsAffected: int64(len(enrolled)),
			CourseID:     er.CourseID,
			Outcome:      "ok",
		})
	}
	h.logger.Info("Enrollment processed",
		zap.String("course_id", er.CourseID),
		zap.Int("enrolled", len(enrolled)),
		zap.Int("skipped", len(skipped)))

	return map[string]any{
		"course_id":         er.CourseID,
		"enrolled":          len(enrolled),
		"enrolled_count":    len(enrolled),
		"skipped":           len(skipped),
		"enrolled_learners": enrolled,
		"skipped_learners":  skipped,
		"status":            "processed",
	}, nil
}

func (h *directoryHandler) summary(ctx context.Context, payload map[string]any) (map[string]any, error) {
	courseID := dto.CourseID(payload)
	if courseID == "" {
		return map[string]any{}, nil
	}

	var (
		course *models.Course
		counts dto.CourseCounts
	)
	err := h.deps.DB.WithScope(ctx, func(ctx context.Context) error {
		var err error
		course, err = h.deps.Courses.GetByID(ctx, courseID)
		if err != nil {
			return err
		}
		counts.Topics, counts.Modules, counts.Lessons, err = h.deps.Courses.StructureCounts(ctx, courseID)
		if err != nil {
			return err
		}
		counts.Enrolled, err = h.deps.Registrations.CountByCourse(ctx, courseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dto.CourseSummaryToWire(course, counts), nil
}
