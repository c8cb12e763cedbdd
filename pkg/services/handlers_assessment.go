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

// AssessmentHandlerDeps are the collaborators of the assessment handler.
type AssessmentHandlerDeps struct {
	DB            database.Transactor
	Coverage      CoverageService
	Courses       repositories.CourseRepository
	Assessments   repositories.AssessmentRepository
	Registrations repositories.RegistrationRepository
	Auditor       *audit.SecurityAuditor
}

type assessmentHandler struct {
	deps   AssessmentHandlerDeps
	logger *zap.Logger
}

// NewAssessmentHandler creates the handler for the assessment service. It accepts
// exam results and coverage requests.
func NewAssessmentHandler(deps AssessmentHandlerDeps, logger *zap.Logger) ServiceHandler {
	return &assessmentHandler{deps: deps, logger: logger.Named("assessment-handler")}
}

var _ ServiceHandler = (*assessmentHandler)(nil)

// gradeKeys mark a payload as an exam result rather than a coverage request.
var gradeKeys = []string{"final_grade", "finalGrade", "grade", "score", "passed", "result"}

func (h *assessmentHandler) Handle(ctx context.Context, req *DispatchRequest) (*jsonutil.Object, error) {
	var (
		result map[string]any
		err    error
	)
	if _, isResult := dto.FirstPresent(req.Payload, gradeKeys...); isResult {
		result, err = h.recordResult(ctx, req.Payload)
	} else {
		result, err = h.coverage(ctx, req.Payload)
	}
	if err != nil {
		return nil, err
	}
	return templatefill.Fill(req.Template, result), nil
}

func (h *assessmentHandler) recordResult(ctx context.Context, payload map[string]any) (map[string]any, error) {
	a, err := dto.ResultToCanonical(payload)
	if err != nil {
		return nil, err
	}

	status := models.RegistrationStatusFailed
	if a.Passed {
		status = models.RegistrationStatusCompleted
	}

	err = h.deps.DB.WithTx(ctx, func(ctx context.Context) error {
		if _, err := h.deps.Courses.GetByID(ctx, a.CourseID); err != nil {
			return err
		}
		if err := h.deps.Assessments.Create(ctx, a); err != nil {
			return err
		}

		reg, err := h.deps.Registrations.FindByLearnerCourse(ctx, a.LearnerID, a.CourseID)
		if err != nil {
			return err
		}
		if reg == nil {
			err = h.deps.Registrations.Create(ctx, &models.Registration{
				LearnerID: a.LearnerID,
				CourseID:  a.CourseID,
				Status:    status,
			})
		} else {
			err = h.deps.Registrations.UpdateStatus(ctx, reg.ID, status)
		}
		if err != nil {
			return err
		}

		if !a.Passed {
			return nil
		}
		return h.deps.Courses.MergeDictionary(ctx, a.CourseID, models.DictionaryLessonCompletion, a.LearnerID, map[string]any{
			"course_completed_at": a.CreatedAt.UTC().Format(time.RFC3339),
			"exam_type":           a.ExamType,
			"final_grade":         a.FinalGrade,
			"status":              string(models.RegistrationStatusCompleted),
		})
	})
	if err != nil {
		return nil, err
	}

	h.deps.Auditor.LogSideEffect(ctx, audit.SideEffectDetails{
		Kind:      "assessment_recorded",
		Target:    a.ExamType,
		CourseID:  a.CourseID,
		LearnerID: a.LearnerID,
		Outcome:   string(status),
	})

	return map[string]any{
		"assessment_id":       a.ID,
		"course_id":           a.CourseID,
		"learner_id":          a.LearnerID,
		"exam_type":           a.ExamType,
		"final_grade":         a.FinalGrade,
		"passing_grade":       a.PassingGrade,
		"passed":              a.Passed,
		"registration_status": string(status),
		"status":              "recorded",
	}, nil
}

func (h *assessmentHandler) coverage(ctx context.Context, payload map[string]any) (map[string]any, error) {
	creq, err := dto.CoverageRequestToCanonical(payload)
	if err != nil {
		return nil, err
	}

	var coverage map[string]any
	err = h.deps.DB.WithScope(ctx, func(ctx context.Context) error {
		var err error
		coverage, err = h.deps.Coverage.BuildAssessmentPayload(ctx, creq.CourseID, creq.LearnerID, creq.ExamType)
		if err != nil || creq.LearnerID == "" {
			return err
		}
		latest, err := h.deps.Assessments.GetLatest(ctx, creq.LearnerID, creq.CourseID)
		if err != nil {
			return err
		}
		coverage["previous_attempt"] = previousAttempt(latest)
		return nil
	})
	return coverage, err
}

// previousAttempt summarizes the learner's last recorded result, or nil for a first attempt.
func previousAttempt(a *models.Assessment) map[string]any {
	if a == nil {
		return nil
	}
	return map[string]any{
		"exam_type":   a.ExamType,
		"final_grade": a.FinalGrade,
		"passed":      a.Passed,
		"taken_at":    a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
