package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/audit"
	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/dto"
	"github.com/skillforge-io/course-builder/pkg/jsonutil"
	"github.com/skillforge-io/course-builder/pkg/models"
	"github.com/skillforge-io/course-builder/pkg/peers"
	"github.com/skillforge-io/course-builder/pkg/repositories"
	"github.com/skillforge-io/course-builder/pkg/templatefill"
)

// Actions handled directly by the course-builder handler. Any other action is
// synthesized and executed in Action mode.
const (
	ActionBuildCourse         = "build_course"
	ActionCreateLearnerCourse = "create_learner_course"
	ActionRequestAssessment   = "request_assessment"
	ActionRecordFeedback      = "record_feedback"
	ActionCompleteLesson      = "complete_lesson"
)

// CoverageSink receives coverage maps (the assessment peer).
type CoverageSink interface {
	SendCoverage(ctx context.Context, coverage map[string]any) (map[string]any, error)
}

var _ CoverageSink = (*peers.Assessment)(nil)

// CourseBuilderHandlerDeps are the collaborators of the course-builder handler.
type CourseBuilderHandlerDeps struct {
	DB          database.Transactor
	Assembler   CourseAssembler
	Coverage    CoverageService
	Assessment  CoverageSink
	Synthesizer QuerySynthesizer
	Executor    QueryExecutor
	Lock        BuildLock
	Courses     repositories.CourseRepository
	Lessons     repositories.LessonRepository
	Feedback    repositories.FeedbackRepository
	Auditor     *audit.SecurityAuditor
}

type courseBuilderHandler struct {
	deps   CourseBuilderHandlerDeps
	builds *courseBuilds
	logger *zap.Logger
}

// NewCourseBuilderHandler creates the handler for envelopes addressed to this
// engine itself. A nil Lock runs builds without de-duplication.
func NewCourseBuilderHandler(deps CourseBuilderHandlerDeps, logger *zap.Logger) ServiceHandler {
	if deps.Lock == nil {
		deps.Lock = noopBuildLock{}
	}
	logger = logger.Named("course-builder-handler")
	return &courseBuilderHandler{
		deps: deps,
		builds: &courseBuilds{
			db:        deps.DB,
			assembler: deps.Assembler,
			courses:   deps.Courses,
			lock:      deps.Lock,
			logger:    logger,
		},
		logger: logger,
	}
}

var _ ServiceHandler = (*courseBuilderHandler)(nil)

func (h *courseBuilderHandler) Handle(ctx context.Context, req *DispatchRequest) (*jsonutil.Object, error) {
	var (
		result any
		err    error
	)

	switch req.Action {
	case ActionBuildCourse, ActionCreateLearnerCourse:
		result, err = h.buildCourse(ctx, req.Payload)
	case ActionRequestAssessment:
		result, err = h.requestAssessment(ctx, req.Payload)
	case ActionRecordFeedback:
		result, err = h.recordFeedback(ctx, req.Payload)
	case ActionCompleteLesson:
		result, err = h.completeLesson(ctx, req.Payload)
	case "":
		return h.fillContentMetrics(ctx, req)
	default:
		result, err = h.runAction(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return templatefill.Fill(req.Template, result), nil
}

func (h *courseBuilderHandler) buildCourse(ctx context.Context, payload map[string]any) (map[string]any, error) {
	learnerID := dto.LearnerID(payload)
	if learnerID == "" {
		return nil, apperrors.MissingField("learner_id")
	}

	return h.builds.build(ctx, AssemblyRequest{
		LearnerID:   learnerID,
		LearnerName: dto.FieldString(payload, "learner_name"),
		CompanyID:   dto.FieldString(payload, "company_id"),
		Competency:  dto.Competency(payload),
		CourseID:    dto.CourseID(payload),
	})
}

// requestAssessment builds a fresh coverage map and hands it to the assessment service.
func (h *courseBuilderHandler) requestAssessment(ctx context.Context, payload map[string]any) (map[string]any, error) {
	creq, err := dto.CoverageRequestToCanonical(payload)
	if err != nil {
		return nil, err
	}

	var coverage map[string]any
	err = h.deps.DB.WithScope(ctx, func(ctx context.Context) error {
		var err error
		coverage, err = h.deps.Coverage.BuildAssessmentPayload(ctx, creq.CourseID, creq.LearnerID, creq.ExamType)
		return err
	})
	if err != nil {
		return nil, err
	}

	ack, err := h.deps.Assessment.SendCoverage(ctx, coverage)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	h.deps.Auditor.LogSideEffect(ctx, audit.SideEffectDetails{
		Kind:      "peer_call",
		Target:    peers.ServiceAssessment,
		CourseID:  creq.CourseID,
		LearnerID: creq.LearnerID,
		Outcome:   outcome,
	})
	if err != nil {
		return nil, &apperrors.UpstreamError{Service: peers.ServiceAssessment, Cause: err}
	}

	result := make(map[string]any, len(coverage)+len(ack))
	for k, v := range ack {
		result[k] = v
	}
	for k, v := range coverage {
		result[k] = v
	}
	return result, nil
}

func (h *courseBuilderHandler) recordFeedback(ctx context.Context, payload map[string]any) (map[string]any, error) {
	learnerID, courseID, err := learnerAndCourse(payload)
	if err != nil {
		return nil, err
	}

	rawRating, ok := dto.FirstPresent(payload, "rating", "score", "stars")
	if !ok {
		return nil, apperrors.MissingField("rating")
	}
	rating, isNum := dto.ToInt(rawRating)
	if !isNum || rating < 1 || rating > 5 {
		return nil, &apperrors.InvalidPayloadError{Reason: "rating must be an integer from 1 to 5"}
	}

	feedback := &models.Feedback{
		LearnerID: learnerID,
		CourseID:  courseID,
		Rating:    rating,
		Comment:   dto.FirstString(payload, "comment", "feedback", "text"),
	}

	var (
		average float64
		count   int
	)
	err = h.deps.DB.WithTx(ctx, func(ctx context.Context) error {
		if _, err := h.deps.Courses.GetByID(ctx, courseID); err != nil {
			return err
		}
		if err := h.deps.Feedback.Create(ctx, feedback); err != nil {
			return err
		}
		err := h.deps.Courses.MergeDictionary(ctx, courseID, models.DictionaryFeedback, learnerID, map[string]any{
			"feedback_id":  feedback.ID,
			"rating":       rating,
			"comment":      feedback.Comment,
			"submitted_at": feedback.SubmittedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		average, count, err = h.deps.Feedback.AverageRating(ctx, courseID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.deps.Auditor.LogSideEffect(ctx, audit.SideEffectDetails{
		Kind:      "feedback_recorded",
		Target:    string(models.DictionaryFeedback),
		CourseID:  courseID,
		LearnerID: learnerID,
		Outcome:   "ok",
	})

	return map[string]any{
		"feedback_id":    feedback.ID,
		"course_id":      courseID,
		"learner_id":     learnerID,
		"rating":         rating,
		"average_rating": average,
		"ratings_count":  count,
		"status":         "recorded",
	}, nil
}

func (h *courseBuilderHandler) completeLesson(ctx context.Context, payload map[string]any) (map[string]any, error) {
	learnerID, courseID, err := learnerAndCourse(payload)
	if err != nil {
		return nil, err
	}
	lessonID := dto.FirstString(payload, "lesson_id", "lessonId", "topic_id")
	if lessonID == "" {
		return nil, apperrors.MissingField("lesson_id")
	}

	completedAt := time.Now().UTC().Format(time.RFC3339)
	err = h.deps.DB.WithTx(ctx, func(ctx context.Context) error {
		lessons, err := h.deps.Lessons.ListByCourse(ctx, courseID)
		if err != nil {
			return err
		}
		found := false
		for _, l := range lessons {
			if l.ID == lessonID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("lesson %s in course %s: %w", lessonID, courseID, apperrors.ErrNotFound)
		}
		return h.deps.Courses.MergeDictionary(ctx, courseID, models.DictionaryLessonCompletion, learnerID, map[string]any{
			lessonID: map[string]any{"status": "completed", "completed_at": completedAt},
		})
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"course_id":    courseID,
		"learner_id":   learnerID,
		"lesson_id":    lessonID,
		"status":       "completed",
		"completed_at": completedAt,
	}, nil
}

// runAction synthesizes and executes a write for an action without a dedicated path.
func (h *courseBuilderHandler) runAction(ctx context.Context, req *DispatchRequest) (any, error) {
	payload := dto.CanonicalPayload(req.Payload)

	statement, err := h.deps.Synthesizer.Synthesize(ctx, payload, req.Template, req.Action, true)
	if err != nil {
		return nil, err
	}

	var result any
	err = h.deps.DB.WithScope(ctx, func(ctx context.Context) error {
		var err error
		result, err = h.deps.Executor.Execute(ctx, statement, payload, true)
		return err
	})
	return result, err
}

// fillContentMetrics answers a read: synthesize, execute, fill, and require every
// leaf of the template to be filled.
func (h *courseBuilderHandler) fillContentMetrics(ctx context.Context, req *DispatchRequest) (*jsonutil.Object, error) {
	if req.Template.Len() == 0 {
		return jsonutil.NewObject(), nil
	}

	payload := dto.CanonicalPayload(req.Payload)

	statement, err := h.deps.Synthesizer.Synthesize(ctx, payload, req.Template, "", false)
	if err != nil {
		return nil, err
	}

	var result any
	err = h.deps.DB.WithScope(ctx, func(ctx context.Context) error {
		var err error
		result, err = h.deps.Executor.Execute(ctx, statement, payload, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	filled := templatefill.Fill(req.Template, result)
	if err := templatefill.RequireComplete(filled); err != nil {
		h.logger.Warn("Template left unfilled", zap.Error(err))
		return nil, err
	}
	return filled, nil
}

func learnerAndCourse(payload map[string]any) (string, string, error) {
	learnerID := dto.LearnerID(payload)
	if learnerID == "" {
		return "", "", apperrors.MissingField("learner_id")
	}
	courseID := dto.CourseID(payload)
	if courseID == "" {
		return "", "", apperrors.MissingField("course_id")
	}
	return learnerID, courseID, nil
}
