package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/audit"
	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/dto"
	"github.com/skillforge-io/course-builder/pkg/jsonutil"
	"github.com/skillforge-io/course-builder/pkg/models"
	"github.com/skillforge-io/course-builder/pkg/repositories"
	"github.com/skillforge-io/course-builder/pkg/templatefill"
)

// ContentStudioHandlerDeps are the collaborators of the content-studio handler.
type ContentStudioHandlerDeps struct {
	DB      database.Transactor
	Courses repositories.CourseRepository
	Topics  repositories.TopicRepository
	Modules repositories.ModuleRepository
	Lessons repositories.LessonRepository
	Auditor *audit.SecurityAuditor
}

type contentStudioHandler struct {
	deps   ContentStudioHandlerDeps
	writer *courseGraphWriter
	logger *zap.Logger
}

// NewContentStudioHandler creates the handler for trainer courses published by the
// content studio.
func NewContentStudioHandler(deps ContentStudioHandlerDeps, logger *zap.Logger) ServiceHandler {
	return &contentStudioHandler{
		deps: deps,
		writer: &courseGraphWriter{
			courses: deps.Courses,
			topics:  deps.Topics,
			modules: deps.Modules,
			lessons: deps.Lessons,
		},
		logger: logger.Named("content-studio-handler"),
	}
}

var _ ServiceHandler = (*contentStudioHandler)(nil)

func (h *contentStudioHandler) Handle(ctx context.Context, req *DispatchRequest) (*jsonutil.Object, error) {
	tc, err := dto.TrainerCourseToCanonical(req.Payload)
	if err != nil {
		return nil, err
	}

	graph := trainerCourseGraph(tc)

	created := true
	err = h.deps.DB.WithTx(ctx, func(ctx context.Context) error {
		if tc.CourseID != "" {
			existing, err := h.deps.Courses.GetByID(ctx, tc.CourseID)
			switch {
			case err == nil:
				// Already published: the course and its structure are left as they are.
				graph.Course = existing
				created = false
				return nil
			case !errors.Is(err, apperrors.ErrNotFound):
				return err
			}
		}
		return h.writer.writeCourse(ctx, graph)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store trainer course: %w", err)
	}

	if created {
		h.deps.Auditor.LogSideEffect(ctx, audit.SideEffectDetails{
			Kind:     "course_created",
			Target:   string(models.CourseTypeTrainer),
			CourseID: graph.Course.ID,
			Outcome:  "ok",
		})
	}
	h.logger.Info("Trainer course stored",
		zap.String("course_id", graph.Course.ID),
		zap.Bool("created", created),
		zap.Int("topics", len(graph.Topics)),
		zap.Int("lessons", graph.LessonCount()))

	result := courseResult(graph.Course)
	result["created"] = created
	result["trainer_id"] = tc.TrainerID
	if created {
		result["topics_count"] = len(graph.Topics)
		result["lessons_count"] = graph.LessonCount()
	}
	return templatefill.Fill(req.Template, result), nil
}

// trainerCourseGraph lays a trainer course out as one module per topic, keeping
// the trainer's own topic order.
func trainerCourseGraph(tc *dto.TrainerCourse) *models.CourseGraph {
	name := tc.Name
	if name == "" {
		name = "Untitled course"
	}

	graph := &models.CourseGraph{
		Course: &models.Course{
			ID:            tc.CourseID,
			Name:          name,
			Description:   tc.Description,
			CourseType:    models.CourseTypeTrainer,
			Status:        tc.Status,
			Level:         tc.Level,
			DurationHours: tc.DurationHours,
			CreatedBy:     tc.TrainerID,
		},
	}

	for _, t := range tc.Topics {
		topicName := t.Name
		if topicName == "" {
			topicName = fmt.Sprintf("Topic %d", len(graph.Topics)+1)
		}
		for _, l := range t.Lessons {
			// Content-studio ids are only unique within one course.
			l.ID = uuid.NewString()
		}
		graph.Topics = append(graph.Topics, &models.TopicNode{
			Topic: &models.Topic{Name: topicName, Description: t.Description},
			Modules: []*models.ModuleNode{{
				Module:  &models.Module{Name: topicName, Description: t.Description},
				Lessons: t.Lessons,
			}},
		})
	}
	return graph
}
