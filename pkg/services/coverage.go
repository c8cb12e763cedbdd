package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/dto"
	"github.com/skillforge-io/course-builder/pkg/repositories"
)

// CoverageService derives lesson-to-skill coverage from the current course structure.
// Nothing is cached: every call walks topics, modules and lessons again.
type CoverageService interface {
	// BuildAssessmentPayload returns {course_id, learner_id, exam_type, coverage_map}
	// for the assessment service.
	BuildAssessmentPayload(ctx context.Context, courseID, learnerID, examType string) (map[string]any, error)

	// TopicSkills returns the union of lesson skills per topic id.
	TopicSkills(ctx context.Context, courseID string) (map[string][]string, error)
}

type coverageService struct {
	courses repositories.CourseRepository
	topics  repositories.TopicRepository
	modules repositories.ModuleRepository
	lessons repositories.LessonRepository
	logger  *zap.Logger
}

// NewCoverageService creates a CoverageService.
func NewCoverageService(
	courses repositories.CourseRepository,
	topics repositories.TopicRepository,
	modules repositories.ModuleRepository,
	lessons repositories.LessonRepository,
	logger *zap.Logger,
) CoverageService {
	return &coverageService{
		courses: courses,
		topics:  topics,
		modules: modules,
		lessons: lessons,
		logger:  logger.Named("coverage"),
	}
}

var _ CoverageService = (*coverageService)(nil)

func (s *coverageService) BuildAssessmentPayload(ctx context.Context, courseID, learnerID, examType string) (map[string]any, error) {
	entries, err := s.collect(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if examType == "" {
		examType = dto.DefaultExamType
	}

	s.logger.Debug("Built coverage map",
		zap.String("course_id", courseID),
		zap.Int("lessons", len(entries)))

	return dto.CoverageToWire(&dto.CoveragePayload{
		CourseID:  courseID,
		LearnerID: learnerID,
		ExamType:  examType,
		Entries:   entries,
	}), nil
}

func (s *coverageService) TopicSkills(ctx context.Context, courseID string) (map[string][]string, error) {
	entries, err := s.collect(ctx, courseID)
	if err != nil {
		return nil, err
	}

	collected := make(map[string][]any)
	for _, e := range entries {
		if _, ok := collected[e.TopicID]; !ok {
			collected[e.TopicID] = []any{}
		}
		for _, skill := range e.Skills {
			collected[e.TopicID] = append(collected[e.TopicID], skill)
		}
	}

	out := make(map[string][]string, len(collected))
	for topicID, skills := range collected {
		out[topicID] = dto.ToStringSlice(skills)
	}
	return out, nil
}

func (s *coverageService) collect(ctx context.Context, courseID string) ([]dto.CoverageEntry, error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}

	topics, err := s.topics.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}

	entries := []dto.CoverageEntry{}
	for _, topic := range topics {
		modules, err := s.modules.ListByTopic(ctx, topic.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list modules: %w", err)
		}
		for _, module := range modules {
			lessons, err := s.lessons.ListByModule(ctx, module.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list lessons: %w", err)
			}
			for _, lesson := range lessons {
				skills := make([]string, len(lesson.Skills))
				copy(skills, lesson.Skills)
				entries = append(entries, dto.CoverageEntry{
					LessonID:   lesson.ID,
					LessonName: lesson.Name,
					TopicID:    topic.ID,
					TopicName:  topic.Name,
					Skills:     skills,
				})
			}
		}
	}
	return entries, nil
}
