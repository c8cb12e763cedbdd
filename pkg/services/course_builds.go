package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/dto"
	"github.com/skillforge-io/course-builder/pkg/models"
	"github.com/skillforge-io/course-builder/pkg/repositories"
)

// courseBuilds is the caller side of the assembly pipeline shared by the
// course-builder and learner-ai handlers. It adds what the pipeline leaves to
// callers: a build lock per learner and competency, and find-or-create so a
// repeated request returns the course built the first time.
type courseBuilds struct {
	db        database.Transactor
	assembler CourseAssembler
	courses   repositories.CourseRepository
	lock      BuildLock
	logger    *zap.Logger
}

func (b *courseBuilds) build(ctx context.Context, req AssemblyRequest) (map[string]any, error) {
	competency := req.Competency
	if competency == "" && req.Profile != nil {
		competency = req.Profile.Competency
	}

	release, acquired, err := b.lock.Acquire(ctx, BuildLockKey(req.LearnerID, competency))
	if err != nil {
		return nil, err
	}
	defer release()
	if !acquired {
		return nil, &apperrors.PendingCourseCreationError{
			Reason: "a course build for this learner and competency is already running",
		}
	}

	if req.CourseID == "" {
		var existing *models.Course
		err := b.db.WithScope(ctx, func(ctx context.Context) error {
			var err error
			existing, err = b.courses.FindLearnerCourse(ctx, req.LearnerID, competency)
			return err
		})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			b.logger.Info("Returning existing learner course",
				zap.String("course_id", existing.ID),
				zap.String("competency", competency))
			out := courseResult(existing)
			out["learner_id"] = req.LearnerID
			out["state"] = string(StatePersisted)
			out["created"] = false
			return out, nil
		}
	}

	result, err := b.assembler.Assemble(ctx, req)
	if err != nil {
		return nil, err
	}
	return assemblyResultToMap(req.LearnerID, result), nil
}

// courseResult renders the course fields every course reply shares.
func courseResult(c *models.Course) map[string]any {
	return map[string]any{
		"course_id":         c.ID,
		"course_name":       c.Name,
		"course_type":       string(c.CourseType),
		"status":            string(c.Status),
		"competency_target": c.LearningPath.TargetCompetency,
	}
}

func assemblyResultToMap(learnerID string, r *AssemblyResult) map[string]any {
	out := courseResult(r.Course)

	topics := make([]any, 0, len(r.Graph.Topics))
	modulesCount := 0
	for _, tn := range r.Graph.Topics {
		modules := make([]any, 0, len(tn.Modules))
		for _, mn := range tn.Modules {
			lessons := make([]any, 0, len(mn.Lessons))
			for _, l := range mn.Lessons {
				lessons = append(lessons, dto.LessonToWire(l))
			}
			modules = append(modules, map[string]any{
				"module_id":   mn.Module.ID,
				"module_name": mn.Module.Name,
				"lessons":     lessons,
			})
		}
		modulesCount += len(tn.Modules)
		topics = append(topics, map[string]any{
			"topic_id":          tn.Topic.ID,
			"topic_name":        tn.Topic.Name,
			"topic_description": tn.Topic.Description,
			"modules":           modules,
		})
	}

	skills := make([]any, len(r.Skills))
	for i, s := range r.Skills {
		skills[i] = s
	}

	out["learner_id"] = learnerID
	out["state"] = string(r.State)
	out["created"] = !r.Reused
	out["skills"] = skills
	out["skill_source"] = string(r.SkillSource)
	out["content_source"] = string(r.ContentSource)
	out["grouping_source"] = string(r.GroupingSource)
	out["topics_count"] = len(r.Graph.Topics)
	out["modules_count"] = modulesCount
	out["lessons_count"] = r.Graph.LessonCount()
	out["topics"] = topics
	return out
}
