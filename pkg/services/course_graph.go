package services

import (
	"context"
	"fmt"

	"github.com/skillforge-io/course-builder/pkg/models"
	"github.com/skillforge-io/course-builder/pkg/repositories"
)

// courseGraphWriter persists a topic/module/lesson tree top-down. Every row is
// created only after its parent exists, and ids assigned on the way down are
// copied into the children. Callers run it inside a transaction.
type courseGraphWriter struct {
	courses repositories.CourseRepository
	topics  repositories.TopicRepository
	modules repositories.ModuleRepository
	lessons repositories.LessonRepository
}

// writeCourse creates the course row and then its structure.
func (w *courseGraphWriter) writeCourse(ctx context.Context, graph *models.CourseGraph) error {
	if err := w.courses.Create(ctx, graph.Course); err != nil {
		return err
	}
	return w.writeStructure(ctx, graph.Course.ID, graph.Topics)
}

// writeStructure creates topics, modules and lessons under an existing course.
func (w *courseGraphWriter) writeStructure(ctx context.Context, courseID string, topics []*models.TopicNode) error {
	for _, tn := range topics {
		tn.Topic.CourseID = courseID
		if err := w.topics.Create(ctx, tn.Topic); err != nil {
			return fmt.Errorf("topic %q: %w", tn.Topic.Name, err)
		}

		for _, mn := range tn.Modules {
			mn.Module.TopicID = tn.Topic.ID
			if err := w.modules.Create(ctx, mn.Module); err != nil {
				return fmt.Errorf("module %q: %w", mn.Module.Name, err)
			}

			for _, lesson := range mn.Lessons {
				lesson.TopicID = tn.Topic.ID
				lesson.ModuleID = mn.Module.ID
				lesson.EnsureSequences()
				if err := w.lessons.Create(ctx, lesson); err != nil {
					return fmt.Errorf("lesson %q: %w", lesson.Name, err)
				}
			}
		}
	}
	return nil
}
