package services

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/dto"
	"github.com/skillforge-io/course-builder/pkg/jsonutil"
	"github.com/skillforge-io/course-builder/pkg/repositories"
	"github.com/skillforge-io/course-builder/pkg/templatefill"
)

type skillsEngineHandler struct {
	db       database.Transactor
	lessons  repositories.LessonRepository
	coverage CoverageService
	logger   *zap.Logger
}

// NewSkillsEngineHandler creates the handler for skill queries from the skills engine.
func NewSkillsEngineHandler(db database.Transactor, lessons repositories.LessonRepository, coverage CoverageService, logger *zap.Logger) ServiceHandler {
	return &skillsEngineHandler{
		db:       db,
		lessons:  lessons,
		coverage: coverage,
		logger:   logger.Named("skills-engine-handler"),
	}
}

var _ ServiceHandler = (*skillsEngineHandler)(nil)

func (h *skillsEngineHandler) Handle(ctx context.Context, req *DispatchRequest) (*jsonutil.Object, error) {
	q, err := dto.SkillQueryToCanonical(req.Payload)
	if err != nil {
		return nil, err
	}

	var (
		matches     []*repositories.LessonMatch
		topicSkills = map[string]map[string][]string{}
	)
	err = h.db.WithScope(ctx, func(ctx context.Context) error {
		var err error
		matches, err = h.lessons.FindBySkills(ctx, q.Skills, q.CourseID, q.Limit)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if _, done := topicSkills[m.CourseID]; done {
				continue
			}
			skills, err := h.coverage.TopicSkills(ctx, m.CourseID)
			if err != nil {
				return err
			}
			topicSkills[m.CourseID] = skills
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lessons := make([]any, 0, len(matches))
	courseIDs := make([]string, 0)
	seen := make(map[string]bool)
	for _, m := range matches {
		lessons = append(lessons, dto.LessonMatchToWire(m.Lesson, m.CourseID))
		if !seen[m.CourseID] {
			seen[m.CourseID] = true
			courseIDs = append(courseIDs, m.CourseID)
		}
	}

	courses := make([]any, 0, len(courseIDs))
	for _, id := range courseIDs {
		topics := topicSkills[id]
		topicIDs := make([]string, 0, len(topics))
		for tid := range topics {
			topicIDs = append(topicIDs, tid)
		}
		sort.Strings(topicIDs)

		entries := make([]any, 0, len(topicIDs))
		for _, tid := range topicIDs {
			skills := make([]any, len(topics[tid]))
			for i, s := range topics[tid] {
				skills[i] = s
			}
			entries = append(entries, map[string]any{"topic_id": tid, "skills": skills})
		}
		courses = append(courses, map[string]any{"course_id": id, "topics": entries})
	}

	h.logger.Debug("Skill query answered",
		zap.Strings("skills", q.Skills),
		zap.Int("lessons", len(lessons)),
		zap.Int("courses", len(courses)))

	skills := make([]any, len(q.Skills))
	for i, s := range q.Skills {
		skills[i] = s
	}
	result := map[string]any{
		"skills":        skills,
		"lessons":       lessons,
		"courses":       courses,
		"lessons_count": len(lessons),
		"courses_count": len(courses),
	}
	return templatefill.Fill(req.Template, result), nil
}
