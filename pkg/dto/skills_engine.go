package dto

import (
	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/models"
)

// DefaultSkillQueryLimit caps lesson matches when the query names no limit.
const DefaultSkillQueryLimit = 50

// SkillQuery asks which lessons teach a set of skills.
type SkillQuery struct {
	Skills   []string
	CourseID string
	Limit    int
}

// SkillQueryToCanonical normalizes a skills-engine query. At least one skill is required.
func SkillQueryToCanonical(raw map[string]any) (*SkillQuery, error) {
	q := &SkillQuery{
		Skills:   ToStringSlice(firstRaw(raw, "skills", "skill_ids", "skillIds", "competencies", "skill")),
		CourseID: CourseID(raw),
		Limit:    DefaultSkillQueryLimit,
	}
	if len(q.Skills) == 0 {
		// A single skill may be sent as a bare string.
		if s := FirstString(raw, "skill", "skill_id", "skill_name"); s != "" {
			q.Skills = []string{s}
		}
	}
	if len(q.Skills) == 0 {
		return nil, apperrors.MissingField("skills")
	}
	if n, ok := ToInt(raw["limit"]); ok && n > 0 {
		q.Limit = n
	}
	return q, nil
}

// LessonMatchToWire renders a lesson matched by a skill query.
func LessonMatchToWire(l *models.Lesson, courseID string) map[string]any {
	return map[string]any{
		"lesson_id":   l.ID,
		"lesson_name": l.Name,
		"course_id":   courseID,
		"topic_id":    l.TopicID,
		"skills":      stringsToAny(l.Skills),
	}
}
