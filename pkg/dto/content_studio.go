package dto

import (
	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/models"
)

// ContentRequestToWire builds the content-generation request for a learner profile.
func ContentRequestToWire(p *LearnerProfile) map[string]any {
	req := map[string]any{
		"learner_id":    p.LearnerID,
		"user_id":       p.LearnerID,
		"skills":        stringsToAny(p.Skills),
		"learning_path": ToSlice(p.LearningPath),
	}
	if p.Competency != "" {
		req["competency_target_name"] = p.Competency
	}
	if p.LearnerName != "" {
		req["learner_name"] = p.LearnerName
	}
	return req
}

// LessonsToCanonical normalizes a content-generation reply. The content service
// calls its units "topics"; each one becomes exactly one lesson.
func LessonsToCanonical(raw map[string]any) ([]*models.Lesson, error) {
	if raw == nil {
		return []*models.Lesson{}, nil
	}

	topics := ToSlice(firstRaw(raw, "topics", "lessons", "contents"))
	if len(topics) == 0 {
		if nested := AsMap(firstRaw(raw, "course", "content", "data")); nested != nil {
			topics = ToSlice(firstRaw(nested, "topics", "lessons", "contents"))
		}
	}

	lessons := make([]*models.Lesson, 0, len(topics))
	for _, t := range topics {
		lessons = append(lessons, LessonFromTopic(t))
	}
	return lessons, nil
}

// LessonFromTopic maps one content-service topic to a lesson. It is total: a
// non-object topic becomes a lesson named after its string form.
func LessonFromTopic(topic any) *models.Lesson {
	m, ok := topic.(map[string]any)
	if !ok {
		name := ""
		if s, isString := topic.(string); isString {
			name = s
		}
		l := &models.Lesson{Name: name}
		l.EnsureSequences()
		return l
	}

	skills := ToStringSlice(firstRaw(m, "skills", "skill_ids", "skill"))
	l := &models.Lesson{
		ID:              FirstString(m, "lesson_id", "topic_id", "id"),
		Name:            FirstString(m, "lesson_name", "topic_name", "name", "title"),
		Description:     FirstString(m, "lesson_description", "topic_description", "description", "summary"),
		Skills:          skills,
		TrainerIDs:      ToStringSlice(firstRaw(m, "trainer_ids", "trainerIds", "trainer_id", "trainers")),
		ContentType:     FirstString(m, "content_type", "contentType", "format"),
		ContentData:     ToSlice(firstRaw(m, "content_data", "contentData", "contents", "content")),
		DevlabExercises: ToSlice(firstRaw(m, "devlab_exercises", "devlabExercises", "exercises")),
	}
	l.EnsureSequences()
	return l
}

// LessonToWire renders a lesson in the content-service vocabulary.
func LessonToWire(l *models.Lesson) map[string]any {
	return map[string]any{
		"lesson_id":          l.ID,
		"topic_id":           l.TopicID,
		"module_id":          l.ModuleID,
		"lesson_name":        l.Name,
		"lesson_description": l.Description,
		"skills":             stringsToAny(l.Skills),
		"trainer_ids":        stringsToAny(l.TrainerIDs),
		"content_type":       l.ContentType,
		"content_data":       ToSlice(l.ContentData),
		"devlab_exercises":   ToSlice(l.DevlabExercises),
	}
}

// TrainerCourse is a course authored in the content studio.
type TrainerCourse struct {
	CourseID      string
	Name          string
	Description   string
	TrainerID     string
	Level         string
	DurationHours int
	Status        models.CourseStatus
	Topics        []TrainerTopic
}

// TrainerTopic is a topic of a trainer course with the lessons built from its content topics.
type TrainerTopic struct {
	Name        string
	Description string
	Lessons     []*models.Lesson
}

// TrainerCourseToCanonical normalizes a course pushed by the content studio.
// The trainer id is required.
func TrainerCourseToCanonical(raw map[string]any) (*TrainerCourse, error) {
	if raw == nil {
		return nil, &apperrors.InvalidPayloadError{Reason: "empty trainer course"}
	}
	if nested := AsMap(raw["course"]); nested != nil {
		raw = nested
	}

	tc := &TrainerCourse{
		CourseID:    CourseID(raw),
		Name:        FirstString(raw, "course_name", "name", "title"),
		Description: FirstString(raw, "course_description", "description"),
		TrainerID:   FieldString(raw, "created_by"),
		Level:       FirstString(raw, "level", "difficulty"),
		Status:      models.CourseStatus(FirstString(raw, "status")),
	}
	if tc.TrainerID == "" {
		return nil, apperrors.MissingField("trainer_id")
	}
	if !models.IsValidCourseStatus(tc.Status) {
		tc.Status = models.CourseStatusDraft
	}
	if d, ok := ToInt(firstRaw(raw, "duration_hours", "duration")); ok {
		tc.DurationHours = d
	}

	for _, t := range ToSlice(firstRaw(raw, "topics", "modules")) {
		tm, ok := t.(map[string]any)
		if !ok {
			lesson := LessonFromTopic(t)
			tc.Topics = append(tc.Topics, TrainerTopic{Name: lesson.Name, Lessons: []*models.Lesson{lesson}})
			continue
		}

		topic := TrainerTopic{
			Name:        FirstString(tm, "topic_name", "name", "title"),
			Description: FirstString(tm, "topic_description", "description"),
		}
		contents := ToSlice(firstRaw(tm, "content_topics", "lessons", "contents"))
		if len(contents) == 0 {
			// A topic without nested content is itself the lesson.
			contents = []any{tm}
		}
		for _, c := range contents {
			lesson := LessonFromTopic(c)
			if len(lesson.TrainerIDs) == 0 {
				lesson.TrainerIDs = []string{tc.TrainerID}
			}
			topic.Lessons = append(topic.Lessons, lesson)
		}
		tc.Topics = append(tc.Topics, topic)
	}

	return tc, nil
}
