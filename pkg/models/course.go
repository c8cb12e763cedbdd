package models

import (
	"time"
)

// CourseType distinguishes trainer-authored courses from courses assembled for one learner.
type CourseType string

const (
	CourseTypeTrainer         CourseType = "trainer"
	CourseTypeLearnerSpecific CourseType = "learner_specific"
)

// CourseStatus is the lifecycle state of a course.
type CourseStatus string

const (
	CourseStatusDraft    CourseStatus = "draft"
	CourseStatusActive   CourseStatus = "active"
	CourseStatusArchived CourseStatus = "archived"
)

// ValidCourseStatuses contains all valid course status values.
var ValidCourseStatuses = []CourseStatus{
	CourseStatusDraft,
	CourseStatusActive,
	CourseStatusArchived,
}

// IsValidCourseStatus checks if the given status is valid.
func IsValidCourseStatus(s CourseStatus) bool {
	for _, v := range ValidCourseStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// LearningPathDesignation marks a course as the answer to a learner's target competency.
type LearningPathDesignation struct {
	IsDesignated     bool   `json:"is_designated"`
	TargetCompetency string `json:"target_competency,omitempty"`
}

// Dictionary identifies one of the per-learner JSON dictionaries stored on a course.
// Each maps learner id -> field map and is only ever merged, never overwritten.
type Dictionary string

const (
	DictionaryEnrollment       Dictionary = "enrollment_dictionary"
	DictionaryFeedback         Dictionary = "feedback_dictionary"
	DictionaryLessonCompletion Dictionary = "lesson_completion_dictionary"
)

// Column returns the courses column backing the dictionary.
func (d Dictionary) Column() string {
	return string(d)
}

// IsValidDictionary reports whether d names a known dictionary column.
func IsValidDictionary(d Dictionary) bool {
	switch d {
	case DictionaryEnrollment, DictionaryFeedback, DictionaryLessonCompletion:
		return true
	default:
		return false
	}
}

// LearnerDictionary maps learner id to that learner's fields.
type LearnerDictionary map[string]map[string]any

// Course is the root of the course graph.
type Course struct {
	ID                         string                  `json:"id"`
	Name                       string                  `json:"name"`
	Description                string                  `json:"description,omitempty"`
	CourseType                 CourseType              `json:"course_type"`
	Status                     CourseStatus            `json:"status"`
	Level                      string                  `json:"level,omitempty"`
	DurationHours              int                     `json:"duration_hours,omitempty"`
	CreatedBy                  string                  `json:"created_by,omitempty"`
	LearningPath               LearningPathDesignation `json:"learning_path_designation"`
	EnrollmentDictionary       LearnerDictionary       `json:"enrollment_dictionary,omitempty"`
	FeedbackDictionary         LearnerDictionary       `json:"feedback_dictionary,omitempty"`
	LessonCompletionDictionary LearnerDictionary       `json:"lesson_completion_dictionary,omitempty"`
	CreatedAt                  time.Time               `json:"created_at"`
	UpdatedAt                  time.Time               `json:"updated_at"`
}

// CourseGraph is a course with its full topic/module/lesson tree, ready to persist.
type CourseGraph struct {
	Course *Course
	Topics []*TopicNode
}

// TopicNode is a topic with its modules.
type TopicNode struct {
	Topic   *Topic
	Modules []*ModuleNode
}

// ModuleNode is a module with its lessons.
type ModuleNode struct {
	Module  *Module
	Lessons []*Lesson
}

// LessonCount returns the number of lessons in the graph.
func (g *CourseGraph) LessonCount() int {
	n := 0
	for _, t := range g.Topics {
		for _, m := range t.Modules {
			n += len(m.Lessons)
		}
	}
	return n
}
