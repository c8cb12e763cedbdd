package dto

import (
	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/models"
)

// DefaultPassingGrade applies when an exam result carries no passing grade.
const DefaultPassingGrade = 70.0

// DefaultExamType applies when a coverage request names no exam type.
const DefaultExamType = "postcourse"

// ResultToCanonical normalizes an exam result. Learner and course ids are required.
// When the result has no explicit pass flag it is computed from the grades.
func ResultToCanonical(raw map[string]any) (*models.Assessment, error) {
	if raw == nil {
		return nil, &apperrors.InvalidPayloadError{Reason: "empty exam result"}
	}

	a := &models.Assessment{
		LearnerID:    LearnerID(raw),
		CourseID:     CourseID(raw),
		ExamType:     FieldString(raw, "exam_type"),
		PassingGrade: DefaultPassingGrade,
	}
	if a.LearnerID == "" {
		return nil, apperrors.MissingField("learner_id")
	}
	if a.CourseID == "" {
		return nil, apperrors.MissingField("course_id")
	}
	if a.ExamType == "" {
		a.ExamType = DefaultExamType
	}

	if v, ok := FirstPresent(raw, "passing_grade", "passingGrade", "pass_mark"); ok {
		if f, isNum := ToFloat(v); isNum {
			a.PassingGrade = f
		}
	}
	if v, ok := FirstPresent(raw, "final_grade", "finalGrade", "grade", "score"); ok {
		if f, isNum := ToFloat(v); isNum {
			a.FinalGrade = f
		}
	}

	if v, ok := FirstPresent(raw, "passed", "status", "result"); ok {
		if passed, isBool := ToBool(v); isBool {
			a.Passed = passed
			return a, nil
		}
	}
	a.Passed = a.FinalGrade >= a.PassingGrade
	return a, nil
}

// CoverageRequest asks for the coverage map of a course.
type CoverageRequest struct {
	CourseID  string
	LearnerID string
	ExamType  string
}

// CoverageRequestToCanonical normalizes a coverage request. The course id is required.
func CoverageRequestToCanonical(raw map[string]any) (*CoverageRequest, error) {
	req := &CoverageRequest{
		CourseID:  CourseID(raw),
		LearnerID: LearnerID(raw),
		ExamType:  FieldString(raw, "exam_type"),
	}
	if req.CourseID == "" {
		return nil, apperrors.MissingField("course_id")
	}
	if req.ExamType == "" {
		req.ExamType = DefaultExamType
	}
	return req, nil
}

// CoverageEntry lists the skills one lesson covers.
type CoverageEntry struct {
	LessonID   string
	LessonName string
	TopicID    string
	TopicName  string
	Skills     []string
}

// CoveragePayload is what the assessment service receives before generating an exam.
type CoveragePayload struct {
	CourseID  string
	LearnerID string
	ExamType  string
	Entries   []CoverageEntry
}

// CoverageToWire renders a coverage payload. coverage_map is always a sequence.
func CoverageToWire(p *CoveragePayload) map[string]any {
	entries := make([]any, 0, len(p.Entries))
	for _, e := range p.Entries {
		entries = append(entries, map[string]any{
			"lesson_id":   e.LessonID,
			"lesson_name": e.LessonName,
			"topic_id":    e.TopicID,
			"topic_name":  e.TopicName,
			"skills":      stringsToAny(e.Skills),
		})
	}
	return map[string]any{
		"course_id":    p.CourseID,
		"learner_id":   p.LearnerID,
		"exam_type":    p.ExamType,
		"coverage_map": entries,
	}
}
