package dto

import (
	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/models"
)

// EnrolledLearner is one learner named in an enrollment request.
type EnrolledLearner struct {
	LearnerID   string
	LearnerName string
}

// EnrollmentRequest is a batch enrollment sent by the directory service.
type EnrollmentRequest struct {
	CourseID  string
	CompanyID string
	Learners  []EnrolledLearner
}

// IsEnrollment reports whether a directory payload asks to enroll learners rather than
// to read a course summary.
func IsEnrollment(raw map[string]any) bool {
	_, hasList := FirstPresent(raw, "learners", "users", "employees")
	return hasList || LearnerID(raw) != ""
}

// EnrollmentToCanonical normalizes an enrollment request. The course id and at least
// one learner id are required; list entries without an id are skipped.
func EnrollmentToCanonical(raw map[string]any) (*EnrollmentRequest, error) {
	req := &EnrollmentRequest{
		CourseID:  CourseID(raw),
		CompanyID: FieldString(raw, "company_id"),
	}
	if req.CourseID == "" {
		return nil, apperrors.MissingField("course_id")
	}

	seen := make(map[string]bool)
	add := func(m map[string]any) {
		id := LearnerID(m)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		req.Learners = append(req.Learners, EnrolledLearner{
			LearnerID:   id,
			LearnerName: FieldString(m, "learner_name"),
		})
	}

	for _, item := range ToSlice(firstRaw(raw, "learners", "users", "employees")) {
		switch v := item.(type) {
		case map[string]any:
			add(v)
		default:
			if id := FirstString(map[string]any{"id": v}, "id"); id != "" {
				add(map[string]any{"learner_id": id})
			}
		}
	}
	add(raw)

	if len(req.Learners) == 0 {
		return nil, apperrors.MissingField("learner_id")
	}
	return req, nil
}

// CourseCounts summarizes the size of a course.
type CourseCounts struct {
	Topics   int
	Modules  int
	Lessons  int
	Enrolled int
}

// CourseSummaryToWire renders a course for the directory service.
func CourseSummaryToWire(c *models.Course, counts CourseCounts) map[string]any {
	return map[string]any{
		"course_id":         c.ID,
		"course_name":       c.Name,
		"course_type":       string(c.CourseType),
		"status":            string(c.Status),
		"level":             c.Level,
		"duration_hours":    c.DurationHours,
		"topics_count":      counts.Topics,
		"modules_count":     counts.Modules,
		"lessons_count":     counts.Lessons,
		"enrolled_count":    counts.Enrolled,
		"competency_target": c.LearningPath.TargetCompetency,
	}
}
