package models

import (
	"time"
)

// RegistrationStatus is the progress of a learner in a course.
type RegistrationStatus string

const (
	RegistrationStatusInProgress RegistrationStatus = "in_progress"
	RegistrationStatusCompleted  RegistrationStatus = "completed"
	RegistrationStatusFailed     RegistrationStatus = "failed"
)

// ValidRegistrationStatuses contains all valid registration status values.
var ValidRegistrationStatuses = []RegistrationStatus{
	RegistrationStatusInProgress,
	RegistrationStatusCompleted,
	RegistrationStatusFailed,
}

// IsValidRegistrationStatus checks if the given status is valid.
func IsValidRegistrationStatus(s RegistrationStatus) bool {
	for _, v := range ValidRegistrationStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// BlocksReenrollment reports whether a learner with this status must not be enrolled again.
func (s RegistrationStatus) BlocksReenrollment() bool {
	return s == RegistrationStatusInProgress || s == RegistrationStatusCompleted
}

// Registration ties a learner to a course.
type Registration struct {
	ID           string             `json:"id"`
	LearnerID    string             `json:"learner_id"`
	CourseID     string             `json:"course_id"`
	LearnerName  string             `json:"learner_name,omitempty"`
	CompanyID    string             `json:"company_id,omitempty"`
	Status       RegistrationStatus `json:"status"`
	RegisteredAt time.Time          `json:"registered_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Feedback is a learner's rating of a course.
type Feedback struct {
	ID          string    `json:"id"`
	LearnerID   string    `json:"learner_id"`
	CourseID    string    `json:"course_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Assessment is an exam result. The coverage map sent to the assessment service
// is rebuilt from lessons each time and is not part of this record.
type Assessment struct {
	ID           string    `json:"id"`
	LearnerID    string    `json:"learner_id"`
	CourseID     string    `json:"course_id"`
	ExamType     string    `json:"exam_type"`
	PassingGrade float64   `json:"passing_grade"`
	FinalGrade   float64   `json:"final_grade"`
	Passed       bool      `json:"passed"`
	CreatedAt    time.Time `json:"created_at"`
}
