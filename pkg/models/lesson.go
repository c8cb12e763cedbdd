package models

import (
	"time"
)

// Topic belongs to a course. Its skills are derived from its lessons and never stored.
type Topic struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Module belongs to a topic.
type Module struct {
	ID          string    `json:"id"`
	TopicID     string    `json:"topic_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Lesson belongs to a module and carries a denormalized topic id.
// ContentData and DevlabExercises are always sequences, never nil once normalized.
type Lesson struct {
	ID              string    `json:"id"`
	ModuleID        string    `json:"module_id"`
	TopicID         string    `json:"topic_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Skills          []string  `json:"skills"`
	TrainerIDs      []string  `json:"trainer_ids"`
	ContentType     string    `json:"content_type,omitempty"`
	ContentData     []any     `json:"content_data"`
	DevlabExercises []any     `json:"devlab_exercises"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EnsureSequences replaces nil sequence fields with empty ones.
func (l *Lesson) EnsureSequences() {
	if l.Skills == nil {
		l.Skills = []string{}
	}
	if l.TrainerIDs == nil {
		l.TrainerIDs = []string{}
	}
	if l.ContentData == nil {
		l.ContentData = []any{}
	}
	if l.DevlabExercises == nil {
		l.DevlabExercises = []any{}
	}
}
