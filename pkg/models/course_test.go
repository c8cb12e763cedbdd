package models

import (
	"encoding/json"
	"testing"
)

func TestIsValidCourseStatus(t *testing.T) {
	for _, s := range ValidCourseStatuses {
		if !IsValidCourseStatus(s) {
			t.Errorf("IsValidCourseStatus(%q) = false, want true", s)
		}
	}
	if IsValidCourseStatus("published") {
		t.Error("IsValidCourseStatus(\"published\") = true, want false")
	}
}

func TestRegistrationStatus_BlocksReenrollment(t *testing.T) {
	tests := []struct {
		status RegistrationStatus
		want   bool
	}{
		{RegistrationStatusInProgress, true},
		{RegistrationStatusCompleted, true},
		{RegistrationStatusFailed, false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.BlocksReenrollment(); got != tt.want {
				t.Errorf("BlocksReenrollment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidDictionary(t *testing.T) {
	if !IsValidDictionary(DictionaryFeedback) {
		t.Error("feedback dictionary should be valid")
	}
	if IsValidDictionary("name") {
		t.Error("arbitrary column must not be accepted as a dictionary")
	}
}

func TestLesson_EnsureSequencesMarshalsArrays(t *testing.T) {
	l := &Lesson{ID: "l1"}
	l.EnsureSequences()

	data, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, field := range []string{"skills", "trainer_ids", "content_data", "devlab_exercises"} {
		if _, ok := decoded[field].([]any); !ok {
			t.Errorf("%s = %#v, want JSON array", field, decoded[field])
		}
	}
}

func TestCourseGraph_LessonCount(t *testing.T) {
	g := &CourseGraph{
		Topics: []*TopicNode{
			{Modules: []*ModuleNode{{Lessons: []*Lesson{{}, {}}}, {Lessons: []*Lesson{{}}}}},
			{Modules: []*ModuleNode{{Lessons: []*Lesson{{}}}}},
		},
	}
	if got := g.LessonCount(); got != 4 {
		t.Errorf("LessonCount() = %d, want 4", got)
	}
}
