// Package schema describes the course store to the query synthesizer.
//
// The description is hand-authored and must stay in sync with migrations/.
package schema

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

// Column describes one column of a table.
type Column struct {
	Name        string
	Type        string
	Description string
}

// Table describes one table of the course store.
type Table struct {
	Name        string
	Description string
	// Parents lists the tables this one belongs to. Deleting a parent row cascades.
	Parents []string
	Columns []Column
}

// ForeignKey returns the column name a child table uses to reference t ("courses" -> "course_id").
func (t Table) ForeignKey() string {
	return inflection.Singular(t.Name) + "_id"
}

// Tables is the complete store layout. There is no users table: learner ids are opaque.
var Tables = []Table{
	{
		Name:        "courses",
		Description: "A course, either authored by a trainer or assembled for one learner.",
		Columns: []Column{
			{"id", "TEXT PRIMARY KEY", "course identifier"},
			{"name", "TEXT", "course title"},
			{"description", "TEXT", "course summary"},
			{"course_type", "TEXT", "'trainer' or 'learner_specific'"},
			{"status", "TEXT", "'draft', 'active' or 'archived'"},
			{"level", "TEXT", "difficulty level, e.g. 'beginner'"},
			{"duration_hours", "INTEGER", "estimated duration in hours"},
			{"created_by", "TEXT", "trainer id or learner id that created the course"},
			{"learning_path_designation", "JSONB", "{\"is_designated\": bool, \"target_competency\": text}"},
			{"enrollment_dictionary", "JSONB", "object keyed by learner id: {status, enrolled_at, ...}"},
			{"feedback_dictionary", "JSONB", "object keyed by learner id: {rating, comment, submitted_at}"},
			{"lesson_completion_dictionary", "JSONB", "object keyed by learner id: {<lesson_id>: completed_at, ...}"},
			{"created_at", "TIMESTAMPTZ", "creation time"},
			{"updated_at", "TIMESTAMPTZ", "last update time"},
		},
	},
	{
		Name:        "topics",
		Description: "A topic inside a course. Topic skills are the union of its lessons' skills.",
		Parents:     []string{"courses"},
		Columns: []Column{
			{"id", "TEXT PRIMARY KEY", "topic identifier"},
			{"course_id", "TEXT", "owning course"},
			{"name", "TEXT", "topic title"},
			{"description", "TEXT", "topic summary"},
			{"created_at", "TIMESTAMPTZ", "creation time"},
		},
	},
	{
		Name:        "modules",
		Description: "A module inside a topic.",
		Parents:     []string{"topics"},
		Columns: []Column{
			{"id", "TEXT PRIMARY KEY", "module identifier"},
			{"topic_id", "TEXT", "owning topic"},
			{"name", "TEXT", "module title"},
			{"description", "TEXT", "module summary"},
			{"created_at", "TIMESTAMPTZ", "creation time"},
		},
	},
	{
		Name:        "lessons",
		Description: "A lesson inside a module, with its skills and content blocks.",
		Parents:     []string{"modules", "topics"},
		Columns: []Column{
			{"id", "TEXT PRIMARY KEY", "lesson identifier"},
			{"module_id", "TEXT", "owning module"},
			{"topic_id", "TEXT", "topic of the owning module"},
			{"name", "TEXT", "lesson title"},
			{"description", "TEXT", "lesson summary"},
			{"skills", "TEXT[]", "skills taught by the lesson"},
			{"trainer_ids", "TEXT[]", "trainers who authored the lesson"},
			{"content_type", "TEXT", "e.g. 'text', 'video', 'mixed'"},
			{"content_data", "JSONB", "array of content blocks"},
			{"devlab_exercises", "JSONB", "array of exercises"},
			{"created_at", "TIMESTAMPTZ", "creation time"},
			{"updated_at", "TIMESTAMPTZ", "last update time"},
		},
	},
	{
		Name:        "feedback",
		Description: "Feedback left by a learner on a course.",
		Parents:     []string{"courses"},
		Columns: []Column{
			{"id", "TEXT PRIMARY KEY", "feedback identifier"},
			{"learner_id", "TEXT", "opaque learner id"},
			{"course_id", "TEXT", "course the feedback is about"},
			{"rating", "INTEGER", "1 to 5"},
			{"comment", "TEXT", "free text"},
			{"submitted_at", "TIMESTAMPTZ", "submission time"},
		},
	},
	{
		Name:        "registrations",
		Description: "A learner registered to a course. One row per learner and course.",
		Parents:     []string{"courses"},
		Columns: []Column{
			{"id", "TEXT PRIMARY KEY", "registration identifier"},
			{"learner_id", "TEXT", "opaque learner id"},
			{"course_id", "TEXT", "registered course"},
			{"learner_name", "TEXT", "display name if known"},
			{"company_id", "TEXT", "employer id if known"},
			{"status", "TEXT", "'in_progress', 'completed' or 'failed'"},
			{"registered_at", "TIMESTAMPTZ", "registration time"},
			{"updated_at", "TIMESTAMPTZ", "last status change"},
		},
	},
	{
		Name:        "assessments",
		Description: "An exam result for a learner on a course. Coverage maps are never stored.",
		Parents:     []string{"courses"},
		Columns: []Column{
			{"id", "TEXT PRIMARY KEY", "assessment identifier"},
			{"learner_id", "TEXT", "opaque learner id"},
			{"course_id", "TEXT", "assessed course"},
			{"exam_type", "TEXT", "e.g. 'baseline', 'postcourse'"},
			{"passing_grade", "NUMERIC", "grade needed to pass"},
			{"final_grade", "NUMERIC", "grade obtained"},
			{"passed", "BOOLEAN", "whether the learner passed"},
			{"created_at", "TIMESTAMPTZ", "result time"},
		},
	},
}

// TableByName returns the table description for name.
func TableByName(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Render returns the schema as prompt text.
func Render() string {
	var sb strings.Builder

	sb.WriteString("# Database Schema (PostgreSQL)\n\n")
	sb.WriteString("These are the ONLY tables that exist. Never invent a table or a column.\n")
	sb.WriteString("There is no users, learners or students table: learner_id is an opaque TEXT value.\n\n")

	for _, t := range Tables {
		sb.WriteString(fmt.Sprintf("## %s\n", t.Name))
		sb.WriteString(t.Description + "\n")
		for _, c := range t.Columns {
			sb.WriteString(fmt.Sprintf("- %s %s: %s\n", c.Name, c.Type, c.Description))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Relationships\n")
	for _, t := range Tables {
		for _, parent := range t.Parents {
			p, ok := TableByName(parent)
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("- %s.%s -> %s.id (ON DELETE CASCADE)\n", t.Name, p.ForeignKey(), p.Name))
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Warnings\n")
	sb.WriteString("- Do not reference tables named users, students, learners, enrollments or skills. They do not exist.\n")
	sb.WriteString("- Enrollment state lives in registrations and in courses.enrollment_dictionary.\n")
	sb.WriteString("- Topic skills are not stored. Aggregate lessons.skills through modules or lessons.topic_id.\n")
	sb.WriteString("- Coverage maps are not stored. Derive them from lessons.\n")

	return sb.String()
}
