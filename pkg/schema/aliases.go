package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/skillforge-io/course-builder/pkg/templatefill"
)

// Field is a canonical field name with the synonyms peers use for it.
// Precedence lists the names in the order they are tried when several are present.
type Field struct {
	Canonical  string
	Precedence []string
	// SetValued marks fields holding a list; their singular form is accepted too.
	SetValued bool
}

// Fields is the alias table. When the canonical name is missing from a
// precedence list it is tried first.
var Fields = []Field{
	{Canonical: "learner_id", Precedence: []string{"user_id", "student_id", "learner_id"}},
	{Canonical: "course_id"},
	{Canonical: "competency_target", Precedence: []string{"competency_target", "competency", "competency_target_name", "target_competency"}},
	{Canonical: "created_by", Precedence: []string{"trainer_id", "created_by", "creator_id"}},
	{Canonical: "learner_name", Precedence: []string{"learner_name", "user_name", "student_name"}},
	{Canonical: "company_id", Precedence: []string{"company_id", "organization_id"}},
	{Canonical: "exam_type", Precedence: []string{"exam_type", "assessment_type"}},
	{Canonical: "final_grade", Precedence: []string{"final_grade", "grade", "score"}},
	{Canonical: "lesson_id"},
	{Canonical: "skills", SetValued: true},
	{Canonical: "trainer_ids", SetValued: true},
	{Canonical: "devlab_exercises", SetValued: true},
}

var aliasIndex = buildAliasIndex()

// Names returns every accepted name for f in precedence order: the explicit
// precedence list, then camelCase variants, then singular variants of set-valued fields.
func (f Field) Names() []string {
	base := f.Precedence
	if !contains(base, f.Canonical) {
		base = append([]string{f.Canonical}, base...)
	}

	names := make([]string, 0, len(base)*3)
	seen := make(map[string]bool)
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}

	for _, n := range base {
		add(n)
	}
	for _, n := range base {
		add(templatefill.ToCamel(n))
	}
	if f.SetValued {
		for _, n := range base {
			add(inflection.Singular(n))
			add(templatefill.ToCamel(inflection.Singular(n)))
		}
	}
	return names
}

func buildAliasIndex() map[string]string {
	idx := make(map[string]string)
	for _, f := range Fields {
		for _, n := range f.Names() {
			if _, taken := idx[n]; !taken {
				idx[n] = f.Canonical
			}
		}
	}
	return idx
}

// Canonical maps a peer field name to its canonical name. Unknown names map to
// their snake_case form.
func Canonical(field string) string {
	if c, ok := aliasIndex[field]; ok {
		return c
	}
	snake := templatefill.ToSnake(field)
	if c, ok := aliasIndex[snake]; ok {
		return c
	}
	return snake
}

// Aliases returns every accepted name for canonical in precedence order.
// Unknown fields have themselves and their camelCase form.
func Aliases(canonical string) []string {
	for _, f := range Fields {
		if f.Canonical == canonical {
			return f.Names()
		}
	}
	return Field{Canonical: canonical}.Names()
}

// RenderAliases returns the alias table as prompt text.
func RenderAliases() string {
	fields := make([]Field, len(Fields))
	copy(fields, Fields)
	sort.Slice(fields, func(i, j int) bool { return fields[i].Canonical < fields[j].Canonical })

	var sb strings.Builder
	sb.WriteString("# Field Aliases\n\n")
	sb.WriteString("Payload keys on the right mean the column on the left:\n")
	for _, f := range fields {
		var others []string
		for _, n := range f.Names() {
			if n != f.Canonical {
				others = append(others, n)
			}
		}
		if len(others) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s <- %s\n", f.Canonical, strings.Join(others, ", ")))
	}
	return sb.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
