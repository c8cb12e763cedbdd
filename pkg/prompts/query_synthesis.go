// Package prompts builds the completion prompts used by the engine.
package prompts

import (
	"fmt"
	"strings"
)

// QuerySynthesisSystemMessage is sent with every query synthesis prompt.
const QuerySynthesisSystemMessage = "You are a PostgreSQL query planner. You answer with exactly one SQL statement and nothing else."

// QuerySynthesisInput is everything the query planner is shown.
type QuerySynthesisInput struct {
	SchemaText   string   // schema.Render()
	AliasText    string   // schema.RenderAliases()
	PayloadJSON  string   // canonical payload
	TemplateJSON string   // caller's response template
	TemplateKeys []string // leaf paths of the template, e.g. "enrolled", "course.name"
	Action       string   // empty in data-filling mode
	ActionMode   bool
}

// BuildQuerySynthesisPrompt creates the prompt that asks for one parameterized statement.
func BuildQuerySynthesisPrompt(in QuerySynthesisInput) string {
	var prompt strings.Builder

	prompt.WriteString("# Query Synthesis\n\n")
	if in.ActionMode {
		prompt.WriteString(fmt.Sprintf("Write ONE PostgreSQL statement that performs the action %q described by the payload ", in.Action))
		prompt.WriteString("and returns the values the response template needs.\n\n")
	} else {
		prompt.WriteString("Write ONE PostgreSQL SELECT statement that reads the values needed to fill the response template.\n\n")
	}

	prompt.WriteString(in.SchemaText)
	prompt.WriteString("\n")
	prompt.WriteString(in.AliasText)
	prompt.WriteString("\n")

	prompt.WriteString("# Request\n\n")
	prompt.WriteString("## Payload\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(in.PayloadJSON)
	prompt.WriteString("\n```\n\n")
	prompt.WriteString("## Response Template\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(in.TemplateJSON)
	prompt.WriteString("\n```\n\n")

	if len(in.TemplateKeys) > 0 {
		prompt.WriteString("Template fields to produce: ")
		prompt.WriteString(strings.Join(in.TemplateKeys, ", "))
		prompt.WriteString("\n\n")
	}

	prompt.WriteString("# Rules\n\n")
	prompt.WriteString("- Never put payload values in the SQL text. Use positional placeholders $1, $2, ... in order of first use.\n")
	prompt.WriteString("- Write the column name right before each placeholder (`course_id = $1`), so the value can be matched to the payload field of that name.\n")
	prompt.WriteString("- Alias every output column to the exact template field name it fills (`COUNT(*) AS enrolled`). Keep the template's spelling and case.\n")
	prompt.WriteString("- Never use CREATE, ALTER, DROP, TRUNCATE, GRANT or REVOKE.\n")
	prompt.WriteString("- Exactly one statement. No semicolons between statements, no WITH clauses, no SELECT INTO.\n")
	prompt.WriteString("- Use only the tables and columns listed above.\n")

	if in.ActionMode {
		prompt.WriteString("- Allowed statements: INSERT, UPDATE, DELETE, or a SELECT that validates the request.\n")
		prompt.WriteString("- Add a RETURNING clause when the template asks for ids or other values of the written row.\n")
		prompt.WriteString("- New ids are TEXT: use gen_random_uuid()::text.\n")
		prompt.WriteString("- Never overwrite the *_dictionary columns; merge with `col = col || jsonb_build_object($1::text, ...)`.\n")
	} else {
		prompt.WriteString("- Only SELECT is allowed. INSERT, UPDATE and DELETE must not appear anywhere in the statement.\n")
		prompt.WriteString("- Counts must come back as integers (`COUNT(*)::int`), never NULL. Use COALESCE for sums and averages.\n")
		prompt.WriteString("- When the template holds a list of objects, return one row per list item.\n")
	}

	prompt.WriteString("\n# Response Format\n\n")
	prompt.WriteString("Return only the SQL statement, without explanation. A ```sql fenced block is acceptable.\n")

	return prompt.String()
}
