package prompts

import (
	"fmt"
	"strings"
)

// LessonGroupingSystemMessage is sent with every lesson grouping prompt.
const LessonGroupingSystemMessage = "You are an instructional designer. You answer with JSON only."

// GroupingLesson is the lesson view shown to the grouping step.
type GroupingLesson struct {
	ID          string
	Name        string
	Description string
	Skills      []string
}

// GroupingBounds are the structural limits of a grouping answer.
type GroupingBounds struct {
	MinTopics  int
	MaxTopics  int
	MinModules int
	MaxModules int
}

// BuildLessonGroupingPrompt asks for lessons to be clustered into topics and modules.
func BuildLessonGroupingPrompt(courseName, competency string, lessons []GroupingLesson, bounds GroupingBounds) string {
	var prompt strings.Builder

	prompt.WriteString("# Course Structure\n\n")
	prompt.WriteString(fmt.Sprintf("Organize the lessons of the course %q", courseName))
	if competency != "" {
		prompt.WriteString(fmt.Sprintf(" (target competency: %s)", competency))
	}
	prompt.WriteString(" into topics, and each topic into modules.\n\n")

	prompt.WriteString("## Lessons\n\n")
	for _, l := range lessons {
		prompt.WriteString(fmt.Sprintf("- **%s**: %s", l.ID, l.Name))
		if len(l.Skills) > 0 {
			prompt.WriteString(fmt.Sprintf(" [skills: %s]", strings.Join(l.Skills, ", ")))
		}
		prompt.WriteString("\n")
		if l.Description != "" {
			prompt.WriteString(fmt.Sprintf("  %s\n", l.Description))
		}
	}

	prompt.WriteString("\n## Rules\n\n")
	prompt.WriteString(fmt.Sprintf("- Between %d and %d topics.\n", bounds.MinTopics, bounds.MaxTopics))
	prompt.WriteString(fmt.Sprintf("- Between %d and %d modules in every topic.\n", bounds.MinModules, bounds.MaxModules))
	prompt.WriteString("- Every lesson id above appears in exactly one module. Do not invent, drop or repeat ids.\n")
	prompt.WriteString("- Order topics from foundational to advanced.\n")

	prompt.WriteString("\n## Response Format\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "topics": [
    {
      "name": "Topic name",
      "description": "One sentence",
      "modules": [
        {"name": "Module name", "description": "One sentence", "lesson_ids": ["<lesson id>"]}
      ]
    }
  ]
}`)
	prompt.WriteString("\n```\n")

	return prompt.String()
}
