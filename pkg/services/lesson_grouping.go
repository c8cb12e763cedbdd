package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/audit"
	"github.com/skillforge-io/course-builder/pkg/llm"
	"github.com/skillforge-io/course-builder/pkg/logging"
	"github.com/skillforge-io/course-builder/pkg/metrics"
	"github.com/skillforge-io/course-builder/pkg/models"
	"github.com/skillforge-io/course-builder/pkg/prompts"
)

// DefaultGroupingTemperature is used for the lesson clustering completion.
const DefaultGroupingTemperature = 0.2

// Structural limits of a course.
const (
	MinTopicsPerCourse  = 3
	MaxTopicsPerCourse  = 6
	MinModulesPerTopic  = 1
	MaxModulesPerTopic  = 5
	lessonsPerTopicHint = 4
	lessonsPerModHint   = 3
)

// GroupingSource records which strategy produced a course structure.
type GroupingSource string

const (
	GroupingSourceLLM           GroupingSource = "llm"
	GroupingSourceDeterministic GroupingSource = "deterministic"
)

var errNoLessons = errors.New("no lessons to group")

// LessonGrouper arranges a flat lesson list into topics and modules. Every lesson
// ends up in exactly one module.
type LessonGrouper interface {
	Group(ctx context.Context, courseName, competency string, lessons []*models.Lesson) ([]*models.TopicNode, GroupingSource, error)
}

type lessonGrouper struct {
	llmClient   llm.LLMClient
	temperature float64
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewLessonGrouper creates a LessonGrouper. With a nil client every course is
// grouped deterministically.
func NewLessonGrouper(llmClient llm.LLMClient, temperature float64, m *metrics.Metrics, logger *zap.Logger) LessonGrouper {
	if temperature <= 0 {
		temperature = DefaultGroupingTemperature
	}
	return &lessonGrouper{
		llmClient:   llmClient,
		temperature: temperature,
		metrics:     m,
		logger:      logger.Named("lesson-grouping"),
	}
}

var _ LessonGrouper = (*lessonGrouper)(nil)

// groupingBounds returns the topic and module limits for n lessons. Fewer than
// three lessons lower the topic minimum to n.
func groupingBounds(n int) prompts.GroupingBounds {
	return prompts.GroupingBounds{
		MinTopics:  min(MinTopicsPerCourse, n),
		MaxTopics:  min(MaxTopicsPerCourse, n),
		MinModules: MinModulesPerTopic,
		MaxModules: MaxModulesPerTopic,
	}
}

func (g *lessonGrouper) Group(ctx context.Context, courseName, competency string, lessons []*models.Lesson) ([]*models.TopicNode, GroupingSource, error) {
	if len(lessons) == 0 {
		return nil, "", errNoLessons
	}

	if g.llmClient != nil {
		topics, err := g.groupWithLLM(ctx, courseName, competency, lessons)
		if err == nil {
			return topics, GroupingSourceLLM, nil
		}
		g.logger.Warn("Lesson clustering rejected, using even distribution",
			zap.Int("lessons", len(lessons)),
			zap.String("error", logging.SanitizeError(err)))
	}

	return groupDeterministically(lessons), GroupingSourceDeterministic, nil
}

type groupingReply struct {
	Topics []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Modules     []struct {
			Name        string   `json:"name"`
			Description string   `json:"description"`
			LessonIDs   []string `json:"lesson_ids"`
		} `json:"modules"`
	} `json:"topics"`
}

func (g *lessonGrouper) groupWithLLM(ctx context.Context, courseName, competency string, lessons []*models.Lesson) ([]*models.TopicNode, error) {
	bounds := groupingBounds(len(lessons))

	view := make([]prompts.GroupingLesson, len(lessons))
	for i, l := range lessons {
		view[i] = prompts.GroupingLesson{ID: l.ID, Name: l.Name, Description: l.Description, Skills: l.Skills}
	}
	prompt := prompts.BuildLessonGroupingPrompt(courseName, competency, view, bounds)

	info := audit.RequestInfoFrom(ctx)
	llmCtx := llm.WithEnvelopeContext(ctx, info.RequestID, info.ServiceName, "lesson_grouping")

	result, err := g.llmClient.GenerateResponse(llmCtx, prompt, prompts.LessonGroupingSystemMessage, g.temperature, false)
	g.metrics.RecordLLMCall("lesson_grouping", err)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	raw, err := llm.ExtractJSON(result.Content)
	if err != nil {
		return nil, fmt.Errorf("no JSON in completion: %w", err)
	}
	if err := validateGroupingShape(raw, bounds); err != nil {
		return nil, err
	}

	reply, err := llm.ParseJSONResponse[groupingReply](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode grouping: %w", err)
	}

	byID := make(map[string]*models.Lesson, len(lessons))
	for _, l := range lessons {
		byID[l.ID] = l
	}

	assigned := make(map[string]bool, len(lessons))
	topics := make([]*models.TopicNode, 0, len(reply.Topics))
	for _, rt := range reply.Topics {
		tn := &models.TopicNode{Topic: &models.Topic{Name: rt.Name, Description: rt.Description}}
		for _, rm := range rt.Modules {
			mn := &models.ModuleNode{Module: &models.Module{Name: rm.Name, Description: rm.Description}}
			for _, id := range rm.LessonIDs {
				lesson, known := byID[id]
				if !known {
					return nil, fmt.Errorf("grouping names unknown lesson %q", id)
				}
				if assigned[id] {
					return nil, fmt.Errorf("grouping assigns lesson %q twice", id)
				}
				assigned[id] = true
				mn.Lessons = append(mn.Lessons, lesson)
			}
			tn.Modules = append(tn.Modules, mn)
		}
		topics = append(topics, tn)
	}

	if len(assigned) != len(byID) {
		return nil, fmt.Errorf("grouping covers %d of %d lessons", len(assigned), len(byID))
	}
	return topics, nil
}

// validateGroupingShape checks the completion against the structural limits
// before any lesson id is looked at.
func validateGroupingShape(raw string, bounds prompts.GroupingBounds) error {
	nonEmpty := map[string]any{"type": "string", "minLength": 1}
	schema := map[string]any{
		"type":     "object",
		"required": []any{"topics"},
		"properties": map[string]any{
			"topics": map[string]any{
				"type":     "array",
				"minItems": bounds.MinTopics,
				"maxItems": bounds.MaxTopics,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"name", "modules"},
					"properties": map[string]any{
						"name":        nonEmpty,
						"description": map[string]any{"type": "string"},
						"modules": map[string]any{
							"type":     "array",
							"minItems": bounds.MinModules,
							"maxItems": bounds.MaxModules,
							"items": map[string]any{
								"type":     "object",
								"required": []any{"name", "lesson_ids"},
								"properties": map[string]any{
									"name":        nonEmpty,
									"description": map[string]any{"type": "string"},
									"lesson_ids": map[string]any{
										"type":     "array",
										"minItems": 1,
										"items":    nonEmpty,
									},
								},
							},
						},
					},
				},
			},
		},
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to validate grouping: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return fmt.Errorf("grouping violates structure: %s", strings.Join(problems, "; "))
	}
	return nil
}

// groupDeterministically splits lessons, in order, into ceil(n/4) topics clamped
// to the course limits, and each topic into ceil(k/3) modules clamped to 1..5.
func groupDeterministically(lessons []*models.Lesson) []*models.TopicNode {
	n := len(lessons)
	bounds := groupingBounds(n)
	topicCount := clamp(ceilDiv(n, lessonsPerTopicHint), bounds.MinTopics, bounds.MaxTopics)

	topics := make([]*models.TopicNode, 0, topicCount)
	offset := 0
	for i, size := range evenSplit(n, topicCount) {
		chunk := lessons[offset : offset+size]
		offset += size

		name := topicName(chunk, i+1)
		tn := &models.TopicNode{Topic: &models.Topic{
			Name:        name,
			Description: fmt.Sprintf("Lessons %d to %d of the course.", offset-size+1, offset),
		}}

		moduleCount := clamp(ceilDiv(size, lessonsPerModHint), MinModulesPerTopic, MaxModulesPerTopic)
		modOffset := 0
		for j, modSize := range evenSplit(size, moduleCount) {
			modName := name
			if moduleCount > 1 {
				modName = fmt.Sprintf("%s, part %d", name, j+1)
			}
			tn.Modules = append(tn.Modules, &models.ModuleNode{
				Module:  &models.Module{Name: modName},
				Lessons: chunk[modOffset : modOffset+modSize],
			})
			modOffset += modSize
		}
		topics = append(topics, tn)
	}
	return topics
}

// topicName names a topic after the skill most of its lessons teach, or after
// its first lesson.
func topicName(lessons []*models.Lesson, position int) string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, l := range lessons {
		for _, s := range l.Skills {
			counts[s]++
			if counts[s] > bestCount {
				best, bestCount = s, counts[s]
			}
		}
	}
	if best != "" {
		return capitalize(best)
	}
	if len(lessons) > 0 && lessons[0].Name != "" {
		return lessons[0].Name
	}
	return fmt.Sprintf("Topic %d", position)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// evenSplit divides n items into parts sizes that differ by at most one, larger first.
func evenSplit(n, parts int) []int {
	if parts <= 0 {
		return nil
	}
	sizes := make([]int, parts)
	for i := range sizes {
		sizes[i] = n / parts
		if i < n%parts {
			sizes[i]++
		}
	}
	return sizes
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
