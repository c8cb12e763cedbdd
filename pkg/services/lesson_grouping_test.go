package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/llm"
	"github.com/skillforge-io/course-builder/pkg/models"
)

func lessonsWithIDs(n int) []*models.Lesson {
	lessons := make([]*models.Lesson, n)
	for i := range lessons {
		lessons[i] = &models.Lesson{
			ID:     fmt.Sprintf("l%d", i+1),
			Name:   fmt.Sprintf("Lesson %d", i+1),
			Skills: []string{fmt.Sprintf("skill-%d", i%3)},
		}
	}
	return lessons
}

// flatten returns lesson ids in topic, module, lesson order.
func flatten(topics []*models.TopicNode) []string {
	var ids []string
	for _, tn := range topics {
		for _, mn := range tn.Modules {
			for _, l := range mn.Lessons {
				ids = append(ids, l.ID)
			}
		}
	}
	return ids
}

func ids(lessons []*models.Lesson) []string {
	out := make([]string, len(lessons))
	for i, l := range lessons {
		out[i] = l.ID
	}
	return out
}

func assertWithinBounds(t *testing.T, topics []*models.TopicNode, lessonCount int) {
	t.Helper()
	bounds := groupingBounds(lessonCount)
	assert.GreaterOrEqual(t, len(topics), bounds.MinTopics)
	assert.LessOrEqual(t, len(topics), bounds.MaxTopics)
	for _, tn := range topics {
		assert.NotEmpty(t, tn.Topic.Name)
		assert.GreaterOrEqual(t, len(tn.Modules), MinModulesPerTopic)
		assert.LessOrEqual(t, len(tn.Modules), MaxModulesPerTopic)
		for _, mn := range tn.Modules {
			assert.NotEmpty(t, mn.Lessons)
		}
	}
}

func TestLessonGrouper_Deterministic(t *testing.T) {
	tests := []struct {
		lessons     int
		wantTopics  int
		wantModules []int
	}{
		{lessons: 1, wantTopics: 1, wantModules: []int{1}},
		{lessons: 2, wantTopics: 2, wantModules: []int{1, 1}},
		{lessons: 5, wantTopics: 3, wantModules: []int{1, 1, 1}},
		{lessons: 10, wantTopics: 3, wantModules: []int{2, 1, 1}},
		{lessons: 30, wantTopics: 6, wantModules: []int{2, 2, 2, 2, 2, 2}},
		{lessons: 120, wantTopics: 6, wantModules: []int{5, 5, 5, 5, 5, 5}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d lessons", tt.lessons), func(t *testing.T) {
			grouper := NewLessonGrouper(nil, 0, nil, zap.NewNop())
			lessons := lessonsWithIDs(tt.lessons)

			topics, source, err := grouper.Group(context.Background(), "Course", "backend", lessons)

			require.NoError(t, err)
			assert.Equal(t, GroupingSourceDeterministic, source)
			require.Len(t, topics, tt.wantTopics)
			for i, tn := range topics {
				assert.Len(t, tn.Modules, tt.wantModules[i], "topic %d", i)
			}
			assert.Equal(t, ids(lessons), flatten(topics), "lessons keep their order and appear once")
			assertWithinBounds(t, topics, tt.lessons)
		})
	}
}

func TestLessonGrouper_NoLessons(t *testing.T) {
	grouper := NewLessonGrouper(nil, 0, nil, zap.NewNop())

	_, _, err := grouper.Group(context.Background(), "Course", "", nil)

	assert.ErrorIs(t, err, errNoLessons)
}

func TestLessonGrouper_DeterministicTopicNames(t *testing.T) {
	lessons := []*models.Lesson{
		{ID: "a", Name: "Joins", Skills: []string{"sql"}},
		{ID: "b", Name: "Indexes", Skills: []string{"sql", "performance"}},
		{ID: "c", Name: "Intro"},
	}

	topics := groupDeterministically(lessons)

	require.Len(t, topics, 3)
	assert.Equal(t, "Sql", topics[0].Topic.Name)
	assert.Equal(t, "Sql", topics[1].Topic.Name)
	assert.Equal(t, "Intro", topics[2].Topic.Name)
}

const validGrouping = `Here is the structure:
{"topics": [
  {"name": "Foundations", "description": "Basics", "modules": [
    {"name": "Start", "lesson_ids": ["l1", "l2"]}
  ]},
  {"name": "Practice", "modules": [
    {"name": "Hands on", "lesson_ids": ["l3"]},
    {"name": "More", "lesson_ids": ["l4"]}
  ]},
  {"name": "Mastery", "modules": [
    {"name": "Final", "lesson_ids": ["l5"]}
  ]}
]}`

func TestLessonGrouper_LLM(t *testing.T) {
	client := llm.NewMockLLMClient(validGrouping)
	grouper := NewLessonGrouper(client, 0, nil, zap.NewNop())
	lessons := lessonsWithIDs(5)

	topics, source, err := grouper.Group(context.Background(), "Backend", "backend", lessons)

	require.NoError(t, err)
	assert.Equal(t, GroupingSourceLLM, source)
	require.Len(t, topics, 3)
	assert.Equal(t, "Foundations", topics[0].Topic.Name)
	assert.Equal(t, "Basics", topics[0].Topic.Description)
	assert.Len(t, topics[1].Modules, 2)
	assert.Equal(t, []string{"l1", "l2", "l3", "l4", "l5"}, flatten(topics))
	assert.Same(t, lessons[0], topics[0].Modules[0].Lessons[0])

	assert.Equal(t, []float64{DefaultGroupingTemperature}, client.Temperatures)
	prompt := client.LastPrompt()
	assert.Contains(t, prompt, "l5")
	assert.Contains(t, prompt, "Backend")
}

func TestLessonGrouper_RejectedReplyFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{
			name:  "missing lesson",
			reply: strings.Replace(validGrouping, `"l4"`, `"l2"`, 1),
		},
		{
			name:  "unknown lesson",
			reply: strings.Replace(validGrouping, `"l5"`, `"l9"`, 1),
		},
		{
			name:  "lesson left out",
			reply: strings.Replace(validGrouping, `"l1", "l2"`, `"l1"`, 1),
		},
		{
			name: "too few topics",
			reply: `{"topics": [{"name": "All", "modules": [
				{"name": "m", "lesson_ids": ["l1", "l2", "l3", "l4", "l5"]}]}]}`,
		},
		{
			name: "empty module",
			reply: `{"topics": [
				{"name": "A", "modules": [{"name": "m", "lesson_ids": []}]},
				{"name": "B", "modules": [{"name": "m", "lesson_ids": ["l1", "l2"]}]},
				{"name": "C", "modules": [{"name": "m", "lesson_ids": ["l3", "l4", "l5"]}]}]}`,
		},
		{
			name:  "prose only",
			reply: "I could not group these lessons.",
		},
		{
			name: "completion error",
			err:  errors.New("rate limited"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llm.NewMockLLMClient(tt.reply)
			if tt.err != nil {
				client.GenerateResponseFunc = func(context.Context, string, string, float64, bool) (*llm.GenerateResponseResult, error) {
					return nil, tt.err
				}
			}
			grouper := NewLessonGrouper(client, 0, nil, zap.NewNop())
			lessons := lessonsWithIDs(5)

			topics, source, err := grouper.Group(context.Background(), "Backend", "", lessons)

			require.NoError(t, err)
			assert.Equal(t, GroupingSourceDeterministic, source)
			assert.Equal(t, ids(lessons), flatten(topics))
			assertWithinBounds(t, topics, len(lessons))
			assert.Equal(t, 1, client.GenerateResponseCalls)
		})
	}
}

func TestEvenSplit(t *testing.T) {
	assert.Equal(t, []int{4, 3, 3}, evenSplit(10, 3))
	assert.Equal(t, []int{1, 1}, evenSplit(2, 2))
	assert.Nil(t, evenSplit(3, 0))
}
