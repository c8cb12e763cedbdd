// Package fallback serves canned peer data for when a peer is transiently unavailable.
package fallback

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skillforge-io/course-builder/pkg/dto"
	"github.com/skillforge-io/course-builder/pkg/models"
)

//go:embed fallback.yaml
var embedded []byte

// DefaultCompetency is the entry used when no entry matches a competency.
const DefaultCompetency = "default"

// Data is the fallback document.
type Data struct {
	Profiles []ProfileEntry `yaml:"profiles"`
	Content  []ContentEntry `yaml:"content"`
}

// ProfileEntry is a canned learner-profile reply for one competency.
type ProfileEntry struct {
	Competency   string           `yaml:"competency"`
	Skills       []string         `yaml:"skills"`
	LearningPath []map[string]any `yaml:"learning_path"`
}

// ContentEntry is a canned content-generation reply for one competency.
type ContentEntry struct {
	Competency string        `yaml:"competency"`
	Lessons    []LessonEntry `yaml:"lessons"`
}

// LessonEntry is one canned lesson.
type LessonEntry struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Skills      []string         `yaml:"skills"`
	ContentType string           `yaml:"content_type"`
	ContentData []map[string]any `yaml:"content_data"`
}

// Store answers fallback lookups. A nil *Store has no data.
type Store struct {
	profiles map[string]ProfileEntry
	content  map[string]ContentEntry
}

// Load reads the fallback document at path, or the embedded one when path is empty.
func Load(path string) (*Store, error) {
	raw := embedded
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read fallback data: %w", err)
		}
		raw = b
	}
	return Parse(raw)
}

// Parse builds a Store from a YAML document.
func Parse(raw []byte) (*Store, error) {
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse fallback data: %w", err)
	}

	s := &Store{
		profiles: make(map[string]ProfileEntry, len(data.Profiles)),
		content:  make(map[string]ContentEntry, len(data.Content)),
	}
	for _, p := range data.Profiles {
		s.profiles[normalizeCompetency(p.Competency)] = p
	}
	for _, c := range data.Content {
		s.content[normalizeCompetency(c.Competency)] = c
	}
	return s, nil
}

// Profile returns the canned profile for the competency. Skills may be empty when
// only the default entry matches.
func (s *Store) Profile(learnerID, competency string) *dto.LearnerProfile {
	profile := &dto.LearnerProfile{
		LearnerID:    learnerID,
		Competency:   competency,
		Skills:       []string{},
		LearningPath: []any{},
	}
	if s == nil {
		return profile
	}

	entry, ok := s.profiles[normalizeCompetency(competency)]
	if !ok {
		entry = s.profiles[DefaultCompetency]
	}
	profile.Skills = append(profile.Skills, entry.Skills...)
	for _, step := range entry.LearningPath {
		profile.LearningPath = append(profile.LearningPath, step)
	}
	return profile
}

// Lessons returns canned lessons for the competency. Without a matching entry, one
// introductory lesson per requested skill is produced; with no skills either the
// result is empty.
func (s *Store) Lessons(competency string, skills []string) []*models.Lesson {
	if s != nil {
		entry, ok := s.content[normalizeCompetency(competency)]
		if !ok {
			entry, ok = s.content[DefaultCompetency]
		}
		if ok && len(entry.Lessons) > 0 {
			lessons := make([]*models.Lesson, 0, len(entry.Lessons))
			for _, e := range entry.Lessons {
				lessons = append(lessons, e.toLesson())
			}
			return lessons
		}
	}

	lessons := make([]*models.Lesson, 0, len(skills))
	for _, skill := range skills {
		l := &models.Lesson{
			Name:        "Introduction to " + skill,
			Description: "Core concepts of " + skill + ".",
			Skills:      []string{skill},
			ContentType: "text",
		}
		l.EnsureSequences()
		lessons = append(lessons, l)
	}
	return lessons
}

func (e LessonEntry) toLesson() *models.Lesson {
	l := &models.Lesson{
		Name:        e.Name,
		Description: e.Description,
		Skills:      append([]string{}, e.Skills...),
		ContentType: e.ContentType,
	}
	for _, block := range e.ContentData {
		l.ContentData = append(l.ContentData, block)
	}
	l.EnsureSequences()
	return l
}

func normalizeCompetency(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
