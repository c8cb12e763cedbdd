package peers

import (
	"context"

	"github.com/skillforge-io/course-builder/pkg/dto"
	"github.com/skillforge-io/course-builder/pkg/models"
)

// Peer service names.
const (
	ServiceLearnerAI     = "learner-ai"
	ServiceContentStudio = "content-studio"
	ServiceAssessment    = "assessment"
	ServiceDirectory     = "directory"
	ServiceSkillsEngine  = "skills-engine"
)

// Actions sent to peers.
const (
	ActionGetLearningPath = "get_learning_path"
	ActionGenerateContent = "generate_course_content"
	ActionGenerateExam    = "generate_exam"
)

// LearnerAI fetches learner profiles and skill gaps.
type LearnerAI struct {
	client *Client
}

// NewLearnerAI wraps a client for the learner-profile service.
func NewLearnerAI(client *Client) *LearnerAI {
	return &LearnerAI{client: client}
}

// FetchProfile asks for the skills the learner needs for competency.
func (p *LearnerAI) FetchProfile(ctx context.Context, learnerID, competency string) (*dto.LearnerProfile, error) {
	template := map[string]any{
		"user_id":                "",
		"competency_target_name": "",
		"skills":                 []any{},
		"learning_path":          []any{},
	}

	reply, err := p.client.Exchange(ctx, ActionGetLearningPath, dto.ProfileRequestToWire(learnerID, competency), template)
	if err != nil {
		return nil, err
	}

	profile, err := dto.ProfileToCanonical(reply)
	if err != nil {
		return nil, err
	}
	if profile.LearnerID == "" {
		profile.LearnerID = learnerID
	}
	if profile.Competency == "" {
		profile.Competency = competency
	}
	return profile, nil
}

// ContentStudio generates lesson content.
type ContentStudio struct {
	client *Client
}

// NewContentStudio wraps a client for the content-generation service.
func NewContentStudio(client *Client) *ContentStudio {
	return &ContentStudio{client: client}
}

// GenerateLessons requests lessons covering the profile's skills. Each topic in
// the reply becomes one lesson.
func (p *ContentStudio) GenerateLessons(ctx context.Context, profile *dto.LearnerProfile) ([]*models.Lesson, error) {
	template := map[string]any{
		"topics": []any{map[string]any{
			"topic_name":        "",
			"topic_description": "",
			"skills":            []any{},
			"content_type":      "",
			"content_data":      []any{},
			"devlab_exercises":  []any{},
		}},
	}

	reply, err := p.client.Exchange(ctx, ActionGenerateContent, dto.ContentRequestToWire(profile), template)
	if err != nil {
		return nil, err
	}
	return dto.LessonsToCanonical(reply)
}

// Assessment hands coverage maps to the exam generator.
type Assessment struct {
	client *Client
}

// NewAssessment wraps a client for the assessment service.
func NewAssessment(client *Client) *Assessment {
	return &Assessment{client: client}
}

// SendCoverage sends a coverage payload and returns the service's acknowledgement.
func (p *Assessment) SendCoverage(ctx context.Context, coverage map[string]any) (map[string]any, error) {
	return p.client.Exchange(ctx, ActionGenerateExam, coverage, map[string]any{
		"exam_id": "",
		"status":  "",
	})
}
