package dto

import (
	"github.com/skillforge-io/course-builder/pkg/apperrors"
)

// LearnerProfile is the canonical result of the learner-profile step.
type LearnerProfile struct {
	LearnerID   string `json:"learner_id"`
	LearnerName string `json:"learner_name,omitempty"`
	CompanyID   string `json:"company_id,omitempty"`
	Competency  string `json:"competency_target,omitempty"`
	// Skills the learner must acquire. Derived from the learning path when not given directly.
	Skills       []string `json:"skills"`
	LearningPath []any    `json:"learning_path"`
	CourseID     string   `json:"course_id,omitempty"`
}

// HasSkills reports whether the profile names at least one skill.
func (p *LearnerProfile) HasSkills() bool {
	return p != nil && len(p.Skills) > 0
}

// HasUsableData reports whether the content step has anything to work from.
func (p *LearnerProfile) HasUsableData() bool {
	return p.HasSkills() || (p != nil && (len(p.LearningPath) > 0 || p.Competency != ""))
}

// ProfileToCanonical normalizes a learner-profile reply. Replies often omit the
// learner id, so none of its fields are required.
func ProfileToCanonical(raw map[string]any) (*LearnerProfile, error) {
	if raw == nil {
		return &LearnerProfile{Skills: []string{}, LearningPath: []any{}}, nil
	}

	// Some deployments nest the profile under "profile" or "data".
	for _, key := range []string{"profile", "data", "learner"} {
		if nested := AsMap(raw[key]); nested != nil {
			merged := make(map[string]any, len(raw)+len(nested))
			for k, v := range raw {
				merged[k] = v
			}
			for k, v := range nested {
				merged[k] = v
			}
			raw = merged
			break
		}
	}

	path := ToSlice(firstRaw(raw, "learning_path", "learningPath", "path", "steps"))
	skills := ToStringSlice(firstRaw(raw, "skills", "skill_gaps", "skillGaps", "missing_skills", "required_skills"))
	if len(skills) == 0 {
		skills = skillsFromPath(path)
	}

	return &LearnerProfile{
		LearnerID:    LearnerID(raw),
		LearnerName:  FieldString(raw, "learner_name"),
		CompanyID:    FieldString(raw, "company_id"),
		Competency:   Competency(raw),
		Skills:       skills,
		LearningPath: path,
		CourseID:     CourseID(raw),
	}, nil
}

// LearningPathToCanonical normalizes a learning path pushed by the learner-profile
// service. Unlike a reply, a push must name its learner.
func LearningPathToCanonical(raw map[string]any) (*LearnerProfile, error) {
	profile, err := ProfileToCanonical(raw)
	if err != nil {
		return nil, err
	}
	if profile.LearnerID == "" {
		return nil, apperrors.MissingField("learner_id")
	}
	return profile, nil
}

// ProfileRequestToWire builds the learner-profile request body.
func ProfileRequestToWire(learnerID, competency string) map[string]any {
	req := map[string]any{
		"user_id":    learnerID,
		"learner_id": learnerID,
	}
	if competency != "" {
		req["competency_target_name"] = competency
	}
	return req
}

func skillsFromPath(path []any) []string {
	var collected []any
	for _, step := range path {
		m, ok := step.(map[string]any)
		if !ok {
			collected = append(collected, step)
			continue
		}
		if v, found := FirstPresent(m, "skills", "skill_ids"); found {
			collected = append(collected, ToSlice(v)...)
			continue
		}
		if v, found := FirstPresent(m, "skill_name", "skill", "name"); found {
			collected = append(collected, v)
		}
	}
	return ToStringSlice(collected)
}

// firstRaw returns the first key's value that is present, even if empty.
func firstRaw(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v
		}
	}
	return nil
}
