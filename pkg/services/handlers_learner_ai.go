package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/dto"
	"github.com/skillforge-io/course-builder/pkg/jsonutil"
	"github.com/skillforge-io/course-builder/pkg/repositories"
	"github.com/skillforge-io/course-builder/pkg/templatefill"
)

type learnerAIHandler struct {
	builds *courseBuilds
	logger *zap.Logger
}

// NewLearnerAIHandler creates the handler for learning paths pushed by the
// learner-profile service. A pushed path replaces the profile step of the build.
func NewLearnerAIHandler(db database.Transactor, assembler CourseAssembler, courses repositories.CourseRepository, lock BuildLock, logger *zap.Logger) ServiceHandler {
	if lock == nil {
		lock = noopBuildLock{}
	}
	logger = logger.Named("learner-ai-handler")
	return &learnerAIHandler{
		builds: &courseBuilds{
			db:        db,
			assembler: assembler,
			courses:   courses,
			lock:      lock,
			logger:    logger,
		},
		logger: logger,
	}
}

var _ ServiceHandler = (*learnerAIHandler)(nil)

func (h *learnerAIHandler) Handle(ctx context.Context, req *DispatchRequest) (*jsonutil.Object, error) {
	profile, err := dto.LearningPathToCanonical(req.Payload)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("Learning path received",
		zap.String("learner_id", profile.LearnerID),
		zap.Int("skills", len(profile.Skills)),
		zap.Int("path_steps", len(profile.LearningPath)))

	result, err := h.builds.build(ctx, AssemblyRequest{
		LearnerID:   profile.LearnerID,
		LearnerName: profile.LearnerName,
		CompanyID:   profile.CompanyID,
		Competency:  profile.Competency,
		CourseID:    profile.CourseID,
		Profile:     profile,
	})
	if err != nil {
		return nil, err
	}
	return templatefill.Fill(req.Template, result), nil
}
