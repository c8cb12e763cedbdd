package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/audit"
	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/dto"
	"github.com/skillforge-io/course-builder/pkg/fallback"
	"github.com/skillforge-io/course-builder/pkg/logging"
	"github.com/skillforge-io/course-builder/pkg/metrics"
	"github.com/skillforge-io/course-builder/pkg/models"
	"github.com/skillforge-io/course-builder/pkg/peers"
	"github.com/skillforge-io/course-builder/pkg/repositories"
)

// AssemblyState is the position of one course build in its state machine:
//
//	Idle -> ProfileRequested -> ContentRequested -> StructureAssigned -> Persisted
//
// PendingUpstream is entered from ProfileRequested or ContentRequested when no
// usable skills or lessons exist, even after a fallback substitution.
type AssemblyState string

const (
	StateIdle              AssemblyState = "Idle"
	StateProfileRequested  AssemblyState = "ProfileRequested"
	StateContentRequested  AssemblyState = "ContentRequested"
	StateStructureAssigned AssemblyState = "StructureAssigned"
	StatePersisted         AssemblyState = "Persisted"
	StatePendingUpstream   AssemblyState = "PendingUpstream"
)

// DataSource records where the data of one assembly step came from.
type DataSource string

const (
	SourcePeer     DataSource = "peer"
	SourceFallback DataSource = "fallback"
	SourcePushed   DataSource = "pushed"
)

// CourseBuilderService is this engine's own service name, recorded as the creator
// of assembled courses.
const CourseBuilderService = "course-builder"

// ProfileSource supplies learner profiles (the learner-ai peer).
type ProfileSource interface {
	FetchProfile(ctx context.Context, learnerID, competency string) (*dto.LearnerProfile, error)
}

// ContentSource supplies generated lessons (the content-studio peer).
type ContentSource interface {
	GenerateLessons(ctx context.Context, profile *dto.LearnerProfile) ([]*models.Lesson, error)
}

var (
	_ ProfileSource = (*peers.LearnerAI)(nil)
	_ ContentSource = (*peers.ContentStudio)(nil)
)

// AssemblyRequest starts one course build.
type AssemblyRequest struct {
	LearnerID   string
	LearnerName string
	CompanyID   string
	Competency  string
	// CourseID, when set, names a course to build into instead of creating one.
	CourseID string
	// Profile, when set, is used as the profile step result and the learner-profile
	// peer is not called.
	Profile *dto.LearnerProfile
}

// AssemblyResult describes a persisted course build.
type AssemblyResult struct {
	State          AssemblyState
	Transitions    []AssemblyState
	Course         *models.Course
	Graph          *models.CourseGraph
	Skills         []string
	SkillSource    DataSource
	ContentSource  DataSource
	GroupingSource GroupingSource
	// Reused is true when the build went into an existing course row.
	Reused bool
}

// CourseAssembler runs the course assembly pipeline.
type CourseAssembler interface {
	Assemble(ctx context.Context, req AssemblyRequest) (*AssemblyResult, error)
}

// CourseAssemblyDeps are the collaborators of the assembly pipeline.
type CourseAssemblyDeps struct {
	DB            database.Transactor
	Profiles      ProfileSource
	Content       ContentSource
	Fallback      *fallback.Store
	Grouper       LessonGrouper
	Courses       repositories.CourseRepository
	Topics        repositories.TopicRepository
	Modules       repositories.ModuleRepository
	Lessons       repositories.LessonRepository
	Registrations repositories.RegistrationRepository
	Auditor       *audit.SecurityAuditor
	Metrics       *metrics.Metrics
}

type courseAssemblyService struct {
	deps   CourseAssemblyDeps
	writer *courseGraphWriter
	logger *zap.Logger
}

// NewCourseAssemblyService creates the assembly pipeline. A nil Fallback behaves as
// an empty store: transient peer failures then end in a pending result.
func NewCourseAssemblyService(deps CourseAssemblyDeps, logger *zap.Logger) CourseAssembler {
	return &courseAssemblyService{
		deps: deps,
		writer: &courseGraphWriter{
			courses: deps.Courses,
			topics:  deps.Topics,
			modules: deps.Modules,
			lessons: deps.Lessons,
		},
		logger: logger.Named("course-assembly"),
	}
}

var _ CourseAssembler = (*courseAssemblyService)(nil)

// assemblyRun tracks the state of one build.
type assemblyRun struct {
	state       AssemblyState
	transitions []AssemblyState
	logger      *zap.Logger
}

func (r *assemblyRun) enter(state AssemblyState) {
	r.logger.Debug("Assembly state change",
		zap.String("from", string(r.state)),
		zap.String("to", string(state)))
	r.state = state
	r.transitions = append(r.transitions, state)
}

func (s *courseAssemblyService) Assemble(ctx context.Context, req AssemblyRequest) (*AssemblyResult, error) {
	if req.LearnerID == "" {
		return nil, apperrors.MissingField("learner_id")
	}

	run := &assemblyRun{
		state:       StateIdle,
		transitions: []AssemblyState{StateIdle},
		logger:      s.logger.With(zap.String("competency", req.Competency)),
	}
	result, err := s.assemble(ctx, run, req)
	if err != nil {
		if apperrors.IsPending(err) {
			run.enter(StatePendingUpstream)
			s.logger.Info("Course build pending upstream data",
				zap.String("state", string(StatePendingUpstream)),
				zap.Error(err))
		} else {
			s.logger.Error("Course build failed",
				zap.String("state", string(run.state)),
				zap.String("error", logging.SanitizeError(err)))
		}
		s.deps.Metrics.RecordAssembly(string(run.state))
		return nil, err
	}

	s.deps.Metrics.RecordAssembly(string(result.State))
	return result, nil
}

func (s *courseAssemblyService) assemble(ctx context.Context, run *assemblyRun, req AssemblyRequest) (*AssemblyResult, error) {
	result := &AssemblyResult{}

	// Step 1: learner profile.
	profile := req.Profile
	result.SkillSource = SourcePushed
	if profile == nil {
		run.enter(StateProfileRequested)
		fetched, source, err := s.fetchProfile(ctx, req)
		if err != nil {
			return nil, err
		}
		profile, result.SkillSource = fetched, source
	}
	if profile.LearnerID == "" {
		profile.LearnerID = req.LearnerID
	}
	if profile.Competency == "" {
		profile.Competency = req.Competency
	}
	if !profile.HasUsableData() {
		return nil, &apperrors.PendingCourseCreationError{
			Reason: "the learner profile has no skills, learning path or competency yet",
		}
	}

	// Step 2: lesson content. Depends on the profile, so it never starts earlier.
	run.enter(StateContentRequested)
	lessons, source, err := s.fetchLessons(ctx, profile)
	if err != nil {
		return nil, err
	}
	result.ContentSource = source
	if len(lessons) == 0 {
		return nil, &apperrors.PendingCourseCreationError{
			Reason: "no lesson content is available for the learner's skills yet",
		}
	}
	for _, l := range lessons {
		// Peer ids are not unique across courses; every persisted lesson gets its own.
		l.ID = uuid.NewString()
		l.EnsureSequences()
	}

	course, reused, err := s.resolveCourse(ctx, req, profile)
	if err != nil {
		return nil, err
	}

	// Step 3: structure.
	topics, grouping, err := s.deps.Grouper.Group(ctx, course.Name, profile.Competency, lessons)
	if err != nil {
		return nil, fmt.Errorf("failed to group lessons: %w", err)
	}
	run.enter(StateStructureAssigned)

	graph := &models.CourseGraph{Course: course, Topics: topics}

	// Step 4: persistence, then registration and enrollment once the course id exists.
	err = s.deps.DB.WithTx(ctx, func(ctx context.Context) error {
		if reused {
			if err := s.writer.writeStructure(ctx, course.ID, topics); err != nil {
				return err
			}
		} else if err := s.writer.writeCourse(ctx, graph); err != nil {
			return err
		}
		return s.register(ctx, course.ID, req, profile)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist course: %w", err)
	}
	run.enter(StatePersisted)

	s.deps.Auditor.LogSideEffect(ctx, audit.SideEffectDetails{
		Kind:      "course_created",
		Target:    string(models.CourseTypeLearnerSpecific),
		CourseID:  course.ID,
		LearnerID: req.LearnerID,
		Outcome:   string(StatePersisted),
	})
	s.logger.Info("Course assembled",
		zap.String("course_id", course.ID),
		zap.Int("topics", len(topics)),
		zap.Int("lessons", graph.LessonCount()),
		zap.String("skill_source", string(result.SkillSource)),
		zap.String("content_source", string(result.ContentSource)),
		zap.String("grouping", string(grouping)))

	result.State = run.state
	result.Transitions = run.transitions
	result.Course = course
	result.Graph = graph
	result.Skills = profile.Skills
	result.GroupingSource = grouping
	result.Reused = reused
	return result, nil
}

// fetchProfile calls the learner-profile peer. A transient failure is replaced by
// the canned profile once; any other failure is an upstream error.
func (s *courseAssemblyService) fetchProfile(ctx context.Context, req AssemblyRequest) (*dto.LearnerProfile, DataSource, error) {
	profile, err := s.deps.Profiles.FetchProfile(ctx, req.LearnerID, req.Competency)
	if err == nil {
		s.deps.Metrics.RecordPeerCall(peers.ServiceLearnerAI, "ok")
		return profile, SourcePeer, nil
	}
	if !s.canFallBack(peers.ServiceLearnerAI, err) {
		return nil, "", &apperrors.UpstreamError{Service: peers.ServiceLearnerAI, Cause: err}
	}

	profile = s.deps.Fallback.Profile(req.LearnerID, req.Competency)
	if req.LearnerName != "" {
		profile.LearnerName = req.LearnerName
	}
	return profile, SourceFallback, nil
}

// fetchLessons calls the content peer with the same fallback policy as fetchProfile.
func (s *courseAssemblyService) fetchLessons(ctx context.Context, profile *dto.LearnerProfile) ([]*models.Lesson, DataSource, error) {
	lessons, err := s.deps.Content.GenerateLessons(ctx, profile)
	if err == nil {
		s.deps.Metrics.RecordPeerCall(peers.ServiceContentStudio, "ok")
		return lessons, SourcePeer, nil
	}
	if !s.canFallBack(peers.ServiceContentStudio, err) {
		return nil, "", &apperrors.UpstreamError{Service: peers.ServiceContentStudio, Cause: err}
	}
	if s.deps.Fallback == nil {
		return []*models.Lesson{}, SourceFallback, nil
	}
	return s.deps.Fallback.Lessons(profile.Competency, profile.Skills), SourceFallback, nil
}

func (s *courseAssemblyService) canFallBack(peer string, err error) bool {
	if !peers.IsTransient(err) {
		s.deps.Metrics.RecordPeerCall(peer, "error")
		return false
	}
	s.deps.Metrics.RecordPeerCall(peer, "transient")
	if s.deps.Fallback == nil {
		// Empty data from here on; the pending checks answer 202.
		s.logger.Warn("Peer unavailable and fallback data is disabled",
			zap.String("peer", peer),
			zap.String("error", logging.SanitizeError(err)))
		return true
	}

	s.deps.Metrics.RecordFallback(peer)
	s.logger.Warn("Peer unavailable, substituting fallback data",
		zap.String("peer", peer),
		zap.String("error", logging.SanitizeError(err)))
	return true
}

// resolveCourse returns the course to build into: the named existing course, or a
// new learner-specific course (keeping a requested id that does not exist yet).
func (s *courseAssemblyService) resolveCourse(ctx context.Context, req AssemblyRequest, profile *dto.LearnerProfile) (*models.Course, bool, error) {
	if req.CourseID != "" {
		var existing *models.Course
		err := s.deps.DB.WithScope(ctx, func(ctx context.Context) error {
			var err error
			existing, err = s.deps.Courses.GetByID(ctx, req.CourseID)
			return err
		})
		switch {
		case err == nil:
			return existing, true, nil
		case !errors.Is(err, apperrors.ErrNotFound):
			return nil, false, err
		}
	}

	name := "Personalized course"
	if profile.Competency != "" {
		name = profile.Competency
	}
	return &models.Course{
		ID:          req.CourseID,
		Name:        name,
		Description: fmt.Sprintf("Assembled from %d skills for one learner.", len(profile.Skills)),
		CourseType:  models.CourseTypeLearnerSpecific,
		Status:      models.CourseStatusActive,
		CreatedBy:   CourseBuilderService,
		LearningPath: models.LearningPathDesignation{
			IsDesignated:     profile.Competency != "",
			TargetCompetency: profile.Competency,
		},
	}, false, nil
}

// register enrolls the learner in the course unless already registered and records
// the enrollment in the course's dictionary.
func (s *courseAssemblyService) register(ctx context.Context, courseID string, req AssemblyRequest, profile *dto.LearnerProfile) error {
	existing, err := s.deps.Registrations.FindByLearnerCourse(ctx, req.LearnerID, courseID)
	if err != nil {
		return err
	}
	if existing == nil {
		learnerName := req.LearnerName
		if learnerName == "" {
			learnerName = profile.LearnerName
		}
		companyID := req.CompanyID
		if companyID == "" {
			companyID = profile.CompanyID
		}
		err := s.deps.Registrations.Create(ctx, &models.Registration{
			LearnerID:   req.LearnerID,
			CourseID:    courseID,
			LearnerName: learnerName,
			CompanyID:   companyID,
			Status:      models.RegistrationStatusInProgress,
		})
		if err != nil {
			return fmt.Errorf("failed to register learner: %w", err)
		}
	}

	return s.deps.Courses.MergeDictionary(ctx, courseID, models.DictionaryEnrollment, req.LearnerID, map[string]any{
		"enrolled_at": time.Now().UTC().Format(time.RFC3339),
		"source":      CourseBuilderService,
		"competency":  profile.Competency,
		"status":      string(models.RegistrationStatusInProgress),
	})
}
