package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/dto"
	"github.com/skillforge-io/course-builder/pkg/models"
	"github.com/skillforge-io/course-builder/pkg/repositories"
)

// memStore is an in-memory course database shared by the mock repositories.
// WithTx snapshots it and restores the snapshot when the work fails.
type memStore struct {
	mu            sync.Mutex
	courses       map[string]*models.Course
	topics        []*models.Topic
	modules       []*models.Module
	lessons       []*models.Lesson
	registrations []*models.Registration
	feedback      []*models.Feedback
	assessments   []*models.Assessment

	txCount     int
	failCommit  error
	scopeCalled int
}

func newMemStore() *memStore {
	return &memStore{courses: make(map[string]*models.Course)}
}

type memSnapshot struct {
	courses       map[string]models.Course
	topics        []*models.Topic
	modules       []*models.Module
	lessons       []*models.Lesson
	registrations []models.Registration
	feedback      []*models.Feedback
	assessments   []*models.Assessment
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		courses:     make(map[string]models.Course, len(s.courses)),
		topics:      append([]*models.Topic{}, s.topics...),
		modules:     append([]*models.Module{}, s.modules...),
		lessons:     append([]*models.Lesson{}, s.lessons...),
		feedback:    append([]*models.Feedback{}, s.feedback...),
		assessments: append([]*models.Assessment{}, s.assessments...),
	}
	for id, c := range s.courses {
		cp := *c
		cp.EnrollmentDictionary = copyDictionary(c.EnrollmentDictionary)
		cp.FeedbackDictionary = copyDictionary(c.FeedbackDictionary)
		cp.LessonCompletionDictionary = copyDictionary(c.LessonCompletionDictionary)
		snap.courses[id] = cp
	}
	for _, r := range s.registrations {
		snap.registrations = append(snap.registrations, *r)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses = make(map[string]*models.Course, len(snap.courses))
	for id, c := range snap.courses {
		cp := c
		s.courses[id] = &cp
	}
	s.topics, s.modules, s.lessons = snap.topics, snap.modules, snap.lessons
	s.feedback, s.assessments = snap.feedback, snap.assessments
	s.registrations = nil
	for _, r := range snap.registrations {
		cp := r
		s.registrations = append(s.registrations, &cp)
	}
}

func copyDictionary(d models.LearnerDictionary) models.LearnerDictionary {
	if d == nil {
		return nil
	}
	out := make(models.LearnerDictionary, len(d))
	for k, v := range d {
		fields := make(map[string]any, len(v))
		for fk, fv := range v {
			fields[fk] = fv
		}
		out[k] = fields
	}
	return out
}

// memTransactor implements database.Transactor over a memStore.
type memTransactor struct {
	store *memStore
}

var _ database.Transactor = (*memTransactor)(nil)

func (t *memTransactor) WithScope(ctx context.Context, fn func(ctx context.Context) error) error {
	t.store.mu.Lock()
	t.store.scopeCalled++
	t.store.mu.Unlock()
	return fn(ctx)
}

func (t *memTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.store.snapshot()
	t.store.mu.Lock()
	t.store.txCount++
	failCommit := t.store.failCommit
	t.store.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	if failCommit != nil {
		t.store.restore(snap)
		return failCommit
	}
	return nil
}

type memCourseRepo struct{ s *memStore }

var _ repositories.CourseRepository = (*memCourseRepo)(nil)

func (r *memCourseRepo) Create(_ context.Context, c *models.Course) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := r.s.courses[c.ID]; exists {
		return fmt.Errorf("course %s: %w", c.ID, apperrors.ErrConflict)
	}
	if c.Status == "" {
		c.Status = models.CourseStatusDraft
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	r.s.courses[c.ID] = &cp
	return nil
}

func (r *memCourseRepo) GetByID(_ context.Context, id string) (*models.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.courses[id]
	if !ok {
		return nil, fmt.Errorf("course %s: %w", id, apperrors.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *memCourseRepo) UpdateStatus(_ context.Context, id string, status models.CourseStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.courses[id]
	if !ok {
		return fmt.Errorf("course %s: %w", id, apperrors.ErrNotFound)
	}
	c.Status = status
	return nil
}

func (r *memCourseRepo) MergeDictionary(_ context.Context, id string, dict models.Dictionary, learnerID string, fields map[string]any) error {
	if !models.IsValidDictionary(dict) {
		return fmt.Errorf("unknown dictionary %q", dict)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.courses[id]
	if !ok {
		return fmt.Errorf("course %s: %w", id, apperrors.ErrNotFound)
	}

	var target *models.LearnerDictionary
	switch dict {
	case models.DictionaryEnrollment:
		target = &c.EnrollmentDictionary
	case models.DictionaryFeedback:
		target = &c.FeedbackDictionary
	case models.DictionaryLessonCompletion:
		target = &c.LessonCompletionDictionary
	}
	if *target == nil {
		*target = models.LearnerDictionary{}
	}
	entry := (*target)[learnerID]
	if entry == nil {
		entry = map[string]any{}
	}
	for k, v := range fields {
		entry[k] = v
	}
	(*target)[learnerID] = entry
	return nil
}

func (r *memCourseRepo) FindLearnerCourse(_ context.Context, learnerID, competency string) (*models.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *models.Course
	for _, c := range r.s.courses {
		if c.CourseType != models.CourseTypeLearnerSpecific || c.Status == models.CourseStatusArchived {
			continue
		}
		if _, enrolled := c.EnrollmentDictionary[learnerID]; !enrolled {
			continue
		}
		if !strings.EqualFold(c.LearningPath.TargetCompetency, competency) {
			continue
		}
		if found == nil || c.CreatedAt.After(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (r *memCourseRepo) StructureCounts(_ context.Context, courseID string) (int, int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	topicIDs := map[string]bool{}
	for _, t := range r.s.topics {
		if t.CourseID == courseID {
			topicIDs[t.ID] = true
		}
	}
	modules := 0
	for _, m := range r.s.modules {
		if topicIDs[m.TopicID] {
			modules++
		}
	}
	lessons := 0
	for _, l := range r.s.lessons {
		if topicIDs[l.TopicID] {
			lessons++
		}
	}
	return len(topicIDs), modules, lessons, nil
}

type memTopicRepo struct{ s *memStore }

var _ repositories.TopicRepository = (*memTopicRepo)(nil)

func (r *memTopicRepo) Create(_ context.Context, t *models.Topic) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.courses[t.CourseID]; !ok {
		return errors.New("topic references a missing course")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	r.s.topics = append(r.s.topics, t)
	return nil
}

func (r *memTopicRepo) ListByCourse(_ context.Context, courseID string) ([]*models.Topic, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Topic{}
	for _, t := range r.s.topics {
		if t.CourseID == courseID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memModuleRepo struct{ s *memStore }

var _ repositories.ModuleRepository = (*memModuleRepo)(nil)

func (r *memModuleRepo) Create(_ context.Context, m *models.Module) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.TopicID == "" {
		return errors.New("module without topic")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()
	r.s.modules = append(r.s.modules, m)
	return nil
}

func (r *memModuleRepo) ListByTopic(_ context.Context, topicID string) ([]*models.Module, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Module{}
	for _, m := range r.s.modules {
		if m.TopicID == topicID {
			out = append(out, m)
		}
	}
	return out, nil
}

type memLessonRepo struct{ s *memStore }

var _ repositories.LessonRepository = (*memLessonRepo)(nil)

func (r *memLessonRepo) Create(_ context.Context, l *models.Lesson) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.ModuleID == "" || l.TopicID == "" {
		return errors.New("lesson without module or topic")
	}
	for _, existing := range r.s.lessons {
		if l.ID != "" && existing.ID == l.ID {
			return fmt.Errorf("lesson %s: %w", l.ID, apperrors.ErrConflict)
		}
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.EnsureSequences()
	r.s.lessons = append(r.s.lessons, l)
	return nil
}

func (r *memLessonRepo) ListByModule(_ context.Context, moduleID string) ([]*models.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Lesson{}
	for _, l := range r.s.lessons {
		if l.ModuleID == moduleID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memLessonRepo) ListByCourse(_ context.Context, courseID string) ([]*models.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	topicIDs := map[string]bool{}
	for _, t := range r.s.topics {
		if t.CourseID == courseID {
			topicIDs[t.ID] = true
		}
	}
	out := []*models.Lesson{}
	for _, l := range r.s.lessons {
		if topicIDs[l.TopicID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memLessonRepo) FindBySkills(_ context.Context, skills []string, courseID string, limit int) ([]*repositories.LessonMatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	topicCourse := map[string]string{}
	for _, t := range r.s.topics {
		topicCourse[t.ID] = t.CourseID
	}
	wanted := map[string]bool{}
	for _, s := range skills {
		wanted[s] = true
	}
	out := []*repositories.LessonMatch{}
	for _, l := range r.s.lessons {
		cid := topicCourse[l.TopicID]
		if courseID != "" && cid != courseID {
			continue
		}
		for _, s := range l.Skills {
			if wanted[s] {
				out = append(out, &repositories.LessonMatch{Lesson: l, CourseID: cid})
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type memRegistrationRepo struct{ s *memStore }

var _ repositories.RegistrationRepository = (*memRegistrationRepo)(nil)

func (r *memRegistrationRepo) Create(_ context.Context, reg *models.Registration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.registrations {
		if existing.LearnerID == reg.LearnerID && existing.CourseID == reg.CourseID {
			return fmt.Errorf("learner %s: %w", reg.LearnerID, apperrors.ErrConflict)
		}
	}
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.Status == "" {
		reg.Status = models.RegistrationStatusInProgress
	}
	reg.RegisteredAt = time.Now().UTC()
	cp := *reg
	r.s.registrations = append(r.s.registrations, &cp)
	return nil
}

func (r *memRegistrationRepo) FindByLearnerCourse(_ context.Context, learnerID, courseID string) (*models.Registration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, reg := range r.s.registrations {
		if reg.LearnerID == learnerID && reg.CourseID == courseID {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRegistrationRepo) UpdateStatus(_ context.Context, id string, status models.RegistrationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, reg := range r.s.registrations {
		if reg.ID == id {
			reg.Status = status
			return nil
		}
	}
	return fmt.Errorf("registration %s: %w", id, apperrors.ErrNotFound)
}

func (r *memRegistrationRepo) CountByCourse(_ context.Context, courseID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, reg := range r.s.registrations {
		if reg.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

type memFeedbackRepo struct{ s *memStore }

var _ repositories.FeedbackRepository = (*memFeedbackRepo)(nil)

func (r *memFeedbackRepo) Create(_ context.Context, f *models.Feedback) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.SubmittedAt.IsZero() {
		f.SubmittedAt = time.Now().UTC()
	}
	r.s.feedback = append(r.s.feedback, f)
	return nil
}

func (r *memFeedbackRepo) AverageRating(_ context.Context, courseID string) (float64, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum, n := 0, 0
	for _, f := range r.s.feedback {
		if f.CourseID == courseID {
			sum += f.Rating
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}

type memAssessmentRepo struct{ s *memStore }

var _ repositories.AssessmentRepository = (*memAssessmentRepo)(nil)

func (r *memAssessmentRepo) Create(_ context.Context, a *models.Assessment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	r.s.assessments = append(r.s.assessments, a)
	return nil
}

func (r *memAssessmentRepo) GetLatest(_ context.Context, learnerID, courseID string) (*models.Assessment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.assessments) - 1; i >= 0; i-- {
		a := r.s.assessments[i]
		if a.LearnerID == learnerID && a.CourseID == courseID {
			return a, nil
		}
	}
	return nil, nil
}

// memRepos bundles one memStore with every repository over it.
type memRepos struct {
	store         *memStore
	db            *memTransactor
	courses       *memCourseRepo
	topics        *memTopicRepo
	modules       *memModuleRepo
	lessons       *memLessonRepo
	registrations *memRegistrationRepo
	feedback      *memFeedbackRepo
	assessments   *memAssessmentRepo
}

func newMemRepos() *memRepos {
	s := newMemStore()
	return &memRepos{
		store:         s,
		db:            &memTransactor{store: s},
		courses:       &memCourseRepo{s: s},
		topics:        &memTopicRepo{s: s},
		modules:       &memModuleRepo{s: s},
		lessons:       &memLessonRepo{s: s},
		registrations: &memRegistrationRepo{s: s},
		feedback:      &memFeedbackRepo{s: s},
		assessments:   &memAssessmentRepo{s: s},
	}
}

// seedCourse stores a course with one topic and module per entry of lessonsByTopic.
func (m *memRepos) seedCourse(name string, courseType models.CourseType, lessonsByTopic map[string][]*models.Lesson) *models.Course {
	ctx := context.Background()
	course := &models.Course{Name: name, CourseType: courseType, Status: models.CourseStatusActive}
	if err := m.courses.Create(ctx, course); err != nil {
		panic(err)
	}

	topicNames := make([]string, 0, len(lessonsByTopic))
	for n := range lessonsByTopic {
		topicNames = append(topicNames, n)
	}
	sort.Strings(topicNames)

	for _, tn := range topicNames {
		topic := &models.Topic{CourseID: course.ID, Name: tn}
		if err := m.topics.Create(ctx, topic); err != nil {
			panic(err)
		}
		module := &models.Module{TopicID: topic.ID, Name: tn}
		if err := m.modules.Create(ctx, module); err != nil {
			panic(err)
		}
		for _, l := range lessonsByTopic[tn] {
			l.TopicID, l.ModuleID = topic.ID, module.ID
			if err := m.lessons.Create(ctx, l); err != nil {
				panic(err)
			}
		}
	}
	return course
}

func (m *memRepos) courseCount() int {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return len(m.store.courses)
}

func (m *memRepos) registrationCount() int {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return len(m.store.registrations)
}

// mockProfileSource answers FetchProfile with a fixed profile or error.
type mockProfileSource struct {
	profile *dto.LearnerProfile
	err     error
	calls   int
}

func (m *mockProfileSource) FetchProfile(_ context.Context, learnerID, competency string) (*dto.LearnerProfile, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	p := *m.profile
	return &p, nil
}

// mockContentSource answers GenerateLessons with copies of fixed lessons or an error.
type mockContentSource struct {
	lessons  []*models.Lesson
	err      error
	calls    int
	profiles []*dto.LearnerProfile
}

func (m *mockContentSource) GenerateLessons(_ context.Context, profile *dto.LearnerProfile) ([]*models.Lesson, error) {
	m.calls++
	m.profiles = append(m.profiles, profile)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*models.Lesson, len(m.lessons))
	for i, l := range m.lessons {
		cp := *l
		out[i] = &cp
	}
	return out, nil
}

// mockCoverageSink records coverage maps sent to the assessment service.
type mockCoverageSink struct {
	sent []map[string]any
	ack  map[string]any
	err  error
}

func (m *mockCoverageSink) SendCoverage(_ context.Context, coverage map[string]any) (map[string]any, error) {
	m.sent = append(m.sent, coverage)
	if m.err != nil {
		return nil, m.err
	}
	return m.ack, nil
}

// mockBuildLock refuses the lock when held is set.
type mockBuildLock struct {
	held     bool
	keys     []string
	released int
}

func (m *mockBuildLock) Acquire(_ context.Context, key string) (func(), bool, error) {
	m.keys = append(m.keys, key)
	if m.held {
		return func() {}, false, nil
	}
	return func() { m.released++ }, true, nil
}

func newLessons(specs ...string) []*models.Lesson {
	lessons := make([]*models.Lesson, 0, len(specs))
	for i, spec := range specs {
		name, skills, _ := strings.Cut(spec, ":")
		l := &models.Lesson{ID: fmt.Sprintf("peer-%d", i+1), Name: name}
		if skills != "" {
			l.Skills = strings.Split(skills, ",")
		}
		l.EnsureSequences()
		lessons = append(lessons, l)
	}
	return lessons
}
