package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/audit"
	"github.com/skillforge-io/course-builder/pkg/config"
	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/fallback"
	"github.com/skillforge-io/course-builder/pkg/handlers"
	"github.com/skillforge-io/course-builder/pkg/llm"
	"github.com/skillforge-io/course-builder/pkg/logging"
	"github.com/skillforge-io/course-builder/pkg/metrics"
	"github.com/skillforge-io/course-builder/pkg/middleware"
	"github.com/skillforge-io/course-builder/pkg/peers"
	"github.com/skillforge-io/course-builder/pkg/repositories"
	"github.com/skillforge-io/course-builder/pkg/services"
	"github.com/skillforge-io/course-builder/pkg/sql"
)

// Version is set at build time via ldflags
var Version = "dev"

// shutdownTimeout bounds in-flight envelopes on SIGTERM.
const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("service_name", cfg.ServiceName),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.Bool("redis", cfg.Redis.Enabled()),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("fallback", cfg.Fallback.Enabled))

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(db, cfg.MigrationsPath, logger); err != nil {
		return err
	}

	redisClient, err := database.NewRedisClient(ctx, &database.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	llmClient, err := llm.NewClientForProvider(&llm.ProviderConfig{
		Provider:          cfg.LLM.Provider,
		Endpoint:          cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey,
		MaxTokens:         cfg.LLM.MaxTokens,
		BreakerThreshold:  cfg.LLM.BreakerThreshold,
		BreakerResetAfter: cfg.LLM.BreakerResetAfter(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}

	var fallbackStore *fallback.Store
	if cfg.Fallback.Enabled {
		fallbackStore, err = fallback.Load(cfg.Fallback.DataFile)
		if err != nil {
			return err
		}
	}

	m := metrics.New()
	dispatcher, err := newDispatcher(cfg, db, redisClient, llmClient, fallbackStore, m, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewEnvelopeHandler(dispatcher, logger).RegisterRoutes(mux, database.WithScopeMiddleware(db))
	mux.Handle("GET /metrics", m.Handler())

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting course-builder", zap.String("addr", server.Addr))
		if cfg.TLSCertPath != "" {
			serveErr <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newDispatcher builds the repositories, peers, pipeline and per-service handlers.
func newDispatcher(
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	llmClient llm.LLMClient,
	fallbackStore *fallback.Store,
	m *metrics.Metrics,
	logger *zap.Logger,
) (services.Dispatcher, error) {
	courses := repositories.NewCourseRepository()
	topics := repositories.NewTopicRepository()
	modules := repositories.NewModuleRepository()
	lessons := repositories.NewLessonRepository()
	registrations := repositories.NewRegistrationRepository()
	feedback := repositories.NewFeedbackRepository()
	assessments := repositories.NewAssessmentRepository()

	peerClient := func(service, baseURL string) *peers.Client {
		return peers.NewClient(peers.Config{
			Service:   service,
			BaseURL:   baseURL,
			Timeout:   cfg.Peers.Timeout(),
			Requester: cfg.ServiceName,
		}, logger)
	}
	learnerAI := peers.NewLearnerAI(peerClient(peers.ServiceLearnerAI, cfg.Peers.LearnerAIURL))
	contentStudio := peers.NewContentStudio(peerClient(peers.ServiceContentStudio, cfg.Peers.ContentStudioURL))
	assessment := peers.NewAssessment(peerClient(peers.ServiceAssessment, cfg.Peers.AssessmentURL))

	auditor := audit.NewSecurityAuditor(logger)
	coverage := services.NewCoverageService(courses, topics, modules, lessons, logger)
	lock := services.NewBuildLock(redisClient, cfg.Redis.BuildLockTTL(), logger)

	assembler := services.NewCourseAssemblyService(services.CourseAssemblyDeps{
		DB:            db,
		Profiles:      learnerAI,
		Content:       contentStudio,
		Fallback:      fallbackStore,
		Grouper:       services.NewLessonGrouper(llmClient, cfg.LLM.GroupingTemperature, m, logger),
		Courses:       courses,
		Topics:        topics,
		Modules:       modules,
		Lessons:       lessons,
		Registrations: registrations,
		Auditor:       auditor,
		Metrics:       m,
	}, logger)

	return services.NewDispatcher(services.Handlers{
		CourseBuilder: services.NewCourseBuilderHandler(services.CourseBuilderHandlerDeps{
			DB:          db,
			Assembler:   assembler,
			Coverage:    coverage,
			Assessment:  assessment,
			Synthesizer: services.NewQuerySynthesizer(llmClient, cfg.LLM.SynthesisTemperature, m, logger),
			Executor:    services.NewQueryExecutor(sql.NewAutoBinder(), auditor, m, logger),
			Lock:        lock,
			Courses:     courses,
			Lessons:     lessons,
			Feedback:    feedback,
			Auditor:     auditor,
		}, logger),
		LearnerAI: services.NewLearnerAIHandler(db, assembler, courses, lock, logger),
		ContentStudio: services.NewContentStudioHandler(services.ContentStudioHandlerDeps{
			DB:      db,
			Courses: courses,
			Topics:  topics,
			Modules: modules,
			Lessons: lessons,
			Auditor: auditor,
		}, logger),
		Assessment: services.NewAssessmentHandler(services.AssessmentHandlerDeps{
			DB:            db,
			Coverage:      coverage,
			Courses:       courses,
			Assessments:   assessments,
			Registrations: registrations,
			Auditor:       auditor,
		}, logger),
		Directory: services.NewDirectoryHandler(services.DirectoryHandlerDeps{
			DB:            db,
			Courses:       courses,
			Registrations: registrations,
			Auditor:       auditor,
		}, logger),
		SkillsEngine: services.NewSkillsEngineHandler(db, lessons, coverage, logger),
	}, m, logger)
}
