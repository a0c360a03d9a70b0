package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/cache"
	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/mail"
	"github.com/evolvere-edu/evolvere-api/internal/metrics"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/storage"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	SessionTTL     time.Duration
	SSORedirectURL string

	// Tolerated lateness on timed submissions.
	SubmissionGrace time.Duration
	// Zero disables the background sweeper.
	SweepInterval time.Duration

	MaxPhotoSize    int64
	MaxDocumentSize int64
	AppName         string
}

// Dependencies are the infrastructure pieces every service is built from.
// Identity, Cache and Metrics may be nil.
type Dependencies struct {
	Repo      repositories.Repository
	Sessions  repositories.SessionRepository
	Identity  repositories.IdentityProvider
	Cache     *cache.CacheManager
	Store     *storage.Store
	Mailer    mail.Mailer
	Publisher events.EventPublisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Validator *validator.Validator
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   Dependencies
	config ServiceManagerConfig
	logger *slog.Logger

	authService        AuthService
	userService        UserService
	courseService      CourseService
	subjectService     SubjectService
	classService       ClassService
	enrollmentService  EnrollmentService
	formService        FormService
	performanceService PerformanceService
	dashboardService   DashboardService
	materialService    MaterialService
	medalService       MedalService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
	stopSweeper context.CancelFunc
	sweeperDone chan struct{}
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps Dependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &serviceManager{
		deps:   deps,
		config: config,
		logger: deps.Logger,
	}
}

// Initialize builds every service and starts the expiry sweeper.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.deps.Repo == nil || sm.deps.Sessions == nil {
		return errors.New("service manager requires a repository and a session store")
	}
	if sm.deps.Validator == nil {
		sm.deps.Validator = validator.New()
	}

	sm.logger.Info("Initializing service manager")
	sm.initializeServices()

	if sm.config.SweepInterval > 0 {
		sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		sm.stopSweeper = cancel
		sm.sweeperDone = make(chan struct{})
		go sm.runSweeper(sweepCtx, sm.config.SweepInterval)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

func (sm *serviceManager) initializeServices() {
	d := sm.deps

	sm.medalService = NewMedalService(d.Repo, d.Publisher, d.Metrics, d.Logger, d.Validator)
	sm.authService = NewAuthService(d.Repo, d.Sessions, d.Identity, d.Publisher, d.Metrics, d.Logger, d.Validator, AuthConfig{
		SessionTTL:     sm.config.SessionTTL,
		SSORedirectURL: sm.config.SSORedirectURL,
	})
	sm.userService = NewUserService(d.Repo, d.Sessions, d.Store, d.Mailer, d.Publisher, d.Metrics, d.Logger, d.Validator, UserConfig{
		MaxPhotoSize:    sm.config.MaxPhotoSize,
		MaxDocumentSize: sm.config.MaxDocumentSize,
		AppName:         sm.config.AppName,
	})
	sm.courseService = NewCourseService(d.Repo, d.Logger, d.Validator)
	sm.subjectService = NewSubjectService(d.Repo, d.Logger, d.Validator)
	sm.classService = NewClassService(d.Repo, d.Logger, d.Validator)
	sm.enrollmentService = NewEnrollmentService(d.Repo, d.Publisher, d.Logger, d.Validator)
	sm.formService = NewFormService(d.Repo, sm.medalService, d.Cache, d.Publisher, d.Metrics, d.Logger, d.Validator, sm.config.SubmissionGrace)
	sm.performanceService = NewPerformanceService(d.Repo, d.Logger)
	sm.dashboardService = NewDashboardService(d.Repo, d.Cache, d.Logger)
	sm.materialService = NewMaterialService(d.Repo, d.Store, d.Publisher, d.Metrics, d.Logger, d.Validator, sm.config.MaxDocumentSize)
}

// runSweeper closes overdue submissions and purges dead sessions until
// the context is cancelled.
func (sm *serviceManager) runSweeper(ctx context.Context, interval time.Duration) {
	defer close(sm.sweeperDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.logger.Info("Expiry sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			sm.logger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			sm.sweep(ctx)
		}
	}
}

func (sm *serviceManager) sweep(ctx context.Context) {
	expired, err := sm.formService.ExpireOverdue(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		sm.logger.Error("Failed to expire overdue submissions", "error", err)
	} else if expired > 0 {
		sm.logger.Info("Expired overdue submissions", "count", expired)
	}

	purged, err := sm.authService.PurgeExpiredSessions(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		sm.logger.Error("Failed to purge sessions", "error", err)
	} else if purged > 0 {
		sm.logger.Debug("Purged expired sessions", "count", purged)
	}
}

// Service getters
func (sm *serviceManager) mustBeReady() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

func (sm *serviceManager) Auth() AuthService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.authService
}

func (sm *serviceManager) User() UserService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.userService
}

func (sm *serviceManager) Course() CourseService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.courseService
}

func (sm *serviceManager) Subject() SubjectService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.subjectService
}

func (sm *serviceManager) Class() ClassService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.classService
}

func (sm *serviceManager) Enrollment() EnrollmentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.enrollmentService
}

func (sm *serviceManager) Form() FormService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.formService
}

func (sm *serviceManager) Performance() PerformanceService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.performanceService
}

func (sm *serviceManager) Dashboard() DashboardService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.dashboardService
}

func (sm *serviceManager) Material() MaterialService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.materialService
}

func (sm *serviceManager) Medal() MedalService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeReady()
	return sm.medalService
}

// Health and lifecycle

// HealthCheck fails on the database only; a missing cache degrades
// without failing.
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}
	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}
	sm.logger.Info("Shutting down service manager")

	if sm.stopSweeper != nil {
		sm.stopSweeper()
		select {
		case <-sm.sweeperDone:
		case <-ctx.Done():
			sm.logger.Warn("Sweeper did not stop before shutdown deadline")
		}
	}

	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")
	return nil
}
