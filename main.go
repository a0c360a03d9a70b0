package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/evolvere-edu/evolvere-api/internal/config"
	"github.com/evolvere-edu/evolvere-api/internal/database"
	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/handlers"
	"github.com/evolvere-edu/evolvere-api/internal/i18n"
	"github.com/evolvere-edu/evolvere-api/internal/mail"
	"github.com/evolvere-edu/evolvere-api/internal/metrics"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/repositories/casdoor"
	"github.com/evolvere-edu/evolvere-api/internal/repositories/postgres"
	"github.com/evolvere-edu/evolvere-api/internal/repositories/redisstore"
	"github.com/evolvere-edu/evolvere-api/internal/services"
	"github.com/evolvere-edu/evolvere-api/internal/storage"
	"github.com/evolvere-edu/evolvere-api/internal/utils"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "evolvere-api",
		Short:        "Evolvere academic platform API",
		SilenceUsage: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	serve := serveCmd()
	root.AddCommand(serve, migrateCmd(), seedCmd())

	// Bare `evolvere-api` starts the server.
	root.RunE = serve.RunE
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Manage database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE:      runMigrate,
	}
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the first administrator and the medal catalogue",
		RunE:  runSeed,
	}
	f := cmd.Flags()
	f.String("admin-username", "admin", "Administrator username")
	f.String("admin-email", "", "Administrator email")
	f.String("admin-password", "", "Administrator password (or set EVOLVERE_ADMIN_PASSWORD)")
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	v := config.NewViper(cmd.Flags())
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := slog.New(utils.NewHandler(os.Stdout, cfg.LogFormat, cfg.LogLevel))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// app holds every long lived dependency built from the configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *gorm.DB
	redis    *redis.Client
	repo     *postgres.PostgreSQLRepository
	metrics  *metrics.Metrics
	services services.ServiceManager
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := i18n.Init(cfg.DefaultLanguage); err != nil {
		return nil, fmt.Errorf("loading translations: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, db: db, metrics: metrics.New()}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			if cfg.Session.Store == "redis" {
				a.close()
				return nil, fmt.Errorf("connecting to redis: %w", err)
			}
			logger.Warn("Redis unavailable, running without cache", "error", err)
			_ = a.redis.Close()
			a.redis = nil
		}
	}

	a.repo = postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db, RedisClient: a.redis})

	var sessions repositories.SessionRepository
	if cfg.Session.Store == "redis" {
		sessions = redisstore.NewSessionRedis(a.redis)
	} else {
		sessions = a.repo.Sessions()
	}

	var identity repositories.IdentityProvider
	if cfg.Casdoor.Enabled() {
		identity = casdoor.NewUserCasdoor(cfg.Casdoor)
		logger.Info("Casdoor SSO enabled", "endpoint", cfg.Casdoor.Endpoint)
	}

	var mailer mail.Mailer
	if cfg.Mail.SendgridAPIKey != "" {
		mailer = mail.NewSendgridMailer(cfg.Mail.SendgridAPIKey, cfg.Mail.AppName, cfg.Mail.From, logger)
	} else {
		mailer = mail.NewLogMailer(logger)
	}

	publisher, err := events.NewPublisher(cfg.Kafka, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	store, err := storage.NewLocalStore(cfg.Upload.Dir)
	if err != nil {
		_ = publisher.Close()
		a.close()
		return nil, fmt.Errorf("preparing upload dir: %w", err)
	}

	a.services = services.NewServiceManager(services.Dependencies{
		Repo:      a.repo,
		Sessions:  sessions,
		Identity:  identity,
		Cache:     a.repo.CacheManager(),
		Store:     store,
		Mailer:    mailer,
		Publisher: publisher,
		Metrics:   a.metrics,
		Logger:    logger,
		Validator: validator.New(),
	}, services.ServiceManagerConfig{
		SessionTTL:      cfg.Session.TTL,
		SSORedirectURL:  cfg.Casdoor.RedirectURL,
		SubmissionGrace: cfg.SubmissionGrace,
		SweepInterval:   cfg.SweepInterval,
		MaxPhotoSize:    cfg.Upload.MaxPhotoSize,
		MaxDocumentSize: cfg.Upload.MaxDocumentSize,
		AppName:         cfg.Mail.AppName,
	})
	return a, nil
}

func (a *app) close() {
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.logger.Error("Failed to close connections", "error", err)
		}
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.services.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	appLogger := utils.NewSlogLogger(logger)
	handlers.SetupMiddleware(router, appLogger, cfg.AllowedOrigins, a.metrics)

	checks := map[string]handlers.HealthCheck{
		"database": a.services.HealthCheck,
	}
	if a.redis != nil {
		checks["redis"] = a.repo.CacheManager().HealthCheck
	}
	handlers.NewHandlerManager(a.services, cfg.Session, a.metrics, checks, appLogger).SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := a.services.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}

	logger.Info("Server exited")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}
	switch direction {
	case "down":
		err = database.Rollback(sqlDB)
	case "status":
		err = database.Status(sqlDB)
	default:
		err = database.Migrate(sqlDB)
	}
	if err != nil {
		return err
	}
	logger.Info("Migration finished", "direction", direction)
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// Seeding needs no background sweeper.
	cfg.SweepInterval = 0
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.services.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	defer a.services.Shutdown(context.Background())

	seeded, err := a.services.Medal().SeedCatalogue(ctx)
	if err != nil {
		return fmt.Errorf("seeding medals: %w", err)
	}
	logger.Info("Medal catalogue seeded", "count", seeded)

	f := cmd.Flags()
	username, _ := f.GetString("admin-username")
	email, _ := f.GetString("admin-email")
	password, _ := f.GetString("admin-password")
	if password == "" {
		password = os.Getenv(config.EnvPrefix + "_ADMIN_PASSWORD")
	}
	if email == "" || password == "" {
		logger.Info("No administrator credentials given, skipping admin creation")
		return nil
	}

	admin, err := a.services.User().CreateAdmin(ctx, username, email, password)
	if errors.Is(err, services.ErrUsernameTaken) {
		logger.Info("Administrator already exists", "username", username)
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating administrator: %w", err)
	}
	logger.Info("Administrator created", "id", admin.ID, "username", admin.Username)
	return nil
}
