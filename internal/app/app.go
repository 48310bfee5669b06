package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/EnowBibi/KontriVibeBackend/database"
	"github.com/EnowBibi/KontriVibeBackend/internal/auth"
	"github.com/EnowBibi/KontriVibeBackend/internal/cache"
	"github.com/EnowBibi/KontriVibeBackend/internal/config"
	"github.com/EnowBibi/KontriVibeBackend/internal/email"
	"github.com/EnowBibi/KontriVibeBackend/internal/events"
	"github.com/EnowBibi/KontriVibeBackend/internal/fapshi"
	"github.com/EnowBibi/KontriVibeBackend/internal/handlers"
	"github.com/EnowBibi/KontriVibeBackend/internal/imageprocessor"
	"github.com/EnowBibi/KontriVibeBackend/internal/lock"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
	"github.com/EnowBibi/KontriVibeBackend/internal/middleware"
	"github.com/EnowBibi/KontriVibeBackend/internal/repositories"
	"github.com/EnowBibi/KontriVibeBackend/internal/routes"
	"github.com/EnowBibi/KontriVibeBackend/internal/services"
	"github.com/EnowBibi/KontriVibeBackend/internal/storage"
	"github.com/EnowBibi/KontriVibeBackend/internal/validator"
	"github.com/EnowBibi/KontriVibeBackend/internal/workers"
	"github.com/EnowBibi/KontriVibeBackend/pkg/apperrors"
)

const shutdownTimeout = 15 * time.Second

// App owns every long-lived dependency of the process.
type App struct {
	cfg         *config.Config
	db          *gorm.DB
	redis       *redis.Client
	publisher   events.Publisher
	tokens      *auth.TokenManager
	revocations cache.TokenRevocationStore
	storage     storage.Storage
	emailWorker *email.QueueWorker
	repos       *repositories.Registry
	services    *services.ServiceContainer
	worker      *workers.SubscriptionWorker
}

// LoadConfig reads the configuration and initialises the process-wide
// logger and error settings from it.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Server.Env)
	apperrors.SetDebug(cfg.IsDevelopment())
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Info("Logger initialized", "env", cfg.Server.Env)
	return cfg, nil
}

// New connects to every backing service. Postgres is required. Redis and
// RabbitMQ are optional: when they are missing or unreachable the app runs
// on in-process fallbacks and says so in the log.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	logger.Info("Connecting to database...")
	db, err := database.Connect(ctx, cfg.Database.DSN, cfg.IsDevelopment())
	if err != nil {
		return nil, err
	}
	a.db = db
	logger.Info("Database connected")

	if err := a.initInfrastructure(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.initServices()
	return a, nil
}

func (a *App) initInfrastructure(ctx context.Context) error {
	cfg := a.cfg

	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, using in-process locks and revocations")
		} else {
			a.redis = rdb
			logger.Info("Redis connected", "addr", cfg.Redis.Addr)
		}
	}

	a.publisher = events.NoopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		pub, err := events.NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.WithError(err).Warn("RabbitMQ unavailable, events are dropped")
		} else {
			a.publisher = pub
			logger.Info("RabbitMQ connected", "exchange", cfg.RabbitMQ.Exchange)
		}
	}

	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWTTTL())
	if err != nil {
		return err
	}
	a.tokens = tokens

	if a.redis != nil {
		a.revocations = cache.NewRedisRevocationStore(a.redis)
	} else {
		a.revocations = cache.NewMemoryRevocationStore()
	}

	store, err := storage.New(storage.Config{
		Type:      cfg.Storage.Type,
		BasePath:  cfg.Storage.BasePath,
		BaseURL:   cfg.Storage.BaseURL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Endpoint:  cfg.Storage.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.storage = store
	logger.Info("Storage initialized", "type", cfg.Storage.Type)
	return nil
}

func (a *App) initServices() {
	cfg := a.cfg

	var locker lock.Locker = lock.NoopLocker{}
	if a.redis != nil {
		locker = lock.NewRedsyncLocker(a.redis)
	}

	a.repos = repositories.NewRegistry(a.db)
	a.services = services.NewServiceContainer(services.ContainerDeps{
		Repos:       a.repos,
		Provider:    fapshi.NewClient(cfg.Fapshi.BaseURL, cfg.Fapshi.APIUser, cfg.Fapshi.APIKey, cfg.FapshiTimeout()),
		Tokens:      a.tokens,
		Revocations: a.revocations,
		Publisher:   a.publisher,
		Locker:      locker,
		Mailer:      a.initMailer(),
		Storage:     a.storage,
		Covers:      imageprocessor.NewProcessor(85, imageprocessor.CoverMaxSide),
		UploadLimits: services.UploadLimits{
			MaxSize:      cfg.Upload.MaxSize,
			AllowedTypes: cfg.Upload.AllowedTypes,
		},
		PostUploadLimits: services.UploadLimits{
			MaxSize:      cfg.Upload.PostMaxSize,
			AllowedTypes: cfg.Upload.PostAllowedTypes,
		},
		VerifyWebhooks: cfg.Fapshi.VerifyWebhooks,
		Now:            time.Now,
	})

	a.worker = workers.NewSubscriptionWorker(
		a.services.SubscriptionService,
		a.services.NotificationService,
		workers.Schedules{
			Expiry:              cfg.Workers.ExpirySchedule,
			StaleAttempts:       cfg.Workers.StaleAttemptSchedule,
			Reminders:           cfg.Workers.ReminderSchedule,
			NotificationCleanup: cfg.Workers.CleanupSchedule,
		},
		cfg.Workers.ReminderDays,
	)
}

// initMailer returns nil when email is disabled. With redis, mail goes
// through the queue and a worker delivers it over SMTP.
func (a *App) initMailer() *email.Mailer {
	cfg := a.cfg
	if !cfg.Email.Enabled {
		logger.Warn("Email disabled, receipts and reminders are not mailed")
		return nil
	}

	smtp := email.NewGomailSender(&email.SMTPConfig{
		Host:      cfg.Email.SMTPHost,
		Port:      cfg.Email.SMTPPort,
		Username:  cfg.Email.SMTPUsername,
		Password:  cfg.Email.SMTPPassword,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
	})
	if err := smtp.Validate(); err != nil {
		logger.WithError(err).Warn("Email misconfigured, disabled")
		return nil
	}

	var sender email.Sender = smtp
	if a.redis != nil {
		queue := email.NewRedisQueue(a.redis)
		a.emailWorker = email.NewQueueWorker(queue, smtp)
		sender = queue
	}
	return email.NewMailer(sender, email.NewTemplateManager())
}

// ============================================
// Router
// ============================================

// SetupRouter builds the gin engine with every route mounted.
func (a *App) SetupRouter() *gin.Engine {
	entitlements := a.services.SubscriptionService

	guards := handlers.Guards{
		Auth:         middleware.AuthMiddleware(a.tokens, a.revocations),
		OptionalAuth: middleware.OptionalAuthMiddleware(a.tokens, a.revocations),
		Entitlement:  middleware.AttachEntitlement(entitlements),
		Premium:      middleware.RequirePremium(entitlements),
		Admin:        middleware.RequireRoles(auth.RoleAdmin),
		RateLimit:    middleware.NewIPRateLimiter(a.cfg.RateLimit.RPS, a.cfg.RateLimit.Burst).Middleware(),
	}

	appHandlers := initializeHandlers(a.services, a.healthChecks())

	ginRouter := initializeGinRouter()
	ginRouter.MaxMultipartMemory = 32 << 20

	opts := routes.Options{}
	if a.cfg.Storage.Type == "local" {
		opts.UploadsURL = a.cfg.Storage.BaseURL
		opts.UploadsDir = a.cfg.Storage.BasePath
	}
	routes.RegisterRoutes(ginRouter, appHandlers, guards, opts)
	return ginRouter
}

func initializeHandlers(svc *services.ServiceContainer, checks map[string]handlers.Pinger) *handlers.AppHandlers {
	baseHandler := handlers.NewBaseHandler(validator.New())

	return &handlers.AppHandlers{
		AuthHandler:         handlers.NewAuthHandler(baseHandler, svc.AuthService),
		SubscriptionHandler: handlers.NewSubscriptionHandler(baseHandler, svc.SubscriptionService),
		WebhookHandler:      handlers.NewWebhookHandler(baseHandler, svc.WebhookService),
		NotificationHandler: handlers.NewNotificationHandler(baseHandler, svc.NotificationService),
		SongHandler:         handlers.NewSongHandler(baseHandler, svc.SongService),
		PostHandler:         handlers.NewPostHandler(baseHandler, svc.PostService),
		InteractionHandler:  handlers.NewInteractionHandler(baseHandler, svc.InteractionService),
		HealthHandler:       handlers.NewHealthHandler(checks),
	}
}

func initializeGinRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddleware())
	return router
}

func (a *App) healthChecks() map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{
		"database": handlers.PingerFunc(func(ctx context.Context) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	if a.redis != nil {
		checks["redis"] = handlers.PingerFunc(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	return checks
}

// ============================================
// Commands
// ============================================

// Migrate brings the schema up to date.
func (a *App) Migrate(ctx context.Context) error {
	if err := database.AutoMigrate(a.db.WithContext(ctx)); err != nil {
		return err
	}
	logger.Info("AutoMigrate completed")
	return nil
}

// Sweep runs every scheduled job once.
func (a *App) Sweep(ctx context.Context) error {
	return a.worker.RunOnce(ctx)
}

// Serve runs the HTTP server and the background workers until ctx is done,
// then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	if err := seedFirstAdmin(ctx, a.repos.Users, a.cfg.FirstAdmin.Email, a.cfg.FirstAdmin.Password); err != nil {
		return fmt.Errorf("failed to seed first admin user: %w", err)
	}

	if a.cfg.Workers.Enabled {
		if err := a.worker.Start(ctx); err != nil {
			return err
		}
		defer a.worker.Stop()
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if a.emailWorker != nil {
		go a.emailWorker.Start(workerCtx)
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server startup error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Close releases every connection New opened.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close redis")
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}
}
