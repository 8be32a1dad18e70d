package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "github.com/sjperalta/fintera-cuotas/docs" // Swagger docs
	"github.com/sjperalta/fintera-cuotas/internal/config"
	"github.com/sjperalta/fintera-cuotas/internal/database"
	"github.com/sjperalta/fintera-cuotas/internal/handlers"
	"github.com/sjperalta/fintera-cuotas/internal/integrations"
	"github.com/sjperalta/fintera-cuotas/internal/jobs"
	"github.com/sjperalta/fintera-cuotas/internal/middleware"
	"github.com/sjperalta/fintera-cuotas/internal/repository"
	"github.com/sjperalta/fintera-cuotas/internal/services"
	"github.com/sjperalta/fintera-cuotas/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title Fintera Cuotas API
// @version 1.0
// @description Installment plans and payment reconciliation

// @host localhost:8081
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment, cfg.LogLevel)

	// Initialize Sentry (GlitchTip) when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	// Catalog cache
	startCtx, cancelStart := context.WithTimeout(context.Background(), 5*time.Second)
	rdb := integrations.ConnectRedis(startCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	cancelStart()

	// External services
	deps := services.Dependencies{
		Catalog: integrations.NewCachedCatalog(
			integrations.NewCatalogClient(cfg.CatalogBaseURL, cfg.CatalogToken, cfg.HTTPTimeout),
			rdb,
			cfg.CatalogCacheTTL,
		),
		Ledger:    integrations.NewLedgerClient(cfg.LedgerBaseURL, cfg.LedgerToken, cfg.HTTPTimeout),
		Authority: integrations.NewAuthorityClient(cfg.AuthorityBaseURL, cfg.AuthorityToken, cfg.HTTPTimeout),
	}

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	worker.OnFailure(func(name string, err error) {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("job", name)
			sentry.CaptureException(err)
		})
	})
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(repos, worker, deps, cfg)

	// Schedule recurring jobs
	scheduleJobs(worker, svcs, cfg)

	// Initialize handlers
	h := handlers.NewHandlers(svcs, healthChecks(db, rdb))

	// Setup router
	router := setupRouter(h, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ReconcileTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	worker.Shutdown()
	logger.Info("Background worker stopped")

	if rdb != nil {
		_ = rdb.Close()
	}
	if err := database.Close(db); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	// Flush Sentry events before exit
	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func healthChecks(db *gorm.DB, rdb *redis.Client) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return checks
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Redirect root to swagger
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		// Health check (public)
		v1.GET("/health", h.Health.Index)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		protected.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleOperator))
		{
			plans := protected.Group("/plans")
			{
				plans.POST("", h.Plan.Create)
				plans.GET("/:plan_id", h.Plan.Show)
				plans.DELETE("/:plan_id", h.Plan.Discard)
				plans.PATCH("/:plan_id/installments/:sequence", h.Plan.EditInstallment)
				plans.POST("/:plan_id/commit", h.Plan.Commit)
			}

			agreements := protected.Group("/agreements/:agreement_id")
			{
				agreements.GET("/installments", h.Installment.Index)
				agreements.GET("/installments/export", h.Installment.Export)
				agreements.POST("/reconcile", h.Installment.Reconcile)
			}

			// Admin-only routes
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.POST("/installments/sweep", h.Installment.Sweep)
				admin.GET("/audits", h.Audit.Index)
				admin.GET("/jobs/status", h.Job.Status)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services, cfg *config.Config) {
	// Promote installments past their due date
	worker.ScheduleEveryImmediate("overdue_sweep", cfg.OverdueSweepEvery, func(ctx context.Context) error {
		logger.Info("[Job] Sweeping overdue installments...")
		_, err := svcs.Reconciliation.SweepOverdue(ctx)
		return err
	})

	// Forget plans nobody is editing anymore
	worker.ScheduleEvery("plan_eviction", 15*time.Minute, svcs.Plan.EvictIdle)

	logger.Info("Scheduled recurring jobs")
}
