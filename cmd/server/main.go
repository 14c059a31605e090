package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"powerbi-glean-connector/internal/archive"
	"powerbi-glean-connector/internal/config"
	"powerbi-glean-connector/internal/controller"
	"powerbi-glean-connector/internal/glean"
	"powerbi-glean-connector/internal/logger"
	"powerbi-glean-connector/internal/middleware"
	"powerbi-glean-connector/internal/powerbi"
	"powerbi-glean-connector/internal/repository"
	"powerbi-glean-connector/internal/security"
	"powerbi-glean-connector/internal/service"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logging
	appLogger := logger.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	defer appLogger.Sync()

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Root context canceled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	db, err := config.InitDatabase(cfg)
	if err != nil {
		appLogger.Fatal("failed to initialize database: %v", err)
	}

	// Initialize repositories
	runRepo := repository.NewSyncRunRepository(db)

	// Initialize Azure AD token source
	azureAuth, err := security.NewAzureADAuth(ctx,
		cfg.PowerBI.AuthorityBaseURL,
		cfg.PowerBI.TenantID,
		cfg.PowerBI.ClientID,
		cfg.PowerBI.RefreshToken,
		cfg.PowerBI.Scopes,
	)
	if err != nil {
		appLogger.Fatal("failed to initialize Azure AD auth: %v", err)
	}

	// Initialize Power BI client and scan poller
	pbiClient, err := powerbi.NewClient(cfg.PowerBI.APIBaseURL, azureAuth.TokenSource(),
		cfg.PowerBI.RateLimitRPS, cfg.PowerBI.RateLimitBurst)
	if err != nil {
		appLogger.Fatal("failed to initialize Power BI client: %v", err)
	}
	poller := powerbi.NewScanPoller(pbiClient, appLogger)
	poller.SetPollInterval(cfg.PowerBI.ScanPollInterval)
	poller.SetMaxWait(cfg.PowerBI.ScanTimeout)

	// Initialize Glean index client
	gleanClient, err := glean.NewClient(cfg.Glean.BaseURL, cfg.Glean.Token, cfg.Glean.Datasource)
	if err != nil {
		appLogger.Fatal("failed to initialize Glean client: %v", err)
	}

	// Initialize raw scan archival when enabled
	var archiver *archive.ScanArchiver
	if cfg.Sync.Archive.Enabled {
		archiver, err = archive.NewScanArchiver(ctx, &cfg.Sync.Archive, appLogger)
		if err != nil {
			appLogger.Fatal("failed to initialize scan archiver: %v", err)
		}
	}

	// Initialize services
	mapper := service.NewPositionalMapper(cfg.PowerBI.PortalBaseURL)
	syncService := service.NewSyncService(cfg, appLogger, pbiClient, poller, gleanClient, mapper, archiver, runRepo)
	scheduler := service.NewScheduler(&cfg.Sync, syncService, appLogger)

	// Initialize security
	jwtManager := security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiration)
	authMiddleware := security.NewAuthMiddleware(jwtManager)

	// Initialize rate limiting
	rateLimitConfig := middleware.RateLimiterConfig{
		RPM:             cfg.Security.RateLimitPerMinute,
		Burst:           cfg.Security.RateLimitBurst,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimitConfig)

	// Initialize Prometheus metrics
	middleware.InitMetrics()

	// Initialize controllers
	syncController := controller.NewSyncController(syncService)
	healthController := controller.NewHealthController(db, syncService)

	// Create Gin router
	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.Cors())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.PrometheusMiddleware())

	// Add rate limiting if enabled
	if cfg.Security.EnableRateLimit {
		router.Use(rateLimiter.RateLimit())
	}

	// Health and metrics endpoints (always available)
	router.GET("/health", healthController.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	api := router.Group("/api/v1")

	// Public endpoints (no authentication required)
	public := api.Group("")
	{
		public.GET("/health", healthController.HealthCheck)
	}

	// Sync endpoints (authentication required when enabled)
	sync := api.Group("/sync")
	if cfg.Security.EnableAuth {
		sync.Use(authMiddleware.RequireAuth())
	}
	{
		sync.POST("", syncController.TriggerSync)
		sync.GET("/status", syncController.GetSyncStatus)
		sync.GET("/runs", syncController.ListSyncRuns)
		sync.GET("/runs/:id", syncController.GetSyncRun)
	}

	// Start the sync scheduler
	if cfg.Sync.Enabled {
		go scheduler.Start(ctx)
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		appLogger.Info("server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("failed to start server: %v", err)
		}
	}()

	// Block until a shutdown signal arrives
	<-ctx.Done()
	appLogger.Info("shutdown signal received")

	// Cancel any active sync run, then drain HTTP connections
	syncService.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server shutdown failed: %v", err)
	}
	appLogger.Info("server stopped")
}
