package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"tribune/internal/audit"
	"tribune/internal/config"
	"tribune/internal/database"
	"tribune/internal/handlers"
	"tribune/internal/logger"
	"tribune/internal/middleware"
	"tribune/internal/validator"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	// Audit pipeline: one recorder per process, started here and drained on
	// shutdown. Producers get it by handle, never through a global.
	db := dbManager.DB()
	store := audit.NewGormStore(db)
	recorder := audit.NewRecorder(store, audit.RecorderConfig{
		QueueCapacity: appConfig.QueueCapacity,
		WriteTimeout:  appConfig.WriteTimeout,
		DrainTimeout:  appConfig.DrainTimeout,
	})
	recorder.Start()

	auditService := audit.NewService(db, recorder, audit.ServiceConfig{
		PurgeBatchSize: appConfig.PurgeBatchSize,
		PurgeMaxBatch:  appConfig.PurgeMaxBatch,
	})

	scheduler := audit.NewRetentionScheduler(auditService, appConfig.Retention, appConfig.PurgeInterval)
	scheduler.Start()

	// Initialize handlers
	auditHandler := handlers.NewAuditHandler(auditService, recorder, appConfig.Retention)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Authenticated read paths
	protected := v1.Group("/audit")
	protected.Use(middleware.AuthMiddleware())
	protected.GET("/events", auditHandler.QueryEvents)
	protected.GET("/events/export", auditHandler.ExportEvents)
	protected.GET("/diagnostics", auditHandler.Diagnostics)

	// Operations surface
	ops := v1.Group("/audit")
	ops.Use(middleware.OpsKeyMiddleware(appConfig.OpsKeyHash))
	ops.POST("/purge", auditHandler.Purge)

	srv := &http.Server{
		Addr:    ":" + appConfig.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Tribune audit service on port %s", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		scheduler.Stop()
		recorder.Stop()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Infof("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("graceful shutdown failed: %v", err)
	}

	// Stop accepting new events, then drain what is already buffered within
	// the configured bound.
	scheduler.Stop()
	recorder.Stop()
	return nil
}
