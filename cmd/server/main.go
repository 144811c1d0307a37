package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/calendar"
	"github.com/yourorg/market-data-sync/internal/client"
	"github.com/yourorg/market-data-sync/internal/config"
	"github.com/yourorg/market-data-sync/internal/events"
	"github.com/yourorg/market-data-sync/internal/gateway"
	"github.com/yourorg/market-data-sync/internal/handler"
	"github.com/yourorg/market-data-sync/internal/middleware"
	"github.com/yourorg/market-data-sync/internal/repository"
	"github.com/yourorg/market-data-sync/internal/scheduler"
	"github.com/yourorg/market-data-sync/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database
	db, err := connectToDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.EnsureSchema(context.Background(), db); err != nil {
		logger.Fatal("Failed to ensure schema", zap.Error(err))
	}

	// Load the trading calendar
	cal, err := calendar.Load(cfg.Calendar.Path)
	if err != nil {
		logger.Fatal("Failed to load trading calendar", zap.Error(err))
	}

	// Initialize repositories
	quoteRepo := repository.NewQuoteRepository(db, logger)
	statusRepo := repository.NewStatusRepository(db, logger)
	instrumentRepo := repository.NewInstrumentRepository(db, logger)
	errorLogRepo := repository.NewErrorLogRepository(db, logger)
	runRepo := repository.NewRunRepository(db, logger)

	// Initialize the upstream client and the rate-limited gateway
	marketClient := client.NewMarketClient(cfg.Upstream.URL, cfg.Upstream.Token, cfg.Upstream.Timeout, logger)
	limiter := gateway.NewRateLimiter(
		cfg.RateLimit.MaxCallsPerMinute,
		cfg.RateLimit.MaxCallsPerDay,
		cfg.RateLimit.MinCallInterval,
		logger,
	)
	gw := gateway.New(marketClient, gateway.Options{
		Limiter: limiter,
		Policy: gateway.RetryPolicy{
			MaxRetries: cfg.Retry.MaxRetries,
			Strategy:   gateway.Strategy(cfg.Retry.Strategy),
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
			Factor:     cfg.Retry.Factor,
		},
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		BreakerTimeout:   cfg.CircuitBreaker.Timeout,
		Sink:             errorLogRepo,
	}, logger)

	// Optional Kafka run events
	var publisher service.RunPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	// Initialize services
	gapService := service.NewGapService(quoteRepo, instrumentRepo, cal, logger)
	planService := service.NewPlanService(gapService, instrumentRepo, cal, cfg.Download, logger)
	downloadService := service.NewDownloadService(gw, quoteRepo, statusRepo, runRepo, publisher, cfg.Download, logger)
	statusService := service.NewStatusService(statusRepo, instrumentRepo, logger)
	instrumentService := service.NewInstrumentService(gw, instrumentRepo, logger)

	// Initialize handlers
	downloadHandler := handler.NewDownloadHandler(planService, downloadService, runRepo, logger)
	statusHandler := handler.NewStatusHandler(statusService, logger)
	quoteHandler := handler.NewQuoteHandler(quoteRepo, gapService, logger)
	instrumentHandler := handler.NewInstrumentHandler(instrumentService, logger)
	diagnosticsHandler := handler.NewDiagnosticsHandler(errorLogRepo, gw, logger)

	// Background scheduler
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(planService, downloadService, cal, cfg.Scheduler, logger)
		if err := sched.Start(schedCtx); err != nil {
			logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	// Set up HTTP server with Gin
	router := setupRouter(
		downloadHandler,
		statusHandler,
		quoteHandler,
		instrumentHandler,
		diagnosticsHandler,
		logger,
		cfg,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	schedCancel()

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Create logger config
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func connectToDB(dbConfig config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName,
		dbConfig.SSLMode,
	)

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	return db, nil
}

func setupRouter(
	downloadHandler *handler.DownloadHandler,
	statusHandler *handler.StatusHandler,
	quoteHandler *handler.QuoteHandler,
	instrumentHandler *handler.InstrumentHandler,
	diagnosticsHandler *handler.DiagnosticsHandler,
	logger *zap.Logger,
	cfg *config.Config,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		// Read-only routes
		api.GET("/quotes", quoteHandler.GetQuotes)
		api.GET("/coverage", quoteHandler.Coverage)
		api.GET("/gaps/days", quoteHandler.MissingDays)
		api.GET("/instruments", instrumentHandler.List)
		api.GET("/status", statusHandler.ListStatus)
		api.GET("/status/summary", statusHandler.Summary)
		api.GET("/status/:symbol", statusHandler.GetStatus)
		api.GET("/errors", diagnosticsHandler.RecentErrors)
		api.GET("/gateway", diagnosticsHandler.GatewayState)
		api.GET("/downloads/analysis", downloadHandler.Analyze)
		api.GET("/downloads/runs", downloadHandler.RecentRuns)

		// Mutating routes require the service key
		protected := api.Group("")
		protected.Use(middleware.ServiceAuthMiddleware(cfg.ServiceKey, logger))
		{
			protected.POST("/downloads/plan", downloadHandler.BuildPlan)
			protected.POST("/downloads/execute", downloadHandler.Execute)
			protected.POST("/status/initialize", statusHandler.Initialize)
			protected.POST("/instruments/sync", instrumentHandler.Sync)
		}
	}

	return router
}
