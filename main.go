// Package main provides the main entry point for the Kitsune CRM campaign system
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

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/app/events"
	"github.com/amirphl/Kitsune-CRM/app/handlers"
	"github.com/amirphl/Kitsune-CRM/app/middleware"
	"github.com/amirphl/Kitsune-CRM/app/router"
	"github.com/amirphl/Kitsune-CRM/app/services"
	businessflow "github.com/amirphl/Kitsune-CRM/business_flow"
	"github.com/amirphl/Kitsune-CRM/config"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
	"github.com/amirphl/Kitsune-CRM/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Kitsune CRM application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// migrateSchema brings the database schema up to date
func migrateSchema(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Customer{},
		&models.Order{},
		&models.Segment{},
		&models.Campaign{},
		&models.CommunicationLog{},
		&models.AuditLog{},
	)
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeEmailService picks the configured email provider
func initializeEmailService(cfg *config.ProductionConfig) services.EmailService {
	if cfg.Email.UseMock {
		log.Printf("Using mock email service (failure rate %.2f)", cfg.Email.MockFailureRate)
		return services.NewMockEmailService(cfg.Email.MockFailureRate)
	}
	return services.NewEmailService(&cfg.Email)
}

// initializeCompletionService picks the configured text completion provider
func initializeCompletionService(cfg *config.ProductionConfig) services.CompletionService {
	if cfg.AI.UseMock {
		log.Println("Using mock completion service")
		return services.NewMockCompletionService()
	}
	return services.NewCompletionService(&cfg.AI)
}

// startMetricsServer exposes the Prometheus registry on its own port. The
// returned stop function shuts the listener down.
func startMetricsServer(cfg config.MetricsConfig) func() {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("Metrics server listening on :%d%s", cfg.Port, cfg.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := migrateSchema(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Application logger with rotation
	appLogger := utils.NewRotatingLogger(
		cfg.Logging.FilePath,
		cfg.Logging.MaxSize,
		cfg.Logging.MaxBackups,
		cfg.Logging.MaxAge,
		cfg.Logging.Compress,
		cfg.Logging.ToStdout,
	)

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	segmentRepo := repository.NewSegmentRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	commLogRepo := repository.NewCommunicationLogRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Initialize services
	emailService := initializeEmailService(cfg)
	completionService := initializeCompletionService(cfg)

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	// Initialize business flows
	resolver := businessflow.NewAudienceResolver(customerRepo)

	loginFlow := businessflow.NewLoginFlow(&cfg.Admin, tokenService, auditRepo)
	customerFlow := businessflow.NewCustomerFlow(customerRepo, auditRepo, db)
	orderFlow := businessflow.NewOrderFlow(orderRepo, customerRepo, auditRepo, db)
	segmentFlow := businessflow.NewSegmentFlow(segmentRepo, campaignRepo, resolver, auditRepo, appLogger, db)
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, segmentRepo, commLogRepo, auditRepo, db)
	executionFlow := businessflow.NewCampaignExecutionFlow(
		campaignRepo,
		commLogRepo,
		auditRepo,
		resolver,
		emailService,
		&cfg.Campaign,
		appLogger,
	)
	deliveryStatusFlow := businessflow.NewDeliveryStatusFlow(commLogRepo, campaignRepo, db)
	aiFlow := businessflow.NewAIFlow(completionService, campaignRepo, appLogger)
	reportFlow := businessflow.NewReportFlow(campaignRepo, commLogRepo, customerRepo)

	// Domain event publishing and delivery receipt ingestion over Redis
	publisher := events.NewPublisher(rc, appLogger)

	if rc != nil {
		batcher := events.NewReceiptBatcher(
			func(ctx context.Context, receipt dto.DeliveryReceiptRequest) {
				if _, err := deliveryStatusFlow.ApplyReceipt(ctx, &receipt); err != nil {
					appLogger.Printf("receipt for message %s not applied: %v", receipt.MessageID, err)
				}
			},
			cfg.Campaign.ReceiptBatchSize,
			cfg.Campaign.ReceiptFlushInterval,
			appLogger,
		)
		consumer := events.NewReceiptConsumer(rc, cfg.Campaign.ReceiptChannel, batcher, appLogger)
		stopConsumer := consumer.Start(context.Background())
		stopFuncs = append(stopFuncs, stopConsumer)
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(loginFlow)
	customerHandler := handlers.NewCustomerHandler(customerFlow)
	orderHandler := handlers.NewOrderHandler(orderFlow)
	segmentHandler := handlers.NewSegmentHandler(segmentFlow, publisher)
	campaignHandler := handlers.NewCampaignHandler(campaignFlow, executionFlow, reportFlow, publisher)
	commLogHandler := handlers.NewCommunicationLogHandler(deliveryStatusFlow)
	aiHandler := handlers.NewAIHandler(aiFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		cfg,
		authHandler,
		customerHandler,
		orderHandler,
		segmentHandler,
		campaignHandler,
		commLogHandler,
		aiHandler,
		authMiddleware,
	)

	if cfg.Metrics.Enabled {
		stopFuncs = append(stopFuncs, startMetricsServer(cfg.Metrics))
	}

	application := &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
