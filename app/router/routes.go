// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/app/handlers"
	"github.com/amirphl/Kitsune-CRM/app/middleware"
	"github.com/amirphl/Kitsune-CRM/config"
	"github.com/amirphl/Kitsune-CRM/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app *fiber.App
	cfg *config.ProductionConfig

	authHandler     handlers.AuthHandlerInterface
	customerHandler handlers.CustomerHandlerInterface
	orderHandler    handlers.OrderHandlerInterface
	segmentHandler  handlers.SegmentHandlerInterface
	campaignHandler handlers.CampaignHandlerInterface
	commLogHandler  handlers.CommunicationLogHandlerInterface
	aiHandler       handlers.AIHandlerInterface
	authMiddleware  *middleware.AuthMiddleware
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	authHandler handlers.AuthHandlerInterface,
	customerHandler handlers.CustomerHandlerInterface,
	orderHandler handlers.OrderHandlerInterface,
	segmentHandler handlers.SegmentHandlerInterface,
	campaignHandler handlers.CampaignHandlerInterface,
	commLogHandler handlers.CommunicationLogHandlerInterface,
	aiHandler handlers.AIHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Kitsune CRM API",
		ServerHeader: "Kitsune-CRM",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:             app,
		cfg:             cfg,
		authHandler:     authHandler,
		customerHandler: customerHandler,
		orderHandler:    orderHandler,
		segmentHandler:  segmentHandler,
		campaignHandler: campaignHandler,
		commLogHandler:  commLogHandler,
		aiHandler:       aiHandler,
		authMiddleware:  authMiddleware,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	// Auth routes with stricter rate limiting
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.AuthRateLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
	}))
	auth.Post("/login", r.authHandler.Login)
	auth.Post("/refresh", r.authHandler.Refresh)

	// Provider-facing delivery receipt webhook. Authenticated by the provider's
	// shared secret at the ingress, not by dashboard JWTs.
	api.Post("/delivery/receipts", r.commLogHandler.Receipt)

	// Everything below requires a dashboard token
	protected := api.Group("", r.authMiddleware.Authenticate())

	customers := protected.Group("/customers")
	customers.Get("/", r.customerHandler.List)
	customers.Post("/", r.customerHandler.Create)
	customers.Get("/:uuid", r.customerHandler.Get)
	customers.Put("/:uuid", r.customerHandler.Update)
	customers.Delete("/:uuid", r.customerHandler.Delete)

	orders := protected.Group("/orders")
	orders.Get("/", r.orderHandler.List)
	orders.Post("/", r.orderHandler.Create)
	orders.Get("/:uuid", r.orderHandler.Get)
	orders.Put("/:uuid", r.orderHandler.Update)
	orders.Delete("/:uuid", r.orderHandler.Delete)

	segments := protected.Group("/segments")
	segments.Get("/", r.segmentHandler.List)
	segments.Post("/", r.segmentHandler.Create)
	segments.Post("/preview", r.segmentHandler.Preview)
	segments.Get("/:uuid", r.segmentHandler.Get)
	segments.Put("/:uuid", r.segmentHandler.Update)
	segments.Delete("/:uuid", r.segmentHandler.Delete)

	campaigns := protected.Group("/campaigns")
	campaigns.Get("/", r.campaignHandler.List)
	campaigns.Post("/", r.campaignHandler.Create)
	campaigns.Get("/:uuid", r.campaignHandler.Get)
	campaigns.Put("/:uuid", r.campaignHandler.Update)
	campaigns.Delete("/:uuid", r.campaignHandler.Delete)
	campaigns.Post("/:uuid/execute", r.campaignHandler.Execute)
	campaigns.Get("/:uuid/report", r.campaignHandler.ExportReport)
	campaigns.Get("/:uuid/logs", r.commLogHandler.ListByCampaign)
	campaigns.Get("/:uuid/summary", r.aiHandler.CampaignSummary)

	protected.Get("/delivery/messages/:message_id", r.commLogHandler.Get)

	ai := protected.Group("/ai")
	ai.Post("/suggest-messages", r.aiHandler.SuggestMessages)
	ai.Post("/rules-from-query", r.aiHandler.RulesFromQuery)

	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'; frame-ancestors 'none';",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Security.AllowedOrigins,
		AllowMethods: r.cfg.Security.AllowedMethods,
		AllowHeaders: r.cfg.Security.AllowedHeaders,
		ExposeHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	// Structured request logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	// Prometheus HTTP metrics
	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	// Recovery middleware with panic logging
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start begins listening on the given address
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "kitsune-crm-api",
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

func rateLimitReached(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Success: false,
		Message: "Too many requests. Please try again later.",
		Error: dto.ErrorDetail{
			Code: "RATE_LIMIT_EXCEEDED",
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": c.Locals("requestid"),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
