// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reelbux/reelbux/app/dto"
	"github.com/reelbux/reelbux/app/handlers"
	"github.com/reelbux/reelbux/app/middleware"
	"github.com/reelbux/reelbux/config"
	"github.com/reelbux/reelbux/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	filmHandler    handlers.FilmPaymentHandlerInterface
	walletHandler  handlers.WalletHandlerInterface
	paypalHandler  handlers.PaypalPaymentHandlerInterface
	stripeHandler  handlers.StripePaymentHandlerInterface
	authMiddleware *middleware.AuthMiddleware
	cfg            *config.ProductionConfig
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	filmHandler handlers.FilmPaymentHandlerInterface,
	walletHandler handlers.WalletHandlerInterface,
	paypalHandler handlers.PaypalPaymentHandlerInterface,
	stripeHandler handlers.StripePaymentHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.ProductionConfig,
) Router {
	// Configure Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "ReelBux API",
		ServerHeader: "ReelBux",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:            app,
		filmHandler:    filmHandler,
		walletHandler:  walletHandler,
		paypalHandler:  paypalHandler,
		stripeHandler:  stripeHandler,
		authMiddleware: authMiddleware,
		cfg:            cfg,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	// Prometheus scrape endpoint, outside the API group and rate limits
	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	// API routes
	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// Apply general rate limiting to all API routes (aligned with nginx)
	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: rateLimitReached,
		Next: func(c fiber.Ctx) bool {
			// Health checks and gateway callbacks must never be throttled;
			// Stripe retries a rejected webhook and the retry storm would
			// starve real deliveries.
			return c.Path() == "/api/v1/health" || c.Path() == "/api/v1/stripe/webhook"
		},
	}))

	// Film purchase endpoints (authenticated, payment rate limit)
	films := api.Group("/films")
	films.Use(r.paymentLimiter())
	films.Use(r.authMiddleware.Authenticate())
	films.Post("/purchase", r.filmHandler.PurchaseFilm)
	films.Post("/rent", r.filmHandler.RentFilm)
	films.Get("/library", r.filmHandler.ListAccessGrants)

	// Wallet endpoints (authenticated)
	wallet := api.Group("/wallet")
	wallet.Use(r.authMiddleware.Authenticate())
	wallet.Get("/balance", r.walletHandler.GetBalance)
	wallet.Get("/transactions", r.walletHandler.GetTransactionHistory)
	wallet.Post("/transfer-distro", r.walletHandler.TransferDistro)

	// PayPal redirect checkout endpoints (authenticated, payment rate limit)
	paypal := api.Group("/paypal")
	paypal.Use(r.paymentLimiter())
	paypal.Use(r.authMiddleware.Authenticate())
	paypal.Post("/checkout", r.paypalHandler.CreateCheckout)
	paypal.Post("/add-funds", r.paypalHandler.CreateAddFunds)
	paypal.Post("/execute", r.paypalHandler.ExecuteCheckout)
	paypal.Post("/cancel", r.paypalHandler.CancelCheckout)

	// Stripe endpoints; the webhook is called by Stripe, not by customers,
	// and authenticates with its signature header instead of a JWT
	stripe := api.Group("/stripe")
	stripe.Post("/webhook", r.stripeHandler.Webhook)
	stripe.Use(r.paymentLimiter())
	stripe.Use(r.authMiddleware.Authenticate())
	stripe.Post("/checkout", r.stripeHandler.CreateCheckout)
	stripe.Post("/add-funds", r.stripeHandler.CreateAddFundsCheckout)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// paymentLimiter builds the stricter per-IP limiter applied to
// money-moving endpoints.
func (r *FiberRouter) paymentLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        r.cfg.Security.PaymentRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
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

// SetupMiddleware configures global middleware
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
		XSSProtection:             r.cfg.Security.XSSProtection,
		ContentTypeNosniff:        r.cfg.Security.XContentTypeOptions,
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                r.cfg.Security.HSTSMaxAge,
		HSTSExcludeSubdomains:     !r.cfg.Security.HSTSIncludeSubDoms,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// CORS middleware with production settings
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Security.AllowedOrigins,
		AllowMethods: r.cfg.Security.AllowedMethods,
		AllowHeaders: r.cfg.Security.AllowedHeaders,
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
		},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	// Compression middleware for performance
	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// Skip compression for certain content types
				contentType := c.Get("Content-Type")
				return contains(contentType, "image/") ||
					contains(contentType, "video/") ||
					contains(contentType, "audio/")
			},
		}))
	}

	// Advanced logging middleware
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks in production
			return c.Path() == "/api/v1/health"
		},
	}))

	// Request metrics
	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	// Custom security middleware
	r.app.Use(r.securityMiddleware)

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			// Log panic with request context
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

// Custom security middleware
func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	// Add security headers
	c.Set("X-Response-Time", utils.UTCNow().Format(time.RFC3339))
	c.Set("Server", "ReelBux")

	// Continue to next middleware
	return c.Next()
}

// Start starts the HTTP server
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
			"service":   "reelbux-api",
		},
	})
}

// Not found handler
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

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	// Default error code
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Log the error
	log.Printf("Error %d: %v", code, err)

	// Get RequestID for tracing
	requestID := c.Locals("requestid")

	// Return JSON error response
	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// Helper functions

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// contains checks if a string contains a substring
func contains(str, substr string) bool {
	return strings.Contains(str, substr)
}
