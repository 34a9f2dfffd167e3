// Package main provides the main entry point for the ReelBux payments service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/reelbux/reelbux/app/handlers"
	"github.com/reelbux/reelbux/app/middleware"
	"github.com/reelbux/reelbux/app/router"
	"github.com/reelbux/reelbux/app/scheduler"
	"github.com/reelbux/reelbux/app/services"
	businessflow "github.com/reelbux/reelbux/business_flow"
	"github.com/reelbux/reelbux/config"
	"github.com/reelbux/reelbux/repository"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/utils"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting ReelBux application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Setup graceful shutdown
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

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

// setupLogging routes the standard logger to a rotating file, stdout, or
// both, per LoggingConfig.
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var out io.Writer = rotating
	if cfg.Output == "both" {
		out = io.MultiWriter(os.Stdout, rotating)
	}
	log.SetOutput(out)
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

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
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

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.DefaultTTL)
		stopFuncs = append(stopFuncs, cancel)
	}

	// The platform revenue account must exist before any settlement runs
	if err := ensurePlatformEntities(db, cfg); err != nil {
		return nil, err
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db)
	filmRepo := repository.NewFilmRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	grantRepo := repository.NewFilmAccessGrantRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Initialize gateway clients
	stripeClient := services.NewStripeClient(cfg.Stripe)
	paypalClient := services.NewPaypalClient(cfg.Paypal)

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Settlement engine shared by all payment flows
	settlement := businessflow.NewSettlementEngine(
		customerRepo,
		filmRepo,
		walletRepo,
		transactionRepo,
		grantRepo,
	)

	// Initialize flows
	purchaseFlow := businessflow.NewPurchaseFlow(
		customerRepo,
		filmRepo,
		walletRepo,
		transactionRepo,
		grantRepo,
		auditRepo,
		settlement,
		db,
	)

	walletFlow := businessflow.NewWalletFlow(
		customerRepo,
		walletRepo,
		transactionRepo,
		auditRepo,
		db,
	)

	paypalFlow := businessflow.NewPaypalPaymentFlow(
		customerRepo,
		filmRepo,
		transactionRepo,
		auditRepo,
		paypalClient,
		settlement,
		db,
	)

	stripeFlow := businessflow.NewStripePaymentFlow(
		customerRepo,
		filmRepo,
		walletRepo,
		transactionRepo,
		grantRepo,
		auditRepo,
		stripeClient,
		settlement,
		rc,
		cfg,
		db,
	)

	// Initialize handlers
	filmPaymentHandler := handlers.NewFilmPaymentHandler(purchaseFlow)
	walletHandler := handlers.NewWalletHandler(walletFlow)
	paypalHandler := handlers.NewPaypalPaymentHandler(paypalFlow)
	stripeHandler := handlers.NewStripePaymentHandler(stripeFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(
		filmPaymentHandler,
		walletHandler,
		paypalHandler,
		stripeHandler,
		authMiddleware,
		cfg,
	)

	if cfg.Scheduler.GrantSweepEnabled {
		sweeper := scheduler.NewGrantSweeper(grantRepo, auditRepo, log.Default(), cfg.Scheduler.GrantSweepInterval)
		stopSweeper := sweeper.Start(context.Background())
		stopFuncs = append(stopFuncs, stopSweeper)
	}

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

// ensurePlatformEntities creates the platform revenue customer and its
// wallet when they do not exist yet. Settlement credits the remainder
// share here on every sale.
func ensurePlatformEntities(db *gorm.DB, cfg *config.ProductionConfig) error {
	customerRepo := repository.NewCustomerRepository(db)
	walletRepo := repository.NewWalletRepository(db)

	if cfg.System.PlatformUserUUID == "" {
		return fmt.Errorf("PLATFORM_USER_UUID is required")
	}

	parsed, err := uuid.Parse(cfg.System.PlatformUserUUID)
	if err != nil {
		return err
	}

	customers, err := customerRepo.ByFilter(context.Background(), models.CustomerFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return err
	}

	var platform models.Customer
	if len(customers) > 0 {
		platform = *customers[0]
	} else {
		platform = models.Customer{
			UUID:         parsed,
			Email:        cfg.System.PlatformEmail,
			PasswordHash: "", // not a login account
			IsPlatform:   utils.ToPtr(true),
			IsActive:     utils.ToPtr(true),
			CreatedAt:    utils.UTCNow(),
			UpdatedAt:    utils.UTCNow(),
		}
		if err := customerRepo.Save(context.Background(), &platform); err != nil {
			return err
		}
	}

	if cfg.System.PlatformWalletUUID == "" {
		return nil
	}

	wallet, err := walletRepo.ByUUID(context.Background(), cfg.System.PlatformWalletUUID)
	if err != nil {
		return err
	}
	if wallet != nil {
		return nil
	}

	return walletRepo.Save(context.Background(), &models.Wallet{
		UUID:       uuid.MustParse(cfg.System.PlatformWalletUUID),
		CustomerID: platform.ID,
		Metadata:   map[string]any{"type": "platform_wallet", "owner": "platform"},
	})
}
