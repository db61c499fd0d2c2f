package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	escrowapp "github.com/peertrade/backend/internal/application/escrow"
	ledgerapp "github.com/peertrade/backend/internal/application/ledger"
	merchantapp "github.com/peertrade/backend/internal/application/merchant"
	withdrawalapp "github.com/peertrade/backend/internal/application/withdrawal"
	"github.com/peertrade/backend/internal/infrastructure/cache"
	"github.com/peertrade/backend/internal/infrastructure/config"
	"github.com/peertrade/backend/internal/infrastructure/event"
	"github.com/peertrade/backend/internal/infrastructure/logger"
	"github.com/peertrade/backend/internal/infrastructure/persistence"
	"github.com/peertrade/backend/internal/infrastructure/scheduler"
	"github.com/peertrade/backend/internal/interfaces/http/handler"
	"github.com/peertrade/backend/internal/interfaces/http/middleware"
	"github.com/peertrade/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const sweepLeaderLockKey = "peertrade:sweep:leader"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting PeerTrade Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection with a zap-backed GORM logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Parse decimal and UUID settings up front so misconfiguration fails fast
	initialBalance, err := decimal.NewFromString(cfg.Ledger.InitialBalance)
	if err != nil {
		log.Fatal("Invalid ledger.initial_balance", zap.Error(err))
	}
	feePercent, err := decimal.NewFromString(cfg.Escrow.FeePercent)
	if err != nil {
		log.Fatal("Invalid escrow.fee_percent", zap.Error(err))
	}
	minWithdrawal, err := decimal.NewFromString(cfg.Withdrawal.MinAmount)
	if err != nil {
		log.Fatal("Invalid withdrawal.min_amount", zap.Error(err))
	}
	var platformUserID uuid.UUID
	if cfg.Escrow.PlatformUserID != "" {
		platformUserID, err = uuid.Parse(cfg.Escrow.PlatformUserID)
		if err != nil {
			log.Fatal("Invalid escrow.platform_user_id", zap.Error(err))
		}
	}

	// Ledger engine: transaction scope, reconciliation sink, wallet services
	scope := persistence.NewGormTransactionScope(db.DB)
	failureSink := persistence.NewGormFailureSink(db.DB, log)
	ledgerService := ledgerapp.NewService(scope, failureSink, log, ledgerapp.Config{
		MaxRetries:            cfg.Ledger.MaxRetries,
		RetryBackoff:          cfg.Ledger.RetryBackoff,
		DefaultInitialBalance: initialBalance,
		DefaultCurrency:       cfg.Ledger.DefaultCurrency,
	})

	// Event bus for balance-change notifications
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Domain engines composed on the ledger
	escrowService := escrowapp.NewService(ledgerService, eventBus, log, escrowapp.Config{
		OrderExpiration: cfg.Escrow.OrderExpiration,
		FeePercent:      feePercent,
		PlatformUserID:  platformUserID,
	})
	merchantService := merchantapp.NewService(ledgerService, log)
	withdrawalService := withdrawalapp.NewService(ledgerService, log)
	withdrawalService.SetMinAmount(minWithdrawal)

	// Order expiry sweep, gated by a Redis leader lock so only one instance
	// sweeps per interval
	expirationService := escrowapp.NewExpirationService(escrowService, log)
	var sweepScheduler *scheduler.SweepScheduler
	if cfg.Sweep.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()
		leaderLock := cache.NewRedisLeaderLock(redisClient, sweepLeaderLockKey, cfg.Sweep.LeaderLockTTL)

		sweepConfig := scheduler.DefaultSweepSchedulerConfig()
		sweepConfig.Enabled = true
		sweepConfig.Interval = cfg.Sweep.Interval
		sweepScheduler = scheduler.NewSweepScheduler(sweepConfig, expirationService, leaderLock, log)
		if err := sweepScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sweep scheduler", zap.Error(err))
		}
		defer func() {
			if err := sweepScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping sweep scheduler", zap.Error(err))
			}
		}()
		log.Info("Sweep scheduler started", zap.Duration("interval", cfg.Sweep.Interval))
	}

	// Initialize HTTP handlers
	walletHandler := handler.NewWalletHandler(ledgerService)
	escrowHandler := handler.NewEscrowHandler(escrowService)
	merchantHandler := handler.NewMerchantHandler(merchantService)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalService)
	systemHandler := handler.NewSystemHandler(sweepScheduler)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS())
	engine.Use(middleware.BodyLimit(1 << 20))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Wallet domain (balances, ledger history, deposits)
	walletRoutes := router.NewDomainGroup("wallet", "/wallet")
	walletRoutes.GET("", walletHandler.GetWallet)
	walletRoutes.GET("/history", walletHandler.GetHistory)
	walletRoutes.POST("/deposit", walletHandler.Deposit)

	// Escrow domain (orders and the trade state machine)
	orderRoutes := router.NewDomainGroup("escrow", "/orders")
	orderRoutes.POST("", escrowHandler.Create)
	orderRoutes.GET("", escrowHandler.List)
	orderRoutes.GET("/:id", escrowHandler.GetByID)
	orderRoutes.POST("/:id/pay", escrowHandler.MarkPaid)
	orderRoutes.POST("/:id/release", escrowHandler.Release)
	orderRoutes.POST("/:id/dispute", escrowHandler.Dispute)
	orderRoutes.POST("/:id/cancel", escrowHandler.Cancel)
	orderRoutes.POST("/:id/messages", escrowHandler.PostMessage)

	// Merchant domain (profiles and liquidity ads)
	merchantRoutes := router.NewDomainGroup("merchant", "/merchant")
	merchantRoutes.GET("/profile", merchantHandler.GetProfile)
	merchantRoutes.POST("/activate", merchantHandler.Activate)
	merchantRoutes.POST("/deactivate", merchantHandler.Deactivate)
	merchantRoutes.POST("/ads", merchantHandler.CreateAd)
	merchantRoutes.POST("/ads/:id/disable", merchantHandler.DisableAd)

	// Public ad book
	adRoutes := router.NewDomainGroup("ads", "/ads")
	adRoutes.GET("", merchantHandler.ListAds)

	// Withdrawal domain
	withdrawalRoutes := router.NewDomainGroup("withdrawal", "/withdrawals")
	withdrawalRoutes.POST("", withdrawalHandler.Create)
	withdrawalRoutes.GET("", withdrawalHandler.List)
	withdrawalRoutes.GET("/:id", withdrawalHandler.GetByID)

	// Admin operations. The gateway restricts these routes to operators.
	adminRoutes := router.NewDomainGroup("admin", "/admin")
	adminRoutes.POST("/wallets/:user_id/adjust", walletHandler.AdminAdjust)
	adminRoutes.POST("/withdrawals/:id/process", withdrawalHandler.Process)
	adminRoutes.POST("/ads/cleanup-demo", merchantHandler.CleanupDemoAds)
	adminRoutes.GET("/sweep/status", systemHandler.GetSweepStatus)
	adminRoutes.POST("/sweep/trigger", systemHandler.TriggerSweep)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(walletRoutes).
		Register(orderRoutes).
		Register(merchantRoutes).
		Register(adRoutes).
		Register(withdrawalRoutes).
		Register(adminRoutes).
		Register(systemRoutes)

	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
