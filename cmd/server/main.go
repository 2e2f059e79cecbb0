package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	catalogapp "github.com/petshop/backend/internal/application/catalog"
	syncapp "github.com/petshop/backend/internal/application/sync"
	"github.com/petshop/backend/internal/infrastructure/cache"
	"github.com/petshop/backend/internal/infrastructure/config"
	"github.com/petshop/backend/internal/infrastructure/connector"
	"github.com/petshop/backend/internal/infrastructure/logger"
	"github.com/petshop/backend/internal/infrastructure/persistence"
	"github.com/petshop/backend/internal/infrastructure/scheduler"
	"github.com/petshop/backend/internal/interfaces/http/handler"
	"github.com/petshop/backend/internal/interfaces/http/middleware"
	"github.com/petshop/backend/internal/interfaces/http/router"
)

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
		_ = log.Sync()
	}()

	log.Info("Starting Petshop Catalog Sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	externalRefRepo := persistence.NewGormProductExternalRefRepository(db.DB)
	changeLogRepo := persistence.NewGormChangeLogRepository(db.DB)
	priceHistoryRepo := persistence.NewGormPriceHistoryRepository(db.DB)
	sourceRepo := persistence.NewGormSourceRepository(db.DB)
	jobRepo := persistence.NewGormSyncJobRepository(db.DB)
	jobItemRepo := persistence.NewGormSyncJobItemRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Source lock keeps one active job per source. The Redis backend extends
	// the guarantee across replicas.
	var sourceLock syncapp.SourceLock
	switch cfg.Sync.LockBackend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		redisLock, err := cache.NewRedisSourceLock(redisClient)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		sourceLock = redisLock
		log.Info("Source lock backend: redis", zap.String("addr", cfg.Redis.Addr()))
	default:
		sourceLock = cache.NewInMemorySourceLock()
		log.Info("Source lock backend: memory")
	}

	// Connector registry with all built-in connector implementations
	registry := connector.NewDefaultRegistry(log)

	// Initialize application services
	engine := syncapp.NewReconcileEngine(txScope, productRepo, externalRefRepo, jobRepo, log, cfg.Sync.PageSize)
	syncService := syncapp.NewSyncService(
		sourceRepo, jobRepo, jobItemRepo,
		sourceLock, registry, engine,
		log, cfg.Sync.JobTimeout,
	)
	syncService.SetLockTTL(cfg.Sync.LockTTL)
	sourceService := syncapp.NewSourceService(sourceRepo, registry, scheduler.ValidateSchedule, log)
	auditService := catalogapp.NewAuditService(productRepo, changeLogRepo, priceHistoryRepo, log)

	// Scheduled trigger for sources with a cron schedule
	if cfg.Scheduler.Enabled {
		trigger := scheduler.NewCronTrigger(scheduler.Config{
			Enabled:        cfg.Scheduler.Enabled,
			ReloadInterval: cfg.Scheduler.TickInterval,
		}, sourceRepo, syncService, log)
		if err := trigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping sync scheduler", zap.Error(err))
			}
		}()
		log.Info("Sync scheduler started", zap.Duration("reload_interval", cfg.Scheduler.TickInterval))
	}

	// Initialize HTTP handlers
	sourceHandler := handler.NewSourceHandler(sourceService)
	syncJobHandler := handler.NewSyncJobHandler(syncService, auditService)
	auditHandler := handler.NewAuditHandler(auditService)
	systemHandler := handler.NewSystemHandler(db)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	ginEngine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	ginEngine.Use(middleware.RequestID())
	ginEngine.Use(logger.Recovery(log))
	ginEngine.Use(logger.GinMiddleware(log))

	router.NewRouter(ginEngine, router.WithAPIVersion("v1")).
		Register(sourceHandler).
		Register(syncJobHandler).
		Register(auditHandler).
		Register(systemHandler).
		Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
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
