package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-sync/backend/internal/cache"
	"task-sync/backend/internal/config"
	"task-sync/backend/internal/engine"
	"task-sync/backend/internal/handlers"
	"task-sync/backend/internal/middleware"
	"task-sync/backend/internal/monitoring"
	"task-sync/backend/internal/queue"
	"task-sync/backend/internal/remote"
	"task-sync/backend/internal/repositories"
	"task-sync/backend/internal/services"
	"task-sync/backend/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := repositories.Open(repositories.FromConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := repositories.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	redisCache := cache.NewRedisCache(&cache.CacheConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	defer redisCache.Close()

	// Sync core.
	opQueue := queue.New(db, cfg.Sync.RetryCeiling)
	taskStore := services.NewSyncTaskStore(db)
	exchange := remote.NewExchange(db)

	var exchangeClient engine.Exchange
	if cfg.Sync.RemoteEndpoint != "" {
		exchangeClient = remote.NewClient(cfg.Sync.RemoteEndpoint, cfg.Sync.ConnectivityTimeout)
	} else {
		// One process plays both protocol roles; the engine still only
		// sees the wire contract.
		exchangeClient = remote.NewLocalExchange(exchange)
	}

	syncEngine := engine.New(engine.Config{
		BatchSize:           cfg.Sync.BatchSize,
		RemoteEndpoint:      cfg.Sync.RemoteEndpoint,
		RetryCeiling:        cfg.Sync.RetryCeiling,
		ConnectivityTimeout: cfg.Sync.ConnectivityTimeout,
	}, taskStore, opQueue, exchangeClient)

	// Services and handlers.
	taskService := services.NewTaskService(opQueue)
	cachedTasks := services.NewCachedTaskService(taskService, redisCache)
	authService := services.NewAuthService()

	taskHandler := handlers.NewTaskHandler(db, cachedTasks)
	syncHandler := handlers.NewSyncHandler(syncEngine, exchange, cachedTasks)
	authHandler := handlers.NewAuthHandler(db, authService)
	registerHandler := handlers.NewRegisterHandler(db, services.NewRegisterService())
	refreshHandler := handlers.NewRefreshHandler(db, authService)
	logoutHandler := handlers.NewLogoutHandler(db, authService)

	// Background sync: a scheduler ticks sync-cycle jobs onto redis, the
	// worker drains them through the engine.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	jobQueue := worker.NewJobQueue(redisClient)
	syncWorker := worker.NewWorker(worker.WorkerConfig{
		RedisClient: redisClient,
		Queues:      cfg.Worker.Queues,
	})
	syncWorker.RegisterHandler(worker.JobTypeSyncCycle, func(ctx context.Context, job *worker.Job) error {
		report, err := syncEngine.RunCycle(ctx)
		if err != nil {
			return err
		}
		cachedTasks.InvalidateAll()
		if !report.Success {
			log.Printf("Background sync cycle had %d failures", report.FailedItems)
		}
		return nil
	})
	syncWorker.Start(cfg.Worker.Concurrency)
	defer syncWorker.Stop()

	scheduler := worker.NewScheduler(jobQueue, cfg.Sync.Interval)
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	// Health probes.
	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
		return redisCache.Health()
	})
	monitoring.RegisterHealthCheck("remote", func(ctx context.Context) error {
		return exchangeClient.Ping(ctx)
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryWithLog())
	router.Use(monitoring.MetricsMiddleware())
	router.Use(cors.Default())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimitMiddleware(middleware.RateLimiterConfig{
			RequestsPerMin:  cfg.RateLimit.RequestsPerMin,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		}))
	}

	router.GET("/health", monitoring.HealthHandler())
	router.GET("/live", monitoring.LivenessHandler())
	router.GET("/metrics", monitoring.MetricsHandler())

	router.POST("/auth/register", registerHandler.Register)
	router.POST("/auth/token", authHandler.Token)
	router.POST("/auth/refresh", refreshHandler.Refresh)
	router.POST("/auth/logout", logoutHandler.Logout)

	router.POST("/sync", syncHandler.TriggerSync)
	router.POST("/batch", syncHandler.ProcessBatch)
	router.GET("/status", syncHandler.GetStatus)

	authorized := router.Group("/", middleware.AuthzMiddleware())
	{
		authorized.POST("/tasks", taskHandler.CreateTask)
		authorized.GET("/tasks", taskHandler.GetTasks)
		authorized.GET("/tasks/:id", taskHandler.GetTaskByID)
		authorized.PUT("/tasks/:id", taskHandler.UpdateTask)
		authorized.DELETE("/tasks/:id", taskHandler.DeleteTask)
		authorized.GET("/users/:user_id/tasks", taskHandler.GetTasksByUser)
	}

	server := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.GetServerAddr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
