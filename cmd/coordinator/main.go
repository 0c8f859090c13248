package main

import (
	"context"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"vroom/internal/core/ports"
	"vroom/internal/core/services"
	httphandlers "vroom/internal/handlers/http"
	"vroom/internal/infrastructure/backup"
	"vroom/internal/infrastructure/distributed"
	"vroom/internal/infrastructure/middleware"
	"vroom/internal/infrastructure/monitoring"
	"vroom/internal/infrastructure/repositories/memory"
	redisrepo "vroom/internal/infrastructure/repositories/redis"
	"vroom/internal/infrastructure/signal"
	"vroom/pkg/config"
	"vroom/pkg/logger"
	"vroom/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redislib "github.com/redis/go-redis/v9"
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/vroom/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "vroom",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warnw("tracer shutdown failed", "error", err)
		}
	}()

	// Repositories: in-process by default, Redis for multi-instance
	// deployments.
	var (
		roomRepo        ports.RoomRepository
		participantRepo ports.ParticipantRepository
		assetRepo       ports.AssetRepository
		livestreamRepo  ports.LivestreamRepository
		redisClient     *redislib.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisrepo.Connect(rootCtx, cfg, log)
		if err != nil {
			log.Fatalw("failed to connect to redis", "address", cfg.Redis.Address, "error", err)
		}
		defer redisClient.Close()

		roomRepo = redisrepo.NewRedisRoomRepository(redisClient)
		participantRepo = redisrepo.NewRedisParticipantRepository(redisClient)
		assetRepo = redisrepo.NewRedisAssetRepository(redisClient)
		livestreamRepo = redisrepo.NewRedisLivestreamRepository(redisClient)
		log.Infow("using redis repositories", "address", cfg.Redis.Address)
	} else {
		roomRepo = memory.NewMemoryRoomRepository()
		participantRepo = memory.NewMemoryParticipantRepository()
		assetRepo = memory.NewMemoryAssetRepository()
		livestreamRepo = memory.NewMemoryLivestreamRepository()
		log.Info("using in-memory repositories")
	}

	registry := signal.NewRegistry(participantRepo, cfg.Channel.WriteTimeout, log)

	// With Redis enabled, events for users connected to other instances are
	// relayed over pub/sub.
	var notifier ports.Notifier = registry
	if cfg.Redis.Enabled {
		instanceID := uuid.New().String()
		bus := distributed.NewEventBus(redisClient, instanceID, log)
		defer bus.Close()

		relay := distributed.NewRelayNotifier(registry, bus, log)
		go relay.Start(rootCtx)
		notifier = relay
		log.Infow("cross-instance event relay enabled", "instance_id", instanceID)
	}

	// Snapshot-based persistence for room and asset state. With Redis
	// enabled the repositories are already durable, so this mostly serves
	// single-instance in-memory deployments.
	if cfg.Backup.Enabled {
		store, err := backup.NewStore(cfg.Backup.Directory)
		if err != nil {
			log.Fatalw("failed to open snapshot store", "directory", cfg.Backup.Directory, "error", err)
		}

		restorer := backup.NewRestorer(store, roomRepo, assetRepo, log)
		if err := restorer.RestoreLatest(rootCtx); err != nil {
			log.Errorw("failed to restore snapshot", "error", err)
		}

		scheduler := backup.NewScheduler(store, roomRepo, assetRepo, backup.SchedulerConfig{
			Interval:     cfg.Backup.Interval,
			MaxSnapshots: cfg.Backup.MaxSnapshots,
		}, log)
		go scheduler.Start(rootCtx)
		defer scheduler.Stop()
	}

	metricsService := services.NewMetricsService()

	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
		metricsService.SetCollector(collector)
	}

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	roomService := services.NewRoomService(
		roomRepo, participantRepo, assetRepo, livestreamRepo,
		notifier, metricsService,
		services.RoomLimits{
			DefaultCapacity: cfg.Rooms.DefaultCapacity,
			MaxCapacity:     cfg.Rooms.MaxCapacity,
		},
		log,
	)
	cachedRooms := services.NewCachedRoomService(roomService, 30*time.Second, 5*time.Second)
	defer cachedRooms.Stop()

	presenceService := services.NewPresenceService(participantRepo, notifier, metricsService, log)
	assetService := services.NewAssetService(assetRepo, participantRepo, roomRepo, notifier, metricsService, log)
	livestreamService := services.NewLivestreamService(livestreamRepo, roomRepo, participantRepo, notifier, metricsService, log)

	hub := signal.NewHub(
		registry,
		authService,
		cachedRooms,
		presenceService,
		assetService,
		livestreamService,
		signal.HubOptions{
			PingInterval:      cfg.Channel.PingInterval,
			PongTimeout:       cfg.Channel.PongTimeout,
			MaxMessageBytes:   cfg.Channel.MaxMessageBytes,
			RateLimitEnabled:  cfg.RateLimiting.Enabled,
			MessagesPerSecond: cfg.RateLimiting.Channel.MessagesPerSecond,
			Burst:             cfg.RateLimiting.Channel.Burst,
		},
		log,
	)
	if collector != nil {
		hub.SetMetrics(collector)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL)
	authHandler.SetupRoutes(router)

	authRequired := middleware.AuthMiddleware(authService)
	authOptional := middleware.OptionalAuthMiddleware(authService)
	httphandlers.NewRoomHandler(cachedRooms, metricsService).SetupRoutes(router, authRequired, authOptional)
	httphandlers.NewAssetHandler(assetService).SetupRoutes(router, authRequired)
	httphandlers.NewLivestreamHandler(livestreamService, cfg).SetupRoutes(router, authRequired)

	router.GET("/channel", func(c *gin.Context) {
		hub.HandleChannel(c.Writer, c.Request)
	})

	health := monitoring.NewHealthChecker(2 * time.Second)
	health.SetConnectionCounter(registry.ConnectionCount)
	if redisClient != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	router.GET("/health", health.Handler())

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting vroom coordinator", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	log.Info("vroom coordinator stopped")
}
