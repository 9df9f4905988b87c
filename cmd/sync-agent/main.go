package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-sync-agent/internal/connectivity"
	"github.com/noah-isme/sma-sync-agent/internal/geofence"
	"github.com/noah-isme/sma-sync-agent/internal/handler"
	"github.com/noah-isme/sma-sync-agent/internal/middleware"
	"github.com/noah-isme/sma-sync-agent/internal/queue"
	"github.com/noah-isme/sma-sync-agent/internal/remote"
	"github.com/noah-isme/sma-sync-agent/internal/repository"
	"github.com/noah-isme/sma-sync-agent/internal/service"
	"github.com/noah-isme/sma-sync-agent/pkg/cache"
	"github.com/noah-isme/sma-sync-agent/pkg/config"
	"github.com/noah-isme/sma-sync-agent/pkg/database"
	"github.com/noah-isme/sma-sync-agent/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-sync-agent/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-sync-agent/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	remoteStore := remote.NewPostgresStore(db)

	locationRepo := repository.NewClassLocationRepository(db)
	var resolver service.LocationResolver = locationRepo
	if cfg.Redis.Host != "" {
		redisClient, redisErr := cache.NewRedis(cfg.Redis)
		if redisErr != nil {
			logr.Sugar().Warnw("redis unavailable, location cache disabled", "error", redisErr)
		} else {
			defer redisClient.Close() //nolint:errcheck
			resolver = repository.NewCachedClassLocationRepository(locationRepo, redisClient, cfg.Redis.CacheTTL, logr)
		}
	}

	store, err := queue.NewFileStore(cfg.Queue.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to open queue storage", "error", err)
	}

	metricsSvc := service.NewMetricsService()

	prober := connectivity.NewProber(remoteStore.Ping, cfg.Connectivity.ProbeInterval, cfg.Connectivity.ProbeTimeout, logr)

	syncQueue, err := queue.New(store, queue.Config{
		MaxRetries:     cfg.Queue.MaxRetries,
		DrainOnEnqueue: cfg.Queue.DrainOnEnqueue,
		IsOnline:       prober.IsOnline,
		Logger:         logr,
		OnStatusChange: metricsSvc.UpdateQueueDepth,
	})
	if err != nil {
		logr.Sugar().Fatalw("failed to restore sync queue", "error", err)
	}

	auditSvc := service.NewAuditService(remoteStore, logr)

	submissionSvc := service.NewSubmissionService(
		resolver,
		nil, // no device provider in the HTTP deployment; requests carry the fix
		prober,
		remoteStore,
		syncQueue,
		auditSvc,
		metricsSvc,
		validator.New(),
		logr,
		service.SubmissionConfig{
			Geofence: geofence.Config{
				MinAccuracyMeters:   cfg.Geofence.MinAccuracyMeters,
				MaxLocationAge:      cfg.Geofence.MaxLocationAge,
				DefaultRadiusMeters: cfg.Geofence.DefaultRadiusMeters,
			},
			DefaultLocationID: cfg.Geofence.DefaultLocationID,
			AcquireTimeout:    cfg.Location.AcquireTimeout,
			HighAccuracy:      cfg.Location.HighAccuracy,
		},
	)
	defer submissionSvc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	prober.Start(ctx)
	defer prober.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "online": prober.IsOnline()})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	attendanceHandler := handler.NewAttendanceHandler(submissionSvc)
	syncHandler := handler.NewSyncHandler(submissionSvc)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		api.POST("/attendance/submit", attendanceHandler.Submit)
		api.GET("/sync/status", syncHandler.Status)
		api.GET("/sync/pending", syncHandler.Pending)
		api.POST("/sync/retry", syncHandler.Retry)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("sync agent starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
