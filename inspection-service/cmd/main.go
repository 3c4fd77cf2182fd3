package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opsuite/inspection-service/internal/config"
	"opsuite/inspection-service/internal/handler"
	"opsuite/inspection-service/internal/repository"
	"opsuite/inspection-service/internal/services"
	"opsuite/pkg/authclient"
	"opsuite/pkg/cache"
	"opsuite/pkg/logger"
	"opsuite/pkg/mongodb"
	"opsuite/pkg/notify"
	"opsuite/pkg/shutdown"
	"opsuite/pkg/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	log := logger.MustNew(cfg.LogLevel, cfg.LogFormat, "inspection-service")
	defer log.Sync()

	ctx, shutdownManager := shutdown.NewManager(context.Background(), log)
	shutdownManager.StartListening()

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoDB)
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	db := mongoClient.Database(cfg.MongoDB.DBName)
	shutdownManager.Register("mongo", mongoClient.Disconnect)

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	shutdownManager.Register("redis", func(context.Context) error { return rdb.Close() })

	store, err := storage.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("failed to connect to MinIO", zap.Error(err))
	}

	repo := repository.NewInspectionRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.Fatal("failed to create indexes", zap.Error(err))
	}

	sender := notify.Async{Sender: notify.NewClient(cfg.NotificationServiceURL, cfg.InternalToken), Log: log}
	inspectionService := services.NewInspectionService(
		repo,
		store,
		cache.NewRedisCache(rdb),
		sender,
		notify.NewRedisPublisher(rdb),
		log,
	)

	services.NewCacheRefresher(inspectionService, repo, log).Start(ctx)
	services.NewCronJobService(repo, sender, log).Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.RegisterRoutes(router, handler.NewInspectionHandler(inspectionService), authclient.New(cfg.AuthServiceURL), cfg.InternalToken)

	server := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("inspection service running", zap.String("addr", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()
	shutdownManager.Register("http", server.Shutdown)

	shutdownManager.Wait()
}
