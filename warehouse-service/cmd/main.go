package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"opsuite/pkg/authclient"
	"opsuite/pkg/cache"
	"opsuite/pkg/logger"
	"opsuite/pkg/mongodb"
	"opsuite/pkg/notify"
	"opsuite/pkg/shutdown"
	"opsuite/warehouse-service/internal/config"
	"opsuite/warehouse-service/internal/handler"
	"opsuite/warehouse-service/internal/repository"
	"opsuite/warehouse-service/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	log := logger.MustNew(cfg.LogLevel, cfg.LogFormat, "warehouse-service")
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

	inventoryRepo := repository.NewInventoryRepository(db)
	warrantyRepo := repository.NewWarrantyRepository(db)
	if err := inventoryRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal("failed to create inventory indexes", zap.Error(err))
	}
	if err := warrantyRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal("failed to create warranty indexes", zap.Error(err))
	}

	events := notify.NewRedisPublisher(rdb)
	inventoryService := service.NewInventoryService(inventoryRepo, cache.NewRedisCache(rdb), events, log)
	warrantyService := service.NewWarrantyService(warrantyRepo, log)

	mailer := notify.NewClient(cfg.NotificationServiceURL, cfg.InternalToken)
	service.NewWarrantyNotifier(warrantyRepo, events, mailer, log, cfg.WarrantyCheckInterval).Start(ctx)

	router := mux.NewRouter()
	router.Use(logger.HTTPMiddleware(log))
	handler.RegisterRoutes(router,
		handler.NewInventoryHandler(inventoryService, log),
		handler.NewWarrantyHandler(warrantyService, log),
		authclient.New(cfg.AuthServiceURL),
	)

	server := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("warehouse service running", zap.String("addr", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()
	shutdownManager.Register("http", server.Shutdown)

	shutdownManager.Wait()
}
