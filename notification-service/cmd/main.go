package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opsuite/notification-service/internal/config"
	"opsuite/notification-service/internal/delivery"
	"opsuite/notification-service/internal/handler"
	"opsuite/notification-service/internal/repository"
	"opsuite/notification-service/internal/services"
	"opsuite/pkg/authclient"
	"opsuite/pkg/cache"
	"opsuite/pkg/logger"
	"opsuite/pkg/mongodb"
	"opsuite/pkg/notify"
	"opsuite/pkg/shutdown"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	log := logger.MustNew(cfg.LogLevel, cfg.LogFormat, "notification-service")
	defer log.Sync()

	ctx, shutdownManager := shutdown.NewManager(context.Background(), log)
	shutdownManager.StartListening()

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoDB)
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	shutdownManager.Register("mongo", mongoClient.Disconnect)

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	shutdownManager.Register("redis", func(context.Context) error { return rdb.Close() })

	db := mongoClient.Database(cfg.MongoDB.DBName)
	repo := repository.NewNotificationRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.Fatal("failed to create indexes", zap.Error(err))
	}
	devices := repository.NewDeviceRepository(db)
	if err := devices.EnsureIndexes(ctx); err != nil {
		log.Fatal("failed to create device indexes", zap.Error(err))
	}

	channels := map[string]services.Deliverer{}
	if cfg.SMTP.Host != "" {
		channels[notify.DeliveryEmail] = delivery.NewEmail(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
	}
	if cfg.Twilio.AccountSID != "" {
		channels[notify.DeliverySMS] = delivery.NewSMS(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From)
	}
	if cfg.FirebaseCredentials != "" {
		push, err := delivery.NewPush(ctx, cfg.FirebaseCredentials)
		if err != nil {
			log.Fatal("failed to init FCM", zap.Error(err))
		}
		channels[notify.DeliveryPush] = push
	}

	notificationService := services.NewNotificationService(repo, devices, channels, log)
	go services.Subscribe(ctx, rdb, notificationService, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.RegisterRoutes(router, handler.NewNotificationHandler(notificationService),
		authclient.New(cfg.AuthServiceURL), cfg.InternalToken)

	server := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("notification service running", zap.String("addr", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()
	shutdownManager.Register("http", server.Shutdown)

	shutdownManager.Wait()
}
