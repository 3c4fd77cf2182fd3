package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opsuite/auth-service/internal/config"
	handlers "opsuite/auth-service/internal/handler"
	repositories "opsuite/auth-service/internal/repository"
	"opsuite/auth-service/internal/services"
	"opsuite/auth-service/internal/utils"
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
	log := logger.MustNew(cfg.LogLevel, cfg.LogFormat, "auth-service")
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

	userRepo := repositories.NewUserRepository(db)
	tenantRepo := repositories.NewTenantRepository(db)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal("failed to create user indexes", zap.Error(err))
	}
	if err := tenantRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal("failed to create tenant indexes", zap.Error(err))
	}

	mailer := services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	notifier := notify.Async{Sender: notify.NewClient(cfg.NotificationServiceURL, cfg.InternalToken), Log: log}

	authService := services.NewAuthService(
		userRepo,
		tenantRepo,
		utils.NewJWTUtil(cfg.JWTSecret),
		mailer,
		services.NewGoogleAuthService(cfg.GoogleClientID),
		cache.NewRedisCache(rdb),
		notifier,
		log,
	)
	if err := authService.EnsureSuperadmin(ctx, cfg.SuperadminEmail, cfg.SuperadminPassword); err != nil {
		log.Fatal("failed to bootstrap superadmin", zap.Error(err))
	}

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

	handlers.RegisterRoutes(router, handlers.NewAuthHandler(authService), handlers.NewAdminHandler(authService), authService)

	server := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("auth service running", zap.String("addr", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()
	shutdownManager.Register("http", server.Shutdown)

	shutdownManager.Wait()
}
