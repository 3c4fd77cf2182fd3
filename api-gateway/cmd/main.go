package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opsuite/api-gateway/internal/config"
	"opsuite/api-gateway/internal/routes"
	"opsuite/pkg/authclient"
	"opsuite/pkg/logger"
	"opsuite/pkg/shutdown"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	log := logger.MustNew(cfg.LogLevel, cfg.LogFormat, "api-gateway")
	defer log.Sync()

	_, shutdownManager := shutdown.NewManager(context.Background(), log)
	shutdownManager.StartListening()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if err := routes.Register(r, routes.Table(cfg.Services), authclient.New(cfg.Services.Auth), log); err != nil {
		log.Fatal("invalid route table", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("api gateway listening", zap.String("addr", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to run API gateway", zap.Error(err))
		}
	}()
	shutdownManager.Register("http", srv.Shutdown)

	shutdownManager.Wait()
}
