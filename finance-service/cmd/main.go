package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opsuite/finance-service/internal/clients"
	"opsuite/finance-service/internal/config"
	"opsuite/finance-service/internal/handler"
	"opsuite/finance-service/internal/models"
	"opsuite/finance-service/internal/repository"
	"opsuite/finance-service/internal/services"
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
	log := logger.MustNew(cfg.LogLevel, cfg.LogFormat, "finance-service")
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

	files, err := storage.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("failed to connect to MinIO", zap.Error(err))
	}

	estimations := repository.NewCollection[models.Estimation](db, "estimations")
	quotations := repository.NewCollection[models.Quotation](db, "quotations")
	payments := repository.NewCollection[models.Payment](db, "payments")
	orders := repository.NewCollection[models.PurchaseOrder](db, "purchase_orders")
	expenses := repository.NewCollection[models.Expense](db, "expenses")

	indexes := []struct {
		name   string
		ensure func(context.Context, ...string) error
		unique []string
	}{
		{"estimations", estimations.EnsureIndexes, nil},
		{"quotations", quotations.EnsureIndexes, []string{"quotation_no"}},
		{"payments", payments.EnsureIndexes, []string{"reference"}},
		{"purchase_orders", orders.EnsureIndexes, []string{"po_number"}},
		{"expenses", expenses.EnsureIndexes, nil},
	}
	for _, idx := range indexes {
		if err := idx.ensure(ctx, idx.unique...); err != nil {
			log.Fatal("failed to create indexes", zap.String("collection", idx.name), zap.Error(err))
		}
	}

	financeService := services.NewFinanceService(
		services.Stores{
			Estimations:    estimations,
			Quotations:     quotations,
			Payments:       payments,
			PurchaseOrders: orders,
			Expenses:       expenses,
			Sequences:      repository.NewSequences(db),
		},
		files,
		cache.NewRedisCache(rdb),
		clients.NewInspectionClient(cfg.InspectionServiceURL, cfg.InternalToken),
		notify.Async{Sender: notify.NewClient(cfg.NotificationServiceURL, cfg.InternalToken), Log: log},
		notify.NewRedisPublisher(rdb),
		log,
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.RegisterRoutes(router, handler.NewFinanceHandler(financeService), authclient.New(cfg.AuthServiceURL))

	server := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("finance service running", zap.String("addr", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()
	shutdownManager.Register("http", server.Shutdown)

	shutdownManager.Wait()
}
