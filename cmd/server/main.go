package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleamarket-service/config"
	"fleamarket-service/internal/api"
	"fleamarket-service/internal/broker"
	"fleamarket-service/internal/cart"
	"fleamarket-service/internal/catalog"
	"fleamarket-service/internal/idempotency"
	"fleamarket-service/internal/payment"
	"fleamarket-service/internal/redisclient"
	"fleamarket-service/internal/service"
	"fleamarket-service/internal/store"
	"fleamarket-service/internal/util"
	"fleamarket-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting fleamarket service")

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer("fleamarket-service", cfg.Observ.JaegerEndpoint, cfg.Observ.TraceSampleRatio)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	products, err := catalog.Load(cfg.Business.CatalogPath)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}
	logger.Info("Catalog loaded", zap.Int("products", len(products.Products())))

	probes := map[string]api.Pinger{}

	var orderStore store.OrderStore
	switch cfg.Database.Driver {
	case "memory":
		orderStore = store.NewMemoryStore()
		logger.Warn("Using in-memory order store, orders are lost on restart")
	default:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		orderStore = db
		probes["postgres"] = db
		logger.Info("Database connected")
	}

	var (
		sessions cart.SessionStore
		keys     idempotency.Store
	)
	if cfg.Redis.Disabled {
		sessions = cart.NewMemorySessionStore()
		keys = idempotency.NewMemoryStore()
		logger.Warn("Redis disabled, carts and idempotency keys kept in memory")
	} else {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.CartTTL())
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		sessions = redisClient
		keys = redisClient
		probes["redis"] = redisClient
		logger.Info("Redis connected")
	}

	var notifier service.Notifier
	if cfg.Kafka.Enabled() {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		notifier = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicOrder))
	}

	dispatcher := payment.NewDispatcher(orderStore, cfg.PaymentTimeout(),
		payment.NewKakaoPay(cfg.Payment.Kakao, cfg.Server.PublicBaseURL, nil),
		payment.NewTossPay(cfg.Payment.Toss, cfg.Server.PublicBaseURL),
		payment.NewBankTransfer(cfg.Payment.Bank),
		payment.Demo{},
	)
	logger.Info("Payment methods registered", zap.Strings("methods", dispatcher.Methods()))

	orderService := service.NewOrderService(orderStore, cfg.Business.Number)
	reportService := service.NewReportService(orderStore)
	checkoutService := service.NewCheckoutService(products, sessions, orderService, dispatcher, keys, notifier,
		service.CheckoutOptions{
			IdempotencyTTL:      cfg.IdempotencyTTL(),
			NotificationTimeout: cfg.NotificationTimeout(),
		})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var confirmationWorker *worker.ConfirmationWorker
	if cfg.Kafka.Enabled() {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicConfirmations, cfg.Kafka.ConsumerGroup)
		confirmationWorker = worker.NewConfirmationWorker(consumer, checkoutService)
		go func() {
			if err := confirmationWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Confirmation worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(products, orderService, checkoutService, reportService, api.Options{
		ClientBaseURL:  cfg.Server.ClientBaseURL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Probes:         probes,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if confirmationWorker != nil {
		if err := confirmationWorker.Stop(); err != nil {
			logger.Error("Error stopping confirmation worker", zap.Error(err))
		}
	}
	checkoutService.Drain()

	logger.Info("Server exited")
}
