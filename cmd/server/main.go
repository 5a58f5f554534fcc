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

	"commerce-analytics/config"
	"commerce-analytics/internal/analytics"
	"commerce-analytics/internal/api"
	"commerce-analytics/internal/broker"
	"commerce-analytics/internal/redisclient"
	"commerce-analytics/internal/service"
	"commerce-analytics/internal/store"
	"commerce-analytics/internal/util"
	"commerce-analytics/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting commerce analytics service")

	tp, err := util.InitTracer("commerce-analytics", cfg.Observ.JaegerEndpoint)
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

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	requestProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReportRequests)
	defer requestProducer.Close()
	eventProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReportEvents)
	defer eventProducer.Close()
	logger.Info("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(requestProducer, eventProducer)

	engine := analytics.NewEngine(cfg.Analytics.Engine(), util.Component("analytics"))
	reportService := service.NewReportService(engine, db, redisClient, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	requestConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReportRequests, cfg.Kafka.ConsumerGroup)
	reportWorker := worker.NewReportWorker(requestConsumer, reportService)
	go func() {
		if err := reportWorker.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Report worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(reportService, map[string]api.Pinger{
		"database": db,
		"redis":    redisClient,
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

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := reportWorker.Stop(); err != nil {
		logger.Error("Error stopping report worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
