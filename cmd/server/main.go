package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-sync/config"
	"storefront-sync/internal/api"
	"storefront-sync/internal/breaker"
	"storefront-sync/internal/broker"
	"storefront-sync/internal/cache"
	"storefront-sync/internal/contentful"
	"storefront-sync/internal/models"
	"storefront-sync/internal/queue"
	"storefront-sync/internal/redisclient"
	"storefront-sync/internal/service"
	"storefront-sync/internal/shopify"
	"storefront-sync/internal/store"
	"storefront-sync/internal/util"
	"storefront-sync/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront sync service")

	tp, err := util.InitTracer(util.TracerConfig{
		JaegerEndpoint: cfg.Observ.JaegerEndpoint,
		Environment:    cfg.Server.Env,
		SampleRatio:    cfg.Observ.TraceSampleRatio,
	})
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

	metrics := util.NewMetrics(prometheus.DefaultRegisterer)

	reporter, err := util.NewSentryReporter(cfg.Observ.SentryDSN, cfg.Server.Env, metrics, logger)
	if err != nil {
		logger.Fatal("Failed to initialize error reporter", zap.Error(err))
	}
	defer reporter.Flush(2 * time.Second)

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	var cacheStore cache.Store = cache.NewRedisStore(redisClient, util.Component("cache"))
	if cfg.Cache.Backend == "memory" {
		mem, err := cache.NewMemoryStore(cfg.Cache.MemorySize)
		if err != nil {
			logger.Fatal("Failed to create memory cache", zap.Error(err))
		}
		cacheStore = mem
	}

	breakers := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Window:           cfg.Breaker.Window,
		Cooldown:         cfg.Breaker.Cooldown,
	}, util.Component("breaker"), metrics)
	breakers.Register(service.Operations...)

	remote := shopify.NewClient(shopify.Config{
		Endpoint:    cfg.Shopify.GraphQLURL,
		AccessToken: cfg.Shopify.AccessToken,
		Timeout:     cfg.Shopify.Timeout,
		Retry: shopify.RetryPolicy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			Factor:       cfg.Retry.Factor,
		},
	}, reporter, metrics, util.Component("shopify"))

	var content service.ContentStore = contentful.NopStore{}
	if cfg.Contentful.Enabled() {
		content = contentful.NewClient(contentful.Config{
			BaseURL:     cfg.Contentful.BaseURL,
			SpaceID:     cfg.Contentful.SpaceID,
			Environment: cfg.Contentful.Environment,
			AccessToken: cfg.Contentful.AccessToken,
			ContentType: cfg.Contentful.ContentType,
			Locale:      cfg.Contentful.Locale,
		}, util.Component("contentful"))
	} else {
		logger.Warn("Contentful is not configured, content sync disabled")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicJobs, util.Component("producer"))
	defer producer.Close()
	logger.Info("Kafka producer initialized")

	policy := models.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.Queue.RetryAttempts
	policy.Backoff = cfg.Queue.RetryDelay
	jobQueue := queue.New(producer, policy, metrics, util.Component("queue"))

	catalog := service.NewCatalogService(remote, cacheStore, breakers, content, service.Options{
		TTL:      cfg.Cache.TTL,
		Metrics:  metrics,
		Reporter: reporter,
		Logger:   util.Component("catalog"),
	})

	processorCfg := service.DefaultProcessorConfig()
	processorCfg.AdminEmail = cfg.AdminEmail
	webhooks := service.NewWebhookProcessor(catalog, jobQueue, redisClient, processorCfg)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	jobConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicJobs, cfg.Kafka.ConsumerGroup, util.Component("consumer"))
	jobWorker := worker.NewJobWorker(jobConsumer, db, metrics, util.Component("worker"))
	go func() {
		if err := jobWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Job worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(catalog, webhooks, api.Options{
		WebhookSecret: cfg.Shopify.WebhookSecret,
		FailedJobs:    db,
		Reports:       jobQueue,
		Breakers:      breakers,
		Dependencies: map[string]api.Pinger{
			"redis":    redisClient,
			"postgres": db,
		},
		Metrics: metrics,
		Logger:  util.Component("api"),
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
	if err := jobWorker.Stop(); err != nil {
		logger.Error("Failed to stop job worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
