package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propel/internal/config"
	"propel/internal/handler"
	"propel/internal/httpserver"
	"propel/internal/payment"
	"propel/internal/repository"
	"propel/internal/service"
	"propel/internal/util"
	"propel/pkg/circuitbreaker"
	pkgdb "propel/pkg/db"
	pkglogger "propel/pkg/logger"
	"propel/pkg/mq"
	"propel/pkg/otel"
	"propel/pkg/outbox"
	redisclient "propel/pkg/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := pkglogger.NewLoggerWithLevel(cfg.Log.Level)
	defer log.Sync()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	shutdownOtel, err := otel.Init(cfg.Otel, version, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownOtel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("Initializing database connection...")
	pool, err := pkgdb.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer pool.Close()

	log.Info("Initializing Redis connection...", zap.String("addr", cfg.Redis.Addr))
	rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	log.Info("Initializing MQ publisher...")
	publisher, err := mq.NewPublisher(cfg.MQ.URL, mq.TopologyFromConfig(cfg.MQ))
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	store := repository.NewStore(pool, log)

	breaker := circuitbreaker.NewCircuitBreaker(cfg.Payment.Breaker)
	gateway := payment.NewGuarded(
		payment.NewMockGateway(payment.NewRedisIntentStore(rdb, cfg.Payment.IntentTTL), log),
		breaker,
		cfg.Payment.Timeout,
		log,
	)

	authService := service.NewAuthService(store, store.Users, util.NewPasswordHasher(cfg.Auth.BcryptCost), cfg.JWT.Secret, cfg.JWT.TTL, log)
	donationService := service.NewDonationService(store, store.Projects, store.Donations, store.Users, gateway, log, cfg.Donation.PersistRetries)
	projectService := service.NewProjectService(store, store.Projects, log)
	userService := service.NewUserService(store.Users, store.Projects, log)
	commentService := service.NewCommentService(store.Comments, store.Projects, log)
	replayService := outbox.NewReplayService(store.Outbox, publisher, log)

	dispatcher := outbox.NewDispatcher(store.Outbox, publisher, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	go dispatcher.Start(ctx)

	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:      handler.NewAuthHandler(authService, log),
		Donations: handler.NewDonationHandler(donationService, log),
		Projects:  handler.NewProjectHandler(projectService, log),
		Users:     handler.NewUserHandler(userService, log),
		Comments:  handler.NewCommentHandler(commentService, log),
		Admin:     handler.NewAdminHandler(donationService, replayService, log),
	}, authService, []httpserver.ReadinessCheck{
		{Name: "db", Check: store.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		{Name: "mq", Check: func(context.Context) error {
			if !publisher.IsConnected() {
				return errors.New("publisher connection closed")
			}
			return nil
		}},
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down api gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("api shutdown complete")
}
