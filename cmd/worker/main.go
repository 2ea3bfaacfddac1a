package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	contracts "propel/contracts/mq"
	"propel/internal/config"
	"propel/internal/mqhandler"
	"propel/internal/notify"
	pkglogger "propel/pkg/logger"
	"propel/pkg/mq"
	"propel/pkg/otel"
	redisclient "propel/pkg/redis"
	"propel/pkg/util"
)

var version = "dev"

// queueName is the durable queue bound to routingKey.
func queueName(routingKey string) string {
	return routingKey + ".notify.q"
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := pkglogger.NewLoggerWithLevel(cfg.Log.Level)
	defer log.Sync()

	log.Info("Starting worker service...")

	shutdownOtel, err := otel.Init(cfg.Otel, version, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownOtel()

	rdb, err := redisclient.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, cfg.Worker.DedupTTL, log)
	retries := util.NewRetryCounter(rdb, cfg.Worker.RetryTTL)
	mailer, err := notify.NewMailer(cfg.Mail, log)
	if err != nil {
		log.Fatal("Mailer initialization failed", zap.Error(err))
	}
	handlers := mqhandler.NewNotificationHandler(mailer, deduper, log).Handlers()

	topology := mq.TopologyFromConfig(cfg.MQ)
	var consumers []*mq.Consumer
	for _, routingKey := range contracts.RoutingKeys {
		queue := queueName(routingKey)
		log.Info("Initializing MQ consumer", zap.String("routing_key", routingKey), zap.String("queue", queue))

		consumer, err := mq.NewConsumer(cfg.MQ.URL, queue, routingKey, topology, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.String("routing_key", routingKey), zap.Error(err))
		}
		consumer.WithRetryTracker(retries, cfg.MQ.MaxRetries)
		consumer.SetHandler(handlers[routingKey])
		consumers = append(consumers, consumer)

		go func(c *mq.Consumer, key string) {
			if err := c.StartConsuming(); err != nil {
				log.Fatal("Consumer failed", zap.String("routing_key", key), zap.Error(err))
			}
		}(consumer, routingKey)
	}

	log.Info("All consumers started, worker is ready to process messages", zap.Int("consumers", len(consumers)))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Stopping MQ consumers...")
	for _, c := range consumers {
		c.Close()
	}
	log.Info("worker shutdown complete")
}
