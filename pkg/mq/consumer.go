package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"propel/pkg/metrics"
	"propel/pkg/otel"
	"propel/pkg/trace"
	"propel/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// RetryTracker counts delivery attempts per message. util.RetryCounter satisfies it.
type RetryTracker interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type deliveryAction int

const (
	actionAck deliveryAction = iota
	actionRequeue
	actionDeadLetter
)

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	topology   Topology
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger

	retries    RetryTracker
	maxRetries int64

	stopOnce sync.Once
	done     chan struct{}
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, topo Topology, logger *zap.Logger) (*Consumer, error) {
	conn, ch, err := openChannel(url, "propel-worker-"+queueName, topo)
	if err != nil {
		return nil, err
	}

	fail := func(format string, err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf(format, err)
	}

	if _, err := topo.DeclareDLQQueue(ch, routingKey); err != nil {
		return fail("failed to declare dlq queue: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail("failed to declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		routingKey,
		topo.Exchange,
		false,
		nil,
	)
	if err != nil {
		return fail("failed to bind queue: %w", err)
	}

	if err := ch.Qos(10, 0, false); err != nil {
		return fail("failed to set qos: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", topo.Exchange),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		topology:   topo,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
		maxRetries: 5,
		done:       make(chan struct{}),
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// WithRetryTracker enables bounded redelivery: after maxRetries failed attempts
// a retryable message goes to the dead letter queue instead of being requeued.
func (c *Consumer) WithRetryTracker(tracker RetryTracker, maxRetries int64) *Consumer {
	c.retries = tracker
	if maxRetries > 0 {
		c.maxRetries = maxRetries
	}
	return c
}

// IsConnected reports whether the underlying connection is open.
func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Stop cancels delivery; StartConsuming returns once in-flight messages finish.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		if c.channel != nil {
			_ = c.channel.Cancel(c.consumerTag(), false)
		}
	})
}

func (c *Consumer) Close() {
	c.Stop()
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Consumer) consumerTag() string {
	return "worker-" + c.queue.Name
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.consumerTag(),
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-c.done:
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handleDelivery(msg)
		}
	}
}

// handleDelivery guarantees every message is acked, requeued, or dead-lettered.
func (c *Consumer) handleDelivery(msg amqp091.Delivery) {
	start := time.Now()
	ctx := c.contextFromHeaders(msg.Headers)
	ctx, span := otel.MQConsumeSpan(ctx, c.routingKey, c.queue.Name)
	defer span.End()

	log := c.logger.With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
		zap.String("message_id", msg.MessageId),
	)
	if traceID := trace.FromContext(ctx); traceID != "" {
		log = log.With(zap.String(trace.TraceIDKey, traceID))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			c.settle(ctx, log, msg, actionDeadLetter, fmt.Sprintf("panic: %v", r), "panic")
		}
		metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))
	}()

	log.Debug("Received message", zap.Int("message_size", len(msg.Body)))

	err := c.handler(ctx, msg.Body)
	if err == nil {
		if c.retries != nil && msg.MessageId != "" {
			_ = c.retries.Reset(ctx, c.retryKey(msg))
		}
		c.settle(ctx, log, msg, actionAck, "", "")
		return
	}

	span.RecordError(err)
	retryable, errorType := util.IsRetryableError(err)

	var attempts int64 = 1
	if retryable && c.retries != nil && msg.MessageId != "" {
		if n, cerr := c.retries.IncrementAndGet(ctx, c.retryKey(msg)); cerr == nil {
			attempts = n
		} else {
			log.Warn("Retry counter unavailable, requeueing", zap.Error(cerr))
		}
	}

	action := nextAction(retryable, attempts, c.maxRetries)
	log.Error("Handler error",
		zap.Error(err),
		zap.String("error_type", errorType),
		zap.Int64("attempts", attempts),
		zap.Bool("retryable", retryable),
	)
	c.settle(ctx, log, msg, action, err.Error(), errorType)
}

func (c *Consumer) settle(ctx context.Context, log *zap.Logger, msg amqp091.Delivery, action deliveryAction, reason, errorType string) {
	switch action {
	case actionAck:
		if err := msg.Ack(false); err != nil {
			log.Error("Failed to ack message", zap.Error(err))
		}
	case actionRequeue:
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
	case actionDeadLetter:
		if err := publishToDLQ(ctx, c.channel, c.topology.DLQExchange, c.routingKey, msg, reason, errorType); err != nil {
			log.Error("Failed to publish to DLQ, requeueing", zap.Error(err))
			_ = msg.Nack(false, true)
			return
		}
		if err := msg.Ack(false); err != nil {
			log.Error("Failed to ack dead-lettered message", zap.Error(err))
		}
		log.Warn("Message moved to DLQ", zap.String("reason", reason))
	}
}

func (c *Consumer) retryKey(msg amqp091.Delivery) string {
	return util.FormatRetryKey(c.queue.Name, msg.MessageId)
}

func (c *Consumer) contextFromHeaders(headers amqp091.Table) context.Context {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), otel.NewMQHeaderCarrier(headers))
	if traceID, ok := headers[trace.TraceIDKey].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	return ctx
}

// nextAction decides what happens to a failed delivery.
func nextAction(retryable bool, attempts, maxRetries int64) deliveryAction {
	if !util.ShouldRetry(attempts, maxRetries, retryable) {
		return actionDeadLetter
	}
	return actionRequeue
}
