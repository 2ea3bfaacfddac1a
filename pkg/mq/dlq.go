package mq

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// DeclareDLQQueue declares the dead letter queue for a routing key, bound to the DLQ exchange.
func (t Topology) DeclareDLQQueue(ch *amqp091.Channel, routingKey string) (amqp091.Queue, error) {
	queueName := fmt.Sprintf("%s.dlq", routingKey)

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		routingKey,
		t.DLQExchange,
		false,
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}

	return q, nil
}

// publishToDLQ republishes a message body to the dead letter exchange with the failure reason.
func publishToDLQ(ctx context.Context, ch *amqp091.Channel, exchange, routingKey string, msg amqp091.Delivery, reason, errorType string) error {
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-original-error"] = reason
	headers["x-error-type"] = errorType
	headers["x-failed-at"] = "propel-worker"

	return ch.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         msg.Body,
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.MessageId,
			Headers:      headers,
		},
	)
}
