package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	contracts "propel/contracts/mq"
	"propel/internal/notify"
	"propel/pkg/logger"
	"propel/pkg/metrics"
	"propel/pkg/mq"
	"propel/pkg/util"
)

// Deduper is satisfied by *util.Deduper.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, eventID string) bool
	Release(ctx context.Context, handler string, eventID string)
}

type NotificationHandler struct {
	mailer  notify.Mailer
	deduper Deduper
	logger  *zap.Logger
}

func NewNotificationHandler(mailer notify.Mailer, deduper Deduper, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		mailer:  mailer,
		deduper: deduper,
		logger:  logger,
	}
}

// Handlers maps each routing key to its consumer callback.
func (h *NotificationHandler) Handlers() map[string]mq.MessageHandler {
	return map[string]mq.MessageHandler{
		contracts.RoutingKeyUserRegistered:    h.HandleUserRegistered,
		contracts.RoutingKeyProjectCreated:    h.HandleProjectCreated,
		contracts.RoutingKeyDonationCompleted: h.HandleDonationCompleted,
		contracts.RoutingKeyDonationRefunded:  h.HandleDonationRefunded,
	}
}

func (h *NotificationHandler) HandleUserRegistered(ctx context.Context, raw json.RawMessage) error {
	var p contracts.UserRegisteredPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	return h.deliver(ctx, contracts.RoutingKeyUserRegistered, p.EventID(), func() (notify.Message, error) {
		return notify.WelcomeMessage(p)
	})
}

func (h *NotificationHandler) HandleProjectCreated(ctx context.Context, raw json.RawMessage) error {
	var p contracts.ProjectCreatedPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	return h.deliver(ctx, contracts.RoutingKeyProjectCreated, p.EventID(), func() (notify.Message, error) {
		return notify.ProjectCreatedMessage(p)
	})
}

func (h *NotificationHandler) HandleDonationCompleted(ctx context.Context, raw json.RawMessage) error {
	var p contracts.DonationPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	return h.deliver(ctx, contracts.RoutingKeyDonationCompleted, p.EventID(), func() (notify.Message, error) {
		return notify.DonationReceiptMessage(p)
	})
}

func (h *NotificationHandler) HandleDonationRefunded(ctx context.Context, raw json.RawMessage) error {
	var p contracts.DonationPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	return h.deliver(ctx, contracts.RoutingKeyDonationRefunded, p.EventID(), func() (notify.Message, error) {
		return notify.RefundMessage(p)
	})
}

// deliver sends one email per event. A failed send releases the dedup marker
// so the redelivery is not skipped.
func (h *NotificationHandler) deliver(ctx context.Context, routingKey, eventID string, build func() (notify.Message, error)) error {
	log := logger.WithTrace(ctx, h.logger).With(
		zap.String("routing_key", routingKey),
		zap.String("event_id", eventID),
	)

	msg, err := build()
	if err != nil {
		metrics.IncrementNotificationSent(routingKey, "failed")
		return util.Permanent("render_error", err)
	}
	if msg.To == "" {
		metrics.IncrementNotificationSent(routingKey, "skipped")
		return util.Permanent("missing_recipient", nil)
	}

	if !h.deduper.AcquireOnce(ctx, routingKey, eventID) {
		metrics.IncrementNotificationSent(routingKey, "skipped")
		return nil
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		h.deduper.Release(ctx, routingKey, eventID)
		metrics.IncrementNotificationSent(routingKey, "failed")
		log.Error("Failed to send notification", zap.Error(err))
		return err
	}

	metrics.IncrementNotificationSent(routingKey, "success")
	log.Info("Notification sent", zap.String("to", msg.To))
	return nil
}

func decode(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return util.Permanent("json_decode_error", err)
	}
	return nil
}
