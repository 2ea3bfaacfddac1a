package payment

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"propel/internal/apperr"
	"propel/pkg/circuitbreaker"
	"propel/pkg/metrics"
	"propel/pkg/otel"
)

const DefaultTimeout = 10 * time.Second

// Guarded bounds every gateway call with a timeout and a circuit breaker and
// reports all failures as Payment errors.
type Guarded struct {
	next    Gateway
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

func NewGuarded(next Gateway, breaker *circuitbreaker.CircuitBreaker, timeout time.Duration, logger *zap.Logger) *Guarded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig())
	}
	return &Guarded{next: next, breaker: breaker, timeout: timeout, logger: logger}
}

func (g *Guarded) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	var intent *Intent
	err := g.call(ctx, "create_intent", func(ctx context.Context) error {
		var err error
		intent, err = g.next.CreateIntent(ctx, req)
		return err
	})
	if err != nil {
		return nil, g.wrap("create_intent", "could not create payment intent", err)
	}
	return intent, nil
}

func (g *Guarded) ConfirmIntent(ctx context.Context, intentID string) (*Confirmation, error) {
	var conf *Confirmation
	err := g.call(ctx, "confirm_intent", func(ctx context.Context) error {
		var err error
		conf, err = g.next.ConfirmIntent(ctx, intentID)
		return err
	})
	if err != nil {
		return nil, g.wrap("confirm_intent", "payment confirmation failed", err)
	}
	if conf == nil || !conf.Succeeded {
		return nil, apperr.Payment("payment was not confirmed", nil)
	}
	return conf, nil
}

func (g *Guarded) RefundIntent(ctx context.Context, intentID string, amountMinor int64) (string, error) {
	var refundID string
	err := g.call(ctx, "refund_intent", func(ctx context.Context) error {
		var err error
		refundID, err = g.next.RefundIntent(ctx, intentID, amountMinor)
		return err
	})
	if err != nil {
		return "", g.wrap("refund_intent", "refund failed", err)
	}
	return refundID, nil
}

// call runs fn under the breaker and returns when fn finishes or the timeout
// elapses, whichever comes first.
func (g *Guarded) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := otel.StartSpan(ctx, "payment."+operation)
	defer span.End()

	start := time.Now()
	err := g.breaker.Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- fn(callCtx) }()

		select {
		case err := <-done:
			return err
		case <-callCtx.Done():
			return callCtx.Err()
		}
	})

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	metrics.RecordGatewayCallLatency(operation, status, time.Since(start))
	return err
}

func (g *Guarded) wrap(operation, msg string, err error) error {
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen):
		msg = "payment provider temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		msg = "payment provider timed out"
	}
	g.logger.Warn("Payment gateway call failed",
		zap.String("operation", operation),
		zap.Error(err),
	)
	return apperr.Payment(msg, err)
}
