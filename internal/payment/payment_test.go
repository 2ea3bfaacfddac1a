package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"propel/internal/apperr"
	"propel/pkg/circuitbreaker"
)

func TestMockGatewayLifecycle(t *testing.T) {
	ctx := context.Background()
	gw := NewMockGateway(NewMemoryIntentStore(), zap.NewNop())

	intent, err := gw.CreateIntent(ctx, IntentRequest{AmountMinor: 15000, Currency: "USD", ProjectID: 3, DonorID: 9})
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if !strings.HasPrefix(intent.ID, "pi_mock_") || !strings.HasPrefix(intent.ClientSecret, "mock_secret_") {
		t.Fatalf("unexpected intent identifiers: %+v", intent)
	}

	conf, err := gw.ConfirmIntent(ctx, intent.ID)
	if err != nil || !conf.Succeeded || conf.AmountReceived != 15000 {
		t.Fatalf("confirm known intent: conf=%+v err=%v", conf, err)
	}
	if conf.ProjectID != 3 || conf.DonorID != 9 || conf.Currency != "USD" {
		t.Fatalf("confirmation lost intent details: %+v", conf)
	}

	conf, err = gw.ConfirmIntent(ctx, "pi_mock_unknown")
	if err != nil || conf.Succeeded {
		t.Fatalf("unknown intent must not succeed: conf=%+v err=%v", conf, err)
	}

	refundID, err := gw.RefundIntent(ctx, intent.ID, 15000)
	if err != nil || !strings.HasPrefix(refundID, "rf_mock_") {
		t.Fatalf("refund: id=%q err=%v", refundID, err)
	}
	again, err := gw.RefundIntent(ctx, intent.ID, 15000)
	if err != nil || again != refundID {
		t.Fatalf("repeated refund: id=%q err=%v, want %q", again, err, refundID)
	}
	if conf, _ := gw.ConfirmIntent(ctx, intent.ID); conf.Succeeded {
		t.Fatal("refunded intent must not confirm again")
	}
}

func TestMockGatewayRejectsOverRefund(t *testing.T) {
	ctx := context.Background()
	gw := NewMockGateway(NewMemoryIntentStore(), zap.NewNop())
	intent, err := gw.CreateIntent(ctx, IntentRequest{AmountMinor: 100, Currency: "USD"})
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if _, err := gw.RefundIntent(ctx, intent.ID, 101); err == nil {
		t.Fatal("expected an error refunding more than was captured")
	}
}

type stubGateway struct {
	confirm func(ctx context.Context, id string) (*Confirmation, error)
}

func (s stubGateway) CreateIntent(context.Context, IntentRequest) (*Intent, error) {
	return &Intent{ID: "pi_1"}, nil
}

func (s stubGateway) ConfirmIntent(ctx context.Context, id string) (*Confirmation, error) {
	return s.confirm(ctx, id)
}

func (s stubGateway) RefundIntent(context.Context, string, int64) (string, error) {
	return "rf_1", nil
}

func TestGuardedTimeoutIsPaymentError(t *testing.T) {
	slow := stubGateway{confirm: func(ctx context.Context, id string) (*Confirmation, error) {
		time.Sleep(200 * time.Millisecond)
		return &Confirmation{IntentID: id, Succeeded: true}, nil
	}}
	g := NewGuarded(slow, nil, 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	_, err := g.ConfirmIntent(context.Background(), "pi_1")
	if !apperr.Is(err, apperr.KindPayment) {
		t.Fatalf("expected payment error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", err)
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Fatal("guarded call did not honour its timeout")
	}
}

func TestGuardedDeclineIsPaymentError(t *testing.T) {
	declined := stubGateway{confirm: func(ctx context.Context, id string) (*Confirmation, error) {
		return &Confirmation{IntentID: id, Succeeded: false}, nil
	}}
	g := NewGuarded(declined, nil, time.Second, zap.NewNop())
	if _, err := g.ConfirmIntent(context.Background(), "pi_1"); !apperr.Is(err, apperr.KindPayment) {
		t.Fatalf("expected payment error, got %v", err)
	}
}

func TestGuardedBreakerOpens(t *testing.T) {
	calls := 0
	failing := stubGateway{confirm: func(ctx context.Context, id string) (*Confirmation, error) {
		calls++
		return nil, errors.New("processor down")
	}}
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 2, Timeout: time.Hour})
	g := NewGuarded(failing, breaker, time.Second, zap.NewNop())

	for i := 0; i < 3; i++ {
		if _, err := g.ConfirmIntent(context.Background(), "pi_1"); !apperr.Is(err, apperr.KindPayment) {
			t.Fatalf("attempt %d: expected payment error, got %v", i, err)
		}
	}
	if calls != 2 {
		t.Fatalf("breaker should stop calls after threshold, got %d calls", calls)
	}
}

func TestToMinorUnits(t *testing.T) {
	tests := map[string]int64{"150": 15000, "12.34": 1234, "0.01": 1, "99.99": 9999}
	for in, want := range tests {
		if got := ToMinorUnits(decimal.RequireFromString(in)); got != want {
			t.Errorf("ToMinorUnits(%s) = %d, want %d", in, got, want)
		}
	}
}
