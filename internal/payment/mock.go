package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	statusRequiresPayment = "requires_payment_method"
	statusSucceeded       = "succeeded"
	statusRefunded        = "refunded"
)

// MockGateway simulates a card processor. Intents it created always confirm;
// unknown intents never do.
type MockGateway struct {
	store  IntentStore
	logger *zap.Logger
}

func NewMockGateway(store IntentStore, logger *zap.Logger) *MockGateway {
	return &MockGateway{store: store, logger: logger}
}

func (g *MockGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	intent := &Intent{
		ID:           "pi_mock_" + uuid.NewString(),
		ClientSecret: "mock_secret_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
		Status:       statusRequiresPayment,
		ProjectID:    req.ProjectID,
		DonorID:      req.DonorID,
	}
	if err := g.store.Save(ctx, intent); err != nil {
		return nil, err
	}
	g.logger.Debug("Mock payment intent created",
		zap.String("intent_id", intent.ID),
		zap.Int64("amount", req.AmountMinor),
		zap.String("currency", req.Currency),
		zap.Int64("project_id", req.ProjectID),
	)
	return intent, nil
}

func (g *MockGateway) ConfirmIntent(ctx context.Context, intentID string) (*Confirmation, error) {
	intent, err := g.store.Get(ctx, intentID)
	if errors.Is(err, ErrIntentNotFound) {
		return &Confirmation{IntentID: intentID, Succeeded: false}, nil
	}
	if err != nil {
		return nil, err
	}
	if intent.Status == statusRefunded {
		return &Confirmation{IntentID: intentID, Succeeded: false}, nil
	}

	intent.Status = statusSucceeded
	if err := g.store.Save(ctx, intent); err != nil {
		return nil, err
	}
	return &Confirmation{
		IntentID:       intentID,
		Succeeded:      true,
		AmountReceived: intent.AmountMinor,
		Currency:       intent.Currency,
		ProjectID:      intent.ProjectID,
		DonorID:        intent.DonorID,
	}, nil
}

func (g *MockGateway) RefundIntent(ctx context.Context, intentID string, amountMinor int64) (string, error) {
	intent, err := g.store.Get(ctx, intentID)
	if err != nil && !errors.Is(err, ErrIntentNotFound) {
		return "", err
	}
	if intent == nil {
		// intents expire from the store; refunds of old payments still succeed
		g.logger.Warn("Refunding intent unknown to the store", zap.String("intent_id", intentID))
		return g.issueRefund(intentID, amountMinor), nil
	}
	if intent.Status == statusRefunded {
		g.logger.Info("Intent already refunded", zap.String("intent_id", intentID), zap.String("refund_id", intent.RefundID))
		return intent.RefundID, nil
	}
	if amountMinor > intent.AmountMinor {
		return "", fmt.Errorf("refund of %d exceeds captured amount %d", amountMinor, intent.AmountMinor)
	}

	intent.Status = statusRefunded
	intent.RefundID = g.issueRefund(intentID, amountMinor)
	if err := g.store.Save(ctx, intent); err != nil {
		return "", err
	}
	return intent.RefundID, nil
}

func (g *MockGateway) issueRefund(intentID string, amountMinor int64) string {
	refundID := "rf_mock_" + uuid.NewString()
	g.logger.Info("Mock refund issued",
		zap.String("intent_id", intentID),
		zap.String("refund_id", refundID),
		zap.Int64("amount", amountMinor),
	)
	return refundID
}
