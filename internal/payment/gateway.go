// Package payment models the external payment gateway used to settle donations.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrIntentNotFound = errors.New("payment intent not found")

// IntentRequest describes the payment a donor is about to make.
type IntentRequest struct {
	AmountMinor int64
	Currency    string
	ProjectID   int64
	DonorID     int64
}

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	AmountMinor  int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	ProjectID    int64  `json:"project_id"`
	DonorID      int64  `json:"donor_id"`
	RefundID     string `json:"refund_id,omitempty"`
}

// Confirmation reports a settled intent together with what it was issued for.
type Confirmation struct {
	IntentID       string
	Succeeded      bool
	AmountReceived int64
	Currency       string
	ProjectID      int64
	DonorID        int64
}

// Gateway is a card processor. RefundIntent is idempotent per intent: a
// repeated refund returns the original refund id.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	ConfirmIntent(ctx context.Context, intentID string) (*Confirmation, error)
	RefundIntent(ctx context.Context, intentID string, amountMinor int64) (string, error)
}

// ToMinorUnits converts a major-unit amount (12.34) to minor units (1234).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
