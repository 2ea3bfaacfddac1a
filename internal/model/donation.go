package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
	DonationRefunded  DonationStatus = "refunded"
)

var donationTransitions = map[DonationStatus][]DonationStatus{
	DonationPending:   {DonationCompleted, DonationFailed},
	DonationCompleted: {DonationRefunded},
}

// CanTransition reports whether a donation may move from one status to another.
func (s DonationStatus) CanTransition(to DonationStatus) bool {
	for _, next := range donationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Donation struct {
	ID              int64           `json:"id"`
	ProjectID       int64           `json:"projectId"`
	DonorID         int64           `json:"donorId"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Status          DonationStatus  `json:"status"`
	Anonymous       bool            `json:"anonymous"`
	Message         string          `json:"message"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	Donor   *UserSummary    `json:"donor,omitempty"`
	Project *ProjectSummary `json:"project,omitempty"`
}

type ProjectSummary struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
	Images   []string `json:"images"`
}

// FundingResult is the project state right after an amount was applied.
type FundingResult struct {
	ProjectID     int64
	CurrentAmount decimal.Decimal
	GoalAmount    decimal.Decimal
	Status        ProjectStatus
	Title         string
	Currency      string
	CreatorID     int64
}
