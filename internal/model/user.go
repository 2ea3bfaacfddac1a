package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	ProfileImage string    `json:"profileImage"`
	Bio          string    `json:"bio"`
	CreatedAt    time.Time `json:"createdAt"`

	DonationHistory []DonationHistoryEntry `json:"donationHistory,omitempty"`
	CreatedProjects []ProjectSummary       `json:"createdProjects,omitempty"`
}

type UserSummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage,omitempty"`
}

type DonationHistoryEntry struct {
	ProjectID  int64           `json:"projectId"`
	DonationID int64           `json:"donationId"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
}

// ProfilePatch lists the only user fields a profile update may change.
type ProfilePatch struct {
	Name         *string
	Bio          *string
	ProfileImage *string
}
