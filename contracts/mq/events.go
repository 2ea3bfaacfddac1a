// Package mq holds the JSON payloads exchanged over the propel.events exchange.
package mq

import (
	"strconv"
	"time"
)

const (
	RoutingKeyUserRegistered    = "user.registered"
	RoutingKeyProjectCreated    = "project.created"
	RoutingKeyDonationCompleted = "donation.completed"
	RoutingKeyDonationRefunded  = "donation.refunded"
)

// RoutingKeys lists every key a worker consumes.
var RoutingKeys = []string{
	RoutingKeyUserRegistered,
	RoutingKeyProjectCreated,
	RoutingKeyDonationCompleted,
	RoutingKeyDonationRefunded,
}

type UserRegisteredPayload struct {
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ProjectCreatedPayload struct {
	ProjectID    int64     `json:"project_id"`
	Title        string    `json:"title"`
	CreatorID    int64     `json:"creator_id"`
	CreatorEmail string    `json:"creator_email"`
	CreatorName  string    `json:"creator_name"`
	GoalAmount   string    `json:"goal_amount"`
	Currency     string    `json:"currency"`
	TraceID      string    `json:"trace_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// DonationPayload is shared by donation.completed and donation.refunded.
type DonationPayload struct {
	DonationID    int64     `json:"donation_id"`
	ProjectID     int64     `json:"project_id"`
	ProjectTitle  string    `json:"project_title"`
	DonorID       int64     `json:"donor_id"`
	DonorEmail    string    `json:"donor_email"`
	DonorName     string    `json:"donor_name"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	ProjectStatus string    `json:"project_status"`
	RefundID      string    `json:"refund_id,omitempty"`
	TraceID       string    `json:"trace_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventID identifies a payload for consumer-side deduplication.
func (p UserRegisteredPayload) EventID() string { return "user-" + strconv.FormatInt(p.UserID, 10) }

func (p ProjectCreatedPayload) EventID() string { return "project-" + strconv.FormatInt(p.ProjectID, 10) }

func (p DonationPayload) EventID() string { return "donation-" + strconv.FormatInt(p.DonationID, 10) }
