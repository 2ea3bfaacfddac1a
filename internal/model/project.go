package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectActive    ProjectStatus = "active"
	ProjectFunded    ProjectStatus = "funded"
	ProjectClosed    ProjectStatus = "closed"
	ProjectCancelled ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectDraft, ProjectActive, ProjectFunded, ProjectClosed, ProjectCancelled:
		return true
	}
	return false
}

// AcceptsDonations reports whether money may still be added to a project in this status.
func (s ProjectStatus) AcceptsDonations() bool {
	return s == ProjectActive || s == ProjectFunded
}

type Category string

const (
	CategoryEducation   Category = "education"
	CategoryHealthcare  Category = "healthcare"
	CategoryEnvironment Category = "environment"
	CategoryCommunity   Category = "community"
	CategoryTechnology  Category = "technology"
)

var Categories = []Category{
	CategoryEducation,
	CategoryHealthcare,
	CategoryEnvironment,
	CategoryCommunity,
	CategoryTechnology,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

const DefaultCurrency = "USD"

type Project struct {
	ID            int64           `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      Category        `json:"category"`
	CreatorID     int64           `json:"creatorId"`
	GoalAmount    decimal.Decimal `json:"goalAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Currency      string          `json:"currency"`
	Images        []string        `json:"images"`
	VideoURL      string          `json:"videoUrl,omitempty"`
	Status        ProjectStatus   `json:"status"`
	StartDate     time.Time       `json:"startDate"`
	EndDate       time.Time       `json:"endDate"`
	Location      string          `json:"location,omitempty"`
	Tags          []string        `json:"tags"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	Creator    *UserSummary       `json:"creator,omitempty"`
	Donors     []ProjectDonor     `json:"donors,omitempty"`
	Updates    []ProjectUpdate    `json:"updates,omitempty"`
	Milestones []ProjectMilestone `json:"milestones,omitempty"`
}

// ProjectDonor is one entry of a project's donor list, written with each completed donation.
type ProjectDonor struct {
	UserID     int64           `json:"userId,omitempty"`
	DonationID int64           `json:"donationId"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	Anonymous  bool            `json:"anonymous"`
}

type ProjectUpdate struct {
	ID      int64     `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Images  []string  `json:"images"`
	Date    time.Time `json:"date"`
}

type ProjectMilestone struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	Achieved     bool            `json:"achieved"`
}

// ProjectFilter selects projects for listing. Empty fields are ignored.
type ProjectFilter struct {
	Category Category
	Status   ProjectStatus
	Search   string
	Sort     string
}

const (
	SortNewest      = "newest"
	SortEndingSoon  = "ending_soon"
	SortMostFunded  = "most_funded"
	ProjectListSize = 50
)

// ProjectPatch carries the fields an update may change. Nil means unchanged.
type ProjectPatch struct {
	Title       *string
	Description *string
	Category    *Category
	GoalAmount  *decimal.Decimal
	EndDate     *time.Time
	Location    *string
	Images      *[]string
	VideoURL    *string
	Tags        *[]string
	Status      *ProjectStatus
}
