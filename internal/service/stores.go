package service

import (
	"context"

	"propel/internal/model"
)

// ProjectStore is implemented by *repository.ProjectRepository.
type ProjectStore interface {
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	GetDetail(ctx context.Context, id int64) (*model.Project, error)
	List(ctx context.Context, f model.ProjectFilter) ([]model.Project, error)
	ListByCreator(ctx context.Context, creatorID int64) ([]model.Project, error)
	Update(ctx context.Context, id int64, patch model.ProjectPatch) (*model.Project, error)
	Delete(ctx context.Context, id int64) error
	AddUpdate(ctx context.Context, projectID int64, u *model.ProjectUpdate) error
}

// DonationStore is implemented by *repository.DonationRepository.
type DonationStore interface {
	GetByID(ctx context.Context, id int64) (*model.Donation, error)
	Insert(ctx context.Context, d *model.Donation) error
	ListByProject(ctx context.Context, projectID int64) ([]model.Donation, error)
	ListByDonor(ctx context.Context, donorID int64) ([]model.Donation, error)
}

// UserStore is implemented by *repository.UserRepository.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, id int64, patch model.ProfilePatch) (*model.User, error)
	DonationHistory(ctx context.Context, userID int64) ([]model.DonationHistoryEntry, error)
}

// CommentStore is implemented by *repository.CommentRepository.
type CommentStore interface {
	ListByProject(ctx context.Context, projectID int64) ([]model.Comment, error)
	Create(ctx context.Context, c *model.Comment) error
	GetByID(ctx context.Context, id int64) (*model.Comment, error)
	AddReply(ctx context.Context, commentID int64, reply *model.CommentReply) error
	Delete(ctx context.Context, id int64) error
}
