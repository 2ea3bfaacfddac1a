package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"propel/internal/apperr"
	"propel/internal/model"
	"propel/pkg/logger"
	"propel/pkg/rbac"
)

type UpdateProfileInput struct {
	Name         *string `json:"name"`
	Bio          *string `json:"bio"`
	ProfileImage *string `json:"profileImage"`
}

type UserService struct {
	users    UserStore
	projects ProjectStore
	logger   *zap.Logger
}

func NewUserService(users UserStore, projects ProjectStore, logger *zap.Logger) *UserService {
	return &UserService{users: users, projects: projects, logger: logger}
}

// Get returns a public profile with the user's projects. Donation history is
// included only when the viewer is the user or an admin.
func (s *UserService) Get(ctx context.Context, viewer *model.User, id int64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	projects, err := s.projects.ListByCreator(ctx, id)
	if err != nil {
		return nil, err
	}
	u.CreatedProjects = make([]model.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		u.CreatedProjects = append(u.CreatedProjects, model.ProjectSummary{
			ID:       p.ID,
			Title:    p.Title,
			Category: p.Category,
			Images:   p.Images,
		})
	}

	if canViewPrivate(viewer, id) {
		history, err := s.users.DonationHistory(ctx, id)
		if err != nil {
			return nil, err
		}
		u.DonationHistory = history
	} else {
		u.Email = ""
	}
	return u, nil
}

// UpdateProfile changes name, bio and profile image. Role and email are immutable here.
func (s *UserService) UpdateProfile(ctx context.Context, actor *model.User, id int64, in UpdateProfileInput) (*model.User, error) {
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			return nil, apperr.Validation("name must not be empty")
		}
		in.Name = &trimmed
	}
	if in.Bio != nil && len(*in.Bio) > 500 {
		return nil, apperr.Validation("bio must be at most 500 characters")
	}
	if actor == nil {
		return nil, apperr.Authentication("authentication required")
	}
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if !canViewPrivate(actor, id) {
		return nil, apperr.Authorization("not authorized to update this profile")
	}

	u, err := s.users.UpdateProfile(ctx, id, model.ProfilePatch{
		Name:         in.Name,
		Bio:          in.Bio,
		ProfileImage: in.ProfileImage,
	})
	if err != nil {
		return nil, err
	}
	logger.WithTrace(ctx, s.logger).Info("Profile updated", zap.Int64("user_id", id), zap.Int64("actor_id", actor.ID))
	return u, nil
}

func canViewPrivate(viewer *model.User, userID int64) bool {
	return viewer != nil && (viewer.ID == userID || viewer.Role == rbac.RoleAdmin)
}

// ListProjects returns the projects created by user id.
func (s *UserService) ListProjects(ctx context.Context, id int64) ([]model.Project, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.projects.ListByCreator(ctx, id)
}
