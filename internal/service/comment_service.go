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

const maxCommentLength = 1000

type CommentService struct {
	comments CommentStore
	projects ProjectStore
	logger   *zap.Logger
}

func NewCommentService(comments CommentStore, projects ProjectStore, logger *zap.Logger) *CommentService {
	return &CommentService{comments: comments, projects: projects, logger: logger}
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Validation("content is required")
	}
	if len(content) > maxCommentLength {
		return "", apperr.Validation("content must be at most 1000 characters")
	}
	return content, nil
}

func (s *CommentService) List(ctx context.Context, projectID int64) ([]model.Comment, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.comments.ListByProject(ctx, projectID)
}

func (s *CommentService) Create(ctx context.Context, actor *model.User, projectID int64, content string) (*model.Comment, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, apperr.Authentication("authentication required")
	}
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}

	c := &model.Comment{
		ProjectID: projectID,
		UserID:    actor.ID,
		Content:   content,
		Author:    &model.UserSummary{ID: actor.ID, Name: actor.Name, ProfileImage: actor.ProfileImage},
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CommentService) Reply(ctx context.Context, actor *model.User, commentID int64, content string) (*model.CommentReply, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, apperr.Authentication("authentication required")
	}
	if _, err := s.comments.GetByID(ctx, commentID); err != nil {
		return nil, err
	}

	reply := &model.CommentReply{
		UserID:  actor.ID,
		Content: content,
		Author:  &model.UserSummary{ID: actor.ID, Name: actor.Name, ProfileImage: actor.ProfileImage},
	}
	if err := s.comments.AddReply(ctx, commentID, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Delete removes a comment and its replies. Authors and moderators may delete.
func (s *CommentService) Delete(ctx context.Context, actor *model.User, commentID int64) error {
	if actor == nil {
		return apperr.Authentication("authentication required")
	}
	c, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if c.UserID != actor.ID && !rbac.HasPermission(actor.Role, rbac.PermissionModerateComments) {
		return apperr.Authorization("not authorized to delete this comment")
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return err
	}
	logger.WithTrace(ctx, s.logger).Info("Comment deleted", zap.Int64("comment_id", commentID), zap.Int64("actor_id", actor.ID))
	return nil
}
