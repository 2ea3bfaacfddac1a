package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propel/internal/model"
)

type CommentService interface {
	List(ctx context.Context, projectID int64) ([]model.Comment, error)
	Create(ctx context.Context, actor *model.User, projectID int64, content string) (*model.Comment, error)
	Reply(ctx context.Context, actor *model.User, commentID int64, content string) (*model.CommentReply, error)
	Delete(ctx context.Context, actor *model.User, commentID int64) error
}

type CommentHandler struct {
	comments CommentService
	logger   *zap.Logger
}

func NewCommentHandler(comments CommentService, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// List handles GET /api/comments/project/:projectId
func (h *CommentHandler) List(c *gin.Context) {
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	list, err := h.comments.List(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req struct {
		ProjectID int64  `json:"projectId"`
		Content   string `json:"content"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.ProjectID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectId is required"})
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), CurrentUser(c), req.ProjectID, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Reply handles POST /api/comments/:id/reply
func (h *CommentHandler) Reply(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !bindJSON(c, &req) {
		return
	}
	reply, err := h.comments.Reply(c.Request.Context(), CurrentUser(c), id, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.comments.Delete(c.Request.Context(), CurrentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}
