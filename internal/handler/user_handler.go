package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propel/internal/model"
	"propel/internal/service"
)

type UserService interface {
	Get(ctx context.Context, viewer *model.User, id int64) (*model.User, error)
	UpdateProfile(ctx context.Context, actor *model.User, id int64, in service.UpdateProfileInput) (*model.User, error)
	ListProjects(ctx context.Context, id int64) ([]model.Project, error)
}

type UserHandler struct {
	users  UserService
	logger *zap.Logger
}

func NewUserHandler(users UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), CurrentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateProfileInput
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), CurrentUser(c), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Projects handles GET /api/users/:id/projects
func (h *UserHandler) Projects(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.users.ListProjects(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
