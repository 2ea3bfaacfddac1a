package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propel/internal/model"
	"propel/internal/service"
)

type ProjectService interface {
	Create(ctx context.Context, actor *model.User, in service.CreateProjectInput) (*model.Project, error)
	List(ctx context.Context, f model.ProjectFilter) ([]model.Project, error)
	Get(ctx context.Context, id int64) (*model.Project, error)
	Update(ctx context.Context, actor *model.User, id int64, in service.UpdateProjectInput) (*model.Project, error)
	Delete(ctx context.Context, actor *model.User, id int64) error
	AddUpdate(ctx context.Context, actor *model.User, id int64, in service.ProjectUpdateInput) (*model.ProjectUpdate, error)
}

type ProjectHandler struct {
	projects ProjectService
	logger   *zap.Logger
}

func NewProjectHandler(projects ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

// List handles GET /api/projects?category=&status=&search=&sort=
func (h *ProjectHandler) List(c *gin.Context) {
	list, err := h.projects.List(c.Request.Context(), model.ProjectFilter{
		Category: model.Category(c.Query("category")),
		Status:   model.ProjectStatus(c.Query("status")),
		Search:   c.Query("search"),
		Sort:     c.Query("sort"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.projects.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.CreateProjectInput
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.projects.Create(c.Request.Context(), CurrentUser(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateProjectInput
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.projects.Update(c.Request.Context(), CurrentUser(c), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.projects.Delete(c.Request.Context(), CurrentUser(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "project deleted"})
}

// AddUpdate handles POST /api/projects/:id/updates
func (h *ProjectHandler) AddUpdate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ProjectUpdateInput
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.projects.AddUpdate(c.Request.Context(), CurrentUser(c), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}
