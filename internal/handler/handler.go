// Package handler holds the gin handlers of the public API.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propel/internal/apperr"
	"propel/internal/model"
	"propel/pkg/logger"
)

const currentUserKey = "current_user"

// SetCurrentUser stores the authenticated user on the request.
func SetCurrentUser(c *gin.Context, u *model.User) {
	c.Set(currentUserKey, u)
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *gin.Context) *model.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*model.User)
	return u
}

// respondError writes err as {"error": msg}. Unclassified errors are logged and hidden.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"error": apperr.PublicMessage(err)}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.ReconciliationID != 0 {
		body["reconciliation_id"] = appErr.ReconciliationID
	}

	if status >= http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, body)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}
