package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propel/internal/apperr"
	"propel/internal/handler"
	"propel/internal/model"
	"propel/internal/util"
	"propel/pkg/metrics"
	"propel/pkg/trace"
)

// Authenticator resolves a bearer token to a user. *service.AuthService satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// TraceMiddleware reuses X-Trace-ID or X-Request-ID, or generates a new id.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := trace.FromHeaders(c.GetHeader(trace.HeaderName()), c.GetHeader("X-Request-ID"))
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName(), traceID)
		c.Next()
	}
}

// RequestLogger logs each request and records HTTP latency.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), latency)

		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String(trace.TraceIDKey, trace.FromContext(c.Request.Context())),
		)
	}
}

// AuthMiddleware rejects the request unless it carries a valid bearer token
// for an existing user.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		u, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": apperr.PublicMessage(err)})
			return
		}

		handler.SetCurrentUser(c, u)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and ignores it otherwise.
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := util.ExtractBearer(c.GetHeader("Authorization")); token != "" {
			if u, err := auth.Authenticate(c.Request.Context(), token); err == nil {
				handler.SetCurrentUser(c, u)
			}
		}
		c.Next()
	}
}

// RequireRole rejects users whose role is not in roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := handler.CurrentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			return
		}
		for _, role := range roles {
			if u.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}
