package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"propel/internal/handler"
	"propel/pkg/otel"
	"propel/pkg/rbac"
)

// ReadinessCheck is one dependency checked by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Handlers struct {
	Auth      *handler.AuthHandler
	Donations *handler.DonationHandler
	Projects  *handler.ProjectHandler
	Users     *handler.UserHandler
	Comments  *handler.CommentHandler
	Admin     *handler.AdminHandler
}

func NewRouter(h Handlers, auth Authenticator, checks []ReadinessCheck, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", readyHandler(checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := AuthMiddleware(auth)
	creatorOrAdmin := RequireRole(rbac.RoleCreator, rbac.RoleAdmin)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.GET("/me", requireAuth, h.Auth.Me)

	donations := api.Group("/donations")
	donations.POST("/create-payment-intent", requireAuth, h.Donations.CreatePaymentIntent)
	donations.POST("/confirm", requireAuth, h.Donations.Confirm)
	donations.GET("/project/:projectId", h.Donations.ListByProject)
	donations.GET("/user/:userId", requireAuth, h.Donations.ListByUser)

	projects := api.Group("/projects")
	projects.GET("", h.Projects.List)
	projects.GET("/:id", h.Projects.Get)
	projects.POST("", requireAuth, creatorOrAdmin, h.Projects.Create)
	projects.PUT("/:id", requireAuth, creatorOrAdmin, h.Projects.Update)
	projects.DELETE("/:id", requireAuth, creatorOrAdmin, h.Projects.Delete)
	projects.POST("/:id/updates", requireAuth, creatorOrAdmin, h.Projects.AddUpdate)

	users := api.Group("/users")
	users.GET("/:id", OptionalAuth(auth), h.Users.Get)
	users.GET("/:id/projects", h.Users.Projects)
	users.PUT("/:id", requireAuth, h.Users.Update)

	comments := api.Group("/comments")
	comments.GET("/project/:projectId", h.Comments.List)
	comments.POST("", requireAuth, h.Comments.Create)
	comments.POST("/:id/reply", requireAuth, h.Comments.Reply)
	comments.DELETE("/:id", requireAuth, h.Comments.Delete)

	admin := api.Group("/admin", requireAuth, RequireRole(rbac.RoleAdmin))
	admin.POST("/donations/:id/reconcile", h.Admin.ReconcileDonation)
	admin.POST("/donations/:id/fail", h.Admin.FailDonation)
	admin.POST("/donations/:id/refund", h.Admin.RefundDonation)
	admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
	admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)

	return r
}

func readyHandler(checks []ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": check.Name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
