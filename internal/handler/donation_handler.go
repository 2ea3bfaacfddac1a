package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"propel/internal/model"
	"propel/internal/payment"
	"propel/internal/service"
)

type DonationService interface {
	CreatePaymentIntent(ctx context.Context, donor *model.User, projectID int64, amount decimal.Decimal) (*payment.Intent, error)
	Confirm(ctx context.Context, donor *model.User, in service.ConfirmDonationInput) (*model.Donation, error)
	ListByProject(ctx context.Context, projectID int64) ([]model.Donation, error)
	ListByUser(ctx context.Context, actor *model.User, userID int64) ([]model.Donation, error)
}

type DonationHandler struct {
	donations DonationService
	logger    *zap.Logger
}

func NewDonationHandler(donations DonationService, logger *zap.Logger) *DonationHandler {
	return &DonationHandler{donations: donations, logger: logger}
}

// CreatePaymentIntent handles POST /api/donations/create-payment-intent
func (h *DonationHandler) CreatePaymentIntent(c *gin.Context) {
	var req struct {
		Amount    decimal.Decimal `json:"amount"`
		ProjectID int64           `json:"projectId"`
	}
	if !bindJSON(c, &req) {
		return
	}

	intent, err := h.donations.CreatePaymentIntent(c.Request.Context(), CurrentUser(c), req.ProjectID, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"clientSecret":    intent.ClientSecret,
		"paymentIntentId": intent.ID,
	})
}

// Confirm handles POST /api/donations/confirm
func (h *DonationHandler) Confirm(c *gin.Context) {
	var req service.ConfirmDonationInput
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.donations.Confirm(c.Request.Context(), CurrentUser(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// ListByProject handles GET /api/donations/project/:projectId
func (h *DonationHandler) ListByProject(c *gin.Context) {
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}
	list, err := h.donations.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListByUser handles GET /api/donations/user/:userId
func (h *DonationHandler) ListByUser(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	list, err := h.donations.ListByUser(c.Request.Context(), CurrentUser(c), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
