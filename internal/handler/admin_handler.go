package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propel/internal/model"
	"propel/pkg/outbox"
)

// DonationAdmin is the operator side of the donation service.
type DonationAdmin interface {
	ReconcilePending(ctx context.Context, actor *model.User, donationID int64) (*model.Donation, error)
	MarkFailed(ctx context.Context, actor *model.User, donationID int64) (*model.Donation, error)
	Refund(ctx context.Context, actor *model.User, donationID int64) (*model.Donation, error)
}

// OutboxReplayer is satisfied by *outbox.ReplayService.
type OutboxReplayer interface {
	ReplayEvent(ctx context.Context, eventID int64) error
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
}

type AdminHandler struct {
	donations DonationAdmin
	replay    OutboxReplayer
	logger    *zap.Logger
}

func NewAdminHandler(donations DonationAdmin, replay OutboxReplayer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{donations: donations, replay: replay, logger: logger}
}

// ReconcileDonation handles POST /api/admin/donations/:id/reconcile
func (h *AdminHandler) ReconcileDonation(c *gin.Context) {
	h.donationAction(c, h.donations.ReconcilePending)
}

// FailDonation handles POST /api/admin/donations/:id/fail
func (h *AdminHandler) FailDonation(c *gin.Context) {
	h.donationAction(c, h.donations.MarkFailed)
}

// RefundDonation handles POST /api/admin/donations/:id/refund
func (h *AdminHandler) RefundDonation(c *gin.Context) {
	h.donationAction(c, h.donations.Refund)
}

func (h *AdminHandler) donationAction(c *gin.Context, action func(context.Context, *model.User, int64) (*model.Donation, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := action(c.Request.Context(), CurrentUser(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ReplayOutboxEvent requeues a single outbox event.
// POST /api/admin/outbox/replay?id=xxx
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	idStr := c.Query("id")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id parameter"})
		return
	}
	eventID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
		return
	}

	if err := h.replay.ReplayEvent(c.Request.Context(), eventID); err != nil {
		if errors.Is(err, outbox.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.logger.Error("Failed to replay event", zap.Int64("event_id", eventID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "replayed",
		"event_id": eventID,
	})
}

// ReplayFailedEvents requeues every failed outbox event.
// POST /api/admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	successCount, err := h.replay.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay failed events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "completed",
		"success_count": successCount,
		"limit":         limit,
	})
}
