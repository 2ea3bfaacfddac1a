package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	contracts "propel/contracts/mq"
	"propel/internal/apperr"
	"propel/internal/model"
	"propel/internal/payment"
	"propel/internal/repository"
	"propel/pkg/logger"
	"propel/pkg/metrics"
	"propel/pkg/rbac"
	"propel/pkg/trace"
	"propel/pkg/util"
)

const (
	aggregateDonation = "donation"
	maxAmount         = "999999999999.99"
)

type ConfirmDonationInput struct {
	ProjectID       int64           `json:"projectId"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Anonymous       bool            `json:"anonymous"`
	Message         string          `json:"message"`
}

func (in ConfirmDonationInput) validate() error {
	if in.ProjectID <= 0 {
		return apperr.Validation("projectId is required")
	}
	if in.PaymentIntentID == "" {
		return apperr.Validation("paymentIntentId is required")
	}
	if len(in.Message) > 1000 {
		return apperr.Validation("message must be at most 1000 characters")
	}
	return validateAmount(in.Amount, "amount")
}

// validateAmount accepts positive amounts with at most two decimal places.
func validateAmount(amount decimal.Decimal, field string) error {
	if !amount.IsPositive() {
		return apperr.Validation(field + " must be greater than 0")
	}
	if !amount.Equal(amount.Round(2)) {
		return apperr.Validation(field + " must have at most 2 decimal places")
	}
	if amount.GreaterThan(decimal.RequireFromString(maxAmount)) {
		return apperr.Validation(field + " is too large")
	}
	return nil
}

type DonationService struct {
	tx             repository.Transactor
	projects       ProjectStore
	donations      DonationStore
	users          UserStore
	gateway        payment.Gateway
	logger         *zap.Logger
	persistRetries int
}

func NewDonationService(
	tx repository.Transactor,
	projects ProjectStore,
	donations DonationStore,
	users UserStore,
	gateway payment.Gateway,
	logger *zap.Logger,
	persistRetries int,
) *DonationService {
	if persistRetries < 0 {
		persistRetries = 0
	}
	return &DonationService{
		tx:             tx,
		projects:       projects,
		donations:      donations,
		users:          users,
		gateway:        gateway,
		logger:         logger,
		persistRetries: persistRetries,
	}
}

// CreatePaymentIntent opens a gateway intent for amount in the project's currency.
func (s *DonationService) CreatePaymentIntent(ctx context.Context, donor *model.User, projectID int64, amount decimal.Decimal) (*payment.Intent, error) {
	if projectID <= 0 {
		return nil, apperr.Validation("projectId is required")
	}
	if err := validateAmount(amount, "amount"); err != nil {
		return nil, err
	}
	if donor == nil {
		return nil, apperr.Authentication("authentication required")
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.Status.AcceptsDonations() {
		return nil, apperr.Validation("project is not accepting donations")
	}

	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		AmountMinor: payment.ToMinorUnits(amount),
		Currency:    project.Currency,
		ProjectID:   project.ID,
		DonorID:     donor.ID,
	})
	if err != nil {
		return nil, asPaymentError(err, "could not create payment intent")
	}
	return intent, nil
}

// Confirm settles a donation: the gateway confirms the intent, then the
// donation, the project total and status, the donor list, the donor's history
// and the notification request are written in one transaction.
func (s *DonationService) Confirm(ctx context.Context, donor *model.User, in ConfirmDonationInput) (*model.Donation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if donor == nil {
		return nil, apperr.Authentication("authentication required")
	}
	log := logger.WithTrace(ctx, s.logger).With(
		zap.Int64("project_id", in.ProjectID),
		zap.Int64("donor_id", donor.ID),
		zap.String("payment_intent_id", in.PaymentIntentID),
	)

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if !project.Status.AcceptsDonations() {
		return nil, apperr.Validation("project is not accepting donations")
	}
	if !rbac.HasPermission(donor.Role, rbac.PermissionDonate) {
		return nil, apperr.Authorization("not allowed to donate")
	}

	conf, err := s.gateway.ConfirmIntent(ctx, in.PaymentIntentID)
	if err == nil && (conf == nil || !conf.Succeeded) {
		err = apperr.Payment("payment was not confirmed", nil)
	}
	if err == nil {
		err = matchIntent(conf, donor, project, in)
	}
	if err != nil {
		metrics.IncrementDonation("payment_failed")
		log.Warn("Payment confirmation failed", zap.Error(err))
		return nil, asPaymentError(err, "payment confirmation failed")
	}

	var (
		donation *model.Donation
		lastErr  error
	)
	for attempt := 0; attempt <= s.persistRetries; attempt++ {
		donation, lastErr = s.recordCompleted(ctx, donor, project, in)
		if lastErr == nil {
			break
		}
		if apperr.Is(lastErr, apperr.KindConflict) {
			return nil, lastErr
		}
		if retryable, _ := util.IsRetryableError(lastErr); !retryable {
			break
		}
		log.Warn("Donation transaction failed, retrying", zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}
	if lastErr != nil {
		return nil, s.leavePendingRecord(ctx, log, donor, in, lastErr)
	}

	metrics.IncrementDonation("completed")
	metrics.AddDonationAmount(project.Currency, donation.Amount.InexactFloat64())
	log.Info("Donation completed", zap.Int64("donation_id", donation.ID), zap.String("amount", donation.Amount.StringFixed(2)))
	return donation, nil
}

// matchIntent rejects a confirmed intent that was issued for another amount,
// currency, project or donor.
func matchIntent(conf *payment.Confirmation, donor *model.User, project *model.Project, in ConfirmDonationInput) error {
	if conf.AmountReceived != payment.ToMinorUnits(in.Amount) {
		return apperr.Payment("payment amount does not match the donation", nil)
	}
	if conf.Currency != "" && !strings.EqualFold(conf.Currency, project.Currency) {
		return apperr.Payment("payment currency does not match the project", nil)
	}
	if conf.ProjectID != in.ProjectID || conf.DonorID != donor.ID {
		return apperr.Payment("payment intent was issued for a different donation", nil)
	}
	return nil
}

func (s *DonationService) recordCompleted(ctx context.Context, donor *model.User, project *model.Project, in ConfirmDonationInput) (*model.Donation, error) {
	d := &model.Donation{
		ProjectID:       in.ProjectID,
		DonorID:         donor.ID,
		Amount:          in.Amount,
		PaymentIntentID: in.PaymentIntentID,
		Status:          model.DonationCompleted,
		Anonymous:       in.Anonymous,
		Message:         in.Message,
	}
	err := s.tx.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertDonation(ctx, d); err != nil {
			return err
		}
		res, err := s.applyDonation(ctx, tx, d, donor)
		if err != nil {
			return err
		}
		if project.Status == model.ProjectActive && res.Status == model.ProjectFunded {
			s.logger.Info("Project reached its goal",
				zap.Int64("project_id", res.ProjectID),
				zap.String("current_amount", res.CurrentAmount.StringFixed(2)),
				zap.String("goal_amount", res.GoalAmount.StringFixed(2)),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// applyDonation adds a completed donation to the project total, donor list and donor history.
func (s *DonationService) applyDonation(ctx context.Context, tx repository.Tx, d *model.Donation, donor *model.User) (*model.FundingResult, error) {
	res, err := tx.ApplyFunding(ctx, d.ProjectID, d.Amount)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	err = tx.AddProjectDonor(ctx, d.ProjectID, model.ProjectDonor{
		UserID:     donor.ID,
		DonationID: d.ID,
		Amount:     d.Amount,
		Date:       now,
		Anonymous:  d.Anonymous,
	})
	if err != nil {
		return nil, err
	}
	err = tx.AddDonationHistory(ctx, donor.ID, model.DonationHistoryEntry{
		ProjectID:  d.ProjectID,
		DonationID: d.ID,
		Amount:     d.Amount,
		Date:       now,
	})
	if err != nil {
		return nil, err
	}
	payload := donationPayload(ctx, d, donor, res)
	if err := tx.Enqueue(ctx, aggregateDonation, d.ID, contracts.RoutingKeyDonationCompleted, payload); err != nil {
		return nil, err
	}
	return res, nil
}

// leavePendingRecord stores the confirmed payment as a pending donation, outside
// any totals, so an operator can reconcile it.
func (s *DonationService) leavePendingRecord(ctx context.Context, log *zap.Logger, donor *model.User, in ConfirmDonationInput, cause error) error {
	metrics.IncrementDonation("persistence_failed")

	pending := &model.Donation{
		ProjectID:       in.ProjectID,
		DonorID:         donor.ID,
		Amount:          in.Amount,
		PaymentIntentID: in.PaymentIntentID,
		Status:          model.DonationPending,
		Anonymous:       in.Anonymous,
		Message:         in.Message,
	}
	if err := s.donations.Insert(ctx, pending); err != nil {
		log.Error("Payment captured but donation could not be recorded; manual reconciliation required",
			zap.String("amount", in.Amount.StringFixed(2)),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return apperr.Persistence("payment received but the donation could not be recorded", cause, 0)
	}

	log.Error("Payment captured but donation transaction failed; pending record left for reconciliation",
		zap.Int64("pending_donation_id", pending.ID),
		zap.String("amount", in.Amount.StringFixed(2)),
		zap.Error(cause),
	)
	return apperr.Persistence("payment received but the donation could not be recorded", cause, pending.ID)
}

// ReconcilePending completes a pending donation and applies it to the totals.
func (s *DonationService) ReconcilePending(ctx context.Context, actor *model.User, donationID int64) (*model.Donation, error) {
	if err := requirePermission(actor, rbac.PermissionReconcile); err != nil {
		return nil, err
	}
	d, err := s.donations.GetByID(ctx, donationID)
	if err != nil {
		return nil, err
	}
	donor, err := s.users.GetByID(ctx, d.DonorID)
	if err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockDonation(ctx, donationID)
		if err != nil {
			return err
		}
		if !locked.Status.CanTransition(model.DonationCompleted) {
			return apperr.Conflict("only pending donations can be reconciled")
		}
		if err := tx.SetDonationStatus(ctx, donationID, model.DonationPending, model.DonationCompleted); err != nil {
			return err
		}
		locked.Status = model.DonationCompleted
		if _, err := s.applyDonation(ctx, tx, locked, donor); err != nil {
			return err
		}
		d = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrementDonation("reconciled")
	s.logger.Info("Pending donation reconciled", zap.Int64("donation_id", donationID), zap.Int64("admin_id", actor.ID))
	return d, nil
}

// MarkFailed closes a pending donation whose payment will not be honoured.
func (s *DonationService) MarkFailed(ctx context.Context, actor *model.User, donationID int64) (*model.Donation, error) {
	if err := requirePermission(actor, rbac.PermissionReconcile); err != nil {
		return nil, err
	}

	var out *model.Donation
	err := s.tx.InTx(ctx, func(tx repository.Tx) error {
		d, err := tx.LockDonation(ctx, donationID)
		if err != nil {
			return err
		}
		if !d.Status.CanTransition(model.DonationFailed) {
			return apperr.Conflict("only pending donations can be marked failed")
		}
		if err := tx.SetDonationStatus(ctx, donationID, model.DonationPending, model.DonationFailed); err != nil {
			return err
		}
		d.Status = model.DonationFailed
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncrementDonation("failed")
	return out, nil
}

// Refund returns a completed donation through the gateway and removes it from
// the totals. A funded project stays funded. The donation row stays locked
// while the gateway is called, so concurrent refunds reach the gateway once.
func (s *DonationService) Refund(ctx context.Context, actor *model.User, donationID int64) (*model.Donation, error) {
	if err := requirePermission(actor, rbac.PermissionReconcile); err != nil {
		return nil, err
	}
	d, err := s.donations.GetByID(ctx, donationID)
	if err != nil {
		return nil, err
	}
	donor, err := s.users.GetByID(ctx, d.DonorID)
	if err != nil {
		return nil, err
	}

	var refundID string
	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockDonation(ctx, donationID)
		if err != nil {
			return err
		}
		if !locked.Status.CanTransition(model.DonationRefunded) {
			return apperr.Conflict("only completed donations can be refunded")
		}
		d = locked

		refundID, err = s.gateway.RefundIntent(ctx, d.PaymentIntentID, payment.ToMinorUnits(d.Amount))
		if err != nil {
			return asPaymentError(err, "refund failed")
		}

		if err := tx.SetDonationStatus(ctx, donationID, model.DonationCompleted, model.DonationRefunded); err != nil {
			return err
		}
		res, err := tx.ApplyFunding(ctx, d.ProjectID, d.Amount.Neg())
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		if err := tx.RemoveProjectDonor(ctx, donationID); err != nil {
			return err
		}
		if err := tx.RemoveDonationHistory(ctx, donationID); err != nil {
			return err
		}
		payload := donationPayload(ctx, d, donor, res)
		payload.RefundID = refundID
		return tx.Enqueue(ctx, aggregateDonation, donationID, contracts.RoutingKeyDonationRefunded, payload)
	})
	if err != nil {
		if refundID == "" {
			return nil, err
		}
		// The gateway refund is idempotent per intent, so retrying the refund is safe.
		s.logger.Error("Refund issued but donation could not be updated; retry the refund",
			zap.Int64("donation_id", donationID),
			zap.String("refund_id", refundID),
			zap.Error(err),
		)
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.Persistence("refund issued but the donation could not be updated", err, donationID)
		}
		return nil, err
	}

	d.Status = model.DonationRefunded
	metrics.IncrementDonation("refunded")
	s.logger.Info("Donation refunded", zap.Int64("donation_id", donationID), zap.String("refund_id", refundID))
	return d, nil
}

// ListByProject returns a project's completed donations, newest first.
func (s *DonationService) ListByProject(ctx context.Context, projectID int64) ([]model.Donation, error) {
	return s.donations.ListByProject(ctx, projectID)
}

// ListByUser returns all donations made by userID. Only the user or an admin may see them.
func (s *DonationService) ListByUser(ctx context.Context, actor *model.User, userID int64) ([]model.Donation, error) {
	if actor == nil {
		return nil, apperr.Authentication("authentication required")
	}
	if actor.ID != userID && actor.Role != rbac.RoleAdmin {
		return nil, apperr.Authorization("not authorized to view these donations")
	}
	return s.donations.ListByDonor(ctx, userID)
}

func donationPayload(ctx context.Context, d *model.Donation, donor *model.User, res *model.FundingResult) contracts.DonationPayload {
	p := contracts.DonationPayload{
		DonationID: d.ID,
		ProjectID:  d.ProjectID,
		DonorID:    donor.ID,
		DonorEmail: donor.Email,
		DonorName:  donor.Name,
		Amount:     d.Amount.StringFixed(2),
		Currency:   model.DefaultCurrency,
		TraceID:    trace.FromContext(ctx),
		OccurredAt: time.Now().UTC(),
	}
	if res != nil {
		p.ProjectTitle = res.Title
		p.Currency = res.Currency
		p.ProjectStatus = string(res.Status)
	}
	return p
}

func asPaymentError(err error, msg string) error {
	if apperr.Is(err, apperr.KindPayment) {
		return err
	}
	return apperr.Payment(msg, err)
}

func requirePermission(actor *model.User, permission string) error {
	if actor == nil {
		return apperr.Authentication("authentication required")
	}
	if err := rbac.CheckPermission(actor.Role, permission); err != nil {
		return apperr.Authorization("insufficient permissions")
	}
	return nil
}
