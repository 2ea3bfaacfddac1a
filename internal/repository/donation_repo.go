package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"propel/internal/apperr"
	"propel/internal/model"
)

type DonationRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewDonationRepository(db Querier, logger *zap.Logger) *DonationRepository {
	return &DonationRepository{db: db, logger: logger}
}

func (r *DonationRepository) withQuerier(q Querier) *DonationRepository {
	return &DonationRepository{db: q, logger: r.logger}
}

const donationColumns = `d.id, d.project_id, d.donor_id, d.amount, d.payment_intent_id, d.status,
       d.anonymous, d.message, d.created_at, d.updated_at`

func scanDonation(row interface{ Scan(...any) error }, extra ...any) (*model.Donation, error) {
	var d model.Donation
	dest := append([]any{
		&d.ID, &d.ProjectID, &d.DonorID, &d.Amount, &d.PaymentIntentID, &d.Status,
		&d.Anonymous, &d.Message, &d.CreatedAt, &d.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &d, nil
}

// Insert stores d. A reused payment intent yields a Conflict error.
func (r *DonationRepository) Insert(ctx context.Context, d *model.Donation) error {
	query := `
        INSERT INTO donations (project_id, donor_id, amount, payment_intent_id, status, anonymous, message)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		d.ProjectID, d.DonorID, d.Amount, d.PaymentIntentID, string(d.Status), d.Anonymous, d.Message,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("payment intent already used")
		}
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (r *DonationRepository) GetByID(ctx context.Context, id int64) (*model.Donation, error) {
	d, err := scanDonation(r.db.QueryRow(ctx, `SELECT `+donationColumns+` FROM donations d WHERE d.id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "donation not found")
	}
	return d, nil
}

// Lock reads a donation with a row lock held until the surrounding transaction ends.
func (r *DonationRepository) Lock(ctx context.Context, id int64) (*model.Donation, error) {
	d, err := scanDonation(r.db.QueryRow(ctx, `SELECT `+donationColumns+` FROM donations d WHERE d.id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr(err, "donation not found")
	}
	return d, nil
}

// SetStatus moves a donation from one status to another. It fails with a
// Conflict error when the donation is no longer in the expected status.
func (r *DonationRepository) SetStatus(ctx context.Context, id int64, from, to model.DonationStatus) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE donations SET status = $3, updated_at = NOW()
        WHERE id = $1 AND status = $2
    `, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update donation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict(fmt.Sprintf("donation is not %s", from))
	}
	return nil
}

// ListByProject returns completed donations for a project, newest first.
// Donor details are omitted for anonymous donations.
func (r *DonationRepository) ListByProject(ctx context.Context, projectID int64) ([]model.Donation, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+donationColumns+`, u.name, u.profile_image
        FROM donations d
        JOIN users u ON u.id = d.donor_id
        WHERE d.project_id = $1 AND d.status = 'completed'
        ORDER BY d.created_at DESC, d.id DESC
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project donations: %w", err)
	}
	defer rows.Close()

	donations := []model.Donation{}
	for rows.Next() {
		var name, image string
		d, err := scanDonation(rows, &name, &image)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		if d.Anonymous {
			d.DonorID = 0
		} else {
			d.Donor = &model.UserSummary{ID: d.DonorID, Name: name, ProfileImage: image}
		}
		donations = append(donations, *d)
	}
	return donations, rows.Err()
}

// ListByDonor returns every donation made by a user, newest first, with a project summary.
func (r *DonationRepository) ListByDonor(ctx context.Context, donorID int64) ([]model.Donation, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+donationColumns+`, p.id, p.title, p.category, p.images
        FROM donations d
        LEFT JOIN projects p ON p.id = d.project_id
        WHERE d.donor_id = $1
        ORDER BY d.created_at DESC, d.id DESC
    `, donorID)
	if err != nil {
		return nil, fmt.Errorf("list user donations: %w", err)
	}
	defer rows.Close()

	donations := []model.Donation{}
	for rows.Next() {
		var (
			pid      *int64
			title    *string
			category *string
			images   []string
		)
		d, err := scanDonation(rows, &pid, &title, &category, &images)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		if pid != nil {
			d.Project = &model.ProjectSummary{ID: *pid, Images: images}
			if title != nil {
				d.Project.Title = *title
			}
			if category != nil {
				d.Project.Category = model.Category(*category)
			}
		}
		donations = append(donations, *d)
	}
	return donations, rows.Err()
}
