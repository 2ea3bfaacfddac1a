package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"propel/internal/apperr"
	"propel/internal/model"
)

type UserRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewUserRepository(db Querier, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) withQuerier(q Querier) *UserRepository {
	return &UserRepository{db: q, logger: r.logger}
}

const userColumns = `id, name, email, password_hash, role, profile_image, bio, created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.ProfileImage, &u.Bio, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user. A duplicate email yields a Conflict error.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	query := `
        INSERT INTO users (name, email, password_hash, role, profile_image, bio)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query, u.Name, u.Email, u.PasswordHash, u.Role, u.ProfileImage, u.Bio).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("email already registered")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	r.logger.Info("User created", zap.Int64("user_id", u.ID), zap.String("role", u.Role))
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return u, nil
}

// UpdateProfile changes name, bio and profile image only.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, patch model.ProfilePatch) (*model.User, error) {
	query := `
        UPDATE users SET
            name          = COALESCE($2, name),
            bio           = COALESCE($3, bio),
            profile_image = COALESCE($4, profile_image)
        WHERE id = $1
        RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, id, patch.Name, patch.Bio, patch.ProfileImage))
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return u, nil
}

func (r *UserRepository) AddDonationHistory(ctx context.Context, userID int64, e model.DonationHistoryEntry) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO user_donation_history (user_id, project_id, donation_id, amount, donated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, userID, e.ProjectID, e.DonationID, e.Amount, e.Date)
	if err != nil {
		return fmt.Errorf("insert donation history: %w", err)
	}
	return nil
}

func (r *UserRepository) RemoveDonationHistory(ctx context.Context, donationID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM user_donation_history WHERE donation_id = $1`, donationID); err != nil {
		return fmt.Errorf("delete donation history: %w", err)
	}
	return nil
}

// DonationHistory returns a user's history entries, newest first.
func (r *UserRepository) DonationHistory(ctx context.Context, userID int64) ([]model.DonationHistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
        SELECT project_id, donation_id, amount, donated_at
        FROM user_donation_history
        WHERE user_id = $1
        ORDER BY donated_at DESC, id DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query donation history: %w", err)
	}
	defer rows.Close()

	history := []model.DonationHistoryEntry{}
	for rows.Next() {
		var e model.DonationHistoryEntry
		if err := rows.Scan(&e.ProjectID, &e.DonationID, &e.Amount, &e.Date); err != nil {
			return nil, fmt.Errorf("scan donation history: %w", err)
		}
		history = append(history, e)
	}
	return history, rows.Err()
}
