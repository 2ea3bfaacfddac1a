package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"propel/internal/apperr"
	"propel/internal/model"
)

type ProjectRepository struct {
	db     Querier
	logger *zap.Logger
}

func NewProjectRepository(db Querier, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

func (r *ProjectRepository) withQuerier(q Querier) *ProjectRepository {
	return &ProjectRepository{db: q, logger: r.logger}
}

func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Category, &p.CreatorID, &p.GoalAmount, &p.CurrentAmount,
		&p.Currency, &p.Images, &p.VideoURL, &p.Status, &p.StartDate, &p.EndDate, &p.Location, &p.Tags,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProjects(rows pgx.Rows) ([]model.Project, error) {
	defer rows.Close()
	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// Insert stores p and its milestones. Call it inside a transaction so both land together.
func (r *ProjectRepository) Insert(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Inserting project",
		zap.Int64("creator_id", p.CreatorID),
		zap.String("title", p.Title),
	)

	query := `
        INSERT INTO projects (title, description, category, creator_id, goal_amount, current_amount,
                              currency, images, video_url, status, start_date, end_date, location, tags)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		p.Title, p.Description, string(p.Category), p.CreatorID, p.GoalAmount, p.CurrentAmount,
		p.Currency, p.Images, p.VideoURL, string(p.Status), p.StartDate, p.EndDate, p.Location, p.Tags,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project", zap.Error(err))
		return fmt.Errorf("insert project: %w", err)
	}

	for i := range p.Milestones {
		m := &p.Milestones[i]
		err := r.db.QueryRow(ctx, `
            INSERT INTO project_milestones (project_id, title, description, target_amount, achieved, position)
            VALUES ($1, $2, $3, $4, FALSE, $5)
            RETURNING id
        `, p.ID, m.Title, m.Description, m.TargetAmount, i).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("insert milestone: %w", err)
		}
	}

	r.logger.Info("Project inserted successfully",
		zap.Int64("id", p.ID),
		zap.Int64("creator_id", p.CreatorID),
	)
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "project not found")
	}
	return p, nil
}

// GetDetail loads a project with creator, donors (newest first), updates and milestones.
func (r *ProjectRepository) GetDetail(ctx context.Context, id int64) (*model.Project, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var creator model.UserSummary
	err = r.db.QueryRow(ctx, `SELECT id, name, profile_image FROM users WHERE id = $1`, p.CreatorID).
		Scan(&creator.ID, &creator.Name, &creator.ProfileImage)
	if err == nil {
		p.Creator = &creator
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load creator: %w", err)
	}

	if p.Donors, err = r.donors(ctx, id); err != nil {
		return nil, err
	}
	if p.Updates, err = r.updates(ctx, id); err != nil {
		return nil, err
	}
	if p.Milestones, err = r.milestones(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProjectRepository) donors(ctx context.Context, projectID int64) ([]model.ProjectDonor, error) {
	rows, err := r.db.Query(ctx, `
        SELECT user_id, donation_id, amount, donated_at, anonymous
        FROM project_donors
        WHERE project_id = $1
        ORDER BY donated_at DESC, id DESC
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("query donors: %w", err)
	}
	defer rows.Close()

	donors := []model.ProjectDonor{}
	for rows.Next() {
		var d model.ProjectDonor
		if err := rows.Scan(&d.UserID, &d.DonationID, &d.Amount, &d.Date, &d.Anonymous); err != nil {
			return nil, fmt.Errorf("scan donor: %w", err)
		}
		if d.Anonymous {
			d.UserID = 0
		}
		donors = append(donors, d)
	}
	return donors, rows.Err()
}

func (r *ProjectRepository) updates(ctx context.Context, projectID int64) ([]model.ProjectUpdate, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, title, content, images, created_at
        FROM project_updates
        WHERE project_id = $1
        ORDER BY created_at DESC, id DESC
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("query updates: %w", err)
	}
	defer rows.Close()

	updates := []model.ProjectUpdate{}
	for rows.Next() {
		var u model.ProjectUpdate
		if err := rows.Scan(&u.ID, &u.Title, &u.Content, &u.Images, &u.Date); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

func (r *ProjectRepository) milestones(ctx context.Context, projectID int64) ([]model.ProjectMilestone, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, title, description, target_amount, achieved
        FROM project_milestones
        WHERE project_id = $1
        ORDER BY position, id
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("query milestones: %w", err)
	}
	defer rows.Close()

	milestones := []model.ProjectMilestone{}
	for rows.Next() {
		var m model.ProjectMilestone
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.TargetAmount, &m.Achieved); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

func (r *ProjectRepository) List(ctx context.Context, f model.ProjectFilter) ([]model.Project, error) {
	query, args := buildListQuery(f)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return collectProjects(rows)
}

func (r *ProjectRepository) ListByCreator(ctx context.Context, creatorID int64) ([]model.Project, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+projectColumns+`
        FROM projects p
        WHERE p.creator_id = $1
        ORDER BY p.created_at DESC, p.id DESC
    `, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list projects by creator: %w", err)
	}
	return collectProjects(rows)
}

func stringPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

// Update applies patch. Amount, creator and donor data are never written here.
func (r *ProjectRepository) Update(ctx context.Context, id int64, patch model.ProjectPatch) (*model.Project, error) {
	query := `
        UPDATE projects p SET
            title       = COALESCE($2, p.title),
            description = COALESCE($3, p.description),
            category    = COALESCE($4, p.category),
            goal_amount = COALESCE($5::numeric, p.goal_amount),
            end_date    = COALESCE($6, p.end_date),
            location    = COALESCE($7, p.location),
            images      = COALESCE($8::text[], p.images),
            video_url   = COALESCE($9, p.video_url),
            tags        = COALESCE($10::text[], p.tags),
            status      = COALESCE($11, p.status),
            updated_at  = NOW()
        WHERE p.id = $1
        RETURNING ` + projectColumns

	var goal *string
	if patch.GoalAmount != nil {
		s := patch.GoalAmount.String()
		goal = &s
	}
	p, err := scanProject(r.db.QueryRow(ctx, query, id,
		patch.Title, patch.Description, stringPtr(patch.Category), goal, patch.EndDate,
		patch.Location, patch.Images, patch.VideoURL, patch.Tags, stringPtr(patch.Status),
	))
	if err != nil {
		return nil, notFoundOr(err, "project not found")
	}
	return p, nil
}

// Delete removes a project and its child rows. Donation records are kept.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("project not found")
	}
	return nil
}

func (r *ProjectRepository) AddUpdate(ctx context.Context, projectID int64, u *model.ProjectUpdate) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO project_updates (project_id, title, content, images)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `, projectID, u.Title, u.Content, u.Images).Scan(&u.ID, &u.Date)
	if err != nil {
		return fmt.Errorf("insert project update: %w", err)
	}
	return nil
}

// ApplyFunding adds delta to the raised amount in a single statement and flips
// active projects to funded once the goal is reached. Negative deltas never
// change the status.
func (r *ProjectRepository) ApplyFunding(ctx context.Context, projectID int64, delta decimal.Decimal) (*model.FundingResult, error) {
	query := `
        UPDATE projects
        SET current_amount = current_amount + $2::numeric,
            status = CASE
                WHEN status = 'active' AND $2::numeric > 0 AND current_amount + $2::numeric >= goal_amount THEN 'funded'
                ELSE status
            END,
            updated_at = NOW()
        WHERE id = $1
        RETURNING id, current_amount, goal_amount, status, title, currency, creator_id
    `
	var res model.FundingResult
	err := r.db.QueryRow(ctx, query, projectID, delta.String()).Scan(
		&res.ProjectID, &res.CurrentAmount, &res.GoalAmount, &res.Status, &res.Title, &res.Currency, &res.CreatorID,
	)
	if err != nil {
		return nil, notFoundOr(err, "project not found")
	}
	return &res, nil
}

func (r *ProjectRepository) AddDonor(ctx context.Context, projectID int64, d model.ProjectDonor) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO project_donors (project_id, user_id, donation_id, amount, anonymous, donated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, projectID, d.UserID, d.DonationID, d.Amount, d.Anonymous, d.Date)
	if err != nil {
		return fmt.Errorf("insert project donor: %w", err)
	}
	return nil
}

func (r *ProjectRepository) RemoveDonor(ctx context.Context, donationID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM project_donors WHERE donation_id = $1`, donationID); err != nil {
		return fmt.Errorf("delete project donor: %w", err)
	}
	return nil
}
