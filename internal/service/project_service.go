package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	contracts "propel/contracts/mq"
	"propel/internal/apperr"
	"propel/internal/model"
	"propel/internal/repository"
	"propel/pkg/logger"
	"propel/pkg/rbac"
	"propel/pkg/trace"
)

const aggregateProject = "project"

type MilestoneInput struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
}

type CreateProjectInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    model.Category   `json:"category"`
	GoalAmount  decimal.Decimal  `json:"goalAmount"`
	Currency    string           `json:"currency"`
	StartDate   *time.Time       `json:"startDate"`
	EndDate     time.Time        `json:"endDate"`
	Location    string           `json:"location"`
	Images      []string         `json:"images"`
	VideoURL    string           `json:"videoUrl"`
	Tags        []string         `json:"tags"`
	Milestones  []MilestoneInput `json:"milestones"`
}

func (in CreateProjectInput) validate(now time.Time) error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Validation("title is required")
	}
	if len(in.Title) > 100 {
		return apperr.Validation("title must be at most 100 characters")
	}
	if hasControlChars(in.Title) {
		return apperr.Validation("title must not contain control characters")
	}
	if strings.TrimSpace(in.Description) == "" {
		return apperr.Validation("description is required")
	}
	if !in.Category.Valid() {
		return apperr.Validation("category is invalid")
	}
	if err := validateAmount(in.GoalAmount, "goalAmount"); err != nil {
		return err
	}
	if in.EndDate.IsZero() {
		return apperr.Validation("endDate is required")
	}
	start := now
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if !in.EndDate.After(start) {
		return apperr.Validation("endDate must be after startDate")
	}
	for _, m := range in.Milestones {
		if strings.TrimSpace(m.Title) == "" {
			return apperr.Validation("milestone title is required")
		}
		if err := validateAmount(m.TargetAmount, "milestone targetAmount"); err != nil {
			return err
		}
	}
	return nil
}

// hasControlChars reports line breaks and other control characters. Titles end
// up in email subjects.
func hasControlChars(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// UpdateProjectInput is the JSON body of a project update. Nil fields are left unchanged.
type UpdateProjectInput struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Category    *model.Category      `json:"category"`
	GoalAmount  *decimal.Decimal     `json:"goalAmount"`
	EndDate     *time.Time           `json:"endDate"`
	Location    *string              `json:"location"`
	Images      *[]string            `json:"images"`
	VideoURL    *string              `json:"videoUrl"`
	Tags        *[]string            `json:"tags"`
	Status      *model.ProjectStatus `json:"status"`
}

func (in UpdateProjectInput) validate() error {
	if in.Title != nil && (strings.TrimSpace(*in.Title) == "" || len(*in.Title) > 100) {
		return apperr.Validation("title must be 1 to 100 characters")
	}
	if in.Title != nil && hasControlChars(*in.Title) {
		return apperr.Validation("title must not contain control characters")
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		return apperr.Validation("description must not be empty")
	}
	if in.Category != nil && !in.Category.Valid() {
		return apperr.Validation("category is invalid")
	}
	if in.GoalAmount != nil {
		if err := validateAmount(*in.GoalAmount, "goalAmount"); err != nil {
			return err
		}
	}
	if in.Status != nil && !in.Status.Valid() {
		return apperr.Validation("status is invalid")
	}
	return nil
}

func (in UpdateProjectInput) patch() model.ProjectPatch {
	return model.ProjectPatch{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		GoalAmount:  in.GoalAmount,
		EndDate:     in.EndDate,
		Location:    in.Location,
		Images:      in.Images,
		VideoURL:    in.VideoURL,
		Tags:        in.Tags,
		Status:      in.Status,
	}
}

type ProjectUpdateInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

type ProjectService struct {
	tx       repository.Transactor
	projects ProjectStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewProjectService(tx repository.Transactor, projects ProjectStore, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		tx:       tx,
		projects: projects,
		logger:   logger,
		now:      time.Now,
	}
}

// Create stores a new active project owned by actor and requests a creation notice.
func (s *ProjectService) Create(ctx context.Context, actor *model.User, in CreateProjectInput) (*model.Project, error) {
	now := s.now().UTC()
	if err := in.validate(now); err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, apperr.Authentication("authentication required")
	}
	if !rbac.HasPermission(actor.Role, rbac.PermissionCreateProject) {
		return nil, apperr.Authorization("only creators can create projects")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = model.DefaultCurrency
	}
	start := now
	if in.StartDate != nil {
		start = in.StartDate.UTC()
	}
	p := &model.Project{
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		Category:      in.Category,
		CreatorID:     actor.ID,
		GoalAmount:    in.GoalAmount,
		CurrentAmount: decimal.Zero,
		Currency:      currency,
		Images:        nonNil(in.Images),
		VideoURL:      in.VideoURL,
		Status:        model.ProjectActive,
		StartDate:     start,
		EndDate:       in.EndDate.UTC(),
		Location:      in.Location,
		Tags:          nonNil(in.Tags),
	}
	for _, m := range in.Milestones {
		p.Milestones = append(p.Milestones, model.ProjectMilestone{
			Title:        m.Title,
			Description:  m.Description,
			TargetAmount: m.TargetAmount,
		})
	}

	err := s.tx.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertProject(ctx, p); err != nil {
			return err
		}
		return tx.Enqueue(ctx, aggregateProject, p.ID, contracts.RoutingKeyProjectCreated, contracts.ProjectCreatedPayload{
			ProjectID:    p.ID,
			Title:        p.Title,
			CreatorID:    actor.ID,
			CreatorEmail: actor.Email,
			CreatorName:  actor.Name,
			GoalAmount:   p.GoalAmount.StringFixed(2),
			Currency:     p.Currency,
			TraceID:      trace.FromContext(ctx),
			OccurredAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Project created",
		zap.Int64("project_id", p.ID),
		zap.Int64("creator_id", actor.ID),
		zap.String("goal_amount", p.GoalAmount.StringFixed(2)),
	)
	return p, nil
}

// List returns at most model.ProjectListSize projects matching f.
func (s *ProjectService) List(ctx context.Context, f model.ProjectFilter) ([]model.Project, error) {
	if f.Category != "" && !f.Category.Valid() {
		return nil, apperr.Validation("category is invalid")
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("status is invalid")
	}
	switch f.Sort {
	case "", model.SortNewest, model.SortEndingSoon, model.SortMostFunded:
	default:
		return nil, apperr.Validation("sort is invalid")
	}
	f.Search = strings.TrimSpace(f.Search)
	return s.projects.List(ctx, f)
}

// Get returns a project with its creator, donors, updates and milestones.
func (s *ProjectService) Get(ctx context.Context, id int64) (*model.Project, error) {
	return s.projects.GetDetail(ctx, id)
}

func (s *ProjectService) ListByCreator(ctx context.Context, creatorID int64) ([]model.Project, error) {
	return s.projects.ListByCreator(ctx, creatorID)
}

// Update changes a project's editable fields. Only the owner or an admin may do so.
func (s *ProjectService) Update(ctx context.Context, actor *model.User, id int64, in UpdateProjectInput) (*model.Project, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.ownedProject(ctx, actor, id); err != nil {
		return nil, err
	}
	p, err := s.projects.Update(ctx, id, in.patch())
	if err != nil {
		return nil, err
	}
	logger.WithTrace(ctx, s.logger).Info("Project updated", zap.Int64("project_id", id), zap.Int64("actor_id", actor.ID))
	return p, nil
}

// Delete removes a project. Donation records referencing it are kept.
func (s *ProjectService) Delete(ctx context.Context, actor *model.User, id int64) error {
	if _, err := s.ownedProject(ctx, actor, id); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}
	logger.WithTrace(ctx, s.logger).Info("Project deleted", zap.Int64("project_id", id), zap.Int64("actor_id", actor.ID))
	return nil
}

// AddUpdate appends a progress update. Only the project's creator may post one.
func (s *ProjectService) AddUpdate(ctx context.Context, actor *model.User, id int64, in ProjectUpdateInput) (*model.ProjectUpdate, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Validation("title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperr.Validation("content is required")
	}
	if actor == nil {
		return nil, apperr.Authentication("authentication required")
	}
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.CreatorID != actor.ID {
		return nil, apperr.Authorization("only the project creator can post updates")
	}

	u := &model.ProjectUpdate{
		Title:   strings.TrimSpace(in.Title),
		Content: in.Content,
		Images:  nonNil(in.Images),
		Date:    s.now().UTC(),
	}
	if err := s.projects.AddUpdate(ctx, id, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *ProjectService) ownedProject(ctx context.Context, actor *model.User, id int64) (*model.Project, error) {
	if actor == nil {
		return nil, apperr.Authentication("authentication required")
	}
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.CreatorID == actor.ID && rbac.HasPermission(actor.Role, rbac.PermissionManageProject) {
		return p, nil
	}
	if rbac.HasPermission(actor.Role, rbac.PermissionManageAnyProject) {
		return p, nil
	}
	return nil, apperr.Authorization("not authorized to modify this project")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
