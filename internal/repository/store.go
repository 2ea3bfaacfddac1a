package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"propel/internal/model"
	pkgdb "propel/pkg/db"
	"propel/pkg/outbox"
)

// Tx is the set of writes that must commit together.
type Tx interface {
	InsertUser(ctx context.Context, u *model.User) error
	InsertProject(ctx context.Context, p *model.Project) error

	InsertDonation(ctx context.Context, d *model.Donation) error
	LockDonation(ctx context.Context, id int64) (*model.Donation, error)
	SetDonationStatus(ctx context.Context, id int64, from, to model.DonationStatus) error

	ApplyFunding(ctx context.Context, projectID int64, delta decimal.Decimal) (*model.FundingResult, error)
	AddProjectDonor(ctx context.Context, projectID int64, d model.ProjectDonor) error
	RemoveProjectDonor(ctx context.Context, donationID int64) error
	AddDonationHistory(ctx context.Context, userID int64, e model.DonationHistoryEntry) error
	RemoveDonationHistory(ctx context.Context, donationID int64) error

	// Enqueue records an outbox event that is published after commit.
	Enqueue(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error
}

// Transactor runs fn in a single database transaction. Any error from fn rolls it back.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Store wires repositories to a connection pool.
type Store struct {
	pool *pgxpool.Pool

	Users     *UserRepository
	Projects  *ProjectRepository
	Donations *DonationRepository
	Comments  *CommentRepository
	Outbox    *outbox.Repository
}

func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{
		pool:      pool,
		Users:     NewUserRepository(pool, logger),
		Projects:  NewProjectRepository(pool, logger),
		Donations: NewDonationRepository(pool, logger),
		Comments:  NewCommentRepository(pool, logger),
		Outbox:    outbox.NewRepository(pool),
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return pkgdb.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{
			tx:        tx,
			users:     s.Users.withQuerier(tx),
			projects:  s.Projects.withQuerier(tx),
			donations: s.Donations.withQuerier(tx),
			outbox:    s.Outbox,
		})
	})
}

// Ping reports database reachability for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type pgTx struct {
	tx        pgx.Tx
	users     *UserRepository
	projects  *ProjectRepository
	donations *DonationRepository
	outbox    *outbox.Repository
}

func (t *pgTx) InsertUser(ctx context.Context, u *model.User) error {
	return t.users.Create(ctx, u)
}

func (t *pgTx) InsertProject(ctx context.Context, p *model.Project) error {
	return t.projects.Insert(ctx, p)
}

func (t *pgTx) InsertDonation(ctx context.Context, d *model.Donation) error {
	return t.donations.Insert(ctx, d)
}

func (t *pgTx) LockDonation(ctx context.Context, id int64) (*model.Donation, error) {
	return t.donations.Lock(ctx, id)
}

func (t *pgTx) SetDonationStatus(ctx context.Context, id int64, from, to model.DonationStatus) error {
	return t.donations.SetStatus(ctx, id, from, to)
}

func (t *pgTx) ApplyFunding(ctx context.Context, projectID int64, delta decimal.Decimal) (*model.FundingResult, error) {
	return t.projects.ApplyFunding(ctx, projectID, delta)
}

func (t *pgTx) AddProjectDonor(ctx context.Context, projectID int64, d model.ProjectDonor) error {
	return t.projects.AddDonor(ctx, projectID, d)
}

func (t *pgTx) RemoveProjectDonor(ctx context.Context, donationID int64) error {
	return t.projects.RemoveDonor(ctx, donationID)
}

func (t *pgTx) AddDonationHistory(ctx context.Context, userID int64, e model.DonationHistoryEntry) error {
	return t.users.AddDonationHistory(ctx, userID, e)
}

func (t *pgTx) RemoveDonationHistory(ctx context.Context, donationID int64) error {
	return t.users.RemoveDonationHistory(ctx, donationID)
}

func (t *pgTx) Enqueue(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	return outbox.InsertEventInTx(ctx, t.tx, t.outbox, aggregateType, &aggregateID, routingKey, payload)
}
