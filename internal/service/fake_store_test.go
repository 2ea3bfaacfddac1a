package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"propel/internal/apperr"
	"propel/internal/model"
	"propel/internal/payment"
	"propel/internal/repository"
	"propel/internal/util"
)

type recordedEvent struct {
	AggregateType string
	AggregateID   int64
	RoutingKey    string
	Payload       any
}

type memState struct {
	nextID    int64
	users     map[int64]model.User
	projects  map[int64]model.Project
	donations map[int64]model.Donation
	donors    map[int64][]model.ProjectDonor
	history   map[int64][]model.DonationHistoryEntry
	comments  map[int64]model.Comment
	events    []recordedEvent
}

func (s *memState) clone() *memState {
	out := &memState{
		nextID:    s.nextID,
		users:     make(map[int64]model.User, len(s.users)),
		projects:  make(map[int64]model.Project, len(s.projects)),
		donations: make(map[int64]model.Donation, len(s.donations)),
		donors:    make(map[int64][]model.ProjectDonor, len(s.donors)),
		history:   make(map[int64][]model.DonationHistoryEntry, len(s.history)),
		comments:  make(map[int64]model.Comment, len(s.comments)),
		events:    append([]recordedEvent(nil), s.events...),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.projects {
		out.projects[k] = v
	}
	for k, v := range s.donations {
		out.donations[k] = v
	}
	for k, v := range s.donors {
		out.donors[k] = append([]model.ProjectDonor(nil), v...)
	}
	for k, v := range s.history {
		out.history[k] = append([]model.DonationHistoryEntry(nil), v...)
	}
	for k, v := range s.comments {
		v.Replies = append([]model.CommentReply(nil), v.Replies...)
		out.comments[k] = v
	}
	return out
}

// memStore is an in-memory stand-in for repository.Store. Transactions hold
// the store lock for their whole duration and roll back on error.
type memStore struct {
	mu    sync.Mutex
	state *memState

	// fail, when set, is consulted before every transactional write.
	fail    func(op string) error
	txCount int
}

func newMemStore() *memStore {
	return &memStore{state: (&memState{}).clone()}
}

func (s *memStore) id() int64 {
	s.state.nextID++
	return s.state.nextID
}

func (s *memStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	snapshot := s.state.clone()
	if err := fn(&memTx{s: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *memStore) addUser(name, role string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := model.User{ID: s.id(), Name: name, Email: name + "@example.com", Role: role, CreatedAt: time.Now().UTC()}
	s.state.users[u.ID] = u
	return &u
}

func (s *memStore) addProject(creatorID int64, goal, current string, status model.ProjectStatus) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := model.Project{
		ID:            s.id(),
		Title:         "Clean water",
		Description:   "Wells for the village",
		Category:      model.CategoryCommunity,
		CreatorID:     creatorID,
		GoalAmount:    decimal.RequireFromString(goal),
		CurrentAmount: decimal.RequireFromString(current),
		Currency:      model.DefaultCurrency,
		Status:        status,
		StartDate:     time.Now().UTC(),
		EndDate:       time.Now().UTC().Add(30 * 24 * time.Hour),
		CreatedAt:     time.Now().UTC(),
	}
	s.state.projects[p.ID] = p
	return p.ID
}

func (s *memStore) project(id int64) model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.projects[id]
}

func (s *memStore) donation(id int64) model.Donation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.donations[id]
}

func (s *memStore) donorsOf(projectID int64) []model.ProjectDonor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ProjectDonor(nil), s.state.donors[projectID]...)
}

func (s *memStore) historyOf(userID int64) []model.DonationHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DonationHistoryEntry(nil), s.state.history[userID]...)
}

func (s *memStore) eventsCopy() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedEvent(nil), s.state.events...)
}

func (s *memStore) donationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.donations)
}

type memTx struct {
	s *memStore
}

func (t *memTx) check(op string) error {
	if t.s.fail != nil {
		return t.s.fail(op)
	}
	return nil
}

func (t *memTx) InsertUser(_ context.Context, u *model.User) error {
	if err := t.check("InsertUser"); err != nil {
		return err
	}
	for _, existing := range t.s.state.users {
		if existing.Email == u.Email {
			return apperr.Conflict("email already registered")
		}
	}
	u.ID = t.s.id()
	u.CreatedAt = time.Now().UTC()
	t.s.state.users[u.ID] = *u
	return nil
}

func (t *memTx) InsertProject(_ context.Context, p *model.Project) error {
	if err := t.check("InsertProject"); err != nil {
		return err
	}
	p.ID = t.s.id()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	t.s.state.projects[p.ID] = *p
	return nil
}

func (t *memTx) InsertDonation(_ context.Context, d *model.Donation) error {
	if err := t.check("InsertDonation"); err != nil {
		return err
	}
	return t.s.insertDonation(d)
}

func (s *memStore) insertDonation(d *model.Donation) error {
	for _, existing := range s.state.donations {
		if existing.PaymentIntentID == d.PaymentIntentID {
			return apperr.Conflict("payment intent already used")
		}
	}
	d.ID = s.id()
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	s.state.donations[d.ID] = *d
	return nil
}

func (t *memTx) LockDonation(_ context.Context, id int64) (*model.Donation, error) {
	d, ok := t.s.state.donations[id]
	if !ok {
		return nil, apperr.NotFound("donation not found")
	}
	return &d, nil
}

func (t *memTx) SetDonationStatus(_ context.Context, id int64, from, to model.DonationStatus) error {
	if err := t.check("SetDonationStatus"); err != nil {
		return err
	}
	d, ok := t.s.state.donations[id]
	if !ok || d.Status != from {
		return apperr.Conflict("donation is not " + string(from))
	}
	d.Status = to
	t.s.state.donations[id] = d
	return nil
}

func (t *memTx) ApplyFunding(_ context.Context, projectID int64, delta decimal.Decimal) (*model.FundingResult, error) {
	if err := t.check("ApplyFunding"); err != nil {
		return nil, err
	}
	p, ok := t.s.state.projects[projectID]
	if !ok {
		return nil, apperr.NotFound("project not found")
	}
	p.CurrentAmount = p.CurrentAmount.Add(delta)
	if p.Status == model.ProjectActive && delta.IsPositive() && p.CurrentAmount.GreaterThanOrEqual(p.GoalAmount) {
		p.Status = model.ProjectFunded
	}
	t.s.state.projects[projectID] = p
	return &model.FundingResult{
		ProjectID:     p.ID,
		CurrentAmount: p.CurrentAmount,
		GoalAmount:    p.GoalAmount,
		Status:        p.Status,
		Title:         p.Title,
		Currency:      p.Currency,
		CreatorID:     p.CreatorID,
	}, nil
}

func (t *memTx) AddProjectDonor(_ context.Context, projectID int64, d model.ProjectDonor) error {
	if err := t.check("AddProjectDonor"); err != nil {
		return err
	}
	t.s.state.donors[projectID] = append(t.s.state.donors[projectID], d)
	return nil
}

func (t *memTx) RemoveProjectDonor(_ context.Context, donationID int64) error {
	for pid, list := range t.s.state.donors {
		kept := list[:0:0]
		for _, d := range list {
			if d.DonationID != donationID {
				kept = append(kept, d)
			}
		}
		t.s.state.donors[pid] = kept
	}
	return nil
}

func (t *memTx) AddDonationHistory(_ context.Context, userID int64, e model.DonationHistoryEntry) error {
	if err := t.check("AddDonationHistory"); err != nil {
		return err
	}
	t.s.state.history[userID] = append(t.s.state.history[userID], e)
	return nil
}

func (t *memTx) RemoveDonationHistory(_ context.Context, donationID int64) error {
	for uid, list := range t.s.state.history {
		kept := list[:0:0]
		for _, e := range list {
			if e.DonationID != donationID {
				kept = append(kept, e)
			}
		}
		t.s.state.history[uid] = kept
	}
	return nil
}

func (t *memTx) Enqueue(_ context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	if err := t.check("Enqueue"); err != nil {
		return err
	}
	t.s.state.events = append(t.s.state.events, recordedEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payload,
	})
	return nil
}

type memProjects struct{ s *memStore }

func (r memProjects) GetByID(_ context.Context, id int64) (*model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.state.projects[id]
	if !ok {
		return nil, apperr.NotFound("project not found")
	}
	return &p, nil
}

func (r memProjects) GetDetail(ctx context.Context, id int64) (*model.Project, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	donors := r.s.donorsOf(id)
	for i, j := 0, len(donors)-1; i < j; i, j = i+1, j-1 {
		donors[i], donors[j] = donors[j], donors[i]
	}
	p.Donors = donors
	return p, nil
}

func (r memProjects) List(_ context.Context, f model.ProjectFilter) ([]model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Project{}
	for _, p := range r.s.state.projects {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memProjects) ListByCreator(_ context.Context, creatorID int64) ([]model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Project{}
	for _, p := range r.s.state.projects {
		if p.CreatorID == creatorID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memProjects) Update(_ context.Context, id int64, patch model.ProjectPatch) (*model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.state.projects[id]
	if !ok {
		return nil, apperr.NotFound("project not found")
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.GoalAmount != nil {
		p.GoalAmount = *patch.GoalAmount
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	r.s.state.projects[id] = p
	return &p, nil
}

func (r memProjects) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.projects[id]; !ok {
		return apperr.NotFound("project not found")
	}
	delete(r.s.state.projects, id)
	return nil
}

func (r memProjects) AddUpdate(_ context.Context, projectID int64, u *model.ProjectUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.state.projects[projectID]
	if !ok {
		return apperr.NotFound("project not found")
	}
	u.ID = r.s.id()
	p.Updates = append(append([]model.ProjectUpdate(nil), p.Updates...), *u)
	r.s.state.projects[projectID] = p
	return nil
}

type memDonations struct{ s *memStore }

func (r memDonations) GetByID(_ context.Context, id int64) (*model.Donation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.state.donations[id]
	if !ok {
		return nil, apperr.NotFound("donation not found")
	}
	return &d, nil
}

func (r memDonations) Insert(_ context.Context, d *model.Donation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.insertDonation(d)
}

func (r memDonations) ListByProject(_ context.Context, projectID int64) ([]model.Donation, error) {
	return r.list(func(d model.Donation) bool {
		return d.ProjectID == projectID && d.Status == model.DonationCompleted
	}), nil
}

func (r memDonations) ListByDonor(_ context.Context, donorID int64) ([]model.Donation, error) {
	return r.list(func(d model.Donation) bool { return d.DonorID == donorID }), nil
}

func (r memDonations) list(keep func(model.Donation) bool) []model.Donation {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Donation{}
	for _, d := range r.s.state.donations {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

type memUsers struct{ s *memStore }

func (r memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.state.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.state.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (r memUsers) UpdateProfile(_ context.Context, id int64, patch model.ProfilePatch) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.state.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Bio != nil {
		u.Bio = *patch.Bio
	}
	if patch.ProfileImage != nil {
		u.ProfileImage = *patch.ProfileImage
	}
	r.s.state.users[id] = u
	return &u, nil
}

func (r memUsers) DonationHistory(_ context.Context, userID int64) ([]model.DonationHistoryEntry, error) {
	return r.s.historyOf(userID), nil
}

type memComments struct{ s *memStore }

func (r memComments) ListByProject(_ context.Context, projectID int64) ([]model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Comment{}
	for _, c := range r.s.state.comments {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memComments) Create(_ context.Context, c *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = r.s.id()
	c.CreatedAt = time.Now().UTC()
	c.Replies = []model.CommentReply{}
	r.s.state.comments[c.ID] = *c
	return nil
}

func (r memComments) GetByID(_ context.Context, id int64) (*model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.comments[id]
	if !ok {
		return nil, apperr.NotFound("comment not found")
	}
	return &c, nil
}

func (r memComments) AddReply(_ context.Context, commentID int64, reply *model.CommentReply) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.comments[commentID]
	if !ok {
		return apperr.NotFound("comment not found")
	}
	reply.ID = r.s.id()
	reply.CreatedAt = time.Now().UTC()
	c.Replies = append(append([]model.CommentReply(nil), c.Replies...), *reply)
	r.s.state.comments[commentID] = c
	return nil
}

func (r memComments) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.comments[id]; !ok {
		return apperr.NotFound("comment not found")
	}
	delete(r.s.state.comments, id)
	return nil
}

// fakeGateway confirms intents it issued unless told otherwise.
type fakeGateway struct {
	mu          sync.Mutex
	intents     map[string]payment.Intent
	confirmErr  error
	declined    bool
	refundErr   error
	refundDelay time.Duration
	confirmed   []string
	refunded    []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]payment.Intent{}}
}

// issue registers an intent for amount as CreatePaymentIntent would.
func (g *fakeGateway) issue(id string, donor *model.User, projectID int64, amount string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id] = payment.Intent{
		ID:          id,
		AmountMinor: payment.ToMinorUnits(decimal.RequireFromString(amount)),
		Currency:    model.DefaultCurrency,
		ProjectID:   projectID,
		DonorID:     donor.ID,
	}
	return id
}

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent := payment.Intent{
		ID:           fmt.Sprintf("pi_test_%d", len(g.intents)+1),
		ClientSecret: "secret",
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
		Status:       "requires_payment_method",
		ProjectID:    req.ProjectID,
		DonorID:      req.DonorID,
	}
	g.intents[intent.ID] = intent
	return &intent, nil
}

func (g *fakeGateway) ConfirmIntent(_ context.Context, intentID string) (*payment.Confirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirmed = append(g.confirmed, intentID)
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	intent, ok := g.intents[intentID]
	if !ok || g.declined {
		return &payment.Confirmation{IntentID: intentID, Succeeded: false}, nil
	}
	return &payment.Confirmation{
		IntentID:       intentID,
		Succeeded:      true,
		AmountReceived: intent.AmountMinor,
		Currency:       intent.Currency,
		ProjectID:      intent.ProjectID,
		DonorID:        intent.DonorID,
	}, nil
}

func (g *fakeGateway) RefundIntent(_ context.Context, intentID string, _ int64) (string, error) {
	if g.refundDelay > 0 {
		time.Sleep(g.refundDelay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refunded = append(g.refunded, intentID)
	return "rf_" + intentID, nil
}

func (g *fakeGateway) confirmCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.confirmed)
}

func (g *fakeGateway) refundCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunded)
}

type serviceFixture struct {
	store     *memStore
	gateway   *fakeGateway
	donations *DonationService
	projects  *ProjectService
	auth      *AuthService
	users     *UserService
	comments  *CommentService
}

func newFixture() *serviceFixture {
	store := newMemStore()
	gw := newFakeGateway()
	log := zap.NewNop()
	return &serviceFixture{
		store:     store,
		gateway:   gw,
		donations: NewDonationService(store, memProjects{store}, memDonations{store}, memUsers{store}, gw, log, 2),
		projects:  NewProjectService(store, memProjects{store}, log),
		auth:      NewAuthService(store, memUsers{store}, util.NewPasswordHasher(4), "test-secret", time.Hour, log),
		users:     NewUserService(memUsers{store}, memProjects{store}, log),
		comments:  NewCommentService(memComments{store}, memProjects{store}, log),
	}
}
