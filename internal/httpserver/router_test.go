package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propel/internal/apperr"
	"propel/internal/handler"
	"propel/internal/model"
	"propel/internal/service"
	"propel/pkg/rbac"
	"propel/pkg/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type tokenAuth map[string]*model.User

func (a tokenAuth) Authenticate(_ context.Context, token string) (*model.User, error) {
	if u, ok := a[token]; ok {
		return u, nil
	}
	return nil, apperr.Authentication("invalid or expired token")
}

type stubDonations struct {
	handler.DonationService
	confirmCalls int
}

func (s *stubDonations) Confirm(_ context.Context, u *model.User, in service.ConfirmDonationInput) (*model.Donation, error) {
	s.confirmCalls++
	return &model.Donation{ID: 1, DonorID: u.ID, ProjectID: in.ProjectID}, nil
}

type stubProjects struct {
	handler.ProjectService
	createCalls int
}

func (s *stubProjects) Create(_ context.Context, u *model.User, _ service.CreateProjectInput) (*model.Project, error) {
	s.createCalls++
	return &model.Project{ID: 1, CreatorID: u.ID}, nil
}

type stubAdmin struct {
	handler.DonationAdmin
}

func (stubAdmin) Refund(_ context.Context, _ *model.User, id int64) (*model.Donation, error) {
	return &model.Donation{ID: id, Status: model.DonationRefunded}, nil
}

type fixture struct {
	engine    *gin.Engine
	donations *stubDonations
	projects  *stubProjects
}

func newTestRouter(checks ...ReadinessCheck) fixture {
	log := zap.NewNop()
	donations := &stubDonations{}
	projects := &stubProjects{}
	auth := tokenAuth{
		"donor-token":   {ID: 1, Role: rbac.RoleDonor},
		"creator-token": {ID: 2, Role: rbac.RoleCreator},
		"admin-token":   {ID: 3, Role: rbac.RoleAdmin},
	}
	h := Handlers{
		Auth:      handler.NewAuthHandler(nil, log),
		Donations: handler.NewDonationHandler(donations, log),
		Projects:  handler.NewProjectHandler(projects, log),
		Users:     handler.NewUserHandler(nil, log),
		Comments:  handler.NewCommentHandler(nil, log),
		Admin:     handler.NewAdminHandler(stubAdmin{}, nil, log),
	}
	return fixture{
		engine:    NewRouter(h, auth, checks, log),
		donations: donations,
		projects:  projects,
	}
}

func request(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndReadiness(t *testing.T) {
	ok := newTestRouter(ReadinessCheck{Name: "db", Check: func(context.Context) error { return nil }})
	if w := request(ok.engine, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", w.Code)
	}
	if w := request(ok.engine, http.MethodGet, "/readyz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", w.Code)
	}

	down := newTestRouter(ReadinessCheck{Name: "mq", Check: func(context.Context) error { return errors.New("closed") }})
	w := request(down.engine, http.MethodGet, "/readyz", "", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "mq_not_ready") {
		t.Fatalf("readyz status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestConfirmRequiresAuthentication(t *testing.T) {
	f := newTestRouter()
	body := `{"projectId":1,"amount":10,"paymentIntentId":"pi"}`

	for _, token := range []string{"", "forged"} {
		w := request(f.engine, http.MethodPost, "/api/donations/confirm", token, body)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d", token, w.Code)
		}
	}
	if f.donations.confirmCalls != 0 {
		t.Fatal("service reached without authentication")
	}

	if w := request(f.engine, http.MethodPost, "/api/donations/confirm", "donor-token", body); w.Code != http.StatusCreated {
		t.Fatalf("authenticated status = %d body = %s", w.Code, w.Body.String())
	}
	if f.donations.confirmCalls != 1 {
		t.Fatalf("confirm calls = %d", f.donations.confirmCalls)
	}
}

func TestRoleGates(t *testing.T) {
	f := newTestRouter()

	if w := request(f.engine, http.MethodPost, "/api/projects", "donor-token", `{}`); w.Code != http.StatusForbidden {
		t.Fatalf("donor create status = %d", w.Code)
	}
	if f.projects.createCalls != 0 {
		t.Fatal("donor reached project creation")
	}
	if w := request(f.engine, http.MethodPost, "/api/projects", "creator-token", `{}`); w.Code != http.StatusCreated {
		t.Fatalf("creator create status = %d", w.Code)
	}

	if w := request(f.engine, http.MethodPost, "/api/admin/donations/5/refund", "creator-token", ""); w.Code != http.StatusForbidden {
		t.Fatalf("creator refund status = %d", w.Code)
	}
	if w := request(f.engine, http.MethodPost, "/api/admin/donations/5/refund", "admin-token", ""); w.Code != http.StatusOK {
		t.Fatalf("admin refund status = %d", w.Code)
	}
}

func TestTraceIDIsEchoed(t *testing.T) {
	f := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName(), "abc123")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	if got := w.Header().Get(trace.HeaderName()); got != "abc123" {
		t.Fatalf("trace header = %q", got)
	}

	w = request(f.engine, http.MethodGet, "/healthz", "", "")
	if w.Header().Get(trace.HeaderName()) == "" {
		t.Fatal("trace id not generated")
	}
}
