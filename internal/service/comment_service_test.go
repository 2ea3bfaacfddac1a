package service

import (
	"context"
	"strings"
	"testing"

	"propel/internal/apperr"
	"propel/internal/model"
	"propel/pkg/rbac"
)

func TestCommentLifecycle(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", rbac.RoleCreator)
	dave := f.store.addUser("dave", rbac.RoleDonor)
	eve := f.store.addUser("eve", rbac.RoleDonor)
	admin := f.store.addUser("root", rbac.RoleAdmin)
	projectID := f.store.addProject(carol.ID, "100", "0", model.ProjectActive)

	c, err := f.comments.Create(context.Background(), dave, projectID, "  Great idea!  ")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if c.Content != "Great idea!" || c.Author == nil || c.Author.ID != dave.ID {
		t.Fatalf("unexpected comment: %+v", c)
	}
	if _, err := f.comments.Reply(context.Background(), carol, c.ID, "Thanks"); err != nil {
		t.Fatalf("Reply returned error: %v", err)
	}

	list, err := f.comments.List(context.Background(), projectID)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 1 || len(list[0].Replies) != 1 {
		t.Fatalf("unexpected comments: %+v", list)
	}

	if err := f.comments.Delete(context.Background(), eve, c.ID); !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("err = %v, want authorization error", err)
	}
	if err := f.comments.Delete(context.Background(), admin, c.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestCommentRejections(t *testing.T) {
	f := newFixture()
	dave := f.store.addUser("dave", rbac.RoleDonor)

	if _, err := f.comments.Create(context.Background(), dave, 42, "hello"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if _, err := f.comments.Create(context.Background(), dave, 42, strings.Repeat("x", 1001)); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if _, err := f.comments.Reply(context.Background(), nil, 1, "hi"); !apperr.Is(err, apperr.KindAuthentication) {
		t.Fatalf("err = %v, want authentication error", err)
	}
}
