package service

import (
	"context"
	"testing"

	"propel/internal/apperr"
	"propel/internal/model"
	"propel/pkg/rbac"
)

func TestUserProfileVisibility(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", rbac.RoleCreator)
	eve := f.store.addUser("eve", rbac.RoleDonor)
	f.store.addProject(carol.ID, "100", "0", model.ProjectActive)

	own, err := f.users.Get(context.Background(), carol, carol.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if own.Email == "" || len(own.CreatedProjects) != 1 {
		t.Fatalf("unexpected own profile: %+v", own)
	}

	public, err := f.users.Get(context.Background(), eve, carol.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if public.Email != "" || public.DonationHistory != nil {
		t.Fatalf("private fields leaked: %+v", public)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture()
	carol := f.store.addUser("carol", rbac.RoleCreator)
	eve := f.store.addUser("eve", rbac.RoleDonor)

	bio := "Builder of wells"
	u, err := f.users.UpdateProfile(context.Background(), carol, carol.ID, UpdateProfileInput{Bio: &bio})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if u.Bio != bio || u.Role != rbac.RoleCreator {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := f.users.UpdateProfile(context.Background(), eve, carol.ID, UpdateProfileInput{Bio: &bio}); !apperr.Is(err, apperr.KindAuthorization) {
		t.Fatalf("err = %v, want authorization error", err)
	}
	empty := " "
	if _, err := f.users.UpdateProfile(context.Background(), carol, carol.ID, UpdateProfileInput{Name: &empty}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}
