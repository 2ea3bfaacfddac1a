package rbac

import (
	"errors"
	"testing"
)

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleDonor, PermissionDonate, true},
		{RoleDonor, PermissionCreateProject, false},
		{RoleCreator, PermissionCreateProject, true},
		{RoleCreator, PermissionManageAnyProject, false},
		{RoleAdmin, PermissionReconcile, true},
		{"guest", PermissionDonate, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.permission); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.permission, got, tt.want)
		}
	}
}

func TestCheckPermissionReturnsTypedError(t *testing.T) {
	err := CheckPermission(RoleDonor, PermissionReplayOutbox)
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	if denied.Role != RoleDonor {
		t.Fatalf("role mismatch: %q", denied.Role)
	}
}

func TestSelfAssignableRoles(t *testing.T) {
	if !IsSelfAssignable(RoleDonor) || !IsSelfAssignable(RoleCreator) {
		t.Fatal("donor and creator must be self-assignable")
	}
	if IsSelfAssignable(RoleAdmin) {
		t.Fatal("admin must not be self-assignable")
	}
	if !IsValidRole(RoleAdmin) || IsValidRole("root") {
		t.Fatal("IsValidRole mismatch")
	}
}
