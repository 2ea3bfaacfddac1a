package rbac

// Permissions
const (
	PermissionDonate           = "donation:create"
	PermissionCreateProject    = "project:create"
	PermissionManageProject    = "project:manage"
	PermissionManageAnyProject = "project:manage_any"
	PermissionComment          = "comment:create"
	PermissionModerateComments = "comment:moderate"
	PermissionReconcile        = "donation:reconcile"
	PermissionReplayOutbox     = "outbox:replay"
)

// Roles
const (
	RoleDonor   = "donor"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

var rolePermissions = map[string][]string{
	RoleDonor: {
		PermissionDonate,
		PermissionComment,
	},
	RoleCreator: {
		PermissionDonate,
		PermissionComment,
		PermissionCreateProject,
		PermissionManageProject,
	},
	RoleAdmin: {
		PermissionDonate,
		PermissionComment,
		PermissionCreateProject,
		PermissionManageProject,
		PermissionManageAnyProject,
		PermissionModerateComments,
		PermissionReconcile,
		PermissionReplayOutbox,
	},
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// IsSelfAssignable reports whether a user may pick role at registration.
func IsSelfAssignable(role string) bool {
	return role == RoleDonor || role == RoleCreator
}

// HasPermission reports whether role grants perm.
func HasPermission(role string, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission is HasPermission returning an error.
func CheckPermission(role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Role: role, Permission: permission}
	}
	return nil
}

// PermissionDeniedError reports a missing permission.
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
