package rbac

// Role names. Keep these stable; they are part of auth contracts.
const (
	RoleAdmin   = "admin"
	RoleCreator = "creator"
	RoleViewer  = "viewer"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleCreator, RoleViewer:
		return true
	default:
		return false
	}
}

// CanWrite reports whether role may spend provider quota (generate, render, save).
func CanWrite(role string) bool {
	return role == RoleAdmin || role == RoleCreator
}
