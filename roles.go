package moderation

// RoleSet is a flat capability group. Authorization is plain membership,
// there is no ordering between roles.
type RoleSet []UserRole

// Capability groups used across the API surface.
var (
	// AdminOnly guards moderation decisions and account management.
	AdminOnly = RoleSet{RoleAdmin}
	// Publishers may author and submit content for review.
	Publishers = RoleSet{RoleAdmin, RoleCreator}
	// Members is every authenticated role.
	Members = RoleSet{RoleAdmin, RoleCreator, RoleConsumer}
)

// Contains reports whether the role belongs to the set.
func (s RoleSet) Contains(role UserRole) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// Strings returns the set as plain strings for claims and middleware checks.
func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleCreator, RoleConsumer:
		return true
	default:
		return false
	}
}

// In reports membership of the role in the given allowed roles.
func (r UserRole) In(allowed ...UserRole) bool {
	return RoleSet(allowed).Contains(r)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleAdmin,
		RoleCreator,
		RoleConsumer,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}
