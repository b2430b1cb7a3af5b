package enums

import "fmt"

// Role names a portal-wide permission set. Values match roles.name.
type Role string

const (
	RoleAdministrator Role = "Administrator"
	RoleUser          Role = "User"
)

var validRoles = []Role{
	RoleAdministrator,
	RoleUser,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// AllRoles lists every seeded role.
func AllRoles() []Role {
	out := make([]Role, len(validRoles))
	copy(out, validRoles)
	return out
}
