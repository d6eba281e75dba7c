package enums

import "fmt"

// ActorRole is the workflow role carried in access tokens.
type ActorRole string

const (
	ActorRoleDepartment ActorRole = "department"
	ActorRoleVP         ActorRole = "vp"
	ActorRoleCustodian  ActorRole = "custodian"
	ActorRolePurchasing ActorRole = "purchasing"
	ActorRoleManager    ActorRole = "manager"
	ActorRoleAdmin      ActorRole = "admin"
	ActorRoleSystem     ActorRole = "system"
)

var validActorRoles = []ActorRole{
	ActorRoleDepartment,
	ActorRoleVP,
	ActorRoleCustodian,
	ActorRolePurchasing,
	ActorRoleManager,
	ActorRoleAdmin,
	ActorRoleSystem,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
