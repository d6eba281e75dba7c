package types

import (
	"github.com/google/uuid"

	"github.com/mochkris/procurement-backend/pkg/enums"
)

// Actor is the caller behind a workflow operation. Jobs run as SystemActor.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// SystemActor identifies work triggered by the service itself (auto restock, cron).
func SystemActor() Actor {
	return Actor{Role: enums.ActorRoleSystem}
}

// UserIDPtr returns nil for anonymous or system actors.
func (a Actor) UserIDPtr() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

// RolePtr returns nil when no role is set.
func (a Actor) RolePtr() *string {
	if a.Role == "" {
		return nil
	}
	role := a.Role.String()
	return &role
}

// HasRole reports whether the actor holds any of the roles. Admin always matches.
func (a Actor) HasRole(roles ...enums.ActorRole) bool {
	if a.Role == enums.ActorRoleAdmin {
		return true
	}
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}
