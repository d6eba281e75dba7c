package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mochkris/procurement-backend/pkg/enums"
)

func TestActorPointers(t *testing.T) {
	system := SystemActor()
	require.Nil(t, system.UserIDPtr())
	require.Equal(t, "system", *system.RolePtr())

	id := uuid.New()
	actor := Actor{UserID: id, Role: enums.ActorRoleCustodian}
	require.Equal(t, id, *actor.UserIDPtr())
	require.Nil(t, Actor{}.RolePtr())
}

func TestActorHasRole(t *testing.T) {
	require.True(t, Actor{Role: enums.ActorRoleVP}.HasRole(enums.ActorRoleVP, enums.ActorRoleManager))
	require.False(t, Actor{Role: enums.ActorRoleDepartment}.HasRole(enums.ActorRoleVP))
	require.True(t, Actor{Role: enums.ActorRoleAdmin}.HasRole(enums.ActorRoleCustodian))
}
