package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/mochkris/procurement-backend/pkg/enums"
	"github.com/mochkris/procurement-backend/pkg/types"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext rebuilds the authenticated actor. ok is false when the
// request carries no valid user id or role.
func ActorFromContext(ctx context.Context) (types.Actor, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return types.Actor{}, false
	}
	role, err := enums.ParseActorRole(RoleFromContext(ctx))
	if err != nil {
		return types.Actor{}, false
	}
	return types.Actor{UserID: userID, Role: role}, true
}

// WithActor injects an authenticated actor into the context.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	return context.WithValue(ctx, ctxRole, actor.Role.String())
}
