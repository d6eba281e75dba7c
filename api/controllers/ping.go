package controllers

import (
	"net/http"

	"github.com/mochkris/procurement-backend/api/middleware"
	"github.com/mochkris/procurement-backend/api/responses"
)

// PrivatePing echoes the authenticated actor so clients can verify a token.
func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if actor, ok := middleware.ActorFromContext(r.Context()); ok {
			payload["user_id"] = actor.UserID.String()
			payload["role"] = actor.Role.String()
		}
		responses.WriteSuccess(w, payload)
	}
}
