package middleware

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"

	"campusevents/apperr"
	"campusevents/auth"
	"campusevents/globals"
	"campusevents/structs"
	"campusevents/utils"

	"github.com/julienschmidt/httprouter"
)

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
			return ""
		}
		return strings.TrimSpace(h[7:])
	}
	// browsers cannot set headers on websocket upgrades
	return r.URL.Query().Get("token")
}

func Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		tokenString := tokenFrom(r)
		if tokenString == "" {
			utils.SendError(w, apperr.Unauthorized("Missing or malformed token"))
			return
		}

		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			utils.SendError(w, apperr.Unauthorized("Invalid token"))
			return
		}

		actor := structs.Actor{UserID: claims.UserID, Role: claims.Role}
		ctx := context.WithValue(r.Context(), globals.ActorKey, actor)
		next(w, r.WithContext(ctx), ps)
	}
}

// RequireRole must run inside Authenticate.
func RequireRole(next httprouter.Handle, roles ...structs.Role) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		actor, ok := ActorFrom(r.Context())
		if !ok {
			utils.SendError(w, apperr.Unauthorized("Not authenticated"))
			return
		}
		if !slices.Contains(roles, actor.Role) {
			utils.SendError(w, apperr.Forbidden("You do not have access to this resource"))
			return
		}
		next(w, r, ps)
	}
}

func ActorFrom(ctx context.Context) (structs.Actor, bool) {
	actor, ok := ctx.Value(globals.ActorKey).(structs.Actor)
	return actor, ok
}

// Security headers middleware
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Recover turns handler panics into a 500 instead of dropping the connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Printf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				utils.SendJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
