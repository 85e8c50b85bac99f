package auth

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
)

// Gateway headers used when no signing secret is configured and an upstream proxy has already authenticated.
const (
	HeaderUserID = "X-User-Id"
	HeaderUnitID = "X-Unit-Id"
	HeaderRole   = "X-Role"
)

// Authenticate attaches the caller's Actor to the request context.
// With a secret, a valid Bearer token is required when an Authorization header is sent.
// Requests without credentials pass through anonymously; RequireRole rejects them where it matters.
func Authenticate(secret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				if uid := strings.TrimSpace(r.Header.Get(HeaderUserID)); uid != "" {
					r = r.WithContext(WithActor(r.Context(), Actor{
						UserID: uid,
						UnitID: strings.TrimSpace(r.Header.Get(HeaderUnitID)),
						Role:   strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole))),
					}))
				}
				next.ServeHTTP(w, r)
				return
			}

			authz := r.Header.Get("Authorization")
			if authz == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(authz, "Bearer ")
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "expected bearer token")
				return
			}
			claims, err := ParseHS256(strings.TrimSpace(token), secret)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.Actor())))
		})
	}
}

// RequireRole guards h so only actors with one of roles reach it.
func RequireRole(h http.Handler, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if !actor.HasRole(roles...) {
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "role not permitted")
			return
		}
		h.ServeHTTP(w, r)
	})
}
