package authapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Lerniqo/user-service/cmd/directory"
)

type ctxKey struct{}

var accountCtxKey ctxKey

// AccountFromContext returns the authenticated account placed by
// Authenticate. ok is false on unauthenticated requests.
func AccountFromContext(ctx context.Context) (directory.Account, bool) {
	a, ok := ctx.Value(accountCtxKey).(directory.Account)
	return a, ok
}

// Authenticate resolves the access token (Authorization header, then the
// access cookie) to a live account and stores it on the request context.
// Requests without a valid token get 401.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := h.accessTokenFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing access token")
			return
		}

		account, err := h.svc.Authenticate(r.Context(), time.Now().UTC(), raw)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountCtxKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a route to the listed roles. Must run after
// Authenticate; an unauthenticated request gets 401, a wrong role 403.
func (h *Handler) RequireRole(roles ...directory.Role) func(http.Handler) http.Handler {
	allowed := make(map[directory.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, ok := AccountFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "missing access token")
				return
			}
			if !allowed[account.Role] {
				writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
