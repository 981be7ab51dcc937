package httpx

import (
	"errors"
	"github.com/ariefcatur/go-shop-orders/internal/auth"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"log/slog"
	"net/http"
	"slices"
)

// Authenticate rejects requests without a valid credential before any
// handler (and so any upstream call) runs.
func Authenticate(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r)
			id, err := v.Verify(r.Context(), token)
			if err != nil {
				msg := "invalid or expired credential"
				switch {
				case errors.Is(err, auth.ErrNoCredential):
					msg = "authentication required"
				case errors.Is(err, auth.ErrRevoked):
					msg = "credential has been revoked"
				}
				slog.DebugContext(r.Context(), "authentication failed", "error", err)
				writeError(w, r, &orders.Error{Kind: orders.KindUnauthorized, Message: msg, Err: err})
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id, token)))
		})
	}
}

// RequireRoles answers 403 for an authenticated caller whose role is not listed.
func RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, r, &orders.Error{Kind: orders.KindUnauthorized, Message: "authentication required"})
				return
			}
			if !slices.Contains(roles, id.Role) {
				writeError(w, r, &orders.Error{Kind: orders.KindForbidden, Message: "role " + string(id.Role) + " may not use this endpoint"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
