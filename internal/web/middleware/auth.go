package middleware

import (
	"net/http"

	"github.com/JonMunkholm/sheetgate/internal/auth"
)

// Authenticator verifies the credentials on a request and checks roles.
// *auth.Guard satisfies it.
type Authenticator interface {
	Authenticate(r *http.Request) (auth.Identity, error)
	Authorize(id auth.Identity, allowed ...auth.Role) error
}

// ErrorWriter renders a classified error for the client.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireAuth rejects requests without a valid bearer token before the
// handler runs. When roles are given, the verified role must equal one of
// them exactly. The identity is available downstream via auth.IdentityFrom.
func RequireAuth(guard Authenticator, onError ErrorWriter, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := guard.Authenticate(r)
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := auth.WithIdentity(r.Context(), id)
			r = r.WithContext(ctx)

			if len(roles) > 0 {
				if err := guard.Authorize(id, roles...); err != nil {
					onError(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
