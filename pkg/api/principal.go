package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/quillback/quill/pkg/errdefs"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
)

// principalKey carries the resolved principal through the request context
type principalKey struct{}

// userHeader names the identity header set by the fronting auth proxy.
// Identity verification happens upstream; this service resolves the id to
// an account and enforces authorization.
const userHeader = "X-User-ID"

// withPrincipal resolves the identity header against the user table and
// injects the principal. Unknown or missing identities are rejected here
// so handlers always see a valid principal.
func withPrincipal(st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(userHeader)
			if raw == "" {
				writeProblem(w, r, errdefs.Unauthenticated("missing identity"))
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				writeProblem(w, r, errdefs.Unauthenticated("malformed identity"))
				return
			}

			user, err := st.GetUser(r.Context(), id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeProblem(w, r, errdefs.Unauthenticated("unknown identity"))
					return
				}
				writeProblem(w, r, errdefs.Internal("failed to resolve identity", err))
				return
			}
			if !user.Active {
				writeProblem(w, r, errdefs.Unauthenticated("account is inactive"))
				return
			}

			p := types.Principal{UserID: user.ID, Role: user.Role, Active: user.Active}
			ctx := context.WithValue(r.Context(), principalKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// principalFrom returns the principal injected by withPrincipal
func principalFrom(ctx context.Context) types.Principal {
	p, _ := ctx.Value(principalKey{}).(types.Principal)
	return p
}
