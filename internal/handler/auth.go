package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/sqshop/internal/domain/auth"
)

// APIKeyHeader carries the raw API key.
const APIKeyHeader = "X-API-Key"

var errForbidden = errors.New("forbidden")

// Authenticate resolves the X-API-Key header to an identity and stores it in
// the request context. Unknown keys get 401; lookup failures are 500.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := h.auth.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
		if err != nil {
			respondError(w, r, err)
			return
		}
		ctx := auth.WithIdentity(r.Context(), info)
		ctx = zctx.With(ctx, zap.String("user_id", info.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope rejects identities without scope with 403.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "", "missing or invalid API key")
				return
			}
			if !info.HasScope(scope) {
				writeError(w, http.StatusForbidden, "", "requires scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// identity returns the authenticated key. Authenticate guarantees it exists
// on every /api route.
func identity(r *http.Request) *auth.APIKeyInfo {
	info, _ := auth.FromContext(r.Context())
	if info == nil {
		return &auth.APIKeyInfo{}
	}
	return info
}

func isAdmin(r *http.Request) bool {
	return identity(r).HasScope(auth.ScopeAdmin)
}

// owns reports whether the caller may see a record of userID. Operators see
// everything.
func owns(r *http.Request, userID string) bool {
	return isAdmin(r) || (userID != "" && identity(r).UserID == userID)
}
