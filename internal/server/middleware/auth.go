package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/faucetdb/licensed/internal/model"
	"github.com/faucetdb/licensed/internal/service"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
)

// Principal types.
const (
	PrincipalAdmin  = "admin"
	PrincipalAPIKey = "api_key"
)

// Principal represents the authenticated identity making the request.
type Principal struct {
	Type    string
	AdminID int64
	KeyID   int64
	Scope   string
}

// CanWrite reports whether the principal may call mutating admin routes:
// a logged-in admin or an admin-scoped API key.
func (p *Principal) CanWrite() bool {
	if p == nil {
		return false
	}
	return p.Type == PrincipalAdmin || p.Scope == model.ScopeAdmin
}

// Authenticate validates the X-API-Key header, falling back to a Bearer
// JWT in the Authorization header. On success a Principal is attached to
// the request context; otherwise the request is rejected with 401.
func Authenticate(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var principal *Principal

			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
				p, err := authSvc.ValidateAPIKey(r.Context(), apiKey)
				if err != nil {
					writeAuthError(w, http.StatusUnauthorized, "Invalid API key")
					return
				}
				principal = &Principal{Type: PrincipalAPIKey, KeyID: p.KeyID, Scope: p.Scope}
			}

			if principal == nil {
				authHeader := r.Header.Get("Authorization")
				if strings.HasPrefix(authHeader, "Bearer ") {
					p, err := authSvc.ValidateJWT(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
					if err != nil {
						writeAuthError(w, http.StatusUnauthorized, "Invalid token")
						return
					}
					principal = &Principal{Type: PrincipalAdmin, AdminID: p.AdminID, Scope: model.ScopeAdmin}
				}
			}

			if principal == nil {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide X-API-Key header or Bearer token.")
				return
			}

			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects principals that cannot write. It must run after
// Authenticate.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !GetPrincipal(r.Context()).CanWrite() {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects API keys; only a logged-in admin passes.
func RequireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil || p.Type != PrincipalAdmin {
				writeAuthError(w, http.StatusForbidden, "Admin session required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil for unauthenticated requests.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
