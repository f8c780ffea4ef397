package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/nightporter/staffgate/pkg/slogx"
)

// AuthInfo is the identity a bearer access token resolved to.
type AuthInfo struct {
	Subject   string
	SessionID string
	ClientID  string
	Scopes    []string
	Name      string
	Username  string
	Email     string
	Roles     []string
}

// AccessAuthenticator resolves a raw bearer token into an AuthInfo. The
// implementation checks the token row and its session, so a revoked session
// fails authentication even if the token itself has not expired.
type AccessAuthenticator interface {
	AuthenticateAccessToken(ctx context.Context, raw string) (AuthInfo, error)
}

// AuthnMiddleware guards a handler behind bearer access-token authentication.
func AuthnMiddleware(a AccessAuthenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			info, err := a.AuthenticateAccessToken(ctx, raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Warn("access token rejected", "err", err)
				return
			}

			// Inject into context for downstream handlers.
			ctx = contextWithAuth(ctx, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func contextWithAuth(ctx context.Context, info AuthInfo) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, info.Subject)
	ctx = context.WithValue(ctx, CtxKeySessionID, info.SessionID)
	ctx = context.WithValue(ctx, CtxKeyScopes, info.Scopes)
	ctx = context.WithValue(ctx, CtxKeyAuth, info)
	return ctx
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
