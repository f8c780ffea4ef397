package http

import (
	"net/http"
	"strings"

	"github.com/nightporter/staffgate/internal/auth/clients"
	"github.com/nightporter/staffgate/internal/auth/service"
	"github.com/nightporter/staffgate/pkg/oauthx"
	"github.com/nightporter/staffgate/pkg/slogx"
)

// RevokeHandler serves POST /connect/revoke (RFC 7009). Revocation succeeds
// with 200 whether or not the token existed, so callers cannot probe for
// live tokens here.
type RevokeHandler struct {
	Registry *clients.Registry
	Tokens   *service.TokenService
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	clientID, clientSecret := clientCredentials(r, r.Form)
	if _, err := h.Registry.Authenticate(clientID, clientSecret); err != nil {
		oauthx.ErrInvalidClient.WriteError(w)
		return
	}

	token := strings.TrimSpace(r.Form.Get("token"))
	if token == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Tokens.RevokeToken(r.Context(), token); err != nil {
		ctx := r.Context()
		slogx.FromContext(ctx).ErrorContext(ctx, "revocation failed", "error", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}
