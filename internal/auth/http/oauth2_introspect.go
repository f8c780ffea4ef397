package http

import (
	"net/http"
	"strings"

	"github.com/nightporter/staffgate/internal/auth/clients"
	"github.com/nightporter/staffgate/internal/auth/service"
	"github.com/nightporter/staffgate/pkg/httpx"
	"github.com/nightporter/staffgate/pkg/oauthx"
)

// IntrospectHandler serves POST /connect/introspect (RFC 7662). Only
// confidential clients may ask; a public client has no way to prove who it
// is, and introspection leaks token metadata.
type IntrospectHandler struct {
	Registry *clients.Registry
	Tokens   *service.TokenService
}

func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	clientID, clientSecret := clientCredentials(r, r.Form)
	client, err := h.Registry.Authenticate(clientID, clientSecret)
	if err != nil || !client.Confidential() {
		oauthx.ErrInvalidClient.WriteError(w)
		return
	}

	token := strings.TrimSpace(r.Form.Get("token"))
	if token == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	// Dead, unknown, and malformed tokens all produce the same inactive
	// answer; nothing else about them is disclosed.
	response := h.Tokens.Introspect(r.Context(), token)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
