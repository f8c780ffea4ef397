package http

import (
	"net/http"
	"strings"

	"github.com/nightporter/staffgate/pkg/httpx"
	"github.com/nightporter/staffgate/pkg/oauthx"
)

// UserInfoHandler serves GET /connect/userinfo. Requires a live access
// token carrying the openid scope; the middleware chain has already
// resolved it into AuthInfo by the time we get here.
type UserInfoHandler struct{}

// userInfoResponse follows the standard OIDC claim names.
type userInfoResponse struct {
	Sub               string   `json:"sub"`
	Name              string   `json:"name,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Email             string   `json:"email,omitempty"`
	SessionID         string   `json:"sid,omitempty"`
	Roles             []string `json:"roles,omitempty"`
	Scope             string   `json:"scope,omitempty"`
}

func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	info, ok := httpx.AuthInfoFromCtx(r.Context())
	if !ok {
		oauthx.ErrInvalidToken.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, userInfoResponse{
		Sub:               info.Subject,
		Name:              info.Name,
		PreferredUsername: info.Username,
		Email:             info.Email,
		SessionID:         info.SessionID,
		Roles:             info.Roles,
		Scope:             strings.Join(info.Scopes, " "),
	})
}
