package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/nightporter/staffgate/internal/auth/clients"
	"github.com/nightporter/staffgate/internal/auth/oidc"
	"github.com/nightporter/staffgate/internal/auth/policy"
	"github.com/nightporter/staffgate/internal/auth/service"
	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/nightporter/staffgate/pkg/httpx"
	"github.com/nightporter/staffgate/pkg/oauthx"
	"github.com/nightporter/staffgate/pkg/slogx"
)

// TokenHandler serves POST /connect/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	Registry  *clients.Registry
	Codes     *oidc.CodeStore
	Tokens    *service.TokenService
	Refresh   *service.TokenRefreshService
	Sessions  *service.SessionService
	Employees *service.EmployeeService
	IDTokens  *oidc.IDTokenFactory
	Clock     clockx.Clock
}

func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		oauthx.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		h.handleAuthorizationCodeGrant(w, r, r.Form)
	case "refresh_token":
		h.handleRefreshGrant(w, r, r.Form)
	default:
		oauthx.ErrUnsupportedGrantType.WriteError(w)
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(
	w http.ResponseWriter,
	r *http.Request,
	form url.Values,
) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	code := strings.TrimSpace(form.Get("code"))
	redirectURI := strings.TrimSpace(form.Get("redirect_uri"))
	codeVerifier := strings.TrimSpace(form.Get("code_verifier"))
	clientID, clientSecret := clientCredentials(r, form)

	if code == "" || redirectURI == "" || clientID == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	client, err := h.Registry.Authenticate(clientID, clientSecret)
	if err != nil {
		oauthx.ErrInvalidClient.WriteError(w)
		return
	}

	// Single shot: a second exchange of the same code misses here.
	grant, ok := h.Codes.TryRedeem(code)
	if !ok || grant.ClientID != clientID || grant.RedirectURI != redirectURI {
		oauthx.ErrInvalidGrant.WriteError(w)
		return
	}

	if grant.CodeChallenge != "" &&
		!oidc.VerifyPKCE(grant.CodeChallenge, grant.CodeChallengeMethod, codeVerifier) {
		oauthx.ErrInvalidGrant.WriteError(w)
		return
	}

	now := h.Clock.Now().UTC()
	sess, err := h.Sessions.GetSessionByID(ctx, grant.SessionID)
	if err != nil || !sess.IsActive(now) {
		oauthx.ErrInvalidGrant.WriteError(w)
		return
	}

	emp, err := h.Employees.GetEmployeeByID(ctx, grant.EmployeeID)
	if err != nil {
		oauthx.ErrInvalidGrant.WriteError(w)
		return
	}

	pol := h.Registry.PolicyFor(client.ID)
	res, err := h.Tokens.Issue(ctx, service.IssueRequest{
		Employee:          emp,
		SessionID:         sess.ID,
		SessionHandleHash: sess.HandleHash,
		ClientID:          client.ID,
		Scopes:            grant.Scopes,
		Metadata:          sess.Metadata,
		Policy:            pol,
		IncludeRefresh:    service.HasScope(grant.Scopes, service.ScopeOfflineAccess),
	})
	if err != nil {
		log.ErrorContext(ctx, "authorization_code grant failed", "error", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	var idToken string
	if service.HasScope(grant.Scopes, service.ScopeOpenID) {
		idToken, err = h.IDTokens.Mint(oidc.IDTokenInput{
			Employee:  emp,
			ClientID:  client.ID,
			SessionID: sess.ID,
			Nonce:     grant.Nonce,
			AuthTime:  grant.AuthTime,
		})
		if err != nil {
			log.ErrorContext(ctx, "id token mint failed", "error", err)
			oauthx.ErrServerError.WriteError(w)
			return
		}
	}

	h.writeTokenResponse(w, res, pol, idToken)
}

func (h *TokenHandler) handleRefreshGrant(w http.ResponseWriter, r *http.Request, form url.Values) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	clientID, clientSecret := clientCredentials(r, form)
	refresh := refreshTokenFromRequest(r, form)

	if refresh == "" || clientID == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	if _, err := h.Registry.Authenticate(clientID, clientSecret); err != nil {
		oauthx.ErrInvalidClient.WriteError(w)
		return
	}

	pol := h.Registry.PolicyFor(clientID)
	res, err := h.Refresh.Refresh(ctx, service.RefreshRequest{
		RawToken: refresh,
		ClientID: clientID,
		Policy:   pol,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidGrant) {
			oauthx.ErrInvalidGrant.WriteError(w)
			return
		}
		log.ErrorContext(ctx, "refresh_token grant failed", "error", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	h.writeTokenResponse(w, res, pol, "")
}

func (h *TokenHandler) writeTokenResponse(
	w http.ResponseWriter,
	res service.IssueResult,
	pol policy.Options,
	idToken string,
) {
	now := h.Clock.Now().UTC()
	response := oauthx.TokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(res.AccessExpiresAt.Sub(now).Seconds()),
		Scope:       strings.Join(res.Scopes, " "),
		IDToken:     idToken,
	}

	if res.RefreshToken != "" {
		if pol.RefreshTokenTransport == policy.TransportCookie {
			http.SetCookie(w, &http.Cookie{
				Name:     RefreshCookieName,
				Value:    res.RefreshToken,
				Path:     "/connect/token",
				Expires:  res.RefreshExpiresAt,
				MaxAge:   int(res.RefreshExpiresAt.Sub(now).Seconds()),
				HttpOnly: true,
				Secure:   true,
				SameSite: http.SameSiteStrictMode,
			})
		} else {
			response.RefreshToken = res.RefreshToken
			response.RefreshTokenExpiresAt = res.RefreshExpiresAt.Unix()
		}
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}

// clientCredentials pulls client auth from Basic auth first, then the form.
func clientCredentials(r *http.Request, form url.Values) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok {
		if decoded, err := url.QueryUnescape(id); err == nil {
			id = decoded
		}
		if decoded, err := url.QueryUnescape(secret); err == nil {
			secret = decoded
		}
		return id, secret
	}
	return strings.TrimSpace(form.Get("client_id")), form.Get("client_secret")
}

// refreshTokenFromRequest prefers the form field, falling back to the cookie
// set for cookie-transport clients.
func refreshTokenFromRequest(r *http.Request, form url.Values) string {
	if v := strings.TrimSpace(form.Get("refresh_token")); v != "" {
		return v
	}
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		return c.Value
	}
	return ""
}
