package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nightporter/staffgate/internal/auth/clients"
	"github.com/nightporter/staffgate/internal/auth/oidc"
	"github.com/nightporter/staffgate/internal/auth/service"
	"github.com/nightporter/staffgate/pkg/httpx"
	"github.com/nightporter/staffgate/pkg/oauthx"
	"github.com/nightporter/staffgate/pkg/slogx"
)

// AuthorizeHandler serves the authorization endpoint. GET resolves the
// browser session cookie and hands out a code; POST additionally performs
// the login that creates that session. There is no HTML here: clients drive
// the flow over JSON and follow the redirect themselves.
type AuthorizeHandler struct {
	Registry  *clients.Registry
	Codes     *oidc.CodeStore
	Sessions  *service.SessionService
	Employees *service.EmployeeService

	SessionLifetime time.Duration
}

// authorizeParams are the query/form fields shared by GET and POST.
type authorizeParams struct {
	clientID            string
	redirectURI         string
	scopes              []string
	state               string
	nonce               string
	codeChallenge       string
	codeChallengeMethod string
}

func (h *AuthorizeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	params, client, ok := h.validateRequest(w, r.URL.Query())
	if !ok {
		return
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		oauthx.ErrLoginRequired.WriteError(w)
		return
	}
	sess, err := h.Sessions.GetByHandle(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, service.ErrLoginRequired) {
			oauthx.ErrLoginRequired.WriteError(w)
			return
		}
		oauthx.ErrServerError.WriteError(w)
		return
	}

	h.issueCode(w, r, params, client, sess.EmployeeID, sess.ID, sess.CreatedAt)
}

func (h *AuthorizeHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthx.ErrInvalidFormBody.WriteError(w)
		return
	}

	params, client, ok := h.validateRequest(w, r.Form)
	if !ok {
		return
	}

	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")
	if username == "" || password == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}

	ctx := r.Context()
	emp, err := h.Employees.VerifyCredentials(ctx, username, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			oauthx.ErrLoginRequired.WriteError(w)
			return
		}
		slogx.FromContext(ctx).ErrorContext(ctx, "credential check failed", "error", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	req := service.CreateSessionRequest{
		EmployeeID:  emp.ID,
		ClientID:    client.ID,
		Device:      r.UserAgent(),
		IPAddress:   httpx.GetRemoteIP(r),
		IssueHandle: true,
	}
	if h.SessionLifetime > 0 {
		lifetime := h.SessionLifetime
		req.Lifetime = &lifetime
	}
	created, err := h.Sessions.CreateSession(ctx, req)
	if err != nil {
		slogx.FromContext(ctx).ErrorContext(ctx, "session create failed", "error", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    created.Handle,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	if created.Session.ExpiresAt != nil {
		cookie.Expires = *created.Session.ExpiresAt
	}
	http.SetCookie(w, cookie)

	h.issueCode(w, r, params, client, emp.ID, created.Session.ID, created.Session.CreatedAt)
}

// validateRequest checks everything that must be right before we are
// willing to redirect anywhere. Failures here write a JSON error instead of
// bouncing the browser to an unverified URI.
func (h *AuthorizeHandler) validateRequest(w http.ResponseWriter, values url.Values) (authorizeParams, clients.Client, bool) {
	params := authorizeParams{
		clientID:            strings.TrimSpace(values.Get("client_id")),
		redirectURI:         strings.TrimSpace(values.Get("redirect_uri")),
		scopes:              httpx.ParseSpaceDelimitedFields(values.Get("scope")),
		state:               values.Get("state"),
		nonce:               values.Get("nonce"),
		codeChallenge:       strings.TrimSpace(values.Get("code_challenge")),
		codeChallengeMethod: strings.TrimSpace(values.Get("code_challenge_method")),
	}

	if params.clientID == "" || params.redirectURI == "" {
		oauthx.ErrInvalidRequest.WriteError(w)
		return authorizeParams{}, clients.Client{}, false
	}

	client, ok := h.Registry.Get(params.clientID)
	if !ok {
		oauthx.ErrInvalidClient.WriteError(w)
		return authorizeParams{}, clients.Client{}, false
	}
	if !client.AllowsRedirectURI(params.redirectURI) {
		oauthx.ErrInvalidRequest.WriteError(w)
		return authorizeParams{}, clients.Client{}, false
	}

	if values.Get("response_type") != "code" {
		redirectError(w, params, oauthx.ErrorCodeUnsupportedResponseType)
		return authorizeParams{}, clients.Client{}, false
	}
	if !service.HasScope(params.scopes, service.ScopeOpenID) || !client.AllowsScopes(params.scopes) {
		redirectError(w, params, oauthx.ErrorCodeInvalidScope)
		return authorizeParams{}, clients.Client{}, false
	}

	// Public clients must bring PKCE; confidential ones may.
	if params.codeChallenge == "" && !client.Confidential() {
		redirectError(w, params, oauthx.ErrorCodeInvalidRequest)
		return authorizeParams{}, clients.Client{}, false
	}
	if params.codeChallenge != "" {
		switch params.codeChallengeMethod {
		case "", oidc.PKCEMethodS256, oidc.PKCEMethodPlain:
		default:
			redirectError(w, params, oauthx.ErrorCodeInvalidRequest)
			return authorizeParams{}, clients.Client{}, false
		}
	}

	return params, client, true
}

func (h *AuthorizeHandler) issueCode(
	w http.ResponseWriter,
	r *http.Request,
	params authorizeParams,
	client clients.Client,
	employeeID, sessionID string,
	authTime time.Time,
) {
	code, err := h.Codes.Create(oidc.Code{
		EmployeeID:          employeeID,
		ClientID:            client.ID,
		RedirectURI:         params.redirectURI,
		Scopes:              params.scopes,
		SessionID:           sessionID,
		Nonce:               params.nonce,
		CodeChallenge:       params.codeChallenge,
		CodeChallengeMethod: params.codeChallengeMethod,
		AuthTime:            authTime,
	})
	if err != nil {
		slogx.FromContext(r.Context()).ErrorContext(r.Context(), "code mint failed", "error", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	target, err := url.Parse(params.redirectURI)
	if err != nil {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}
	q := target.Query()
	q.Set("code", code)
	if params.state != "" {
		q.Set("state", params.state)
	}
	target.RawQuery = q.Encode()

	httpx.NoCache(w)
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// redirectError sends an RFC 6749 error back through the validated redirect
// URI.
func redirectError(w http.ResponseWriter, params authorizeParams, code string) {
	target, err := url.Parse(params.redirectURI)
	if err != nil {
		oauthx.ErrInvalidRequest.WriteError(w)
		return
	}
	q := target.Query()
	q.Set("error", code)
	if params.state != "" {
		q.Set("state", params.state)
	}
	target.RawQuery = q.Encode()

	w.Header().Set("Location", target.String())
	w.WriteHeader(http.StatusFound)
}
