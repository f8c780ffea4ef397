package http

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/nightporter/staffgate/internal/auth/clients"
	"github.com/nightporter/staffgate/internal/auth/domain"
	"github.com/nightporter/staffgate/internal/auth/oidc"
	"github.com/nightporter/staffgate/internal/auth/policy"
	"github.com/nightporter/staffgate/internal/auth/service"
	"github.com/nightporter/staffgate/internal/auth/store/drivers/sqlite"
	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/nightporter/staffgate/pkg/cryptox"
	"github.com/nightporter/staffgate/pkg/idx"
	"github.com/nightporter/staffgate/pkg/jwtx"
	"github.com/nightporter/staffgate/pkg/oauthx"
	"github.com/nightporter/staffgate/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer      = "https://auth.example.com"
	testRedirectURI = "https://portal.example.com/callback"
	testVerifier    = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testPassword    = "correct-horse-battery"
	backofficeKey   = "backoffice-secret"
)

type testEnv struct {
	router *Router
	clock  *clockx.Fake
	emp    domain.Employee
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	clock := clockx.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	passHash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)
	emp := domain.Employee{
		ID:           idx.New().String(),
		Username:     "alice",
		DisplayName:  "Alice Quinn",
		Email:        "alice@example.com",
		PasswordHash: passHash,
		Roles:        []string{"staff"},
		CreatedAt:    clock.Now(),
		UpdatedAt:    clock.Now(),
	}
	require.NoError(t, st.Employees().CreateEmployee(ctx, emp))

	secretHash, err := cryptox.HashPassword(backofficeKey)
	require.NoError(t, err)

	bodyTransport := policy.TransportBody
	registry, err := clients.New(policy.Defaults(), []clients.Client{
		{
			ID:           "staff-portal",
			Name:         "Staff Portal",
			RedirectURIs: []string{testRedirectURI},
			Scopes:       []string{"openid", "profile", "email", "offline_access"},
			Tokens:       policy.Overrides{RefreshTokenTransport: &bodyTransport},
		},
		{
			ID:           "backoffice",
			Name:         "Back Office",
			SecretHash:   secretHash,
			RedirectURIs: []string{"https://backoffice.example.com/cb"},
			Scopes:       []string{"openid", "profile"},
		},
	})
	require.NoError(t, err)

	signer, err := jwtx.NewEphemeralSignerEdDSA("test-key")
	require.NoError(t, err)

	tokens := &service.TokenService{
		Store:    st,
		Clock:    clock,
		Claims:   &service.DefaultClaimsFactory{Issuer: testIssuer},
		Policies: registry,
		Encoder:  &oidc.JWTAccessTokenEncoder{Signer: signer},
		Issuer:   testIssuer,
	}

	router := NewRouter(testIssuer, "test", signer, st, clock, slogx.Discard())
	router.Registry = registry
	router.Codes = oidc.NewCodeStore(clock, oidc.DefaultCodeTTL)
	router.IDTokens = &oidc.IDTokenFactory{Signer: signer, Clock: clock, Issuer: testIssuer}
	router.TokenService = tokens
	router.RefreshService = &service.TokenRefreshService{Store: st, Tokens: tokens, Clock: clock, Logger: slogx.Discard()}
	router.SessionService = &service.SessionService{Store: st, Clock: clock}
	router.EmployeeService = &service.EmployeeService{Store: st, Clock: clock}
	router.SessionLifetime = 12 * time.Hour
	router.ApplyRoutes()

	return &testEnv{router: router, clock: clock, emp: emp}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func pkceChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// login drives POST /connect/authorize and returns the authorization code
// and the session cookie.
func (e *testEnv) login(t *testing.T, scope string) (string, *http.Cookie) {
	t.Helper()

	form := url.Values{
		"response_type":         {"code"},
		"client_id":             {"staff-portal"},
		"redirect_uri":          {testRedirectURI},
		"scope":                 {scope},
		"state":                 {"xyz"},
		"nonce":                 {"n-1"},
		"code_challenge":        {pkceChallenge(testVerifier)},
		"code_challenge_method": {"S256"},
		"username":              {"alice"},
		"password":              {testPassword},
	}
	rec := e.do(postForm("/connect/authorize", form))
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "xyz", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	return code, sessionCookie
}

// exchange drives the authorization_code grant for the public test client.
func (e *testEnv) exchange(t *testing.T, code string) oauthx.TokenResponse {
	t.Helper()

	rec := e.do(postForm("/connect/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {"staff-portal"},
		"code_verifier": {testVerifier},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp oauthx.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuthorizationCodeFlow(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.login(t, "openid profile offline_access")

	resp := e.exchange(t, code)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.NotEmpty(t, resp.IDToken)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, int(policy.Defaults().AccessTokenTTL.Seconds()), resp.ExpiresIn)
	require.Equal(t, "openid profile offline_access", resp.Scope)

	t.Run("code is single use", func(t *testing.T) {
		rec := e.do(postForm("/connect/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {testRedirectURI},
			"client_id":     {"staff-portal"},
			"code_verifier": {testVerifier},
		}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_grant")
	})
}

func TestAuthorizationCodeRejections(t *testing.T) {
	e := newTestEnv(t)

	t.Run("wrong PKCE verifier", func(t *testing.T) {
		code, _ := e.login(t, "openid profile")
		rec := e.do(postForm("/connect/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {testRedirectURI},
			"client_id":     {"staff-portal"},
			"code_verifier": {"not-the-right-verifier-at-all-no"},
		}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_grant")
	})

	t.Run("expired code", func(t *testing.T) {
		code, _ := e.login(t, "openid profile")
		e.clock.Advance(oidc.DefaultCodeTTL + time.Second)
		rec := e.do(postForm("/connect/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {testRedirectURI},
			"client_id":     {"staff-portal"},
			"code_verifier": {testVerifier},
		}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_grant")
	})

	t.Run("missing openid scope fails at authorize", func(t *testing.T) {
		form := url.Values{
			"response_type":  {"code"},
			"client_id":      {"staff-portal"},
			"redirect_uri":   {testRedirectURI},
			"scope":          {"profile"},
			"code_challenge": {pkceChallenge(testVerifier)},
			"username":       {"alice"},
			"password":       {testPassword},
		}
		rec := e.do(postForm("/connect/authorize", form))
		require.Equal(t, http.StatusFound, rec.Code)
		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "invalid_scope", loc.Query().Get("error"))
	})

	t.Run("wrong password requires login", func(t *testing.T) {
		form := url.Values{
			"response_type":  {"code"},
			"client_id":      {"staff-portal"},
			"redirect_uri":   {testRedirectURI},
			"scope":          {"openid"},
			"code_challenge": {pkceChallenge(testVerifier)},
			"username":       {"alice"},
			"password":       {"wrong"},
		}
		rec := e.do(postForm("/connect/authorize", form))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "login_required")
	})

	t.Run("unregistered redirect uri never redirects", func(t *testing.T) {
		form := url.Values{
			"response_type": {"code"},
			"client_id":     {"staff-portal"},
			"redirect_uri":  {"https://evil.example.com/steal"},
			"scope":         {"openid"},
			"username":      {"alice"},
			"password":      {testPassword},
		}
		rec := e.do(postForm("/connect/authorize", form))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, rec.Header().Get("Location"))
	})
}

func TestAuthorizeWithSessionCookie(t *testing.T) {
	e := newTestEnv(t)
	_, cookie := e.login(t, "openid profile")

	// A later authorize with the cookie skips credentials entirely.
	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {"staff-portal"},
		"redirect_uri":          {testRedirectURI},
		"scope":                 {"openid profile"},
		"code_challenge":        {pkceChallenge(testVerifier)},
		"code_challenge_method": {"S256"},
	}
	req := httptest.NewRequest(http.MethodGet, "/connect/authorize?"+q.Encode(), nil)
	req.AddCookie(cookie)
	rec := e.do(req)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	t.Run("no cookie means login_required", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/connect/authorize?"+q.Encode(), nil)
		rec := e.do(req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "login_required")
	})
}

func TestRefreshGrantHTTP(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.login(t, "openid offline_access")
	first := e.exchange(t, code)

	refreshForm := func(token string) url.Values {
		return url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {token},
			"client_id":     {"staff-portal"},
		}
	}

	rec := e.do(postForm("/connect/token", refreshForm(first.RefreshToken)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var second oauthx.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.NotEmpty(t, second.RefreshToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	t.Run("replay of the rotated token fails", func(t *testing.T) {
		rec := e.do(postForm("/connect/token", refreshForm(first.RefreshToken)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_grant")
	})

	t.Run("and the replacement died with it", func(t *testing.T) {
		rec := e.do(postForm("/connect/token", refreshForm(second.RefreshToken)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_grant")
	})
}

func TestUserInfoHTTP(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.login(t, "openid profile")
	resp := e.exchange(t, code)

	req := httptest.NewRequest(http.MethodGet, "/connect/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	rec := e.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var info userInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, e.emp.ID, info.Sub)
	require.Equal(t, "alice", info.PreferredUsername)
	require.Equal(t, "Alice Quinn", info.Name)
	require.Equal(t, []string{"staff"}, info.Roles)

	t.Run("no token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/connect/userinfo", nil)
		rec := e.do(req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		e.clock.Advance(policy.Defaults().AccessTokenTTL + time.Second)
		req := httptest.NewRequest(http.MethodGet, "/connect/userinfo", nil)
		req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
		rec := e.do(req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestIntrospectHTTP(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.login(t, "openid offline_access")
	resp := e.exchange(t, code)

	introspect := func(token string, auth bool) *httptest.ResponseRecorder {
		req := postForm("/connect/introspect", url.Values{"token": {token}})
		if auth {
			req.SetBasicAuth("backoffice", backofficeKey)
		}
		return e.do(req)
	}

	t.Run("active token", func(t *testing.T) {
		rec := introspect(resp.RefreshToken, true)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out oauthx.IntrospectionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.True(t, out.Active)
		require.Equal(t, "staff-portal", out.ClientID)
		require.Equal(t, e.emp.ID, out.Sub)
	})

	t.Run("unknown token is inactive", func(t *testing.T) {
		rec := introspect("garbage", true)
		require.Equal(t, http.StatusOK, rec.Code)

		var out oauthx.IntrospectionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.False(t, out.Active)
	})

	t.Run("public client is refused", func(t *testing.T) {
		req := postForm("/connect/introspect", url.Values{
			"token":     {resp.RefreshToken},
			"client_id": {"staff-portal"},
		})
		rec := e.do(req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no credentials", func(t *testing.T) {
		rec := introspect(resp.RefreshToken, false)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRevokeHTTP(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.login(t, "openid offline_access")
	resp := e.exchange(t, code)

	rec := e.do(postForm("/connect/revoke", url.Values{
		"token":     {resp.RefreshToken},
		"client_id": {"staff-portal"},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("revoked refresh token no longer works", func(t *testing.T) {
		rec := e.do(postForm("/connect/token", url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {resp.RefreshToken},
			"client_id":     {"staff-portal"},
		}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_grant")
	})

	t.Run("unknown token still 200", func(t *testing.T) {
		rec := e.do(postForm("/connect/revoke", url.Values{
			"token":     {"never-issued"},
			"client_id": {"staff-portal"},
		}))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSessionsHTTP(t *testing.T) {
	e := newTestEnv(t)
	code, cookie := e.login(t, "openid profile")
	resp := e.exchange(t, code)

	authed := func(method, path string) *http.Request {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
		return req
	}

	var current string
	t.Run("list marks the current session", func(t *testing.T) {
		rec := e.do(authed(http.MethodGet, "/sessions"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out sessionListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out.Sessions, 1)
		require.True(t, out.Sessions[0].Current)
		current = out.Sessions[0].ID
	})

	t.Run("unknown session id 404s", func(t *testing.T) {
		rec := e.do(authed(http.MethodPost, "/sessions/"+idx.New().String()+"/revoke"))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("revoking the current session cuts off its token", func(t *testing.T) {
		rec := e.do(authed(http.MethodPost, "/sessions/"+current+"/revoke"))
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = e.do(authed(http.MethodGet, "/sessions"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("logout clears the cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/connect/logout", nil)
		req.AddCookie(cookie)
		rec := e.do(req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		for _, c := range rec.Result().Cookies() {
			if c.Name == SessionCookieName {
				require.Equal(t, -1, c.MaxAge)
			}
		}
	})
}

func TestDiscoveryAndHealth(t *testing.T) {
	e := newTestEnv(t)

	t.Run("openid-configuration", func(t *testing.T) {
		rec := e.do(httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var doc discoveryDocument
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		require.Equal(t, testIssuer, doc.Issuer)
		require.Equal(t, testIssuer+"/connect/token", doc.TokenEndpoint)
		require.Contains(t, doc.CodeChallengeMethodsSupported, "S256")
	})

	t.Run("jwks", func(t *testing.T) {
		rec := e.do(httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"OKP"`)
	})

	t.Run("livez", func(t *testing.T) {
		rec := e.do(httptest.NewRequest(http.MethodGet, "/livez", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz", func(t *testing.T) {
		rec := e.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"ok"`)
	})
}
