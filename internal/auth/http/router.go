// Package http wires the OAuth2/OIDC endpoints onto a ServeMux with the
// middleware each route needs.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nightporter/staffgate/internal/auth/clients"
	"github.com/nightporter/staffgate/internal/auth/oidc"
	"github.com/nightporter/staffgate/internal/auth/service"
	"github.com/nightporter/staffgate/internal/auth/store"
	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/nightporter/staffgate/pkg/httpx"
	"github.com/nightporter/staffgate/pkg/jwtx"
	"github.com/nightporter/staffgate/pkg/slogx"
)

// Cookie names used by the browser-facing endpoints.
const (
	SessionCookieName = "sg_session"
	RefreshCookieName = "sg_refresh"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	clock        clockx.Clock
	signer       jwtx.Signer
	store        store.Store

	Registry *clients.Registry
	Codes    *oidc.CodeStore
	IDTokens *oidc.IDTokenFactory

	TokenService    *service.TokenService
	RefreshService  *service.TokenRefreshService
	SessionService  *service.SessionService
	EmployeeService *service.EmployeeService

	// SessionLifetime caps browser sessions created at the authorize
	// endpoint. Zero means sessions live until revoked.
	SessionLifetime time.Duration
}

func NewRouter(
	issuer, buildVersion string,
	signer jwtx.Signer,
	st store.Store,
	clock clockx.Clock,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		clock:        clock,
		signer:       signer,
		store:        st,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerUserInfo()
	r.registerSessions()
	r.registerDiscovery()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{
		Registry:        r.Registry,
		Codes:           r.Codes,
		Sessions:        r.SessionService,
		Employees:       r.EmployeeService,
		SessionLifetime: r.SessionLifetime,
	}

	// GET /connect/authorize - lenient, it only resolves the cookie
	r.Mux.Handle("GET /connect/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /connect/authorize carries credentials, so it is limited by
	// IP plus the attempted username to slow down brute force.
	r.Mux.Handle("POST /connect/authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	tokenHandler := &TokenHandler{
		Registry:  r.Registry,
		Codes:     r.Codes,
		Tokens:    r.TokenService,
		Refresh:   r.RefreshService,
		Sessions:  r.SessionService,
		Employees: r.EmployeeService,
		IDTokens:  r.IDTokens,
		Clock:     r.clock,
	}
	r.Mux.Handle("POST /connect/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	introspectHandler := &IntrospectHandler{Registry: r.Registry, Tokens: r.TokenService}
	r.Mux.Handle("POST /connect/introspect",
		httpx.Chain(introspectHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	revokeHandler := &RevokeHandler{Registry: r.Registry, Tokens: r.TokenService}
	r.Mux.Handle("POST /connect/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerUserInfo() {
	h := &UserInfoHandler{}

	secured := httpx.Chain(h,
		httpx.AuthnMiddleware(r.TokenService),
		httpx.RequireAnyScope("openid"),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)

	r.Mux.Handle("GET /connect/userinfo", secured)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{Sessions: r.SessionService}

	r.Mux.Handle("GET /sessions",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /sessions/{id}/revoke",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	logout := &LogoutHandler{Sessions: r.SessionService}
	r.Mux.Handle("GET /connect/logout",
		httpx.Chain(logout,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerDiscovery() {
	r.Mux.Handle("GET /.well-known/openid-configuration",
		httpx.Chain(DiscoveryHandler(r.issuer),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.signer),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer))
}
