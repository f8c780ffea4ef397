package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/nightporter/staffgate/internal/auth/service"
	"github.com/nightporter/staffgate/internal/auth/store"
	"github.com/nightporter/staffgate/pkg/httpx"
	"github.com/nightporter/staffgate/pkg/oauthx"
	"github.com/nightporter/staffgate/pkg/slogx"
)

// SessionsHandler lets an authenticated employee review and end their own
// sessions.
type SessionsHandler struct {
	Sessions *service.SessionService
}

type sessionSummary struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"client_id"`
	Device        string     `json:"device,omitempty"`
	IPAddress     string     `json:"ip_address,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
	Current       bool       `json:"current"`
}

type sessionListResponse struct {
	Sessions []sessionSummary `json:"sessions"`
}

// HandleList serves GET /sessions. Dead sessions are included so the list
// doubles as a login history.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, ok := httpx.AuthInfoFromCtx(ctx)
	if !ok {
		oauthx.ErrInvalidToken.WriteError(w)
		return
	}

	sessions, err := h.Sessions.ListForEmployee(ctx, info.Subject)
	if err != nil {
		slogx.FromContext(ctx).ErrorContext(ctx, "session list failed", "error", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	out := sessionListResponse{Sessions: make([]sessionSummary, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, sessionSummary{
			ID:            s.ID,
			ClientID:      s.ClientID,
			Device:        s.Device,
			IPAddress:     s.IPAddress,
			CreatedAt:     s.CreatedAt,
			ExpiresAt:     s.ExpiresAt,
			RevokedAt:     s.RevokedAt,
			RevokedReason: s.RevokedReason,
			Current:       s.ID == info.SessionID,
		})
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleRevoke serves POST /sessions/{id}/revoke. Someone else's session id
// 404s the same way an unknown one does.
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, ok := httpx.AuthInfoFromCtx(ctx)
	if !ok {
		oauthx.ErrInvalidToken.WriteError(w)
		return
	}

	id := r.PathValue("id")
	sess, err := h.Sessions.GetSessionByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && sess.EmployeeID != info.Subject) {
		httpx.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err != nil {
		slogx.FromContext(ctx).ErrorContext(ctx, "session lookup failed", "error", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	if err := h.Sessions.RevokeSession(ctx, sess.ID, "user_revoked"); err != nil {
		slogx.FromContext(ctx).ErrorContext(ctx, "session revoke failed", "error", err)
		oauthx.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutHandler serves GET /connect/logout. It ends the browser session
// named by the cookie and clears it. Idempotent: no cookie, no problem.
type LogoutHandler struct {
	Sessions *service.SessionService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		sess, err := h.Sessions.GetByHandle(ctx, cookie.Value)
		if err == nil {
			if err := h.Sessions.RevokeSession(ctx, sess.ID, "logout"); err != nil {
				slogx.FromContext(ctx).ErrorContext(ctx, "logout revoke failed", "error", err)
				oauthx.ErrServerError.WriteError(w)
				return
			}
		}
	}

	// Expire both browser cookies regardless of what we found.
	http.SetCookie(w, &http.Cookie{
		Name: SessionCookieName, Value: "", Path: "/",
		MaxAge: -1, HttpOnly: true, Secure: true, SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name: RefreshCookieName, Value: "", Path: "/connect/token",
		MaxAge: -1, HttpOnly: true, Secure: true, SameSite: http.SameSiteStrictMode,
	})

	w.WriteHeader(http.StatusNoContent)
}
