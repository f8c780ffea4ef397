package domain

import "time"

// Session is an authenticated sign-in. Tokens are bound to a session; killing
// the session is the cheap way to cut off everything minted under it.
type Session struct {
	ID         string
	EmployeeID string
	ClientID   string

	// Device and IPAddress describe where the session was established.
	Device    string
	IPAddress string
	Metadata  string

	// HandleHash is the SHA-256 hex digest of the opaque browser handle,
	// empty when the session was created without one (token-only flows).
	HandleHash string

	CreatedAt time.Time
	// ExpiresAt is nil for sessions without a fixed lifetime.
	ExpiresAt     *time.Time
	RevokedAt     *time.Time
	RevokedReason string
}

// IsActive reports whether the session is live at the given instant.
// A nil ExpiresAt never expires.
func (s Session) IsActive(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return false
	}
	return true
}
