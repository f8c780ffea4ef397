package domain

import "time"

// TokenType distinguishes the two kinds of rows in the tokens table.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Token is a stored access or refresh token. Only the SHA-256 hex digest of
// the raw value is persisted; the raw value is returned to the caller once at
// issuance and never again.
type Token struct {
	ID         string
	EmployeeID string
	SessionID  string

	// SessionHandleHash mirrors the session's handle digest at issue time so
	// cookie-transport consumers can correlate without a join.
	SessionHandleHash string

	ClientID string
	Type     TokenType
	Hash     string

	// Payload is the serialized claim set captured at issuance, kept even
	// for opaque tokens so introspection can answer from the row.
	Payload string

	Scopes []string

	// Metadata is copied from the session at issuance.
	Metadata string

	CreatedAt time.Time
	ExpiresAt time.Time

	// ConsumedAt is set exactly once, when a refresh token is rotated.
	ConsumedAt *time.Time
	RevokedAt  *time.Time

	// ParentTokenID links a rotated refresh token to the one it replaced,
	// forming the chain walked during reuse detection.
	ParentTokenID *string
}

// IsActive reports whether the token is usable at the given instant:
// not revoked, not consumed, and not expired.
func (t Token) IsActive(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	if t.ConsumedAt != nil {
		return false
	}
	return now.Before(t.ExpiresAt)
}
