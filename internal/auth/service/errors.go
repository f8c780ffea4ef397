package service

import "errors"

// Sentinel errors for the token lifecycle. Handlers translate these into the
// OAuth2 wire errors in pkg/oauthx; the service layer never writes HTTP.
var (
	ErrInvalidRequest = errors.New("service: invalid request")
	ErrInvalidClient  = errors.New("service: invalid client")

	// ErrInvalidGrant covers every way a refresh token or authorization
	// code can be dead: expired, revoked, consumed, replayed, or bound to
	// a session that no longer exists. Callers never learn which.
	ErrInvalidGrant = errors.New("service: invalid grant")

	ErrInvalidScope       = errors.New("service: invalid scope")
	ErrInvalidCredentials = errors.New("service: invalid credentials")
	ErrLoginRequired      = errors.New("service: login required")
)
