package oidc

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nightporter/staffgate/internal/auth/domain"
	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/nightporter/staffgate/pkg/jwtx"
)

// DefaultIDTokenTTL matches the access token default; the ID token is an
// identity statement for the moment of login, not a long lived credential.
const DefaultIDTokenTTL = 5 * time.Minute

// IDTokenFactory mints the signed identity assertion returned alongside
// tokens when the grant carries the openid scope.
type IDTokenFactory struct {
	Signer jwtx.Signer
	Clock  clockx.Clock
	Issuer string
	TTL    time.Duration
}

// IDTokenInput is the identity snapshot encoded into one ID token.
type IDTokenInput struct {
	Employee  domain.Employee
	ClientID  string
	SessionID string
	Nonce     string
	AuthTime  time.Time
}

// Mint builds and signs an ID token.
func (f *IDTokenFactory) Mint(in IDTokenInput) (string, error) {
	now := f.Clock.Now().UTC()
	ttl := f.TTL
	if ttl <= 0 {
		ttl = DefaultIDTokenTTL
	}

	claims := jwt.MapClaims{
		"iss":       f.Issuer,
		"sub":       in.Employee.ID,
		"aud":       in.ClientID,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
		"auth_time": in.AuthTime.Unix(),
	}
	if in.Employee.DisplayName != "" {
		claims["name"] = in.Employee.DisplayName
	}
	if in.Employee.Username != "" {
		claims["preferred_username"] = in.Employee.Username
	}
	if in.Employee.Email != "" {
		claims["email"] = in.Employee.Email
	}
	if in.SessionID != "" {
		claims["sid"] = in.SessionID
	}
	if in.Nonce != "" {
		claims["nonce"] = in.Nonce
	}

	signed, err := f.Signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign id token: %w", err)
	}
	return signed, nil
}
