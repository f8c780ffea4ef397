package service

import (
	"strings"
	"time"

	"github.com/nightporter/staffgate/internal/auth/domain"
)

// ClaimsInput carries everything the claims factory needs to describe one
// access token.
type ClaimsInput struct {
	Employee  domain.Employee
	ClientID  string
	SessionID string
	Scopes    []string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ClaimsFactory builds the claim set embedded in access tokens. Swappable so
// deployments can add custom claims without touching the issuance path.
type ClaimsFactory interface {
	AccessClaims(in ClaimsInput) map[string]any
}

// AccessTokenEncoder turns a claim set into the access token wire value.
// When the token service has no encoder it falls back to opaque random
// tokens, which only introspection can read.
type AccessTokenEncoder interface {
	Encode(claims map[string]any) (string, error)
}

// DefaultClaimsFactory emits the standard claim set.
type DefaultClaimsFactory struct {
	Issuer string
}

func (f *DefaultClaimsFactory) AccessClaims(in ClaimsInput) map[string]any {
	claims := map[string]any{
		"iss":        f.Issuer,
		"sub":        in.Employee.ID,
		"jti":        in.TokenID,
		"client_id":  in.ClientID,
		"token_type": string(domain.TokenTypeAccess),
		"iat":        in.IssuedAt.Unix(),
		"exp":        in.ExpiresAt.Unix(),
	}
	if in.SessionID != "" {
		claims["sid"] = in.SessionID
	}
	if in.Employee.DisplayName != "" {
		claims["name"] = in.Employee.DisplayName
	}
	if len(in.Scopes) > 0 {
		claims["scope"] = strings.Join(in.Scopes, " ")
	}
	return claims
}
