package oidc

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/nightporter/staffgate/pkg/jwtx"
)

// JWTAccessTokenEncoder makes access tokens self-describing signed JWTs.
// Resource servers that trust the JWKS can check them offline; the server
// itself still goes through the database so session revocation bites
// immediately.
type JWTAccessTokenEncoder struct {
	Signer jwtx.Signer
}

func (e *JWTAccessTokenEncoder) Encode(claims map[string]any) (string, error) {
	return e.Signer.Sign(jwt.MapClaims(claims))
}
