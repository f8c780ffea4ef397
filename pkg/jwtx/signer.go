// Package jwtx wraps golang-jwt with the one signing setup this service
// needs: a single active Ed25519 key, published through a JWKS.
package jwtx

import "github.com/golang-jwt/jwt/v5"

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(claims jwt.Claims) (string, error)
	PublicJWK() JWK
	Validate() error
}

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (*EdDSASigner, error) {
	return newEdDSASigner(kid, pemKey)
}

// NewEphemeralSignerEdDSA generates a fresh Ed25519 keypair in memory.
// Tokens signed with it do not survive a restart.
func NewEphemeralSignerEdDSA(kid string) (*EdDSASigner, error) {
	return newEphemeralEdDSASigner(kid)
}
