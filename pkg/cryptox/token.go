package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
	// TokenSize512 provides 512 bits of entropy (86 chars base64url).
	TokenSize512 = 64
)

// DefaultTokenSize is what access/refresh token values are minted with
// unless the caller asks for something else.
const DefaultTokenSize = TokenSize512

// GenerateToken creates a cryptographically secure random token of the
// specified byte length. The token is returned as a base64url-encoded
// string (URL-safe, no padding).
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken is like GenerateToken but panics on error.
// Use this only during initialization or in contexts where failure is unrecoverable.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate token: %v", err))
	}
	return token
}

// ComputeHash returns the deterministic SHA-256 digest of a secret value as
// lowercase hex. Only digests are persisted; raw token and session-handle
// values never touch the database, and lookups go through this function.
func ComputeHash(value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("cryptox: cannot hash empty value")
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:]), nil
}

// MustComputeHash is ComputeHash for values already known to be non-empty.
func MustComputeHash(value string) string {
	h, err := ComputeHash(value)
	if err != nil {
		panic(err)
	}
	return h
}
