// Package oidc holds the OpenID Connect pieces layered on top of the token
// engine: the authorization code store, PKCE verification, and ID token
// minting.
package oidc

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/nightporter/staffgate/pkg/cryptox"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultCodeTTL is how long an authorization code stays redeemable.
const DefaultCodeTTL = 5 * time.Minute

// PKCE challenge methods from RFC 7636.
const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// Code is everything granted at the authorize step, parked until the client
// exchanges it at the token endpoint.
type Code struct {
	EmployeeID          string
	ClientID            string
	RedirectURI         string
	Scopes              []string
	SessionID           string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	AuthTime            time.Time
	ExpiresAt           time.Time
}

// CodeStore keeps pending authorization codes in memory. Codes are short
// lived and worthless after a restart, so there is no database table for
// them. The map key is the SHA-256 of the code, same rule as every other
// credential in the system.
type CodeStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
	clock clockx.Clock
	ttl   time.Duration
}

// NewCodeStore builds a code store with the given redemption window.
func NewCodeStore(clock clockx.Clock, ttl time.Duration) *CodeStore {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &CodeStore{
		cache: gocache.New(ttl, 2*ttl),
		clock: clock,
		ttl:   ttl,
	}
}

// Create parks a grant and returns the single-use code for it.
func (s *CodeStore) Create(c Code) (string, error) {
	value, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate authorization code: %w", err)
	}
	key, err := cryptox.ComputeHash(value)
	if err != nil {
		return "", fmt.Errorf("hash authorization code: %w", err)
	}

	c.ExpiresAt = s.clock.Now().UTC().Add(s.ttl)

	s.mu.Lock()
	s.cache.Set(key, c, s.ttl)
	s.mu.Unlock()

	return value, nil
}

// TryRedeem atomically removes and returns the grant for a code. A second
// redemption of the same code misses. The stored ExpiresAt is checked
// against the injected clock rather than trusting the cache's own expiry,
// which runs on wall time.
func (s *CodeStore) TryRedeem(raw string) (Code, bool) {
	key, err := cryptox.ComputeHash(raw)
	if err != nil {
		return Code{}, false
	}

	s.mu.Lock()
	v, ok := s.cache.Get(key)
	if ok {
		s.cache.Delete(key)
	}
	s.mu.Unlock()

	if !ok {
		return Code{}, false
	}
	c, ok := v.(Code)
	if !ok {
		return Code{}, false
	}
	if !s.clock.Now().UTC().Before(c.ExpiresAt) {
		return Code{}, false
	}
	return c, true
}

// PurgeExpired drops entries the cache has aged out. Wired into the
// housekeeping sweep.
func (s *CodeStore) PurgeExpired() {
	s.mu.Lock()
	s.cache.DeleteExpired()
	s.mu.Unlock()
}

// VerifyPKCE checks a code_verifier against the challenge recorded at
// authorize time. Comparison is constant time for both methods.
func VerifyPKCE(challenge, method, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	switch method {
	case PKCEMethodS256, "":
		sum := sha256.Sum256([]byte(verifier))
		derived := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
	case PKCEMethodPlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}
