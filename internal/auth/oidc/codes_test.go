package oidc

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/stretchr/testify/require"
)

func TestCodeStore(t *testing.T) {
	t.Parallel()

	newStore := func() (*CodeStore, *clockx.Fake) {
		clock := clockx.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
		return NewCodeStore(clock, DefaultCodeTTL), clock
	}

	grant := Code{
		EmployeeID:  "emp-1",
		ClientID:    "staff-portal",
		RedirectURI: "https://portal.example.com/callback",
		Scopes:      []string{"openid", "profile"},
		SessionID:   "sess-1",
		Nonce:       "n-123",
	}

	t.Run("redeem once", func(t *testing.T) {
		s, _ := newStore()

		code, err := s.Create(grant)
		require.NoError(t, err)
		require.NotEmpty(t, code)

		got, ok := s.TryRedeem(code)
		require.True(t, ok)
		require.Equal(t, "emp-1", got.EmployeeID)
		require.Equal(t, []string{"openid", "profile"}, got.Scopes)

		// Second redemption misses.
		_, ok = s.TryRedeem(code)
		require.False(t, ok)
	})

	t.Run("expired code misses", func(t *testing.T) {
		s, clock := newStore()

		code, err := s.Create(grant)
		require.NoError(t, err)

		clock.Advance(DefaultCodeTTL + time.Second)
		_, ok := s.TryRedeem(code)
		require.False(t, ok)
	})

	t.Run("unknown code misses", func(t *testing.T) {
		s, _ := newStore()
		_, ok := s.TryRedeem("never-issued")
		require.False(t, ok)
	})
}

func TestVerifyPKCE(t *testing.T) {
	t.Parallel()

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	t.Run("S256", func(t *testing.T) {
		require.True(t, VerifyPKCE(challenge, PKCEMethodS256, verifier))
		require.False(t, VerifyPKCE(challenge, PKCEMethodS256, "wrong-verifier"))
	})

	t.Run("empty method defaults to S256", func(t *testing.T) {
		require.True(t, VerifyPKCE(challenge, "", verifier))
	})

	t.Run("plain", func(t *testing.T) {
		require.True(t, VerifyPKCE("some-challenge", PKCEMethodPlain, "some-challenge"))
		require.False(t, VerifyPKCE("some-challenge", PKCEMethodPlain, "other"))
	})

	t.Run("unknown method fails closed", func(t *testing.T) {
		require.False(t, VerifyPKCE(challenge, "S512", verifier))
	})

	t.Run("empty inputs fail", func(t *testing.T) {
		require.False(t, VerifyPKCE("", PKCEMethodS256, verifier))
		require.False(t, VerifyPKCE(challenge, PKCEMethodS256, ""))
	})
}
