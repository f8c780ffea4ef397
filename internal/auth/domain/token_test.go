package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenIsActive(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	base := Token{ExpiresAt: now.Add(time.Hour)}

	t.Run("live token", func(t *testing.T) {
		require.True(t, base.IsActive(now))
	})

	t.Run("expired exactly at the boundary", func(t *testing.T) {
		require.False(t, base.IsActive(base.ExpiresAt))
		require.False(t, base.IsActive(base.ExpiresAt.Add(time.Second)))
	})

	t.Run("revoked", func(t *testing.T) {
		tok := base
		at := now.Add(-time.Minute)
		tok.RevokedAt = &at
		require.False(t, tok.IsActive(now))
	})

	t.Run("consumed", func(t *testing.T) {
		tok := base
		at := now.Add(-time.Minute)
		tok.ConsumedAt = &at
		require.False(t, tok.IsActive(now))
	})
}

func TestSessionIsActive(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("no expiry never expires", func(t *testing.T) {
		s := Session{}
		require.True(t, s.IsActive(now))
		require.True(t, s.IsActive(now.Add(100*24*time.Hour)))
	})

	t.Run("expiry is respected", func(t *testing.T) {
		exp := now.Add(time.Hour)
		s := Session{ExpiresAt: &exp}
		require.True(t, s.IsActive(now))
		require.False(t, s.IsActive(exp))
	})

	t.Run("revocation wins over expiry", func(t *testing.T) {
		at := now.Add(-time.Minute)
		s := Session{RevokedAt: &at}
		require.False(t, s.IsActive(now))
	})
}
