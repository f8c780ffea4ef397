package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("empty overrides keep defaults", func(t *testing.T) {
		got := Resolve(Defaults(), Overrides{})
		require.Equal(t, Defaults(), got)
	})

	t.Run("single field override leaves the rest alone", func(t *testing.T) {
		ttl := Duration(90 * 24 * time.Hour)
		got := Resolve(Defaults(), Overrides{RefreshTokenTTL: &ttl})

		require.Equal(t, time.Duration(ttl), got.RefreshTokenTTL)
		require.Equal(t, Defaults().AccessTokenTTL, got.AccessTokenTTL)
		require.True(t, got.RotateRefreshTokens)
		require.True(t, got.RevokeDescendantsOnReuse)
		require.Equal(t, TransportCookie, got.RefreshTokenTransport)
	})

	t.Run("false overrides are honored", func(t *testing.T) {
		off := false
		got := Resolve(Defaults(), Overrides{
			RotateRefreshTokens:      &off,
			RevokeDescendantsOnReuse: &off,
		})
		require.False(t, got.RotateRefreshTokens)
		require.False(t, got.RevokeDescendantsOnReuse)
	})

	t.Run("transport override", func(t *testing.T) {
		tr := TransportBody
		got := Resolve(Defaults(), Overrides{RefreshTokenTransport: &tr})
		require.Equal(t, TransportBody, got.RefreshTokenTransport)
	})
}
