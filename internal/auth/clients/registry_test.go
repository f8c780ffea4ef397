package clients

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nightporter/staffgate/internal/auth/policy"
	"github.com/nightporter/staffgate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

const registryYAML = `
clients:
  - id: staff-portal
    name: Staff Portal
    redirect_uris:
      - https://portal.example.com/callback
    scopes: [openid, profile, offline_access]
    tokens:
      refresh_token_ttl: 720h
      rotate_refresh_tokens: false
  - id: backoffice
    name: Back Office
    secret_hash: "%s"
    redirect_uris:
      - https://backoffice.example.com/cb
    scopes: [openid, profile]
`

func writeRegistry(t *testing.T, secretHash string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(registryYAML, secretHash)), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	hash, err := cryptox.HashPassword("backoffice-secret")
	require.NoError(t, err)

	reg, err := LoadFile(policy.Defaults(), writeRegistry(t, hash))
	require.NoError(t, err)

	t.Run("known client resolves", func(t *testing.T) {
		c, ok := reg.Get("staff-portal")
		require.True(t, ok)
		require.False(t, c.Confidential())
		require.True(t, c.AllowsRedirectURI("https://portal.example.com/callback"))
		require.False(t, c.AllowsRedirectURI("https://portal.example.com/other"))
		require.True(t, c.AllowsScopes([]string{"openid", "profile"}))
		require.False(t, c.AllowsScopes([]string{"openid", "admin"}))
	})

	t.Run("unknown client misses", func(t *testing.T) {
		_, ok := reg.Get("nope")
		require.False(t, ok)
	})

	t.Run("policy overrides merge over defaults", func(t *testing.T) {
		p := reg.PolicyFor("staff-portal")
		require.Equal(t, 720*time.Hour, p.RefreshTokenTTL)
		require.False(t, p.RotateRefreshTokens)
		require.Equal(t, policy.Defaults().AccessTokenTTL, p.AccessTokenTTL)

		require.Equal(t, policy.Defaults(), reg.PolicyFor("backoffice"))
	})
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	hash, err := cryptox.HashPassword("s3cret")
	require.NoError(t, err)

	reg, err := New(policy.Defaults(), []Client{
		{ID: "public-app"},
		{ID: "private-app", SecretHash: hash},
	})
	require.NoError(t, err)

	t.Run("public client without secret", func(t *testing.T) {
		_, err := reg.Authenticate("public-app", "")
		require.NoError(t, err)
	})

	t.Run("public client sending a secret is rejected", func(t *testing.T) {
		_, err := reg.Authenticate("public-app", "whatever")
		require.Error(t, err)
	})

	t.Run("confidential client round trip", func(t *testing.T) {
		_, err := reg.Authenticate("private-app", "s3cret")
		require.NoError(t, err)

		_, err = reg.Authenticate("private-app", "wrong")
		require.Error(t, err)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := reg.Authenticate("ghost", "")
		require.Error(t, err)
	})
}

func TestNewRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := New(policy.Defaults(), []Client{{ID: "a"}, {ID: "a"}})
	require.Error(t, err)

	_, err = New(policy.Defaults(), []Client{{ID: ""}})
	require.Error(t, err)
}
