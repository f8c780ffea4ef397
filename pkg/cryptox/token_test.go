package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	t.Run("rejects non-positive sizes", func(t *testing.T) {
		_, err := GenerateToken(0)
		require.Error(t, err)

		_, err = GenerateToken(-8)
		require.Error(t, err)
	})

	t.Run("produces url-safe base64 without padding", func(t *testing.T) {
		token, err := GenerateToken(TokenSize256)
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		require.Len(t, raw, TokenSize256)
	})

	t.Run("successive calls differ", func(t *testing.T) {
		a, err := GenerateToken(TokenSize128)
		require.NoError(t, err)
		b, err := GenerateToken(TokenSize128)
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func TestComputeHash(t *testing.T) {
	t.Parallel()

	t.Run("rejects empty value", func(t *testing.T) {
		_, err := ComputeHash("")
		require.Error(t, err)
	})

	t.Run("is deterministic hex sha256", func(t *testing.T) {
		sum := sha256.Sum256([]byte("some-token"))
		want := hex.EncodeToString(sum[:])

		got, err := ComputeHash("some-token")
		require.NoError(t, err)
		require.Equal(t, want, got)

		again, err := ComputeHash("some-token")
		require.NoError(t, err)
		require.Equal(t, got, again)
	})

	t.Run("different values produce different digests", func(t *testing.T) {
		a, err := ComputeHash("token-a")
		require.NoError(t, err)
		b, err := ComputeHash("token-b")
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}
