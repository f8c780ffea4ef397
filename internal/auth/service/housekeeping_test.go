package service

import (
	"context"
	"testing"
	"time"

	"github.com/nightporter/staffgate/internal/auth/policy"
	"github.com/nightporter/staffgate/internal/auth/store"
	"github.com/nightporter/staffgate/pkg/slogx"
	"github.com/stretchr/testify/require"
)

type countingPurger struct{ calls int }

func (p *countingPurger) PurgeExpired() { p.calls++ }

func TestSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.tokens.Issue(ctx, f.issueRequest("openid", "offline_access"))
	require.NoError(t, err)

	purger := &countingPurger{}
	hk := &HousekeepingService{
		Store:     f.store,
		Clock:     f.clock,
		Logger:    slogx.Discard(),
		Interval:  time.Minute,
		Retention: 24 * time.Hour,
		Purgers:   []ExpiredPurger{purger},
	}

	t.Run("fresh rows survive", func(t *testing.T) {
		hk.Sweep(ctx)
		_, err := f.store.Tokens().GetTokenByID(ctx, res.RefreshTokenID)
		require.NoError(t, err)
		require.Equal(t, 1, purger.calls)
	})

	t.Run("rows past retention are deleted", func(t *testing.T) {
		// Step past expiry plus the retention window.
		f.clock.Advance(policy.Defaults().RefreshTokenTTL + 25*time.Hour)
		hk.Sweep(ctx)

		_, err := f.store.Tokens().GetTokenByID(ctx, res.RefreshTokenID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
