package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("with handle and lifetime", func(t *testing.T) {
		f := newFixture(t)

		lifetime := 8 * time.Hour
		created, err := f.sessions.CreateSession(ctx, CreateSessionRequest{
			EmployeeID:  f.emp.ID,
			ClientID:    "staff-portal",
			Device:      "Firefox on Linux",
			IPAddress:   "203.0.113.7",
			Lifetime:    &lifetime,
			IssueHandle: true,
		})
		require.NoError(t, err)
		require.NotEmpty(t, created.Handle)
		require.NotEmpty(t, created.Session.HandleHash)
		require.NotEqual(t, created.Handle, created.Session.HandleHash)
		require.NotNil(t, created.Session.ExpiresAt)
		require.Equal(t, f.clock.Now().Add(lifetime), *created.Session.ExpiresAt)

		got, err := f.sessions.GetByHandle(ctx, created.Handle)
		require.NoError(t, err)
		require.Equal(t, created.Session.ID, got.ID)
	})

	t.Run("without handle", func(t *testing.T) {
		f := newFixture(t)

		created, err := f.sessions.CreateSession(ctx, CreateSessionRequest{
			EmployeeID: f.emp.ID,
			ClientID:   "staff-portal",
		})
		require.NoError(t, err)
		require.Empty(t, created.Handle)
		require.Empty(t, created.Session.HandleHash)
		require.Nil(t, created.Session.ExpiresAt)
	})
}

func TestGetByHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown handle needs login", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sessions.GetByHandle(ctx, "made-up")
		require.ErrorIs(t, err, ErrLoginRequired)
	})

	t.Run("expired session needs login", func(t *testing.T) {
		f := newFixture(t)

		lifetime := time.Hour
		created, err := f.sessions.CreateSession(ctx, CreateSessionRequest{
			EmployeeID:  f.emp.ID,
			ClientID:    "staff-portal",
			Lifetime:    &lifetime,
			IssueHandle: true,
		})
		require.NoError(t, err)

		f.clock.Advance(lifetime + time.Minute)
		_, err = f.sessions.GetByHandle(ctx, created.Handle)
		require.ErrorIs(t, err, ErrLoginRequired)
	})

	t.Run("revoked session needs login", func(t *testing.T) {
		f := newFixture(t)

		created, err := f.sessions.CreateSession(ctx, CreateSessionRequest{
			EmployeeID:  f.emp.ID,
			ClientID:    "staff-portal",
			IssueHandle: true,
		})
		require.NoError(t, err)

		require.NoError(t, f.sessions.RevokeSession(ctx, created.Session.ID, "logout"))
		_, err = f.sessions.GetByHandle(ctx, created.Handle)
		require.ErrorIs(t, err, ErrLoginRequired)
	})
}

func TestListForEmployee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.sessions.CreateSession(ctx, CreateSessionRequest{
		EmployeeID: f.emp.ID,
		ClientID:   "staff-portal",
	})
	require.NoError(t, err)

	// The fixture seeds one session; we just added another.
	got, err := f.sessions.ListForEmployee(ctx, f.emp.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
}
