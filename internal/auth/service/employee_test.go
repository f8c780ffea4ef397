package service

import (
	"context"
	"testing"
	"time"

	"github.com/nightporter/staffgate/internal/auth/domain"
	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/nightporter/staffgate/pkg/cryptox"
	"github.com/nightporter/staffgate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestVerifyCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := &EmployeeService{Store: f.store, Clock: f.clock}

	hash, err := cryptox.HashPassword("hunter2hunter2")
	require.NoError(t, err)
	emp := domain.Employee{
		ID:           idx.New().String(),
		Username:     "bob",
		DisplayName:  "Bob",
		Email:        "bob@example.com",
		PasswordHash: hash,
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
	}
	require.NoError(t, f.store.Employees().CreateEmployee(ctx, emp))

	t.Run("correct password", func(t *testing.T) {
		got, err := svc.VerifyCredentials(ctx, "bob", "hunter2hunter2")
		require.NoError(t, err)
		require.Equal(t, emp.ID, got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.VerifyCredentials(ctx, "bob", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown username gets the same error", func(t *testing.T) {
		_, err := svc.VerifyCredentials(ctx, "nobody", "hunter2hunter2")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()

	t.Run("empty directory gets the bootstrap account", func(t *testing.T) {
		// The shared fixture pre-seeds an employee, so use a bare store.
		st := newEmptyStore(t)
		svc := &EmployeeService{Store: st, Clock: clockx.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))}

		created, err := svc.Seed(ctx, SeedEmployee{
			Username:    "admin",
			DisplayName: "Administrator",
			Email:       "admin@example.com",
			Password:    "bootstrap-password",
			Roles:       []string{"admin"},
		})
		require.NoError(t, err)
		require.True(t, created)

		got, err := svc.VerifyCredentials(ctx, "admin", "bootstrap-password")
		require.NoError(t, err)
		require.Equal(t, []string{"admin"}, got.Roles)

		// Second call is a no-op.
		created, err = svc.Seed(ctx, SeedEmployee{Username: "admin2", Password: "x"})
		require.NoError(t, err)
		require.False(t, created)
	})

	t.Run("populated directory is untouched", func(t *testing.T) {
		f := newFixture(t)
		svc := &EmployeeService{Store: f.store, Clock: f.clock}

		created, err := svc.Seed(ctx, SeedEmployee{Username: "admin", Password: "x"})
		require.NoError(t, err)
		require.False(t, created)
	})
}
