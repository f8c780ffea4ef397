package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nightporter/staffgate/internal/auth/domain"
	"github.com/nightporter/staffgate/internal/auth/store"
	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/nightporter/staffgate/pkg/cryptox"
	"github.com/nightporter/staffgate/pkg/idx"
)

// EmployeeService answers credential checks against the directory.
type EmployeeService struct {
	Store store.Store
	Clock clockx.Clock
}

// VerifyCredentials checks a username/password pair. Unknown usernames and
// wrong passwords return the same error.
func (s *EmployeeService) VerifyCredentials(ctx context.Context, username, password string) (domain.Employee, error) {
	emp, err := s.Store.Employees().GetEmployeeByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		// Burn the hash anyway so a miss costs the same as a mismatch.
		_ = cryptox.VerifyPassword(password, dummyPasswordHash)
		return domain.Employee{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Employee{}, err
	}
	if err := cryptox.VerifyPassword(password, emp.PasswordHash); err != nil {
		return domain.Employee{}, ErrInvalidCredentials
	}
	return emp, nil
}

// GetEmployeeByID fetches a single employee record.
func (s *EmployeeService) GetEmployeeByID(ctx context.Context, id string) (domain.Employee, error) {
	return s.Store.Employees().GetEmployeeByID(ctx, id)
}

// SeedEmployee describes the bootstrap account created on first start.
type SeedEmployee struct {
	Username    string
	DisplayName string
	Email       string
	Password    string
	Roles       []string
}

// Seed creates the bootstrap employee when the directory is empty. A
// populated directory makes this a no-op.
func (s *EmployeeService) Seed(ctx context.Context, seed SeedEmployee) (bool, error) {
	empty, err := s.Store.Employees().IsEmpty(ctx)
	if err != nil {
		return false, fmt.Errorf("check directory: %w", err)
	}
	if !empty {
		return false, nil
	}

	hash, err := cryptox.HashPassword(seed.Password)
	if err != nil {
		return false, fmt.Errorf("hash seed password: %w", err)
	}

	now := s.Clock.Now().UTC()
	emp := domain.Employee{
		ID:           idx.New().String(),
		Username:     seed.Username,
		DisplayName:  seed.DisplayName,
		Email:        seed.Email,
		PasswordHash: hash,
		Roles:        seed.Roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Employees().CreateEmployee(ctx, emp); err != nil {
		return false, fmt.Errorf("create seed employee: %w", err)
	}
	return true, nil
}

// dummyPasswordHash is a throwaway Argon2id hash used to equalize timing on
// unknown usernames. The plaintext is random and discarded.
var dummyPasswordHash = func() string {
	h, err := cryptox.HashPassword(cryptox.MustGenerateToken(cryptox.TokenSize128))
	if err != nil {
		panic(err)
	}
	return h
}()
