package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nightporter/staffgate/internal/auth/domain"
	"github.com/nightporter/staffgate/internal/auth/store"
	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/nightporter/staffgate/pkg/cryptox"
	"github.com/nightporter/staffgate/pkg/idx"
)

// SessionService owns the login session records that tokens hang off.
type SessionService struct {
	Store store.Store
	Clock clockx.Clock
}

// CreateSessionRequest captures where a login came from.
type CreateSessionRequest struct {
	EmployeeID string
	ClientID   string
	Device     string
	IPAddress  string
	Metadata   string

	// Lifetime nil means the session lives until it is revoked.
	Lifetime *time.Duration

	// IssueHandle asks for a browser cookie handle. API-only sessions
	// skip it.
	IssueHandle bool
}

// CreatedSession pairs the stored row with the raw handle, which exists only
// here; the database keeps the hash.
type CreatedSession struct {
	Session domain.Session
	Handle  string
}

// CreateSession opens a new session for an authenticated employee.
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (CreatedSession, error) {
	now := s.Clock.Now().UTC()

	sess := domain.Session{
		ID:         idx.New().String(),
		EmployeeID: req.EmployeeID,
		ClientID:   req.ClientID,
		Device:     req.Device,
		IPAddress:  req.IPAddress,
		Metadata:   req.Metadata,
		CreatedAt:  now,
	}
	if req.Lifetime != nil {
		exp := now.Add(*req.Lifetime)
		sess.ExpiresAt = &exp
	}

	var handle string
	if req.IssueHandle {
		var err error
		handle, err = cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return CreatedSession{}, fmt.Errorf("generate session handle: %w", err)
		}
		sess.HandleHash, err = cryptox.ComputeHash(handle)
		if err != nil {
			return CreatedSession{}, fmt.Errorf("hash session handle: %w", err)
		}
	}

	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return CreatedSession{}, fmt.Errorf("store session: %w", err)
	}
	return CreatedSession{Session: sess, Handle: handle}, nil
}

// GetByHandle resolves a raw cookie handle to a live session. Anything less
// than a live session is ErrLoginRequired.
func (s *SessionService) GetByHandle(ctx context.Context, rawHandle string) (domain.Session, error) {
	hash, err := cryptox.ComputeHash(rawHandle)
	if err != nil {
		return domain.Session{}, ErrLoginRequired
	}

	sess, err := s.Store.Sessions().GetSessionByHandleHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, ErrLoginRequired
	}
	if err != nil {
		return domain.Session{}, err
	}
	if !sess.IsActive(s.Clock.Now().UTC()) {
		return domain.Session{}, ErrLoginRequired
	}
	return sess, nil
}

// GetSessionByID returns the session row regardless of liveness; callers
// check IsActive themselves when they care.
func (s *SessionService) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	return s.Store.Sessions().GetSessionByID(ctx, id)
}

// ListForEmployee returns all sessions for an employee, newest first,
// including dead ones so a user can review their login history.
func (s *SessionService) ListForEmployee(ctx context.Context, employeeID string) ([]domain.Session, error) {
	return s.Store.Sessions().ListSessionsByEmployee(ctx, employeeID)
}

// RevokeSession ends a session. Idempotent; the first revocation's reason
// sticks. Tokens bound to the session die with it because every token check
// walks through session liveness.
func (s *SessionService) RevokeSession(ctx context.Context, id, reason string) error {
	return s.Store.Sessions().RevokeSession(ctx, id, reason, s.Clock.Now().UTC())
}
