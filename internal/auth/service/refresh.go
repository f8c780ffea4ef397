package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nightporter/staffgate/internal/auth/domain"
	"github.com/nightporter/staffgate/internal/auth/policy"
	"github.com/nightporter/staffgate/internal/auth/store"
	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/nightporter/staffgate/pkg/cryptox"
	"github.com/nightporter/staffgate/pkg/slogx"
)

// errLostRace marks a consume that found the row already consumed or
// revoked. Internal to the rotation path.
var errLostRace = errors.New("service: refresh token consume lost race")

// TokenRefreshService implements the refresh_token grant: single use
// rotation with replay detection. Presenting a dead refresh token is
// treated as theft evidence and, policy permitting, takes the whole
// descendant chain down with it.
type TokenRefreshService struct {
	Store  store.Store
	Tokens *TokenService
	Clock  clockx.Clock
	Logger *slog.Logger
}

// RefreshRequest is one refresh_token grant attempt.
type RefreshRequest struct {
	RawToken string
	ClientID string

	// EmployeeID is an optional owner hint. When set, the token must
	// belong to that employee.
	EmployeeID string

	Policy policy.Options
}

// Refresh exchanges a live refresh token for a new token pair.
//
// All failure modes surface as ErrInvalidGrant with no further detail, so a
// caller probing with stolen tokens learns nothing about why they died.
func (s *TokenRefreshService) Refresh(ctx context.Context, req RefreshRequest) (IssueResult, error) {
	hash, err := cryptox.ComputeHash(req.RawToken)
	if err != nil {
		return IssueResult{}, ErrInvalidGrant
	}

	tok, err := s.Store.Tokens().GetTokenByHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return IssueResult{}, ErrInvalidGrant
	}
	if err != nil {
		return IssueResult{}, err
	}
	if tok.Type != domain.TokenTypeRefresh {
		return IssueResult{}, ErrInvalidGrant
	}
	if req.ClientID != "" && tok.ClientID != req.ClientID {
		return IssueResult{}, ErrInvalidGrant
	}
	if req.EmployeeID != "" && tok.EmployeeID != req.EmployeeID {
		return IssueResult{}, ErrInvalidGrant
	}

	now := s.Clock.Now().UTC()

	// A dead token showing up again is a replay. The original exchange
	// already rotated it away, so whoever holds this copy should not.
	if !tok.IsActive(now) {
		s.handleReuse(ctx, tok, now, req.Policy)
		return IssueResult{}, ErrInvalidGrant
	}

	sess, err := s.Store.Sessions().GetSessionByID(ctx, tok.SessionID)
	if err != nil {
		return IssueResult{}, ErrInvalidGrant
	}
	if !sess.IsActive(now) {
		return IssueResult{}, ErrInvalidGrant
	}

	emp, err := s.Store.Employees().GetEmployeeByID(ctx, tok.EmployeeID)
	if err != nil {
		return IssueResult{}, ErrInvalidGrant
	}

	issueReq := IssueRequest{
		Employee:          emp,
		SessionID:         tok.SessionID,
		SessionHandleHash: tok.SessionHandleHash,
		ClientID:          tok.ClientID,
		Scopes:            tok.Scopes,
		Metadata:          tok.Metadata,
		Policy:            req.Policy,
		IncludeRefresh:    req.Policy.RotateRefreshTokens,
	}

	if !req.Policy.RotateRefreshTokens {
		// Long lived refresh token: mint a fresh access token and hand
		// the same refresh token back untouched.
		res, err := s.Tokens.Issue(ctx, issueReq)
		if err != nil {
			return IssueResult{}, err
		}
		res.RefreshToken = req.RawToken
		res.RefreshTokenID = tok.ID
		res.RefreshExpiresAt = tok.ExpiresAt
		return res, nil
	}

	// The parent link marks rotation; only the replacement refresh token
	// joins the chain.
	issueReq.ParentTokenID = &tok.ID

	var res IssueResult
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Consume first. The conditional update is the arbiter when two
		// requests race on the same token; the loser sees zero rows.
		if err := tx.Tokens().ConsumeToken(ctx, tok.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errLostRace
			}
			return err
		}
		var issueErr error
		res, issueErr = s.Tokens.issueIn(ctx, tx, issueReq)
		return issueErr
	})
	if errors.Is(err, errLostRace) {
		s.handleReuse(ctx, tok, now, req.Policy)
		return IssueResult{}, ErrInvalidGrant
	}
	if err != nil {
		return IssueResult{}, err
	}
	return res, nil
}

// handleReuse stamps the replayed token revoked and, when the policy asks
// for it, revokes every live descendant minted from it. The presented token
// is marked even though it is already dead, so a later audit sees it was
// replayed. The revocations commit in their own transaction because the
// grant itself is about to fail.
func (s *TokenRefreshService) handleReuse(ctx context.Context, tok domain.Token, now time.Time, pol policy.Options) {
	log := slogx.FromContext(ctx)
	if s.Logger != nil {
		log = s.Logger
	}
	log.WarnContext(ctx, "refresh token replay detected",
		"token_id", tok.ID,
		"session_id", tok.SessionID,
		"client_id", tok.ClientID,
	)

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tokens().RevokeToken(ctx, tok.ID, now); err != nil {
			return err
		}
		if !pol.RevokeDescendantsOnReuse {
			return nil
		}
		descendants, err := tx.Tokens().GetActiveDescendants(ctx, tok.ID, now)
		if err != nil {
			return err
		}
		for _, d := range descendants {
			if err := tx.Tokens().RevokeToken(ctx, d.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to revoke after replay",
			"token_id", tok.ID, "error", err)
	}
}
