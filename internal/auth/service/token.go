package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nightporter/staffgate/internal/auth/domain"
	"github.com/nightporter/staffgate/internal/auth/policy"
	"github.com/nightporter/staffgate/internal/auth/store"
	"github.com/nightporter/staffgate/pkg/clockx"
	"github.com/nightporter/staffgate/pkg/cryptox"
	"github.com/nightporter/staffgate/pkg/httpx"
	"github.com/nightporter/staffgate/pkg/idx"
	"github.com/nightporter/staffgate/pkg/oauthx"
)

// PolicyResolver maps a client id to its effective token policy. The client
// registry implements this.
type PolicyResolver interface {
	PolicyFor(clientID string) policy.Options
}

// TokenService issues access/refresh token pairs and answers validity
// questions about them. Every token is a database row; the stored value is
// the hex SHA-256 of what went over the wire.
type TokenService struct {
	Store    store.Store
	Clock    clockx.Clock
	Claims   ClaimsFactory
	Policies PolicyResolver

	// Encoder is optional. When set, access tokens are self-describing
	// (signed JWTs); when nil they are opaque random strings.
	Encoder AccessTokenEncoder

	Issuer string
}

// IssueRequest describes one token issuance. The caller has already
// authenticated the employee and resolved the client policy.
type IssueRequest struct {
	Employee          domain.Employee
	SessionID         string
	SessionHandleHash string
	ClientID          string
	Scopes            []string
	Metadata          string
	Policy            policy.Options

	// ParentTokenID links a rotated refresh token to the one it replaced.
	// Set only during rotation, and only the refresh row carries it.
	ParentTokenID *string

	// IncludeRefresh is set when the grant carries the offline_access scope.
	IncludeRefresh bool
}

// IssueResult is what goes back on the wire, plus the row ids for callers
// that need them (tests, rotation bookkeeping).
type IssueResult struct {
	AccessToken     string
	AccessTokenID   string
	AccessExpiresAt time.Time

	RefreshToken     string
	RefreshTokenID   string
	RefreshExpiresAt time.Time

	Scopes []string
}

// Issue mints a token pair inside its own transaction.
func (s *TokenService) Issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	var res IssueResult
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		res, err = s.issueIn(ctx, tx, req)
		return err
	})
	return res, err
}

// issueIn does the actual minting against the given store, which may already
// be a transaction. Refresh rotation reuses it so the consume and the mint
// commit or roll back together.
func (s *TokenService) issueIn(ctx context.Context, st store.Store, req IssueRequest) (IssueResult, error) {
	now := s.Clock.Now().UTC()
	res := IssueResult{Scopes: req.Scopes}

	accessID := idx.New().String()
	res.AccessTokenID = accessID
	res.AccessExpiresAt = now.Add(req.Policy.AccessTokenTTL)

	// The claim set is built regardless of the wire format: opaque tokens
	// keep it in the row payload so introspection can still serve it.
	claims := s.Claims.AccessClaims(ClaimsInput{
		Employee:  req.Employee,
		ClientID:  req.ClientID,
		SessionID: req.SessionID,
		Scopes:    req.Scopes,
		TokenID:   accessID,
		IssuedAt:  now,
		ExpiresAt: res.AccessExpiresAt,
	})
	payload, err := json.Marshal(claims)
	if err != nil {
		return IssueResult{}, fmt.Errorf("serialize access claims: %w", err)
	}

	accessValue, err := s.accessTokenValue(claims)
	if err != nil {
		return IssueResult{}, err
	}
	res.AccessToken = accessValue

	accessHash, err := cryptox.ComputeHash(accessValue)
	if err != nil {
		return IssueResult{}, fmt.Errorf("hash access token: %w", err)
	}

	access := domain.Token{
		ID:                accessID,
		EmployeeID:        req.Employee.ID,
		SessionID:         req.SessionID,
		SessionHandleHash: req.SessionHandleHash,
		ClientID:          req.ClientID,
		Type:              domain.TokenTypeAccess,
		Hash:              accessHash,
		Payload:           string(payload),
		Scopes:            req.Scopes,
		Metadata:          req.Metadata,
		CreatedAt:         now,
		ExpiresAt:         res.AccessExpiresAt,
	}
	if err := st.Tokens().CreateToken(ctx, access); err != nil {
		return IssueResult{}, fmt.Errorf("store access token: %w", err)
	}

	if !req.IncludeRefresh {
		return res, nil
	}

	refreshValue, err := cryptox.GenerateToken(cryptox.DefaultTokenSize)
	if err != nil {
		return IssueResult{}, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshHash, err := cryptox.ComputeHash(refreshValue)
	if err != nil {
		return IssueResult{}, fmt.Errorf("hash refresh token: %w", err)
	}

	res.RefreshToken = refreshValue
	res.RefreshTokenID = idx.New().String()
	res.RefreshExpiresAt = now.Add(req.Policy.RefreshTokenTTL)

	refresh := domain.Token{
		ID:                res.RefreshTokenID,
		EmployeeID:        req.Employee.ID,
		SessionID:         req.SessionID,
		SessionHandleHash: req.SessionHandleHash,
		ClientID:          req.ClientID,
		Type:              domain.TokenTypeRefresh,
		Hash:              refreshHash,
		Scopes:            req.Scopes,
		Metadata:          req.Metadata,
		CreatedAt:         now,
		ExpiresAt:         res.RefreshExpiresAt,
		ParentTokenID:     req.ParentTokenID,
	}
	if err := st.Tokens().CreateToken(ctx, refresh); err != nil {
		return IssueResult{}, fmt.Errorf("store refresh token: %w", err)
	}

	return res, nil
}

func (s *TokenService) accessTokenValue(claims map[string]any) (string, error) {
	if s.Encoder == nil {
		value, err := cryptox.GenerateToken(cryptox.DefaultTokenSize)
		if err != nil {
			return "", fmt.Errorf("generate access token: %w", err)
		}
		return value, nil
	}
	value, err := s.Encoder.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("encode access token: %w", err)
	}
	return value, nil
}

// AuthenticateAccessToken resolves a bearer value to the caller it belongs
// to. The token row, its session, and the employee must all still be live;
// revoking a session kills every access token bound to it immediately.
func (s *TokenService) AuthenticateAccessToken(ctx context.Context, raw string) (httpx.AuthInfo, error) {
	tok, err := s.lookupLive(ctx, raw, domain.TokenTypeAccess)
	if err != nil {
		return httpx.AuthInfo{}, err
	}

	emp, err := s.Store.Employees().GetEmployeeByID(ctx, tok.EmployeeID)
	if err != nil {
		return httpx.AuthInfo{}, ErrInvalidGrant
	}

	return httpx.AuthInfo{
		Subject:   emp.ID,
		SessionID: tok.SessionID,
		ClientID:  tok.ClientID,
		Scopes:    tok.Scopes,
		Name:      emp.DisplayName,
		Username:  emp.Username,
		Email:     emp.Email,
		Roles:     emp.Roles,
	}, nil
}

// Introspect implements the RFC 7662 lookup. Inactive, unknown, and
// malformed tokens all collapse to {"active": false}.
func (s *TokenService) Introspect(ctx context.Context, raw string) oauthx.IntrospectionResponse {
	tok, err := s.lookupLive(ctx, raw, "")
	if err != nil {
		return oauthx.IntrospectionResponse{Active: false}
	}

	return oauthx.IntrospectionResponse{
		Active:    true,
		Scope:     joinScopes(tok.Scopes),
		ClientID:  tok.ClientID,
		TokenType: string(tok.Type),
		Exp:       tok.ExpiresAt.Unix(),
		Iat:       tok.CreatedAt.Unix(),
		Sub:       tok.EmployeeID,
		Aud:       []string{tok.ClientID},
		Iss:       s.Issuer,
		Jti:       tok.ID,
		SessionID: tok.SessionID,
	}
}

// RevokeToken handles the RFC 7009 endpoint. Unknown and already dead
// tokens are not errors. Revoking a refresh token also revokes its live
// descendants when the client policy says so.
func (s *TokenService) RevokeToken(ctx context.Context, raw string) error {
	hash, err := cryptox.ComputeHash(raw)
	if err != nil {
		return nil
	}
	tok, err := s.Store.Tokens().GetTokenByHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := s.Clock.Now().UTC()
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if tok.Type == domain.TokenTypeRefresh && s.Policies.PolicyFor(tok.ClientID).RevokeDescendantsOnReuse {
			descendants, err := tx.Tokens().GetActiveDescendants(ctx, tok.ID, now)
			if err != nil {
				return err
			}
			for _, d := range descendants {
				if err := tx.Tokens().RevokeToken(ctx, d.ID, now); err != nil {
					return err
				}
			}
		}
		return tx.Tokens().RevokeToken(ctx, tok.ID, now)
	})
}

// lookupLive finds a token by its wire value and checks the full liveness
// chain: token state, then session state. wantType empty matches any type.
func (s *TokenService) lookupLive(ctx context.Context, raw string, wantType domain.TokenType) (domain.Token, error) {
	hash, err := cryptox.ComputeHash(raw)
	if err != nil {
		return domain.Token{}, ErrInvalidGrant
	}

	tok, err := s.Store.Tokens().GetTokenByHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Token{}, ErrInvalidGrant
	}
	if err != nil {
		return domain.Token{}, err
	}
	if wantType != "" && tok.Type != wantType {
		return domain.Token{}, ErrInvalidGrant
	}

	now := s.Clock.Now().UTC()
	if !tok.IsActive(now) {
		return domain.Token{}, ErrInvalidGrant
	}

	sess, err := s.Store.Sessions().GetSessionByID(ctx, tok.SessionID)
	if err != nil {
		return domain.Token{}, ErrInvalidGrant
	}
	if !sess.IsActive(now) {
		return domain.Token{}, ErrInvalidGrant
	}

	return tok, nil
}
