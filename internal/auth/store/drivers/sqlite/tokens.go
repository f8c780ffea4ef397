package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nightporter/staffgate/internal/auth/domain"
	"github.com/nightporter/staffgate/internal/auth/store"
)

type tokensRepo struct {
	db dbtx
}

// maxDescendantDepth bounds the chain walk so corrupt parent links can't
// spin it forever.
const maxDescendantDepth = 64

const tokenColumns = `id, employee_id, session_id, session_handle_hash, client_id,
	token_type, hash, payload, scopes, metadata,
	created_at, expires_at, consumed_at, revoked_at, parent_token_id`

func (r *tokensRepo) scanToken(row interface{ Scan(...any) error }) (domain.Token, error) {
	var t domain.Token
	var tokenType, scopes string
	var consumedAt, revokedAt sql.NullTime
	var parentID sql.NullString
	err := row.Scan(
		&t.ID, &t.EmployeeID, &t.SessionID, &t.SessionHandleHash, &t.ClientID,
		&tokenType, &t.Hash, &t.Payload, &scopes, &t.Metadata,
		&t.CreatedAt, &t.ExpiresAt, &consumedAt, &revokedAt, &parentID,
	)
	if err != nil {
		return domain.Token{}, mapNotFound(err)
	}
	t.Type = domain.TokenType(tokenType)
	t.Scopes = splitScopes(scopes)
	t.ConsumedAt = mapNullTimePtr(consumedAt)
	t.RevokedAt = mapNullTimePtr(revokedAt)
	t.ParentTokenID = mapNullStringPtr(parentID)
	return t, nil
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.Token) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (id, employee_id, session_id, session_handle_hash, client_id,
			token_type, hash, payload, scopes, metadata,
			created_at, expires_at, consumed_at, revoked_at, parent_token_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.EmployeeID, t.SessionID, t.SessionHandleHash, t.ClientID,
		string(t.Type), t.Hash, t.Payload, joinScopes(t.Scopes), t.Metadata,
		t.CreatedAt, t.ExpiresAt, mapOptionalTime(t.ConsumedAt),
		mapOptionalTime(t.RevokedAt), mapOptionalString(t.ParentTokenID),
	)
	return err
}

func (r *tokensRepo) GetTokenByID(ctx context.Context, id string) (domain.Token, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE id = ?`, id)
	return r.scanToken(row)
}

func (r *tokensRepo) GetTokenByHash(ctx context.Context, hash string) (domain.Token, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE hash = ?`, hash)
	return r.scanToken(row)
}

// ConsumeToken is the compare-and-swap at the heart of refresh rotation.
// Zero rows affected means the token was already consumed or revoked, which
// the caller treats as a lost race.
func (r *tokensRepo) ConsumeToken(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET consumed_at = ?
		 WHERE id = ? AND consumed_at IS NULL AND revoked_at IS NULL`,
		at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *tokensRepo) RevokeToken(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		at, id)
	return err
}

// GetActiveDescendants walks the rotation chain breadth first and returns
// the descendants that are still active. The walk itself crosses consumed
// and revoked intermediates, since a rotated-away token sits between the
// root and the live end of its chain. The visited set and depth bound make
// a corrupt cycle terminate instead of hang.
func (r *tokensRepo) GetActiveDescendants(ctx context.Context, id string, now time.Time) ([]domain.Token, error) {
	var out []domain.Token
	visited := map[string]struct{}{id: {}}
	frontier := []string{id}

	for depth := 0; depth < maxDescendantDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, parent := range frontier {
			children, err := r.childrenOf(ctx, parent)
			if err != nil {
				return nil, err
			}
			for _, child := range children {
				if _, seen := visited[child.ID]; seen {
					continue
				}
				visited[child.ID] = struct{}{}
				if child.IsActive(now) {
					out = append(out, child)
				}
				next = append(next, child.ID)
			}
		}
		frontier = next
	}

	return out, nil
}

func (r *tokensRepo) childrenOf(ctx context.Context, parentID string) ([]domain.Token, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE parent_token_id = ?`,
		parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Token
	for rows.Next() {
		t, err := r.scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE expires_at < ?`, cutoff)
	return err
}
