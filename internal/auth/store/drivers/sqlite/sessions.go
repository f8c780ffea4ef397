package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nightporter/staffgate/internal/auth/domain"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, employee_id, client_id, device, ip_address, metadata,
	handle_hash, created_at, expires_at, revoked_at, revoked_reason`

func (r *sessionsRepo) scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var s domain.Session
	var handleHash sql.NullString
	var expiresAt, revokedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.EmployeeID, &s.ClientID, &s.Device, &s.IPAddress, &s.Metadata,
		&handleHash, &s.CreatedAt, &expiresAt, &revokedAt, &s.RevokedReason,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	if handleHash.Valid {
		s.HandleHash = handleHash.String
	}
	s.ExpiresAt = mapNullTimePtr(expiresAt)
	s.RevokedAt = mapNullTimePtr(revokedAt)
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	var handleHash sql.NullString
	if s.HandleHash != "" {
		handleHash = sql.NullString{String: s.HandleHash, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, employee_id, client_id, device, ip_address, metadata,
			handle_hash, created_at, expires_at, revoked_at, revoked_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.EmployeeID, s.ClientID, s.Device, s.IPAddress, s.Metadata,
		handleHash, s.CreatedAt, mapOptionalTime(s.ExpiresAt),
		mapOptionalTime(s.RevokedAt), s.RevokedReason,
	)
	return err
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return r.scanSession(row)
}

func (r *sessionsRepo) GetSessionByHandleHash(ctx context.Context, handleHash string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE handle_hash = ?`, handleHash)
	return r.scanSession(row)
}

func (r *sessionsRepo) ListSessionsByEmployee(ctx context.Context, employeeID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE employee_id = ? ORDER BY created_at DESC`,
		employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RevokeSession is idempotent: the WHERE clause leaves an already revoked
// session untouched, so the first reason sticks.
func (r *sessionsRepo) RevokeSession(ctx context.Context, id, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ?, revoked_reason = ?
		 WHERE id = ? AND revoked_at IS NULL`,
		at, reason, id)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions
		 WHERE (revoked_at IS NOT NULL AND revoked_at < ?)
		    OR (expires_at IS NOT NULL AND expires_at < ?)`,
		cutoff, cutoff)
	return err
}
