package store

import (
	"context"
	"errors"
	"time"

	"github.com/nightporter/staffgate/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and forces multi-step operations through Tx/WithTx so refresh
// rotation can't be split across connections by accident.
type Store interface {
	Employees() Employees
	Sessions() Sessions
	Tokens() Tokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Employees interface {
	// GetEmployeeByID returns an employee by id.
	GetEmployeeByID(ctx context.Context, id string) (domain.Employee, error)

	// GetEmployeeByUsername is used during the interactive authorize login.
	GetEmployeeByUsername(ctx context.Context, username string) (domain.Employee, error)

	// CreateEmployee inserts a new employee (id is provided by app via ULID).
	CreateEmployee(ctx context.Context, e domain.Employee) error

	// IsEmpty returns true if there are no employees (seed check at boot).
	IsEmpty(ctx context.Context) (bool, error)
}

type Sessions interface {
	// CreateSession stores a new session record.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByID returns a session by id.
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// GetSessionByHandleHash looks a session up by the digest of its opaque
	// browser handle. Only sessions that were created with a handle match.
	GetSessionByHandleHash(ctx context.Context, handleHash string) (domain.Session, error)

	// ListSessionsByEmployee returns the employee's sessions, newest first.
	ListSessionsByEmployee(ctx context.Context, employeeID string) ([]domain.Session, error)

	// RevokeSession stamps revoked_at/revoked_reason if the session is not
	// already revoked. Revoking twice is a no-op, first write wins.
	RevokeSession(ctx context.Context, id, reason string, at time.Time) error

	// DeleteExpiredSessions removes revoked or expired sessions older than
	// the retention cutoff (housekeeping).
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) error
}

type Tokens interface {
	// CreateToken stores a new access or refresh token record.
	CreateToken(ctx context.Context, t domain.Token) error

	// GetTokenByID returns a token by id.
	GetTokenByID(ctx context.Context, id string) (domain.Token, error)

	// GetTokenByHash returns the token by the digest of its raw value.
	GetTokenByHash(ctx context.Context, hash string) (domain.Token, error)

	// ConsumeToken stamps consumed_at, but only if the token is still
	// unconsumed and unrevoked. Returns ErrNotFound when another request
	// got there first; that is how concurrent refresh replays lose.
	ConsumeToken(ctx context.Context, id string, at time.Time) error

	// RevokeToken stamps revoked_at if not already set.
	RevokeToken(ctx context.Context, id string, at time.Time) error

	// GetActiveDescendants walks the parent_token_id chain down from the
	// given token and returns every descendant that is still active at now.
	GetActiveDescendants(ctx context.Context, id string, now time.Time) ([]domain.Token, error)

	// DeleteExpiredTokens removes dead token rows older than the cutoff
	// (housekeeping).
	DeleteExpiredTokens(ctx context.Context, cutoff time.Time) error
}
