package sqlite

import (
	"context"
	"strings"

	"github.com/nightporter/staffgate/internal/auth/domain"
)

type employeesRepo struct {
	db dbtx
}

const employeeColumns = `id, username, display_name, email, password_hash, roles, created_at, updated_at`

func (r *employeesRepo) scanEmployee(row interface{ Scan(...any) error }) (domain.Employee, error) {
	var e domain.Employee
	var roles string
	err := row.Scan(
		&e.ID, &e.Username, &e.DisplayName, &e.Email,
		&e.PasswordHash, &roles, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return domain.Employee{}, mapNotFound(err)
	}
	e.Roles = splitRoles(roles)
	return e, nil
}

func (r *employeesRepo) GetEmployeeByID(ctx context.Context, id string) (domain.Employee, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	return r.scanEmployee(row)
}

func (r *employeesRepo) GetEmployeeByUsername(ctx context.Context, username string) (domain.Employee, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE username = ?`, username)
	return r.scanEmployee(row)
}

func (r *employeesRepo) CreateEmployee(ctx context.Context, e domain.Employee) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO employees (id, username, display_name, email, password_hash, roles, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Username, e.DisplayName, e.Email,
		e.PasswordHash, joinRoles(e.Roles), e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (r *employeesRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

// Roles are stored comma separated; scopes use spaces like the wire format.
func joinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

func splitRoles(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
