package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/infra"
	"github.com/24981a0558-joel/manna-contribution/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(sql infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{sql: sql}
}

// Get fetches an authorized user by email key.
func (r *UserRepositoryPG) Get(ctx context.Context, key string) (*domain.AuthorizedUser, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectAuthorizedUser, key))
}

// List returns every authorized user ordered by email.
func (r *UserRepositoryPG) List(ctx context.Context) ([]domain.AuthorizedUser, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListAuthorizedUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.AuthorizedUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Upsert inserts or replaces the entry under u.Key.
func (r *UserRepositoryPG) Upsert(ctx context.Context, u *domain.AuthorizedUser) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertAuthorizedUser, u.Key, u.Email, u.Name, string(u.Role), u.UpdatedAt, u.UpdatedBy)
	return err
}

// Delete removes the entry under key.
func (r *UserRepositoryPG) Delete(ctx context.Context, key string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QDeleteAuthorizedUser, key)
	return err
}

func scanUser(row pgx.Row) (*domain.AuthorizedUser, error) {
	var (
		u    domain.AuthorizedUser
		role string
	)
	if err := row.Scan(&u.Key, &u.Email, &u.Name, &role, &u.UpdatedAt, &u.UpdatedBy); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u.Role = domain.UserRole(role)
	return &u, nil
}

var (
	_ domain.ContributionRepository = (*ContributionRepositoryPG)(nil)
	_ domain.CounterRepository      = (*CounterRepositoryPG)(nil)
	_ domain.AuditRepository        = (*AuditRepositoryPG)(nil)
	_ domain.UserRepository         = (*UserRepositoryPG)(nil)
	_ domain.ContributionFeed       = (*Feed)(nil)
)
