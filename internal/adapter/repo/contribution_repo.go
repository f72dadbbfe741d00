package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/infra"
	"github.com/24981a0558-joel/manna-contribution/internal/sqlinline"
)

// ContributionRepositoryPG implements domain.ContributionRepository backed by PostgreSQL.
type ContributionRepositoryPG struct {
	sql infra.SQLBatchExecutor
}

// NewContributionRepository creates a new ContributionRepositoryPG.
func NewContributionRepository(sql infra.SQLBatchExecutor) *ContributionRepositoryPG {
	return &ContributionRepositoryPG{sql: sql}
}

func (r *ContributionRepositoryPG) NewID() string { return uuid.NewString() }

// List returns the rows of a partition ordered by sno.
func (r *ContributionRepositoryPG) List(ctx context.Context, p domain.Partition) ([]domain.Contribution, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListContributions, p.Label())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Get fetches one row by key.
func (r *ContributionRepositoryPG) Get(ctx context.Context, p domain.Partition, id string) (*domain.Contribution, error) {
	return scanContribution(r.sql.QueryRow(ctx, sqlinline.QSelectContribution, p.Label(), id))
}

// Put upserts one row.
func (r *ContributionRepositoryPG) Put(ctx context.Context, p domain.Partition, c *domain.Contribution) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: contribution id required", domain.ErrInvalidInput)
	}
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertContribution, contributionArgs(p, c)...)
	return err
}

// Delete removes one row. Deleting a missing row is not an error.
func (r *ContributionRepositoryPG) Delete(ctx context.Context, p domain.Partition, id string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QDeleteContribution, p.Label(), id)
	return err
}

// CommitBatch writes rows in one transaction.
func (r *ContributionRepositoryPG) CommitBatch(ctx context.Context, p domain.Partition, rows []domain.Contribution) error {
	if len(rows) > domain.MaxBatchOps {
		return fmt.Errorf("%w: %d > %d", domain.ErrBatchTooLarge, len(rows), domain.MaxBatchOps)
	}
	args := make([][]any, len(rows))
	for i := range rows {
		args[i] = contributionArgs(p, &rows[i])
	}
	return r.sql.ExecBatch(ctx, sqlinline.QUpsertContribution, args)
}

func contributionArgs(p domain.Partition, c *domain.Contribution) []any {
	return []any{
		p.Label(),
		c.ID,
		c.Sno,
		c.SNO,
		c.Date,
		c.Name,
		c.Phone,
		c.Amount,
		c.Added.At,
		c.Added.By,
		c.Updated.At,
		c.Updated.By,
		c.Uploaded.At,
		c.Uploaded.By,
	}
}

func scanContribution(row pgx.Row) (*domain.Contribution, error) {
	var c domain.Contribution
	err := row.Scan(
		&c.ID,
		&c.Sno,
		&c.SNO,
		&c.Date,
		&c.Name,
		&c.Phone,
		&c.Amount,
		&c.Added.At,
		&c.Added.By,
		&c.Updated.At,
		&c.Updated.By,
		&c.Uploaded.At,
		&c.Uploaded.By,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
