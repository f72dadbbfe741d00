package repo

import (
	"context"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/infra"
	"github.com/24981a0558-joel/manna-contribution/internal/sqlinline"
)

// CounterRepositoryPG implements domain.CounterRepository backed by PostgreSQL.
type CounterRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewCounterRepository(sql infra.SQLExecutor) *CounterRepositoryPG {
	return &CounterRepositoryPG{sql: sql}
}

// LastSno returns 0 for a partition without a stored counter.
func (r *CounterRepositoryPG) LastSno(ctx context.Context, p domain.Partition) (int64, error) {
	var n int64
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectPartitionCounter, p.Label()).Scan(&n); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// SetLastSno overwrites the stored counter.
func (r *CounterRepositoryPG) SetLastSno(ctx context.Context, p domain.Partition, n int64) error {
	_, err := r.sql.Exec(ctx, sqlinline.QSetPartitionCounter, p.Label(), n)
	return err
}
