package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/infra"
	"github.com/24981a0558-joel/manna-contribution/internal/sqlinline"
)

// AuditRepositoryPG implements domain.AuditRepository backed by PostgreSQL.
type AuditRepositoryPG struct {
	sql infra.SQLExecutor
	now func() time.Time
}

func NewAuditRepository(sql infra.SQLExecutor) *AuditRepositoryPG {
	return &AuditRepositoryPG{sql: sql, now: time.Now}
}

// Append inserts an entry, assigning its id and timestamp when unset.
func (r *AuditRepositoryPG) Append(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = r.now().UTC()
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode audit data: %w", err)
	}
	var previous any
	if e.PreviousData != nil {
		b, err := json.Marshal(e.PreviousData)
		if err != nil {
			return fmt.Errorf("encode audit previous data: %w", err)
		}
		previous = string(b)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertAuditEntry,
		e.ID,
		string(e.Action),
		e.Partition,
		string(data),
		previous,
		e.UserEmail,
		e.UserName,
		e.Timestamp,
	)
	return err
}

// ListRecent returns entries newest first.
func (r *AuditRepositoryPG) ListRecent(ctx context.Context, limit int, action domain.AuditAction) ([]domain.AuditEntry, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListAuditEntries, limit, string(action))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.AuditEntry
	for rows.Next() {
		var (
			e        domain.AuditEntry
			action   string
			data     []byte
			previous []byte
		)
		if err := rows.Scan(&e.ID, &action, &e.Partition, &data, &previous, &e.UserEmail, &e.UserName, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Action = domain.AuditAction(action)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("decode audit data %s: %w", e.ID, err)
			}
		}
		if len(previous) > 0 {
			if err := json.Unmarshal(previous, &e.PreviousData); err != nil {
				return nil, fmt.Errorf("decode audit previous data %s: %w", e.ID, err)
			}
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
