package domain

import "context"

// MaxBatchOps is the largest number of writes one batch commit may carry.
// The backing store rejects anything bigger.
const MaxBatchOps = 500

// ContributionRepository persists the contribution rows of a partition.
type ContributionRepository interface {
	// NewID returns a fresh opaque document key.
	NewID() string
	// List returns every row of the partition ordered by sno ascending.
	List(ctx context.Context, p Partition) ([]Contribution, error)
	Get(ctx context.Context, p Partition, id string) (*Contribution, error)
	// Put upserts the row under its key.
	Put(ctx context.Context, p Partition, c *Contribution) error
	Delete(ctx context.Context, p Partition, id string) error
	// CommitBatch writes all rows or none. len(rows) must not exceed MaxBatchOps.
	CommitBatch(ctx context.Context, p Partition, rows []Contribution) error
}

// SnapshotFunc receives the full, sno-ordered contents of a partition.
type SnapshotFunc func(rows []Contribution)

// ContributionFeed delivers a fresh snapshot of a partition whenever it changes.
type ContributionFeed interface {
	// Watch delivers the current snapshot and then one per change until the
	// returned cancel function is called. onError is called at most once, after
	// which no further snapshots arrive.
	Watch(ctx context.Context, p Partition, onSnapshot SnapshotFunc, onError func(error)) (cancel func(), err error)
}

// CounterRepository persists the highest assigned sno per partition.
type CounterRepository interface {
	// LastSno returns 0 when the counter was never written.
	LastSno(ctx context.Context, p Partition) (int64, error)
	// SetLastSno overwrites the stored value; the last writer wins.
	SetLastSno(ctx context.Context, p Partition, n int64) error
}

// AuditRepository appends and lists audit entries.
type AuditRepository interface {
	Append(ctx context.Context, e *AuditEntry) error
	// ListRecent returns entries newest first; an empty action means all.
	ListRecent(ctx context.Context, limit int, action AuditAction) ([]AuditEntry, error)
}

// UserRepository handles the authorized user list.
type UserRepository interface {
	Get(ctx context.Context, key string) (*AuthorizedUser, error)
	List(ctx context.Context) ([]AuthorizedUser, error)
	Upsert(ctx context.Context, u *AuthorizedUser) error
	Delete(ctx context.Context, key string) error
}
