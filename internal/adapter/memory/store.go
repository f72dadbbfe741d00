// Package memory keeps every repository contract in process memory. It backs
// the tests and the STORE=memory development mode, and lets callers inject
// failures to exercise partial-failure paths.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

// Faults lets tests make individual operations fail. Each hook is consulted
// before the operation touches state; a nil hook never fails.
type Faults struct {
	// Batch is called with the zero-based commit sequence number.
	Batch      func(seq int) error
	Put        func(c domain.Contribution) error
	Delete     func(id string) error
	List       func(p domain.Partition) error
	SetCounter func(p domain.Partition, n int64) error
	Audit      func(e domain.AuditEntry) error
}

type watcher struct {
	id         int
	onSnapshot domain.SnapshotFunc
	onError    func(error)
	done       bool
}

// Store is an in-memory implementation of the contribution, counter, audit
// and user repositories plus the contribution feed.
type Store struct {
	mu       sync.Mutex
	rows     map[string]map[string]domain.Contribution
	counters map[string]int64
	audit    []domain.AuditEntry
	faults   Faults
	batchSeq int
	now      func() time.Time

	// deliver serializes snapshot fan-out so subscribers observe changes in
	// commit order.
	deliver  sync.Mutex
	watchers map[string][]*watcher
	nextID   int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		rows:     make(map[string]map[string]domain.Contribution),
		counters: make(map[string]int64),
		watchers: make(map[string][]*watcher),
		now:      time.Now,
	}
}

// SetFaults replaces the failure hooks.
func (s *Store) SetFaults(f Faults) {
	s.mu.Lock()
	s.faults = f
	s.mu.Unlock()
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) NewID() string { return uuid.NewString() }

func (s *Store) List(ctx context.Context, p domain.Partition) ([]domain.Contribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults.List != nil {
		if err := s.faults.List(p); err != nil {
			return nil, err
		}
	}
	return s.snapshotLocked(p), nil
}

func (s *Store) snapshotLocked(p domain.Partition) []domain.Contribution {
	part := s.rows[p.Label()]
	out := make([]domain.Contribution, 0, len(part))
	for _, c := range part {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sno != out[j].Sno {
			return out[i].Sno < out[j].Sno
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) Get(ctx context.Context, p domain.Partition, id string) (*domain.Contribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[p.Label()][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *Store) Put(ctx context.Context, p domain.Partition, c *domain.Contribution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: contribution id required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	if s.faults.Put != nil {
		if err := s.faults.Put(*c); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.partitionLocked(p)[c.ID] = *c
	s.mu.Unlock()
	s.publish(p)
	return nil
}

func (s *Store) Delete(ctx context.Context, p domain.Partition, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.faults.Delete != nil {
		if err := s.faults.Delete(id); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	delete(s.rows[p.Label()], id)
	s.mu.Unlock()
	s.publish(p)
	return nil
}

func (s *Store) CommitBatch(ctx context.Context, p domain.Partition, rows []domain.Contribution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) > domain.MaxBatchOps {
		return fmt.Errorf("%w: %d > %d", domain.ErrBatchTooLarge, len(rows), domain.MaxBatchOps)
	}
	s.mu.Lock()
	seq := s.batchSeq
	s.batchSeq++
	if s.faults.Batch != nil {
		if err := s.faults.Batch(seq); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	part := s.partitionLocked(p)
	for _, c := range rows {
		part[c.ID] = c
	}
	s.mu.Unlock()
	s.publish(p)
	return nil
}

func (s *Store) partitionLocked(p domain.Partition) map[string]domain.Contribution {
	part, ok := s.rows[p.Label()]
	if !ok {
		part = make(map[string]domain.Contribution)
		s.rows[p.Label()] = part
	}
	return part
}

// Watch implements domain.ContributionFeed. Snapshots are delivered
// synchronously on the goroutine that committed the change.
func (s *Store) Watch(ctx context.Context, p domain.Partition, onSnapshot domain.SnapshotFunc, onError func(error)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.nextID++
	w := &watcher{id: s.nextID, onSnapshot: onSnapshot, onError: onError}
	s.watchers[p.Label()] = append(s.watchers[p.Label()], w)

	rows, err := s.List(ctx, p)
	if err != nil {
		s.failLocked(p, w, err)
	} else {
		onSnapshot(rows)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.deliver.Lock()
			defer s.deliver.Unlock()
			s.removeLocked(p, w.id)
		})
	}, nil
}

func (s *Store) publish(p domain.Partition) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	ws := append([]*watcher(nil), s.watchers[p.Label()]...)
	if len(ws) == 0 {
		return
	}
	rows, err := s.List(context.Background(), p)
	for _, w := range ws {
		if err != nil {
			s.failLocked(p, w, err)
			continue
		}
		w.onSnapshot(rows)
	}
}

func (s *Store) failLocked(p domain.Partition, w *watcher, err error) {
	if w.done {
		return
	}
	w.done = true
	s.removeLocked(p, w.id)
	if w.onError != nil {
		w.onError(fmt.Errorf("%w: %v", domain.ErrSubscription, err))
	}
}

func (s *Store) removeLocked(p domain.Partition, id int) {
	ws := s.watchers[p.Label()]
	for i, w := range ws {
		if w.id == id {
			s.watchers[p.Label()] = append(ws[:i:i], ws[i+1:]...)
			break
		}
	}
	if len(s.watchers[p.Label()]) == 0 {
		delete(s.watchers, p.Label())
	}
}

// Watchers returns how many live subscriptions a partition has.
func (s *Store) Watchers(p domain.Partition) int {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	return len(s.watchers[p.Label()])
}

// Emit pushes a fresh snapshot of p to its subscribers, as a remote writer
// would.
func (s *Store) Emit(p domain.Partition) { s.publish(p) }

// FailWatchers terminates every subscription of p with err.
func (s *Store) FailWatchers(p domain.Partition, err error) {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	for _, w := range append([]*watcher(nil), s.watchers[p.Label()]...) {
		s.failLocked(p, w, err)
	}
}

func (s *Store) LastSno(ctx context.Context, p domain.Partition) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[p.Label()], nil
}

func (s *Store) SetLastSno(ctx context.Context, p domain.Partition, n int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults.SetCounter != nil {
		if err := s.faults.SetCounter(p, n); err != nil {
			return err
		}
	}
	s.counters[p.Label()] = n
	return nil
}

func (s *Store) Append(ctx context.Context, e *domain.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults.Audit != nil {
		if err := s.faults.Audit(*e); err != nil {
			return err
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.audit = append(s.audit, *e)
	return nil
}

func (s *Store) ListRecent(ctx context.Context, limit int, action domain.AuditAction) ([]domain.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if action != "" && e.Action != action {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// AuditEntries returns every entry in append order.
func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEntry(nil), s.audit...)
}

var (
	_ domain.ContributionRepository = (*Store)(nil)
	_ domain.ContributionFeed       = (*Store)(nil)
	_ domain.CounterRepository      = (*Store)(nil)
	_ domain.AuditRepository        = (*Store)(nil)
	_ domain.UserRepository         = (*Users)(nil)
)
