package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/catalog"
	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/sheet"
)

// Book is the contribution ledger of one partition: its cached rows, its
// sequence counter and every mutation on them. Permission checks run before
// any remote call.
type Book struct {
	partition domain.Partition
	event     catalog.Event
	repo      domain.ContributionRepository
	counter   *Counter
	cache     *Cache
	importer  *Importer
	auditor   *Auditor
	logger    zerolog.Logger
	now       func() time.Time
	// writeTimeout bounds a mutation once it has been detached from its
	// caller.
	writeTimeout time.Duration

	// assign serializes sno assignment within this process. Other processes
	// still race on the counter.
	assign sync.Mutex
}

func (b *Book) start(ctx context.Context) error {
	if err := b.counter.Load(ctx); err != nil {
		b.logger.Warn().Err(err).Msg("counter load failed")
	}
	if err := b.cache.Select(ctx, b.partition); err != nil {
		return err
	}
	return b.cache.Wait(ctx)
}

// Partition returns the partition of the book.
func (b *Book) Partition() domain.Partition { return b.partition }

// Event returns the catalog entry of the book.
func (b *Book) Event() catalog.Event { return b.event }

// Err returns the terminal subscription error, if any. The rows keep their
// last known state.
func (b *Book) Err() error { return b.cache.Err() }

// View projects the cached rows.
func (b *Book) View(q Query) View {
	return Project(b.cache.Rows(), q)
}

// Peek returns the last known sno.
func (b *Book) Peek() int64 { return b.counter.Peek() }

// OnChange registers fn to run after every snapshot or subscription error.
func (b *Book) OnChange(fn func()) (remove func()) { return b.cache.OnChange(fn) }

// detach lets a write outlive its caller; it runs to completion or until
// the write timeout.
func (b *Book) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), b.writeTimeout)
}

func deny(actor domain.Actor, what string) error {
	return fmt.Errorf("%w: %s cannot %s", domain.ErrPermissionDenied, actor.Role.Label(), what)
}

// Add stores a new row. A blank or invalid SNO takes the next counter value
// and a blank DATE takes today.
func (b *Book) Add(ctx context.Context, actor domain.Actor, v domain.Values) (domain.Contribution, error) {
	if !actor.Role.CanEdit() {
		return domain.Contribution{}, deny(actor, "add contributions")
	}
	ctx, cancel := b.detach(ctx)
	defer cancel()
	b.assign.Lock()
	defer b.assign.Unlock()

	sno, ok := domain.ParseSno(v.SNO)
	if !ok {
		sno = b.counter.Peek() + 1
	}
	v.SNO = strconv.FormatInt(sno, 10)
	now := b.now()
	if v.Date == "" {
		v.Date = domain.FormatDate(now)
	}
	stamp := domain.Stamp{At: &now, By: actor.StampName()}
	c := domain.Contribution{
		ID:      b.repo.NewID(),
		Values:  v,
		Sno:     sno,
		Added:   stamp,
		Updated: stamp,
	}
	if err := b.repo.Put(ctx, b.partition, &c); err != nil {
		return domain.Contribution{}, fmt.Errorf("save contribution: %w", err)
	}
	b.counter.Reserve(ctx, sno)
	b.auditor.Record(ctx, domain.AuditAdd, b.partition, c.Payload(), nil, actor)
	return c, nil
}

// Edit replaces the display columns of an existing row. A blank SNO keeps
// the current number; anything else must be a positive integer.
func (b *Book) Edit(ctx context.Context, actor domain.Actor, id string, v domain.Values) (domain.Contribution, error) {
	if !actor.Role.CanEdit() {
		return domain.Contribution{}, deny(actor, "edit contributions")
	}
	ctx, cancel := b.detach(ctx)
	defer cancel()
	prev, err := b.repo.Get(ctx, b.partition, id)
	if err != nil {
		return domain.Contribution{}, fmt.Errorf("load contribution: %w", err)
	}

	c := *prev
	c.Values = v
	if v.SNO == "" {
		c.SNO = prev.SNO
	} else {
		sno, ok := domain.ParseSno(v.SNO)
		if !ok {
			return domain.Contribution{}, fmt.Errorf("%w: SNO %q is not a positive integer", domain.ErrInvalidInput, v.SNO)
		}
		c.Sno = sno
		c.SNO = strconv.FormatInt(sno, 10)
	}
	now := b.now()
	c.Updated = domain.Stamp{At: &now, By: actor.StampName()}

	if err := b.repo.Put(ctx, b.partition, &c); err != nil {
		return domain.Contribution{}, fmt.Errorf("save contribution: %w", err)
	}
	// The snapshot of this write may already have raised Peek, so the
	// stored counter is written regardless.
	b.counter.Reserve(ctx, c.Sno)
	b.auditor.Record(ctx, domain.AuditEdit, b.partition, c.Payload(), prev.Payload(), actor)
	return c, nil
}

// Delete removes a row. The audit entry carries the removed row.
func (b *Book) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.Role.CanDelete() {
		return deny(actor, "delete contributions")
	}
	ctx, cancel := b.detach(ctx)
	defer cancel()
	prev, err := b.repo.Get(ctx, b.partition, id)
	if err != nil {
		return fmt.Errorf("load contribution: %w", err)
	}
	if err := b.repo.Delete(ctx, b.partition, id); err != nil {
		return fmt.Errorf("delete contribution: %w", err)
	}
	b.auditor.Record(ctx, domain.AuditDelete, b.partition, prev.Payload(), nil, actor)
	return nil
}

// Import bulk-loads rows in batches of at most domain.MaxBatchOps. Batches
// commit concurrently and independently, so a failure leaves earlier or
// later batches in place. Once every batch was attempted the counter is
// reserved and one bulk_upload entry is recorded, unless nothing landed.
//
// An empty input is a no-op. A partial failure returns ErrPartialImport
// together with the aggregate result. Commits continue when ctx is
// canceled and are bounded by the write timeout instead.
func (b *Book) Import(ctx context.Context, actor domain.Actor, rows []domain.Values) (ImportResult, error) {
	if !actor.Role.CanEdit() {
		return ImportResult{}, deny(actor, "upload files")
	}
	if len(rows) == 0 {
		return ImportResult{}, nil
	}
	ctx, cancel := b.detach(ctx)
	defer cancel()
	b.assign.Lock()
	defer b.assign.Unlock()

	now := b.now()
	plan := planImport(rows, b.counter.Peek(), domain.Stamp{At: &now, By: actor.StampName()}, b.repo.NewID)
	res := ImportResult{Rows: len(plan.rows), Batches: len(plan.batches)}
	var err error
	res.FailedBatches, res.FailedRows, err = b.importer.commit(ctx, b.partition, plan.batches)
	if res.FailedBatches == res.Batches {
		return res, fmt.Errorf("import %s: %w: %w", b.partition, errAllBatchesFailed, err)
	}

	res.Counter = b.counter.Reserve(ctx, plan.last)
	b.auditor.Record(ctx, domain.AuditBulkUpload, b.partition, map[string]any{"count": len(rows)}, nil, actor)
	b.logger.Info().
		Int("rows", res.Rows).
		Int("batches", res.Batches).
		Int("failed_batches", res.FailedBatches).
		Int64("counter", res.Counter).
		Str("user", actor.StampName()).
		Msg("bulk upload finished")

	if res.FailedBatches > 0 {
		return res, fmt.Errorf("%w: %d of %d batches failed", domain.ErrPartialImport, res.FailedBatches, res.Batches)
	}
	return res, nil
}

// ImportFile decodes an uploaded spreadsheet and imports its rows.
func (b *Book) ImportFile(ctx context.Context, actor domain.Actor, filename string, data []byte) (ImportResult, error) {
	if !actor.Role.CanEdit() {
		return ImportResult{}, deny(actor, "upload files")
	}
	f, err := sheet.Detect(filename, data)
	if err != nil {
		return ImportResult{}, err
	}
	rows, err := sheet.Decode(f, data)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return b.Import(ctx, actor, rows)
}

// Export encodes the cached rows in sno order without bookkeeping fields.
func (b *Book) Export(f sheet.Format) (filename string, data []byte, err error) {
	rows := b.cache.Rows()
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("%w to download", domain.ErrEmptyFile)
	}
	values := make([]domain.Values, len(rows))
	for i, r := range rows {
		values[i] = r.Values
	}
	data, err = sheet.Encode(f, b.event.Name, values)
	if err != nil {
		return "", nil, err
	}
	return sheet.Filename(b.event.Name, b.partition.Year, b.now(), f), data, nil
}

func (b *Book) close() { b.cache.Close() }
