// Package ledger keeps the contribution books of church events: a cached,
// live view of each partition, its sequence counter, bulk imports and the
// audit trail of every mutation.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/24981a0558-joel/manna-contribution/internal/catalog"
	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/metrics"
)

// Stores bundles the repositories a Service works on.
type Stores struct {
	Contributions domain.ContributionRepository
	Feed          domain.ContributionFeed
	Counters      domain.CounterRepository
	Audit         domain.AuditRepository
}

// Options tunes a Service. Zero values take the defaults noted per field.
type Options struct {
	// ImportConcurrency bounds concurrent batch commits per import (4).
	ImportConcurrency int
	// IdleTTL keeps an unused book subscribed for this long (5m).
	IdleTTL time.Duration
	// AuditTimeout bounds one audit write (10s).
	AuditTimeout time.Duration
	// AuditListLimit is the default and maximum audit page size (200).
	AuditListLimit int
	// WriteTimeout bounds one mutation or import after it is detached
	// from the request that asked for it (2m).
	WriteTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ImportConcurrency <= 0 {
		o.ImportConcurrency = 4
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = 5 * time.Minute
	}
	if o.AuditTimeout <= 0 {
		o.AuditTimeout = 10 * time.Second
	}
	if o.AuditListLimit <= 0 {
		o.AuditListLimit = 200
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 2 * time.Minute
	}
	return o
}

type bookEntry struct {
	book  *Book
	refs  int
	ready chan struct{}
	err   error
	timer *time.Timer
}

// Service hands out shared books, one per open partition. A book stays
// subscribed while it has holders and for IdleTTL after the last release.
type Service struct {
	stores   Stores
	catalog  *catalog.Catalog
	auditor  *Auditor
	importer *Importer
	logger   zerolog.Logger
	base     zerolog.Logger
	opts     Options
	now      func() time.Time

	mu     sync.Mutex
	books  map[string]*bookEntry
	closed bool
}

// NewService wires a service over stores.
func NewService(stores Stores, cat *catalog.Catalog, logger zerolog.Logger, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		stores:   stores,
		catalog:  cat,
		auditor:  NewAuditor(stores.Audit, logger, opts.AuditTimeout),
		importer: NewImporter(stores.Contributions, opts.ImportConcurrency, logger),
		logger:   logger.With().Str("component", "ledger").Logger(),
		base:     logger,
		opts:     opts,
		now:      time.Now,
		books:    make(map[string]*bookEntry),
	}
}

// Catalog returns the event catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Open returns the book of p, subscribing it on first use. The caller must
// call release when done. A book whose subscription failed is rebuilt once
// nobody holds it any more.
func (s *Service) Open(ctx context.Context, p domain.Partition) (*Book, func(), error) {
	event, err := s.catalog.Validate(p)
	if err != nil {
		return nil, nil, err
	}
	label := p.Label()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, domain.ErrClosed
	}
	e := s.books[label]
	if e != nil && e.refs == 0 && isReady(e) && e.book.Err() != nil {
		s.dropLocked(label, e)
		e = nil
	}
	if e != nil {
		e.refs++
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		s.mu.Unlock()

		select {
		case <-e.ready:
		case <-ctx.Done():
			s.release(label, e)
			return nil, nil, ctx.Err()
		}
		if e.err != nil {
			return nil, nil, e.err
		}
		return e.book, s.releaser(label, e), nil
	}

	e = &bookEntry{refs: 1, ready: make(chan struct{})}
	e.book = s.newBook(p, event)
	s.books[label] = e
	metrics.OpenBooks.Inc()
	s.mu.Unlock()

	if err := e.book.start(ctx); err != nil {
		s.mu.Lock()
		e.err = err
		if s.books[label] == e {
			delete(s.books, label)
			metrics.OpenBooks.Dec()
		}
		close(e.ready)
		s.mu.Unlock()
		e.book.close()
		return nil, nil, fmt.Errorf("open %s: %w", label, err)
	}
	s.mu.Lock()
	if s.closed {
		// Close ran while the book was starting and left it to us.
		e.err = domain.ErrClosed
		if s.books[label] == e {
			delete(s.books, label)
			metrics.OpenBooks.Dec()
		}
		close(e.ready)
		s.mu.Unlock()
		e.book.close()
		return nil, nil, domain.ErrClosed
	}
	close(e.ready)
	s.mu.Unlock()
	s.logger.Debug().Str("partition", label).Int64("last_sno", e.book.Peek()).Msg("book opened")
	return e.book, s.releaser(label, e), nil
}

func (s *Service) newBook(p domain.Partition, event catalog.Event) *Book {
	logger := s.logger.With().Str("partition", p.Label()).Logger()
	counter := NewCounter(p, s.stores.Counters, s.base)
	return &Book{
		partition: p,
		event:     event,
		repo:      s.stores.Contributions,
		counter:   counter,
		cache: NewCache(s.stores.Feed, s.base, func(_ domain.Partition, maxSno int64) {
			counter.Observe(maxSno)
		}),
		importer:     s.importer,
		auditor:      s.auditor,
		logger:       logger,
		now:          s.now,
		writeTimeout: s.opts.WriteTimeout,
	}
}

func isReady(e *bookEntry) bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}

func (s *Service) releaser(label string, e *bookEntry) func() {
	var once sync.Once
	return func() { once.Do(func() { s.release(label, e) }) }
}

func (s *Service) release(label string, e *bookEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	if e.refs > 0 || s.books[label] != e {
		return
	}
	e.timer = time.AfterFunc(s.opts.IdleTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.books[label] == e && e.refs == 0 {
			s.dropLocked(label, e)
		}
	})
}

func (s *Service) dropLocked(label string, e *bookEntry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	delete(s.books, label)
	metrics.OpenBooks.Dec()
	e.book.close()
	s.logger.Debug().Str("partition", label).Msg("book closed")
}

// Close unsubscribes every book and waits for pending audit writes. A book
// still starting is closed by its Open once the start completes.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	for label, e := range s.books {
		if isReady(e) {
			s.dropLocked(label, e)
		}
	}
	s.mu.Unlock()
	s.auditor.Wait()
}

// EventTotal is the dashboard line of one event.
type EventTotal struct {
	catalog.Event
	ShortName string          `json:"shortName"`
	Amount    decimal.Decimal `json:"amount"`
	Members   int             `json:"members"`
}

// Dashboard sums every event of one year.
type Dashboard struct {
	Year    int             `json:"year"`
	Events  []EventTotal    `json:"events"`
	Amount  decimal.Decimal `json:"totalAmount"`
	Members int             `json:"totalMembers"`
}

// Dashboard reads every event of year. An event that cannot be read counts
// as zero and is logged.
func (s *Service) Dashboard(ctx context.Context, year int) (Dashboard, error) {
	if !s.catalog.Range.Contains(year) {
		return Dashboard{}, fmt.Errorf("%w: year %d outside %d-%d", domain.ErrInvalidInput, year, s.catalog.Range.First, s.catalog.Range.Last)
	}
	parts := s.catalog.Partitions(year)
	lines := make([]EventTotal, len(parts))
	var g errgroup.Group
	g.SetLimit(s.opts.ImportConcurrency)
	for i, p := range parts {
		event := s.catalog.Events[i]
		lines[i] = EventTotal{Event: event, ShortName: event.ShortName(), Amount: decimal.Zero}
		g.Go(func() error {
			rows, err := s.stores.Contributions.List(ctx, p)
			if err != nil {
				s.logger.Error().Err(err).Str("event", event.Name).Msg("error fetching event totals")
				return nil
			}
			lines[i].Amount = Total(rows)
			lines[i].Members = len(rows)
			return nil
		})
	}
	_ = g.Wait()

	d := Dashboard{Year: year, Events: lines, Amount: decimal.Zero}
	for _, l := range lines {
		d.Amount = d.Amount.Add(l.Amount)
		d.Members += l.Members
	}
	return d, nil
}

// AuditLog lists the newest audit entries, optionally of one action.
// Only admins may read it.
func (s *Service) AuditLog(ctx context.Context, actor domain.Actor, action domain.AuditAction, limit int) ([]domain.AuditEntry, error) {
	if !actor.Role.CanViewAudit() {
		return nil, deny(actor, "view the audit log")
	}
	if limit <= 0 || limit > s.opts.AuditListLimit {
		limit = s.opts.AuditListLimit
	}
	entries, err := s.stores.Audit.ListRecent(ctx, limit, action)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return entries, nil
}
