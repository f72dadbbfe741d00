package ledger

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/metrics"
)

// Cache mirrors the rows of one selected partition, kept current by a push
// subscription. Every snapshot replaces the held rows wholesale.
//
// A subscription error is terminal: the cache keeps its last rows, reports
// the error and stops listening. Reconnecting is left to the feed.
type Cache struct {
	feed    domain.ContributionFeed
	logger  zerolog.Logger
	observe func(p domain.Partition, maxSno int64)

	mu        sync.RWMutex
	gen       uint64
	partition domain.Partition
	selected  bool
	rows      []domain.Contribution
	err       error
	cancel    func()
	ready     chan struct{}
	isReady   bool
	listeners map[int]func()
	nextID    int
}

// NewCache creates an idle cache. observe, when set, receives the highest
// sno of every applied snapshot.
func NewCache(feed domain.ContributionFeed, logger zerolog.Logger, observe func(p domain.Partition, maxSno int64)) *Cache {
	return &Cache{
		feed:      feed,
		logger:    logger.With().Str("component", "cache").Logger(),
		observe:   observe,
		ready:     make(chan struct{}),
		listeners: make(map[int]func()),
	}
}

// Select switches the cache to p. The previous subscription is torn down
// before the new one starts and its rows are dropped, so no row of another
// partition can surface after Select returns.
func (c *Cache) Select(ctx context.Context, p domain.Partition) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	prev := c.cancel
	c.cancel = nil
	c.partition = p
	c.selected = true
	c.rows = nil
	c.err = nil
	c.ready = make(chan struct{})
	c.isReady = false
	c.mu.Unlock()

	if prev != nil {
		prev()
	}

	cancel, err := c.feed.Watch(ctx, p,
		func(rows []domain.Contribution) { c.apply(gen, rows) },
		func(err error) { c.fail(gen, err) },
	)
	if err != nil {
		c.fail(gen, err)
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		cancel()
		return nil
	}
	c.cancel = cancel
	c.mu.Unlock()
	return nil
}

func (c *Cache) apply(gen uint64, rows []domain.Contribution) {
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, func(a, b domain.Contribution) int {
		switch {
		case a.Sno < b.Sno:
			return -1
		case a.Sno > b.Sno:
			return 1
		}
		return 0
	})
	var maxSno int64
	for _, r := range rows {
		if r.Sno > maxSno {
			maxSno = r.Sno
		}
	}

	c.mu.Lock()
	if gen != c.gen || c.err != nil {
		c.mu.Unlock()
		return
	}
	c.rows = rows
	p := c.partition
	c.markReadyLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	metrics.SnapshotsTotal.Inc()
	if c.observe != nil && len(rows) > 0 {
		c.observe(p, maxSno)
	}
	for _, fn := range listeners {
		fn()
	}
}

func (c *Cache) fail(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.err != nil {
		c.mu.Unlock()
		return
	}
	c.err = err
	p := c.partition
	c.markReadyLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	metrics.SubscriptionErrorsTotal.Inc()
	c.logger.Error().Err(err).Str("partition", p.Label()).Msg("error fetching data")
	for _, fn := range listeners {
		fn()
	}
}

func (c *Cache) markReadyLocked() {
	if !c.isReady {
		c.isReady = true
		close(c.ready)
	}
}

func (c *Cache) listenersLocked() []func() {
	out := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

// Wait blocks until the first snapshot or error of the current selection.
func (c *Cache) Wait(ctx context.Context) error {
	c.mu.RLock()
	ready := c.ready
	selected := c.selected
	c.mu.RUnlock()
	if !selected {
		return domain.ErrClosed
	}
	select {
	case <-ready:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rows returns a copy of the held rows ordered by sno.
func (c *Cache) Rows() []domain.Contribution {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.rows)
}

// Find returns the held row with the given key.
func (c *Cache) Find(id string) (domain.Contribution, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rows {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Contribution{}, false
}

// Err returns the terminal subscription error, if any.
func (c *Cache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Partition returns the selected partition.
func (c *Cache) Partition() domain.Partition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.partition
}

// OnChange registers fn to run after every applied snapshot or error.
func (c *Cache) OnChange(fn func()) (remove func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Close releases the subscription. Late snapshots are ignored.
func (c *Cache) Close() {
	c.mu.Lock()
	c.gen++
	cancel := c.cancel
	c.cancel = nil
	c.selected = false
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
