package ledger

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
	"github.com/24981a0558-joel/manna-contribution/internal/metrics"
)

// Counter tracks the highest sno assigned in one partition.
//
// Writes are plain overwrites with no compare-and-swap: two editors reserving
// at the same time can both persist, and whichever lands last wins. A later
// reservation with a higher value corrects the stored number. Concurrent
// imports in one partition may therefore hand out duplicate sno values.
type Counter struct {
	partition domain.Partition
	repo      domain.CounterRepository
	logger    zerolog.Logger

	mu   sync.Mutex
	last int64
}

// NewCounter creates a counter whose local value starts at zero.
func NewCounter(p domain.Partition, repo domain.CounterRepository, logger zerolog.Logger) *Counter {
	return &Counter{
		partition: p,
		repo:      repo,
		logger:    logger.With().Str("component", "counter").Str("partition", p.Label()).Logger(),
	}
}

// Peek returns the last known value, 0 when nothing was seen yet.
func (c *Counter) Peek() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Observe raises the local value to at least n without persisting it.
func (c *Counter) Observe(n int64) {
	c.mu.Lock()
	if n > c.last {
		c.last = n
	}
	c.mu.Unlock()
}

// Load reads the stored value and raises the local value to it.
func (c *Counter) Load(ctx context.Context) error {
	n, err := c.repo.LastSno(ctx, c.partition)
	if err != nil {
		return err
	}
	c.Observe(n)
	return nil
}

// Reserve persists max(n, Peek()) and returns it. A failed write is logged
// and the local value stays authoritative until the next Load.
func (c *Counter) Reserve(ctx context.Context, n int64) int64 {
	c.mu.Lock()
	if n < c.last {
		n = c.last
	}
	c.last = n
	c.mu.Unlock()

	if err := c.repo.SetLastSno(ctx, c.partition, n); err != nil {
		metrics.CounterPersistFailuresTotal.Inc()
		c.logger.Error().Err(err).Int64("sno", n).Msg("counter update failed")
	}
	return n
}
